package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ridelink/backend/internal/database"
	"github.com/ridelink/backend/internal/messaging"
	"github.com/ridelink/backend/internal/models"
)

type RideRepository struct {
	db *database.DB
}

func NewRideRepository(db *database.DB) *RideRepository {
	return &RideRepository{db: db}
}

func (r *RideRepository) Create(ctx context.Context, ride *models.Ride) error {
	query := `
		INSERT INTO rides (id, driver_id, rider_id, origin, destination, status, started_at, ended_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		ride.ID,
		ride.DriverID,
		ride.RiderID,
		ride.Origin,
		ride.Destination,
		ride.Status,
		ride.StartedAt,
		ride.EndedAt,
		ride.CreatedAt,
		ride.UpdatedAt,
	).Scan(&ride.ID, &ride.CreatedAt, &ride.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}
	return nil
}

func (r *RideRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	query := `
		SELECT id, driver_id, rider_id, origin, destination, status, started_at, ended_at, created_at, updated_at
		FROM rides WHERE id = $1
	`
	ride := &models.Ride{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&ride.ID,
		&ride.DriverID,
		&ride.RiderID,
		&ride.Origin,
		&ride.Destination,
		&ride.Status,
		&ride.StartedAt,
		&ride.EndedAt,
		&ride.CreatedAt,
		&ride.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, messaging.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}
	return ride, nil
}

// UpdateStatus moves the ride to a new status, stamping started_at/ended_at
// on the transitions that define them.
func (r *RideRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE rides SET status = $1, updated_at = NOW() WHERE id = $2`
	args := []interface{}{status, id}

	switch status {
	case models.RideStatusStarted:
		query = `UPDATE rides SET status = $1, started_at = $2, updated_at = NOW() WHERE id = $3`
		args = []interface{}{status, time.Now(), id}
	case models.RideStatusCompleted, models.RideStatusCancelled:
		query = `UPDATE rides SET status = $1, ended_at = $2, updated_at = NOW() WHERE id = $3`
		args = []interface{}{status, time.Now(), id}
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update ride status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return messaging.ErrNotFound
	}
	return nil
}

// GetForUser retrieves rides where the user is driver or rider, newest first.
func (r *RideRepository) GetForUser(ctx context.Context, userID uuid.UUID) ([]models.Ride, error) {
	query := `
		SELECT id, driver_id, rider_id, origin, destination, status, started_at, ended_at, created_at, updated_at
		FROM rides
		WHERE driver_id = $1 OR rider_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rides: %w", err)
	}
	defer rows.Close()

	rides := []models.Ride{}
	for rows.Next() {
		var ride models.Ride
		err := rows.Scan(
			&ride.ID,
			&ride.DriverID,
			&ride.RiderID,
			&ride.Origin,
			&ride.Destination,
			&ride.Status,
			&ride.StartedAt,
			&ride.EndedAt,
			&ride.CreatedAt,
			&ride.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ride: %w", err)
		}
		rides = append(rides, ride)
	}

	return rides, rows.Err()
}
