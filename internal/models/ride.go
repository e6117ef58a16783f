package models

import (
	"time"

	"github.com/google/uuid"
)

// Ride statuses. Transitions move forward only:
// requested -> accepted -> arrived -> started -> completed, with cancelled
// reachable from any non-terminal status.
const (
	RideStatusRequested = "requested"
	RideStatusAccepted  = "accepted"
	RideStatusArrived   = "arrived"
	RideStatusStarted   = "started"
	RideStatusCompleted = "completed"
	RideStatusCancelled = "cancelled"
)

type Ride struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	DriverID    uuid.UUID  `json:"driver_id" db:"driver_id"`
	RiderID     uuid.UUID  `json:"rider_id" db:"rider_id"`
	Origin      string     `json:"origin" db:"origin"`
	Destination string     `json:"destination" db:"destination"`
	Status      string     `json:"status" db:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// CanTransitionTo reports whether a ride may move from its current status to
// the given one.
func (r *Ride) CanTransitionTo(status string) bool {
	switch status {
	case RideStatusAccepted:
		return r.Status == RideStatusRequested
	case RideStatusArrived:
		return r.Status == RideStatusAccepted
	case RideStatusStarted:
		return r.Status == RideStatusArrived || r.Status == RideStatusAccepted
	case RideStatusCompleted:
		return r.Status == RideStatusStarted
	case RideStatusCancelled:
		return r.Status != RideStatusCompleted && r.Status != RideStatusCancelled
	}
	return false
}

// StatusMessageType maps a ride status to the message type announced in the
// ride's conversation when the transition happens.
func StatusMessageType(status string) MessageType {
	switch status {
	case RideStatusRequested:
		return MessageTypeRideRequest
	case RideStatusAccepted:
		return MessageTypeRideAccepted
	case RideStatusArrived:
		return MessageTypePickupArrived
	case RideStatusStarted:
		return MessageTypeRideStarted
	case RideStatusCompleted:
		return MessageTypeRideCompleted
	case RideStatusCancelled:
		return MessageTypeRideCancelled
	default:
		return MessageTypeRideStatus
	}
}

type CreateRideRequest struct {
	DriverID    uuid.UUID `json:"driver_id" binding:"required"`
	Origin      string    `json:"origin" binding:"required"`
	Destination string    `json:"destination" binding:"required"`
}
