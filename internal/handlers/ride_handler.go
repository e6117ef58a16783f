package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ridelink/backend/internal/messaging"
	"github.com/ridelink/backend/internal/models"
	"github.com/ridelink/backend/internal/repository"
)

// RideHandler owns the ride lifecycle and feeds each transition into the
// ride's conversation as an automated status message.
type RideHandler struct {
	rideRepo *repository.RideRepository
	svc      *messaging.Service
}

func NewRideHandler(rideRepo *repository.RideRepository, svc *messaging.Service) *RideHandler {
	return &RideHandler{rideRepo: rideRepo, svc: svc}
}

// CreateRide requests a ride with a driver and opens (or reuses) the
// conversation between rider and driver, announcing the request in it.
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req models.CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	riderID := currentUserID(c)

	if riderID == req.DriverID {
		ErrorResponse(c, http.StatusBadRequest, "Cannot request a ride from yourself")
		return
	}

	ride := &models.Ride{
		ID:          uuid.New(),
		DriverID:    req.DriverID,
		RiderID:     riderID,
		Origin:      req.Origin,
		Destination: req.Destination,
		Status:      models.RideStatusRequested,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := h.rideRepo.Create(c.Request.Context(), ride); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to create ride")
		return
	}

	conv, err := h.svc.GetOrCreateConversation(c.Request.Context(), riderID, ride.DriverID, &ride.ID)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to open ride conversation")
		return
	}

	if _, err := h.svc.SendRideStatusMessage(c.Request.Context(), conv.ID, riderID, ride.DriverID, models.MessageTypeRideRequest, ride.ID); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to announce ride request")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ride": ride, "conversation_id": conv.ID})
}

// GetRide returns one ride.
func (h *RideHandler) GetRide(c *gin.Context) {
	rideID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid ride ID")
		return
	}

	ride, err := h.rideRepo.GetByID(c.Request.Context(), rideID)
	if errors.Is(err, messaging.ErrNotFound) {
		ErrorResponse(c, http.StatusNotFound, "Ride not found")
		return
	}
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to get ride")
		return
	}

	c.JSON(http.StatusOK, ride)
}

// GetRides lists the current user's rides.
func (h *RideHandler) GetRides(c *gin.Context) {
	uid := currentUserID(c)

	rides, err := h.rideRepo.GetForUser(c.Request.Context(), uid)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to get rides")
		return
	}

	c.JSON(http.StatusOK, rides)
}

// AcceptRide moves a requested ride to accepted.
func (h *RideHandler) AcceptRide(c *gin.Context) {
	h.transition(c, models.RideStatusAccepted)
}

// ArriveRide records the driver arriving at pickup.
func (h *RideHandler) ArriveRide(c *gin.Context) {
	h.transition(c, models.RideStatusArrived)
}

// StartRide moves an accepted ride to started.
func (h *RideHandler) StartRide(c *gin.Context) {
	h.transition(c, models.RideStatusStarted)
}

// CompleteRide moves a started ride to completed.
func (h *RideHandler) CompleteRide(c *gin.Context) {
	h.transition(c, models.RideStatusCompleted)
}

// CancelRide cancels any non-terminal ride.
func (h *RideHandler) CancelRide(c *gin.Context) {
	h.transition(c, models.RideStatusCancelled)
}

// transition applies a status change and announces it in the ride's
// conversation, from the acting user to the other party.
func (h *RideHandler) transition(c *gin.Context, status string) {
	rideID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid ride ID")
		return
	}

	uid := currentUserID(c)

	ride, err := h.rideRepo.GetByID(c.Request.Context(), rideID)
	if errors.Is(err, messaging.ErrNotFound) {
		ErrorResponse(c, http.StatusNotFound, "Ride not found")
		return
	}
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to get ride")
		return
	}

	if uid != ride.DriverID && uid != ride.RiderID {
		ErrorResponse(c, http.StatusForbidden, "Access denied")
		return
	}

	if !ride.CanTransitionTo(status) {
		ErrorResponse(c, http.StatusConflict, "Invalid ride status transition")
		return
	}

	if err := h.rideRepo.UpdateStatus(c.Request.Context(), rideID, status); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to update ride status")
		return
	}
	ride.Status = status

	receiver := ride.RiderID
	if uid == ride.RiderID {
		receiver = ride.DriverID
	}

	conv, err := h.svc.GetOrCreateConversation(c.Request.Context(), uid, receiver, &rideID)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to open ride conversation")
		return
	}

	if _, err := h.svc.SendRideStatusMessage(c.Request.Context(), conv.ID, uid, receiver, models.StatusMessageType(status), rideID); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to announce ride status")
		return
	}

	c.JSON(http.StatusOK, ride)
}
