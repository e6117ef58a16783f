package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ridelink/backend/internal/messaging"
	"github.com/ridelink/backend/internal/models"
)

type MessageHandler struct {
	svc          *messaging.Service
	recentWindow int
}

func NewMessageHandler(svc *messaging.Service, recentWindow int) *MessageHandler {
	if recentWindow <= 0 {
		recentWindow = 50
	}
	return &MessageHandler{svc: svc, recentWindow: recentWindow}
}

// GetMessages returns a recent window of a conversation's messages,
// ascending, joined with sender identities.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	var req models.GetMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	uid := currentUserID(c)

	conv, err := h.svc.ConversationByID(c.Request.Context(), req.ConversationID)
	if errors.Is(err, messaging.ErrNotFound) {
		ErrorResponse(c, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil || !conv.HasParticipant(uid) {
		ErrorResponse(c, http.StatusForbidden, "Access denied")
		return
	}

	limit := req.Limit
	if limit <= 0 || limit > h.recentWindow {
		limit = h.recentWindow
	}

	messages, err := h.svc.RecentMessages(c.Request.Context(), req.ConversationID, limit)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to get messages")
		return
	}

	c.JSON(http.StatusOK, messages)
}

// SendMessage sends a new message (REST endpoint)
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	uid := currentUserID(c)

	conv, err := h.svc.ConversationByID(c.Request.Context(), req.ConversationID)
	if errors.Is(err, messaging.ErrNotFound) {
		ErrorResponse(c, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil || !conv.HasParticipant(uid) || !conv.HasParticipant(req.ReceiverID) {
		ErrorResponse(c, http.StatusForbidden, "Access denied")
		return
	}

	msg, err := h.svc.SendMessage(c.Request.Context(), req.ConversationID, uid, req.ReceiverID, req.Content, req.MessageType, req.RideID)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to send message")
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// SearchMessages searches the caller's messages by content. Full-text
// search is not implemented yet, so the result set is always empty.
func (h *MessageHandler) SearchMessages(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		ErrorResponse(c, http.StatusBadRequest, "Query parameter 'q' is required")
		return
	}

	messages, err := h.svc.SearchMessages(c.Request.Context(), currentUserID(c), query)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to search messages")
		return
	}

	c.JSON(http.StatusOK, messages)
}

// GetRideMessages returns all messages tagged with a ride.
func (h *MessageHandler) GetRideMessages(c *gin.Context) {
	rideID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid ride ID")
		return
	}

	messages, err := h.svc.MessagesForRide(c.Request.Context(), rideID)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to get ride messages")
		return
	}

	c.JSON(http.StatusOK, messages)
}
