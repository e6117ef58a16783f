package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ridelink/backend/internal/cache"
	"github.com/ridelink/backend/internal/messaging"
	"github.com/ridelink/backend/internal/models"
)

type ConversationHandler struct {
	svc   *messaging.Service
	redis *cache.RedisClient
}

func NewConversationHandler(svc *messaging.Service, redis *cache.RedisClient) *ConversationHandler {
	return &ConversationHandler{svc: svc, redis: redis}
}

// GetConversations returns the current user's active conversations, most
// recently touched first, with the other participant's identity attached.
func (h *ConversationHandler) GetConversations(c *gin.Context) {
	uid := currentUserID(c)

	conversations, err := h.svc.ConversationsFor(c.Request.Context(), uid)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to get conversations")
		return
	}

	c.JSON(http.StatusOK, conversations)
}

// CreateConversation finds or creates the single conversation between the
// current user and another one, optionally tagging a ride on first contact.
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var req models.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	uid := currentUserID(c)

	conv, err := h.svc.GetOrCreateConversation(c.Request.Context(), uid, req.UserID, req.RideID)
	if errors.Is(err, messaging.ErrSelfConversation) {
		ErrorResponse(c, http.StatusBadRequest, "Cannot start a conversation with yourself")
		return
	}
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to create conversation")
		return
	}

	c.JSON(http.StatusOK, conv)
}

// GetConversation returns one conversation by id; archived rows stay
// reachable here even though they drop out of the list.
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	conv, err := h.svc.ConversationByID(c.Request.Context(), convID)
	if errors.Is(err, messaging.ErrNotFound) {
		ErrorResponse(c, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to get conversation")
		return
	}

	if !conv.HasParticipant(currentUserID(c)) {
		ErrorResponse(c, http.StatusForbidden, "Access denied")
		return
	}

	c.JSON(http.StatusOK, conv)
}

// MarkRead flips unread messages addressed to the current user and zeroes
// the conversation badge.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	uid := currentUserID(c)

	if err := h.svc.MarkRead(c.Request.Context(), convID, uid); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to mark conversation read")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Conversation marked as read"})
}

// ArchiveConversation soft-deletes a conversation for both participants.
func (h *ConversationHandler) ArchiveConversation(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	if !h.requireParticipant(c, convID) {
		return
	}

	if err := h.svc.ArchiveConversation(c.Request.Context(), convID); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to archive conversation")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Conversation archived"})
}

// DeleteConversation removes the conversation and its whole message log.
func (h *ConversationHandler) DeleteConversation(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	if !h.requireParticipant(c, convID) {
		return
	}

	if err := h.svc.DeleteConversation(c.Request.Context(), convID); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to delete conversation")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted"})
}

// GetUnreadTotal returns the unread badge count for the current user. The
// count is best-effort and cached briefly in Redis.
func (h *ConversationHandler) GetUnreadTotal(c *gin.Context) {
	uid := currentUserID(c)

	if h.redis != nil {
		if total, ok := h.redis.GetCachedUnreadTotal(uid); ok {
			c.JSON(http.StatusOK, gin.H{"unread_count": total})
			return
		}
	}

	total := h.svc.UnreadTotalFor(c.Request.Context(), uid)
	if h.redis != nil {
		_ = h.redis.SetCachedUnreadTotal(uid, total)
	}

	c.JSON(http.StatusOK, gin.H{"unread_count": total})
}

func (h *ConversationHandler) requireParticipant(c *gin.Context, convID uuid.UUID) bool {
	conv, err := h.svc.ConversationByID(c.Request.Context(), convID)
	if errors.Is(err, messaging.ErrNotFound) {
		// stale id on the client; deleting nothing succeeds
		c.JSON(http.StatusOK, gin.H{"message": "Conversation already gone"})
		return false
	}
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to get conversation")
		return false
	}

	if !conv.HasParticipant(currentUserID(c)) {
		ErrorResponse(c, http.StatusForbidden, "Access denied")
		return false
	}
	return true
}
