package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorResponse sends a standardized error body.
func ErrorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// currentUserID returns the authenticated user id set by the auth middleware.
// Routes using it sit behind that middleware, so the value is always present.
func currentUserID(c *gin.Context) uuid.UUID {
	userID, _ := c.Get("user_id")
	return userID.(uuid.UUID)
}
