package websocket

import (
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ridelink/backend/internal/auth"
	"github.com/ridelink/backend/internal/cache"
	"github.com/ridelink/backend/internal/messaging"
)

// Handler handles WebSocket connections
type Handler struct {
	hub        *Hub
	jwtService *auth.JWTService
	svc        *messaging.Service
	redis      *cache.RedisClient
	upgrader   websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. The upgrader only accepts
// requests whose Origin matches one of allowedOrigins; with no configured
// origins every cross-origin request is rejected.
func NewHandler(
	hub *Hub,
	jwtService *auth.JWTService,
	svc *messaging.Service,
	redis *cache.RedisClient,
	allowedOrigins []string,
) *Handler {
	return &Handler{
		hub:        hub,
		jwtService: jwtService,
		svc:        svc,
		redis:      redis,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker builds a CheckOrigin callback bound to the configured
// allowed origins. Requests without an Origin header (native mobile
// clients) are accepted.
func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, pattern := range allowedOrigins {
			if matchOrigin(pattern, origin) {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(c *gin.Context) {
	// Get token from query parameter
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
		return
	}

	// Validate token
	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	// Upgrade connection
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	client := NewClient(h.hub, conn, claims.UserID, claims.Email, h.svc, h.redis)

	h.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

// GetOnlineUsers returns online users (for testing/admin)
func (h *Handler) GetOnlineUsers(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	_ = userID.(uuid.UUID)

	onlineUsers := h.hub.GetOnlineUsers()
	c.JSON(http.StatusOK, gin.H{
		"online_users": onlineUsers,
		"count":        len(onlineUsers),
	})
}

// matchOrigin supports exact matches, "*", or patterns like *.example.com
func matchOrigin(pattern, origin string) bool {
	if pattern == "*" || pattern == origin {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		originHost := origin
		if u, err := url.Parse(origin); err == nil {
			originHost = u.Hostname()
		}
		patHost := strings.TrimPrefix(pattern, "*.")
		if strings.HasSuffix(originHost, patHost) {
			return true
		}
	}
	return false
}
