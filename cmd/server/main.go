package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/ridelink/backend/config"
	"github.com/ridelink/backend/internal/auth"
	"github.com/ridelink/backend/internal/cache"
	"github.com/ridelink/backend/internal/database"
	"github.com/ridelink/backend/internal/delivery"
	"github.com/ridelink/backend/internal/handlers"
	"github.com/ridelink/backend/internal/messaging"
	"github.com/ridelink/backend/internal/middleware"
	"github.com/ridelink/backend/internal/repository"
	"github.com/ridelink/backend/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	db, err := database.NewPostgresDB(cfg.GetDSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	log.Println("Running database migrations...")
	if err := database.RunMigrations(db.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations completed successfully")

	// Connect to Redis
	redis, err := cache.NewRedisClient(cfg.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v", err)
		log.Println("Running without Redis - real-time features will be limited")
		redis = nil
	} else {
		defer redis.Close()
	}

	// Initialize services
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpiryHours)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	rideRepo := repository.NewRideRepository(db)

	// Messaging service with change fanout to local watchers and,
	// when Redis is available, to other server instances
	svc := messaging.NewService(convRepo, msgRepo, nil)
	watcher := messaging.NewWatcher(svc)
	notifiers := messaging.MultiNotifier{watcher}
	if redis != nil {
		notifiers = append(notifiers, cache.NewChangeNotifier(redis))
	}
	svc.SetNotifier(notifiers)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userRepo, jwtService)
	convHandler := handlers.NewConversationHandler(svc, redis)
	msgHandler := handlers.NewMessageHandler(svc, cfg.Messaging.RecentWindowSize)
	rideHandler := handlers.NewRideHandler(rideRepo, svc)

	// Initialize WebSocket hub and delivery worker (only if Redis is available)
	var wsHandler *websocket.Handler
	if redis != nil {
		hub := websocket.NewHub(redis, watcher)
		go hub.Run()

		worker := delivery.NewWorker(redis, svc)
		go worker.Run()

		wsHandler = websocket.NewHandler(hub, jwtService, svc, redis, cfg.CORS.AllowedOrigins)
	}

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter(cfg.Messaging.RateLimitMessagesPerSec)
	rateLimiter.Cleanup()

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Middleware
	router.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Public routes
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}

	// WebSocket endpoint (only if Redis is available)
	if wsHandler != nil {
		router.GET("/ws", wsHandler.HandleWebSocket)
	}

	// Protected routes
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtService))
	{
		// User routes
		api.GET("/me", authHandler.GetMe)

		// Conversation routes
		api.GET("/conversations", convHandler.GetConversations)
		api.POST("/conversations", convHandler.CreateConversation)
		api.GET("/conversations/:id", convHandler.GetConversation)
		api.POST("/conversations/:id/read", convHandler.MarkRead)
		api.POST("/conversations/:id/archive", convHandler.ArchiveConversation)
		api.DELETE("/conversations/:id", convHandler.DeleteConversation)
		api.GET("/unread-total", convHandler.GetUnreadTotal)

		// Message routes
		api.GET("/messages", msgHandler.GetMessages)
		api.GET("/messages/search", msgHandler.SearchMessages)
		api.POST("/messages", middleware.RateLimitMiddleware(rateLimiter), msgHandler.SendMessage)

		// Ride routes
		api.POST("/rides", rideHandler.CreateRide)
		api.GET("/rides", rideHandler.GetRides)
		api.GET("/rides/:id", rideHandler.GetRide)
		api.GET("/rides/:id/messages", msgHandler.GetRideMessages)
		api.POST("/rides/:id/accept", rideHandler.AcceptRide)
		api.POST("/rides/:id/arrive", rideHandler.ArriveRide)
		api.POST("/rides/:id/start", rideHandler.StartRide)
		api.POST("/rides/:id/complete", rideHandler.CompleteRide)
		api.POST("/rides/:id/cancel", rideHandler.CancelRide)

		// WebSocket info (only if Redis is available)
		if wsHandler != nil {
			api.GET("/online-users", wsHandler.GetOnlineUsers)
		}
	}

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Starting RideLink messaging server on %s (env: %s)", addr, cfg.Server.Env)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
