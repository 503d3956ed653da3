package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/streamnest/chatd/internal/v1/assist"
	"github.com/streamnest/chatd/internal/v1/auth"
	"github.com/streamnest/chatd/internal/v1/broker"
	"github.com/streamnest/chatd/internal/v1/chat"
	"github.com/streamnest/chatd/internal/v1/config"
	"github.com/streamnest/chatd/internal/v1/health"
	"github.com/streamnest/chatd/internal/v1/logging"
	"github.com/streamnest/chatd/internal/v1/middleware"
	"github.com/streamnest/chatd/internal/v1/ratelimit"
	"github.com/streamnest/chatd/internal/v1/rest"
	"github.com/streamnest/chatd/internal/v1/store"
)

func main() {
	// Load .env file for local development.
	// Try multiple paths to handle different ways of running the app
	envPaths := []string{".env", "../../../.env", "../../.env"}
	var envLoaded bool

	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("Loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		slog.Warn("No .env file found in any expected location, relying on environment variables")
	}

	// Validate environment variables before starting the server
	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("Environment validation failed", "error", err)
		os.Exit(1)
	}

	if cfg.DevelopmentMode {
		slog.Info("Running in DEVELOPMENT MODE")
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	// --- Database ---
	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to Postgres", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	messageStore := store.New(db)
	slog.Info("✅ Postgres connection established")

	// --- Redis (Optional) ---
	// Shared by the rate limiter and readiness probe when enabled.
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			slog.Error("Failed to connect to Redis, running in single-instance mode", "error", err)
			_ = client.Close()
		} else {
			redisClient = client
			slog.Info("✅ Redis initialized", "addr", cfg.RedisAddr)
		}
	} else {
		slog.Info("Running in single-instance mode (Redis disabled)")
	}

	// --- Core Services ---
	verifier := auth.NewVerifier(cfg.JWTSecret)
	assistant := assist.New(messageStore, messageStore, verifier)
	roomBroker := broker.New()

	rateLimiter, err := ratelimit.New(cfg, redisClient)
	if err != nil {
		slog.Error("Failed to create rate limiter", "error", err)
		os.Exit(1)
	}

	allowedOrigins := auth.ParseAllowedOrigins(cfg.AllowedOrigins, []string{"http://localhost:3000"})

	chatHandler := chat.NewHandler(assistant, roomBroker, rateLimiter, allowedOrigins)
	restHandler := rest.NewHandler(messageStore)

	// --- Set up Server ---
	if !cfg.DevelopmentMode {
		gin.SetMode(gin.ReleaseMode)
	}
	healthHandler := health.NewHandler(db, redisClient)
	router := buildRouter(chatHandler, restHandler, assistant, rateLimiter, healthHandler, allowedOrigins)

	// Start the server.
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		slog.Info("API server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to run server", "error", err)
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	// Wait for an interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Close all active rooms and WebSocket connections gracefully
	if err := roomBroker.Shutdown(ctx); err != nil {
		slog.Error("Error during broker shutdown:", "error", err)
	}

	// Shutdown HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown:", "error", err)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			slog.Error("Failed to close Redis connection:", "error", err)
		} else {
			slog.Info("Redis connection closed")
		}
	}

	slog.Info("Server exiting")
}

// buildRouter wires the HTTP surface: the ws upgrade endpoint, the REST API,
// metrics and health probes.
func buildRouter(chatHandler *chat.Handler, restHandler *rest.Handler, assistant *assist.Assistant, rateLimiter *ratelimit.RateLimiter, healthHandler *health.Handler, allowedOrigins []string) *gin.Engine {
	router := gin.Default()

	// Cors
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", middleware.HeaderXCorrelationID)
	router.Use(cors.New(corsConfig))

	// Error handling and request correlation
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())

	// WebSocket upgrade endpoint
	router.GET("/ws", chatHandler.ServeWs)

	api := router.Group("/api")
	api.Use(rateLimiter.APIMiddleware())
	api.Use(rest.RequireUser(assistant))
	{
		messages := api.Group("/chat_messages")
		messages.Use(rateLimiter.MessagesMiddleware())
		{
			messages.GET("/:streamId", restHandler.ListChatMessages)
			messages.POST("", restHandler.CreateChatMessage)
			messages.PUT("/:id", restHandler.ModifyChatMessage)
			messages.DELETE("/:id", restHandler.DeleteChatMessage)
		}

		blocked := api.Group("/blocked_users")
		{
			blocked.GET("/:streamId", restHandler.ListBlockedUsers)
			blocked.POST("", restHandler.BlockUser)
			blocked.DELETE("", restHandler.UnblockUser)
		}
	}

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoints
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	return router
}
