package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prudhvinik1/sketchsync/internal/bus"
	"github.com/prudhvinik1/sketchsync/internal/config"
	"github.com/prudhvinik1/sketchsync/internal/database"
	"github.com/prudhvinik1/sketchsync/internal/handlers"
	"github.com/prudhvinik1/sketchsync/internal/repositories"
	"github.com/prudhvinik1/sketchsync/internal/services"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database connections
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create postgres pool: %v", err)
	}
	defer postgresPool.Close()

	if err := database.Migrate(ctx, postgresPool); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to create redis client: %v", err)
	}
	defer redisClient.Close()

	// Repositories
	sessionRepo := repositories.NewPostgresSessionRepository(postgresPool)
	strokeRepo := repositories.NewPostgresStrokeRepository(postgresPool)
	presenceRepo := repositories.NewRedisPresenceRepository(redisClient)

	// Sync channel and services
	syncChannel := bus.NewSyncChannel(redisClient, presenceRepo)
	identityService := services.NewIdentityService(cfg.JWTSecret, cfg.JWTExpiry)
	sessionService := services.NewSessionService(sessionRepo, strokeRepo, presenceRepo, syncChannel)
	strokeService := services.NewStrokeService(strokeRepo, syncChannel)

	// Handlers
	identityHandler := handlers.NewIdentityHandler(identityService)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	strokeHandler := handlers.NewStrokeHandler(strokeService)
	wsHandler := handlers.NewWSHandler(sessionService, strokeService, syncChannel, identityService)

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	router.Post("/identity", identityHandler.Issue)

	// The WebSocket route authenticates via query token inside the handler.
	router.Get("/sessions/{sessionID}/ws", wsHandler.Serve)

	router.Group(func(r chi.Router) {
		r.Use(handlers.RequireIdentity(identityService))

		r.Post("/sessions", sessionHandler.Create)
		r.Post("/sessions/join", sessionHandler.Join)
		r.Get("/sessions/{sessionID}", sessionHandler.Get)
		r.Get("/sessions/{sessionID}/participants", sessionHandler.Participants)
		r.Post("/sessions/{sessionID}/clear", sessionHandler.Clear)
		r.Post("/sessions/{sessionID}/close", sessionHandler.Close)
		r.Get("/sessions/{sessionID}/strokes", strokeHandler.History)
		r.Post("/sessions/{sessionID}/strokes", strokeHandler.Append)
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("Starting server on port %s", cfg.ServerPort)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
