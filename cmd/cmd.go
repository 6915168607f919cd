package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"couple-sync-backend/internal/config"
	"couple-sync-backend/internal/handlers"
	"couple-sync-backend/internal/middleware"
	"couple-sync-backend/internal/repository"
	"couple-sync-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	coupleRepo := repository.NewCoupleRepository(db)
	signalRepo := repository.NewSignalRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	widgetRepo := repository.NewWidgetRepository(db)

	// Push channel is optional; without APNs credentials the signal records
	// still track events but no alerts are delivered
	var sender services.PushSender
	if cfg.APNS.AuthKeyPath != "" {
		apnsSender, err := services.NewAPNSSender(cfg.APNS, cfg.Push)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs sender")
		}
		sender = apnsSender
		log.Info().Str("topic", cfg.APNS.Topic).Msg("APNs push channel enabled")
	} else {
		log.Warn().Msg("APNs not configured, push channel disabled")
	}

	// Initialize services
	userService := services.NewUserService(userRepo, cfg.JWT.Secret)
	relay := services.NewPushRelayService(signalRepo, coupleRepo, userRepo, sender)
	wsHub := services.NewWSHub()
	syncController := services.NewSyncController(coupleRepo, widgetRepo, wsHub, relay)
	coupleService := services.NewCoupleService(coupleRepo, userRepo, widgetRepo, syncController)
	messageService := services.NewMessageService(coupleRepo, widgetRepo, wsHub, relay)
	quizService := services.NewQuizService(quizRepo, coupleRepo, wsHub, relay)
	photoService, err := services.NewWidgetPhotoService(coupleRepo, syncController, cfg.AWS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create widget photo service")
	}

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService, coupleService, syncController)
	coupleHandler := handlers.NewCoupleHandler(coupleService, syncController)
	messageHandler := handlers.NewMessageHandler(messageService, coupleService, userService)
	quizHandler := handlers.NewQuizHandler(quizService, coupleService, userService)
	deviceHandler := handlers.NewDeviceHandler(relay)
	photoHandler := handlers.NewWidgetPhotoHandler(photoService, coupleService)
	wsHandler := handlers.NewWebSocketHandler(wsHub, userService, coupleService, syncController)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.CreateUser)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))
			r.Get("/me", userHandler.Me)
			r.Post("/couples", coupleHandler.CreateCouple)
			r.Post("/couples/join", coupleHandler.Join)
			r.Delete("/couples", coupleHandler.Leave)
			r.Put("/couples/anniversary", coupleHandler.SetAnniversary)
			r.Get("/couple", coupleHandler.Get)
			r.Post("/messages", messageHandler.Send)
			r.Get("/widget", messageHandler.Widget)
			r.Post("/devices", deviceHandler.Register)
			r.Get("/quizzes", quizHandler.List)
			r.Get("/quizzes/{quiz_id}", quizHandler.Get)
			r.Put("/quizzes/{quiz_id}/attempt", quizHandler.SaveAttempt)
			r.Get("/quizzes/{quiz_id}/summary", quizHandler.Summary)
			r.Post("/widget-photo/upload", photoHandler.Upload)
			r.Post("/widget-photo/confirm", photoHandler.Confirm)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
