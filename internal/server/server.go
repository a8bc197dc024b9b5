package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"shopsy/internal/config"
	"shopsy/internal/mailer"
	custommiddleware "shopsy/internal/middleware"
	"shopsy/internal/repository"
	"shopsy/internal/service"
	"shopsy/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config     *config.Config
	logger     *zap.Logger
	db         *sql.DB
	redis      *redis.Client
	dispatcher *mailer.Dispatcher
	stopMailer context.CancelFunc
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB) *Server {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(nil, cfg.Server.Env == "development"))

	// Redis-backed rate limiting across all routes
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	router.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
		Window:            time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		KeyPrefix:         "ratelimit",
	}, logger))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Background mail dispatcher. The sent flag on orders is written only
	// after a successful delivery.
	dispatcher := mailer.NewDispatcher(
		&mailer.LogSender{Logger: logger},
		orderRepo.SetEmailSent,
		logger,
	)
	mailerCtx, stopMailer := context.WithCancel(context.Background())
	dispatcher.Start(mailerCtx)

	// Initialize services
	userService := service.NewUserService(userRepo, refreshTokenRepo, cfg.JWT.Secret)
	inventoryService := service.NewInventoryService(productRepo, notificationRepo, logger)
	orderService := service.NewOrderService(orderRepo, productRepo, userRepo, notificationRepo, dispatcher, logger)
	notificationService := service.NewNotificationService(notificationRepo, productRepo, orderRepo, logger)

	// Initialize handlers
	userHandler := transport.NewUserHandler(userService, logger)
	stockHandler := transport.NewStockHandler(inventoryService, logger)
	orderHandler := transport.NewOrderHandler(orderService, inventoryService, logger)
	notificationHandler := transport.NewNotificationHandler(notificationService, logger)

	// Create auth middleware; token resolution is the user service's job
	authMiddleware := custommiddleware.AuthMiddleware(userService.Resolve, logger)

	// Register routes
	userHandler.RegisterRoutes(router, authMiddleware)
	stockHandler.RegisterRoutes(router, authMiddleware)
	orderHandler.RegisterRoutes(router, authMiddleware)
	notificationHandler.RegisterRoutes(router, authMiddleware)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:     cfg,
		logger:     logger,
		db:         db,
		redis:      redisClient,
		dispatcher: dispatcher,
		stopMailer: stopMailer,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	// Stop the mail dispatcher and let it drain its backlog
	s.dispatcher.CloseIntake()
	s.stopMailer()
	s.dispatcher.Wait()

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
