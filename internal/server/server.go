package server

import (
	"fmt"
	"net/http"
	"time"

	"freshmart/internal/config"
	"freshmart/internal/database"
	custommiddleware "freshmart/internal/middleware"
	"freshmart/internal/repository"
	"freshmart/internal/service"
	"freshmart/internal/transport"
	"freshmart/internal/worker"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config  *config.Config
	logger  *zap.Logger
	db      *database.Service
	redis   *redis.Client
	Sweeper *worker.Sweeper
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *database.Service) *Server {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(nil, cfg.Server.Env == "development"))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	router.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: 300,
		Window:            time.Minute,
		KeyPrefix:         "ratelimit",
	}, logger))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithJSON(w, http.StatusOK, db.Health())
	})

	// Initialize repositories
	productRepo := repository.NewProductRepository(db.DB())
	batchRepo := repository.NewBatchRepository(db.DB())
	reservationRepo := repository.NewReservationRepository(db.DB())
	orderRepo := repository.NewOrderRepository(db.DB())

	// Initialize services
	reservationService := service.NewReservationService(
		reservationRepo,
		productRepo,
		cfg.Reservation.CartTTL,
		cfg.Reservation.CheckoutTTL,
		logger,
	)
	orderService := service.NewOrderService(
		orderRepo,
		reservationRepo,
		cfg.Order.PaymentTTL,
		cfg.Order.ShippingFee,
		logger,
	)
	catalogService := service.NewCatalogService(productRepo, batchRepo, logger)

	// Initialize handlers
	reservationHandler := transport.NewReservationHandler(reservationService, logger)
	orderHandler := transport.NewOrderHandler(orderService, logger)
	catalogHandler := transport.NewCatalogHandler(catalogService, logger)

	// Shopper routes resolve their holder from an optional bearer token
	// or a session key; admin routes require an authenticated admin.
	holderMiddleware := custommiddleware.ResolveHolder(cfg.JWT.Secret, logger)
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	adminMiddleware := custommiddleware.RequireAdmin(logger)

	catalogHandler.RegisterRoutes(router)
	reservationHandler.RegisterRoutes(router, holderMiddleware)
	orderHandler.RegisterRoutes(router, holderMiddleware)

	router.Route("/api/admin", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(adminMiddleware)
		catalogHandler.RegisterAdminRoutes(r)
		orderHandler.RegisterAdminRoutes(r)
	})

	sweeper := worker.NewSweeper(reservationService, cfg.Reservation.SweepInterval, logger)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:  cfg,
		logger:  logger,
		db:      db,
		redis:   redisClient,
		Sweeper: sweeper,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
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
