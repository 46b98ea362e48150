package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/mailer"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/payment"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config    *config.Config
	logger    *zap.Logger
	db        database.Service
	redis     *redis.Client
	publisher events.Publisher
	catalog   service.CatalogService
}

// Dependencies are the external clients the server is built on. Nil fields
// are created from the config.
type Dependencies struct {
	DB        database.Service
	Redis     *redis.Client
	Publisher events.Publisher
	Mailer    mailer.Mailer
	Processor payment.Processor
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	if deps.Redis == nil {
		deps.Redis = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if deps.Publisher == nil {
		deps.Publisher = newPublisher(cfg.Kafka, logger)
	}
	if deps.Mailer == nil {
		deps.Mailer = mailer.New(cfg.Mail, logger)
	}
	if deps.Processor == nil {
		deps.Processor = payment.NewStripeProcessor(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	}

	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.CORSAllowedOrigins, !cfg.IsProduction()))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	// Initialize repositories
	db := deps.DB.DB()
	store := repository.NewStore(db)
	tx := database.NewTransactor(db)

	// Initialize services
	signer := service.NewVerificationSigner(cfg.App.URL, cfg.App.Key, 0)
	userService := service.NewUserService(store, deps.Mailer, deps.Publisher, signer,
		cfg.JWT.Secret, time.Duration(cfg.JWT.AccessExpiry)*time.Minute, logger)
	catalogService := service.NewCatalogService(store, tx, repository.NewStore, logger)
	orderService := service.NewOrderService(store, tx, repository.NewStore, deps.Publisher, logger)
	paymentService := service.NewPaymentService(store, deps.Processor, orderService, cfg.Stripe.Currency, logger)

	// Initialize handlers
	userHandler := transport.NewUserHandler(userService, cfg.App.FrontendURL, logger)
	catalogHandler := transport.NewCatalogHandler(catalogService, logger)
	orderHandler := transport.NewOrderHandler(orderService, logger)
	paymentHandler := transport.NewPaymentHandler(paymentService, logger)

	// Create auth middleware
	authMiddleware := custommiddleware.AuthMiddleware(NewAuthenticator(userService), logger)
	adminMiddleware := custommiddleware.RequireAdmin(logger)
	resendLimiter := custommiddleware.RateLimitMiddleware(deps.Redis, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.VerificationRequests,
		Window:            cfg.RateLimit.VerificationWindow,
		KeyPrefix:         "ratelimit:verification",
	}, logger)

	server := &Server{
		config:    cfg,
		logger:    logger,
		db:        deps.DB,
		redis:     deps.Redis,
		publisher: deps.Publisher,
		catalog:   catalogService,
	}

	// Register routes
	router.Route("/api", func(r chi.Router) {
		r.Get("/health", server.health)
		userHandler.RegisterRoutes(r, authMiddleware, resendLimiter)
		catalogHandler.RegisterRoutes(r, authMiddleware, adminMiddleware)
		orderHandler.RegisterRoutes(r, authMiddleware)
		paymentHandler.RegisterRoutes(r, authMiddleware)
	})

	server.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}

func newPublisher(cfg config.KafkaConfig, logger *zap.Logger) events.Publisher {
	if len(cfg.Brokers) == 0 {
		logger.Info("No Kafka brokers configured, events are logged only")
		return events.NewLogPublisher(logger)
	}
	return events.NewKafkaPublisher(cfg.Brokers, cfg.TopicPrefix, logger)
}

// NewAuthenticator resolves bearer tokens through the user service
func NewAuthenticator(users service.UserService) custommiddleware.Authenticator {
	return custommiddleware.AuthenticatorFunc(func(ctx context.Context, token string) (custommiddleware.Principal, error) {
		claims, err := users.Authenticate(ctx, token)
		if err != nil {
			return custommiddleware.Principal{}, err
		}
		tokenID, err := claims.TokenID()
		if err != nil {
			return custommiddleware.Principal{}, err
		}
		return custommiddleware.Principal{UserID: claims.UserID, Role: claims.Role, TokenID: tokenID}, nil
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	dbHealth := s.db.Health()
	data := map[string]interface{}{"database": dbHealth}

	if dbHealth["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	if err := s.redis.Ping(r.Context()).Err(); err != nil {
		data["redis"] = "down"
	} else {
		data["redis"] = "up"
	}

	custommiddleware.RespondWithJSON(w, status, custommiddleware.Response{Success: status == http.StatusOK, Data: data})
}

// Seed fills an empty catalog with the demo data
func (s *Server) Seed(ctx context.Context) error {
	seeded, err := s.catalog.Seed(ctx)
	if err != nil {
		return err
	}
	if seeded {
		s.logger.Info("Seeded demo catalog")
	}
	return nil
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if err := s.publisher.Close(); err != nil {
		s.logger.Error("Failed to close event publisher", zap.Error(err))
	}

	if err := s.redis.Close(); err != nil {
		s.logger.Error("Failed to close redis client", zap.Error(err))
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
