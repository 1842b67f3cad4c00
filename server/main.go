package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stallbook/api/routes"
	"stallbook/internal/notifications"
	"stallbook/internal/shared/config"
	"stallbook/internal/shared/constants"
	"stallbook/internal/shared/database"
	"stallbook/pkg/logger"
	"stallbook/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// @title Stallbook API
// @version 1.0
// @description Market stall reservations, waiting queues and bookings.
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)
	logger.SetDefault(logger.NewWithWriter(os.Stdout, cfg.LogLevel))
	appLogger := logger.GetDefault()

	if envErr != nil {
		if cfg.IsProduction() || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}
	appLogger.Info("Starting stallbook",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("commit", GitCommit),
	)

	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("failed to connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled && db.GetRedisClient() != nil {
		rateLimiter = ratelimit.NewRateLimiter(db.GetRedisClient(), &ratelimit.Config{
			Enabled:         cfg.RateLimit.Enabled,
			WindowDuration:  cfg.RateLimit.WindowDuration,
			DefaultRequests: cfg.RateLimit.DefaultRequests,
			PublicRequests:  cfg.RateLimit.PublicRequests,
			AuthRequests:    cfg.RateLimit.AuthRequests,
			BookingRequests: cfg.RateLimit.BookingRequests,
			AdminRequests:   cfg.RateLimit.AdminRequests,
			WhitelistedIPs:  cfg.RateLimit.WhitelistedIPs,
			KeyPrefix:       constants.RATE_LIMIT_PREFIX,
		})
		appLogger.Info("Rate limiter initialized",
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("default_requests", cfg.RateLimit.DefaultRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	notifier, closeNotifier := setupNotifier(cfg, appLogger)
	defer closeNotifier()

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	services, err := routes.NewServices(rootCtx, cfg, db, notifier, clockwork.NewRealClock())
	if err != nil {
		appLogger.Error("failed to wire services", slog.Any("error", err))
		os.Exit(1)
	}
	services.Jobs.Start(rootCtx)
	defer services.Jobs.Stop()

	router := setupRouter(cfg, db, services, rateLimiter)

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("🚀 Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("queue_api", fmt.Sprintf("http://localhost:%s%s/queue", cfg.Port, cfg.APIPrefix)),
			slog.String("state_backend", cfg.Booking.StateBackend),
			slog.Bool("postgres", db.GetPostgreSQL() != nil),
			slog.Bool("redis", db.GetRedisClient() != nil),
			slog.Bool("rate_limiting", rateLimiter != nil),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

// setupNotifier publishes to Kafka when enabled and always mirrors events to the log.
func setupNotifier(cfg *config.Config, appLogger *logger.Logger) (notifications.Notifier, func()) {
	logNotifier := notifications.NewLogNotifier(appLogger)
	if !cfg.Kafka.Enabled {
		return logNotifier, func() {}
	}

	kafkaCfg := notifications.DefaultKafkaConfig()
	kafkaCfg.Brokers = cfg.Kafka.Brokers
	kafkaCfg.Topic = cfg.Kafka.NotificationTopic
	kafkaCfg.ClientID = cfg.Kafka.ClientID

	kafka, err := notifications.NewKafkaNotifier(kafkaCfg)
	if err != nil {
		appLogger.Error("Failed to initialize Kafka notifier, falling back to log", slog.Any("error", err))
		return logNotifier, func() {}
	}
	appLogger.Info("Kafka notifier initialized", slog.String("topic", kafkaCfg.Topic))

	return notifications.Multi{kafka, logNotifier}, func() {
		if err := kafka.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", slog.Any("error", err))
		}
	}
}

func setupRouter(cfg *config.Config, db *database.DB, services *routes.Services, rateLimiter *ratelimit.RateLimiter) *gin.Engine {
	engine := gin.New()
	appLogger := logger.GetDefault()

	engine.Use(RequestLoggerMiddleware(appLogger), gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true // allow every origin dynamically
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID", "X-RateLimit-*"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter))
	}

	routes.NewRouter(cfg, db, services).SetupRoutes(engine)

	return engine
}

const requestIDHeader = "X-Request-ID"

// RequestLoggerMiddleware tags each request with an id and logs it once the
// handler is done. Errors attached to the context are logged separately.
func RequestLoggerMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)

		c.Next()

		reqLog := l.WithRequestID(requestID)
		if err := c.Errors.Last(); err != nil {
			reqLog.LogHTTPError(c, err.Err, c.Writer.Status())
		}
		reqLog.LogHTTPRequest(c, time.Since(start))
	}
}
