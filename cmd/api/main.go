package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jojo6550/jefitness-sub002/internal/auth"
	"github.com/jojo6550/jefitness-sub002/internal/background"
	"github.com/jojo6550/jefitness-sub002/internal/config"
	"github.com/jojo6550/jefitness-sub002/internal/database"
	"github.com/jojo6550/jefitness-sub002/internal/handlers"
	"github.com/jojo6550/jefitness-sub002/internal/metrics"
	middlewareCustom "github.com/jojo6550/jefitness-sub002/internal/middleware"
	"github.com/jojo6550/jefitness-sub002/internal/models"
	"github.com/jojo6550/jefitness-sub002/internal/repositories"
	"github.com/jojo6550/jefitness-sub002/internal/routes"
	"github.com/jojo6550/jefitness-sub002/internal/services"
	pkgauth "github.com/jojo6550/jefitness-sub002/pkg/auth"
	pkghttp "github.com/jojo6550/jefitness-sub002/pkg/http"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Apply migrations before the pool comes up
	if err := database.Migrate(cfg.Database.DSN()); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	appointmentRepo := repositories.NewAppointmentRepository(db)
	auditLogRepo := repositories.NewAuditLogRepository(db)

	// Metrics register on the default prometheus registry, once per process
	m := metrics.New("jefitness")

	// Revocation registry: redis when configured, process memory otherwise
	var registry auth.RevocationRegistry
	var pruner background.RevocationPruner
	if cfg.Redis.Addr != "" {
		redisRegistry := auth.NewRedisRegistry(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
		registry = redisRegistry
		pruner = redisRegistry
		logger.Info("token revocation backed by redis", slog.String("addr", cfg.Redis.Addr))
	} else {
		memRegistry := auth.NewMemoryRegistry()
		registry = memRegistry
		pruner = memRegistry
	}

	cleanupManager := background.NewCleanupManager(pruner, logger, cfg.Auth.CleanupInterval)

	tokenService := auth.NewTokenService(cfg.Auth.ServerSecret, cfg.Auth.TokenTTL)

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   100,
		RandomDelayMs: 100,
	})

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	// Out-of-band alert channels for critical audit events
	alerters := make([]services.Alerter, 0, 2)
	if cfg.Alert.WebhookURL != "" {
		alerters = append(alerters, services.NewWebhookAlerter(cfg.Alert.WebhookURL))
	}
	if cfg.Alert.AWSRegion != "" && cfg.Alert.EmailFrom != "" && len(cfg.Alert.EmailTo) > 0 {
		sesAlerter, err := services.NewSESAlerter(cfg.Alert.AWSRegion, cfg.Alert.EmailFrom, cfg.Alert.EmailTo, logger)
		if err != nil {
			logger.Error("failed to initialize SES alerter", slog.Any("error", err))
			os.Exit(1)
		}
		alerters = append(alerters, sesAlerter)
	}

	auditSink := services.NewAuditSink(logger, auditLogRepo, m, alerters...)

	// Services
	authService := services.NewAuthService(userRepo, tokenService, registry, timingDelay, auditSink, logger, cfg.Auth)
	bookingService := services.NewBookingService(appointmentRepo, userRepo, auditSink, m, cfg.Booking)
	userService := services.NewUserService(userRepo, auditSink, logger)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	appointmentHandler := handlers.NewAppointmentHandler(bookingService, ipConfig)
	userHandler := handlers.NewUserHandler(userService, ipConfig)

	gate := auth.NewGate(tokenService, registry, userRepo, auditSink, logger, ipConfig, m)

	// Bootstrap first admin user if configured
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(bootCtx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	bootCancel()

	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	// Router
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middlewareCustom.Metrics(m))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, gate, authHandler, appointmentHandler, userHandler)

	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable,
				map[string]string{"status": "unhealthy", "database": "down"})
			return
		}

		pkghttp.WriteJSON(w, http.StatusOK,
			map[string]string{"status": "healthy", "database": "up"})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	_, err = userRepo.Create(ctx, &models.User{
		Email:         adminEmail,
		PasswordHash:  hashedPassword,
		FirstName:     "Admin",
		LastName:      "User",
		Role:          models.RoleAdmin,
		EmailVerified: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
