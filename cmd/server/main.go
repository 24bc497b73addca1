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

	"taskboard/internal/api"
	"taskboard/internal/app/service"
	"taskboard/internal/common/security"
	"taskboard/internal/domain/repository"
	"taskboard/internal/platform/cache"
	"taskboard/internal/platform/config"
	"taskboard/internal/platform/database"
	"taskboard/internal/platform/telemetry"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Server exited", "error", err)
		os.Exit(1)
	}
}

// run wires the service and blocks until the server stops.
func run() error {
	// 1. Load Configuration
	config.Load()
	cfg := config.AppConfig

	// 2. Initialize JWT
	security.InitJWT()

	ctx := context.Background()

	// 3. Initialize Tracing (optional)
	shutdownTracing, err := telemetry.NewProvider(ctx, cfg.OTelEndpoint, cfg.OTelServiceName)
	if err != nil {
		return fmt.Errorf("tracing setup: %w", err)
	}

	// 4. Initialize Store
	var userRepo repository.UserRepository
	var taskRepo repository.TaskRepository
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		store := repository.NewMemoryStore()
		userRepo, taskRepo = store.Users(), store.Tasks()
		slog.Warn("Using in-memory store; data is lost on restart")
	default:
		if err := database.Connect(ctx, cfg.DBConnStr); err != nil {
			return fmt.Errorf("database connection: %w", err)
		}
		defer database.Close()
		if err := database.Migrate(ctx, database.DB); err != nil {
			return fmt.Errorf("database migration: %w", err)
		}
		userRepo = repository.NewPgUserRepository(database.DB)
		taskRepo = repository.NewPgTaskRepository(database.DB)
	}

	// 5. Initialize Redis (optional)
	var statsCache service.StatsCache
	var limiter service.LoginLimiter
	if cfg.RedisAddr != "" {
		if err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); err != nil {
			return fmt.Errorf("redis connection: %w", err)
		}
		defer cache.CloseRedis()
		statsCache = cache.NewRedisStatsCache(cache.RDB, cfg.StatsCacheTTL)
		limiter = cache.NewRedisLoginLimiter(cache.RDB, cfg.LoginMaxAttempts, cfg.LoginWindow)
	} else {
		slog.Info("REDIS_ADDR not set; stats cache and login limiter disabled")
	}

	// 6. Initialize Services
	authService := service.NewAuthService(userRepo, limiter, statsCache)
	taskService := service.NewTaskService(taskRepo, statsCache)
	adminService := service.NewAdminService(userRepo, taskRepo, taskService, statsCache)

	if err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return fmt.Errorf("admin bootstrap: %w", err)
	}

	// 7. Initialize Router & HTTP Server
	router := api.NewRouter(userRepo, authService, taskService, adminService)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      otelhttp.NewHandler(router, cfg.OTelServiceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 8. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("listen on port %s: %w", cfg.APIPort, err)
		}
	}()

	select {
	case err := <-serveErr:
		_ = shutdownTracing(context.Background())
		return err
	case <-stop: // Wait for interrupt signal
	}

	slog.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("Tracer shutdown failed", "error", err)
	}
	slog.Info("Server stopped gracefully")
	return nil
}
