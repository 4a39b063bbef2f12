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

	"link-shortener/internal/config"
	"link-shortener/internal/handler"
	"link-shortener/internal/logger"
	"link-shortener/internal/repository"
	"link-shortener/internal/repository/migrations"
	"link-shortener/internal/service"
	"link-shortener/internal/sweeper"

	"github.com/gorilla/handlers"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx := context.Background()

	m, err := migrations.New(cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil {
		m.Close()
		return err
	}
	if err := m.Close(); err != nil {
		log.Warn("closing migrator", "error", err)
	}

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.Database.MaxConnections)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := repository.NewRepo(pool)
	svc := service.NewService(repo, log)
	svc.Timeout = cfg.Timeouts.Store
	svc.StatisticsTimeout = cfg.Timeouts.Statistics

	sw := sweeper.New(repo, cfg.Sweeper.Cron, cfg.Sweeper.Timeout, log)
	if err := sw.Start(); err != nil {
		return err
	}

	// Redis optional
	var limiter handler.Limiter = handler.NewSimpleRateLimiter(cfg.RateLimit.Rate, cfg.RateLimit.Burst)
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis ping failed, using in-memory rate limiter", "error", err)
			_ = rdb.Close()
			rdb = nil
		} else {
			log.Info("redis connected", "addr", cfg.RedisAddr)
			limiter = handler.NewRedisRateLimiter(rdb, int64(cfg.RateLimit.Burst), cfg.RateLimit.Window)
		}
	}

	if cfg.APIKeyHash == "" {
		log.Warn("ENCRYPTED_API_KEY not set, protected routes will reject every request")
	}
	h := handler.NewHandler(svc, cfg.APIKeyHash, limiter, log)

	// CORS
	allowed := handlers.AllowedOrigins([]string{"*"})
	allowedHeaders := handlers.AllowedHeaders([]string{"Content-Type", "X-Api-Key"})
	allowedMethods := handlers.AllowedMethods([]string{"GET", "POST", "PATCH", "OPTIONS"})

	var root http.Handler = handlers.CORS(allowed, allowedHeaders, allowedMethods)(h.Routes())
	root = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{log}))(root)
	root = handlers.CombinedLoggingHandler(os.Stdout, root)

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      root,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("listening", "address", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var listenErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			listenErr = fmt.Errorf("listen: %w", err)
		}
	case sig := <-quit:
		log.Info("shutting down server", "signal", sig.String())
	}

	shutdown(srv, sw, svc, log, 10*time.Second)
	if rdb != nil {
		_ = rdb.Close()
	}
	if listenErr != nil {
		return listenErr
	}
	log.Info("server gracefully stopped")
	return nil
}

// shutdown stops accepting requests, lets a running sweep finish and waits
// for pending statistics writes.
func shutdown(srv *http.Server, sw *sweeper.Sweeper, svc *service.Service, log *slog.Logger, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	select {
	case <-sw.Stop().Done():
	case <-ctx.Done():
		log.Warn("expiry sweep still running at shutdown")
	}
	svc.Wait()
}

// recoveryLogger routes gorilla/handlers panic reports to slog.
type recoveryLogger struct {
	log *slog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Error("panic serving request", "panic", fmt.Sprint(v...))
}
