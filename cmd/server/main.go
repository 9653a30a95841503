package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/darkodi/linkify/internal/allocator"
	"github.com/darkodi/linkify/internal/cache"
	"github.com/darkodi/linkify/internal/clicks"
	"github.com/darkodi/linkify/internal/codegen"
	"github.com/darkodi/linkify/internal/config"
	"github.com/darkodi/linkify/internal/handler"
	"github.com/darkodi/linkify/internal/logger"
	"github.com/darkodi/linkify/internal/middleware"
	"github.com/darkodi/linkify/internal/redisclient"
	"github.com/darkodi/linkify/internal/repository"
	"github.com/darkodi/linkify/internal/service"
	"github.com/darkodi/linkify/internal/validator"
)

func main() {
	// ============================================================
	// LOAD CONFIGURATION
	// ============================================================
	fmt.Println("📋 Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	if cfg.IsDevelopment() {
		fmt.Printf("   Environment: %s\n", cfg.App.Environment)
		fmt.Printf("   Port: %s\n", cfg.Server.Port)
		fmt.Printf("   Store: %s\n", cfg.Database.Driver)
		fmt.Printf("   Cache: %s\n", cfg.Cache.Driver)
		fmt.Printf("   Base URL: %s\n", cfg.App.BaseURL)
	}

	// ============================================================
	// Initialize logger
	// ============================================================
	log := logger.New(cfg.Log)

	log.Info("starting linkify",
		"level", cfg.Log.Level,
		"format", cfg.Log.Format,
		"environment", cfg.App.Environment)

	ctx := context.Background()

	// ============================================================
	// REDIS (store and/or cache)
	// ============================================================
	var rdb *redis.Client
	if cfg.Database.Driver == "redis" || cfg.Cache.Driver == "redis" {
		log.Info("connecting to Redis...", "addr", cfg.Redis.Addr)
		rdb, err = redisclient.New(ctx, cfg.Redis)
		if err != nil {
			log.Error("Failed to connect to Redis", "error", err.Error())
			os.Exit(1)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error("Failed to close Redis client", "error", err.Error())
			}
		}()
		log.Info("Redis connected successfully!")
	}

	// ============================================================
	// INITIALIZE LAYERS
	// ============================================================
	fmt.Println("🗄️  Connecting to store...")
	store, err := repository.Open(ctx, cfg, rdb)
	if err != nil {
		log.Error("Failed to initialize store", "driver", cfg.Database.Driver, "error", err.Error())
		os.Exit(1)
	}

	store, err = withCache(cfg, store, rdb, log)
	if err != nil {
		log.Error("Failed to initialize cache", "driver", cfg.Cache.Driver, "error", err.Error())
		store.Close()
		os.Exit(1)
	}

	gen, err := codegen.New(cfg.Codegen.Alphabet, cfg.Codegen.Length)
	if err != nil {
		log.Error("Invalid code generator settings", "error", err.Error())
		store.Close()
		os.Exit(1)
	}

	recorder := clicks.New(store, cfg.Clicks.Workers, cfg.Clicks.QueueSize, cfg.Clicks.Timeout, log)

	v := validator.NewURLValidator().WithMaxLength(cfg.App.MaxURLLength)
	if cfg.App.BlockPrivateURLs {
		v = v.WithBlockPrivateIPs()
	}

	fmt.Println("⚙️  Initializing service...")
	alloc := allocator.New(store, gen, cfg.Codegen.MaxAttempts, log)
	svc := service.NewURLService(store, alloc, recorder, v, cfg.App.BaseURL, log)

	// ============================================================
	// RATE LIMITS
	// ============================================================
	var limits handler.Limits
	if cfg.RateLimit.Enabled {
		createLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Name:     "create",
			Rate:     cfg.RateLimit.CreateRate,
			Burst:    cfg.RateLimit.CreateBurst,
			Interval: cfg.RateLimit.CreateInterval,
			Cleanup:  cfg.RateLimit.Cleanup,
		}, log)
		defer createLimiter.Stop()

		redirectLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Name:     "redirect",
			Rate:     cfg.RateLimit.RedirectRate,
			Burst:    cfg.RateLimit.RedirectBurst,
			Interval: cfg.RateLimit.RedirectInterval,
			Cleanup:  cfg.RateLimit.Cleanup,
		}, log)
		defer redirectLimiter.Stop()

		limits = handler.Limits{
			Create:   createLimiter.Middleware(),
			Redirect: redirectLimiter.Middleware(),
		}
		log.Info("rate limiter enabled",
			"create_rate", cfg.RateLimit.CreateRate,
			"create_interval", cfg.RateLimit.CreateInterval,
			"redirect_rate", cfg.RateLimit.RedirectRate,
			"redirect_interval", cfg.RateLimit.RedirectInterval,
		)
	}

	fmt.Println("🌐 Setting up HTTP handlers...")
	h := handler.NewURLHandler(svc, log)
	router := h.SetupRoutes(limits)

	// ============================================================
	// BUILD MIDDLEWARE CHAIN
	// ============================================================
	wrappedRouter := middleware.Chain(router,
		middleware.RequestID,
		middleware.RecoveryWithLogger(log),
		middleware.LoggingWithLogger(log),
		middleware.CORS(cfg.App.FrontendURL),
	)

	// ============================================================
	// CREATE SERVER WITH CONFIG TIMEOUTS
	// ============================================================
	addr := ":" + cfg.Server.Port
	server := &http.Server{
		Addr:         addr,
		Handler:      wrappedRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel to track server errors
	serverErr := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		if cfg.IsDevelopment() {
			fmt.Printf("🚀 Server starting on http://localhost%s\n", addr)
			fmt.Println("───────────────────────────────────────")
			fmt.Println("Endpoints:")
			fmt.Println("  POST /api/urls                - Create short URL")
			fmt.Println("  GET  /api/urls                - List short URLs")
			fmt.Println("  GET  /api/redirect/{code}     - Redirect to original")
			fmt.Println("  GET  /api/stats/{code}        - View statistics")
			fmt.Println("  GET  /health                  - Health check")
			fmt.Println("───────────────────────────────────────")
			fmt.Println("Press Ctrl+C to shutdown gracefully")
		}
		log.Info("server starting", "addr", "http://localhost"+addr)
		serverErr <- server.ListenAndServe()
	}()

	// ============================================================
	// WAIT FOR SHUTDOWN OR ERROR
	// ============================================================
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err.Error())
		}

	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig.String())
	}

	// Create context with timeout for shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Attempt graceful shutdown
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
		// force close if graceful shutdown fails
		if err := server.Close(); err != nil {
			log.Error("forced shutdown failed", "error", err.Error())
		}
	}

	// Write out queued clicks before the store goes away
	if err := recorder.Close(shutdownCtx); err != nil {
		log.Error("click recorder did not drain", "error", err.Error(), "pending", recorder.Stats().Queued)
	}

	if err := store.Close(); err != nil {
		log.Error("failed to close store", "error", err.Error())
	}

	log.Info("server stopped")
}

// withCache puts the configured lookup cache in front of store.
func withCache(cfg *config.Config, store repository.Store, rdb *redis.Client, log *logger.Logger) (repository.Store, error) {
	switch cfg.Cache.Driver {
	case "memory":
		local, err := cache.NewLocal(cfg.Cache.MaxCost, cfg.Cache.NumCounters, cfg.Cache.TTL)
		if err != nil {
			return store, err
		}
		log.Info("lookup cache enabled", "driver", "memory", "ttl", cfg.Cache.TTL, "max_entries", cfg.Cache.MaxCost)
		return cache.Wrap(store, local, log), nil
	case "redis":
		log.Info("lookup cache enabled", "driver", "redis", "ttl", cfg.Cache.TTL)
		return cache.Wrap(store, cache.NewRedis(rdb, cfg.Redis.Prefix+"cache:url:", cfg.Cache.TTL), log), nil
	default:
		return store, nil
	}
}
