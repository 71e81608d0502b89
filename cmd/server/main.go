package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/goalpost/settlement-engine/internal/engine"
	"github.com/goalpost/settlement-engine/internal/escrow"
	"github.com/goalpost/settlement-engine/internal/metrics"
	"github.com/goalpost/settlement-engine/internal/service"
	"github.com/goalpost/settlement-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Engine configuration ---
	cfg := engine.DefaultConfig()
	if v := os.Getenv("FEE_BPS"); v != "" {
		bps, err := strconv.ParseUint(v, 10, 64)
		if err != nil || bps > 10_000 {
			slog.Error("invalid FEE_BPS", "value", v)
			os.Exit(1)
		}
		cfg.FeeBps = bps
	}
	if v := os.Getenv("SCORE_CEILING"); v != "" {
		ceiling, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			slog.Error("invalid SCORE_CEILING", "value", v)
			os.Exit(1)
		}
		cfg.ScoreCeiling = uint32(ceiling)
	}
	if v := os.Getenv("MIN_RESERVE"); v != "" {
		minReserve, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			slog.Error("invalid MIN_RESERVE", "value", v)
			os.Exit(1)
		}
		cfg.MinReserve = minReserve
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Escrow ---
	// The in-memory escrow tracks custody locally. Deployments with a real
	// custody backend substitute it behind the same interface.
	esc := escrow.NewMemoryEscrow()

	// --- WebSocket hub ---
	wsHub := service.NewWSHub()
	go wsHub.Run()

	// --- Engine + HTTP service ---
	eng := engine.New(st, esc, cfg, wsHub)
	svc := service.NewService(eng)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"settlement-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time match events.
		r.Get("/ws", wsHub.HandleWS)
		svc.Routes(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("settlement-engine listening",
			"port", port,
			"fee_bps", cfg.FeeBps,
			"score_ceiling", cfg.ScoreCeiling,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down settlement-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("settlement-engine stopped")
}
