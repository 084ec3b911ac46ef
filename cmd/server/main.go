// Package main is the entry point for the civic grievance engine.
// It serves the complaint intake and status API, the coin ledger and
// reward catalog, leaderboards, and runs two background workers:
//
//   - the SLA sweep, which flags overdue complaints as BREACHED and pays
//     the breach bonus once per complaint
//   - the ledger auditor, which rebuilds the Merkle root over coin
//     transactions and reconciles cached wallet totals
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aawaaz/grievance-engine/internal/config"
	"github.com/aawaaz/grievance-engine/internal/database"
	"github.com/aawaaz/grievance-engine/internal/geo"
	"github.com/aawaaz/grievance-engine/internal/handlers"
	"github.com/aawaaz/grievance-engine/internal/middleware"
	"github.com/aawaaz/grievance-engine/internal/models"
	"github.com/aawaaz/grievance-engine/internal/services"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger, _ := zap.NewProduction()
	if cfg.Environment == "development" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		sugar.Fatalf("Failed to load rules: %v", err)
	}

	sugar.Infow("Starting grievance engine",
		"port", cfg.Port,
		"env", cfg.Environment,
		"zones", len(rules.Zones),
		"redis", cfg.RedisURL != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection pool
	db, err := database.NewPool(cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			sugar.Fatalf("Failed to apply schema: %v", err)
		}
		sugar.Info("Schema applied")
	}

	// Redis is optional: without it the leaderboard is uncached and the
	// sweep runs without a cross-instance lease.
	var cache *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			sugar.Fatalf("Invalid REDIS_URL: %v", err)
		}
		cache = redis.NewClient(opts)
		defer cache.Close()
	}

	metrics := services.NewMetrics(prometheus.DefaultRegisterer)

	// Initialize services
	router := services.NewCategoryRouter(rules)
	history := services.NewHistoryService(db, sugar)
	ledger := services.NewLedger(db, metrics, sugar)
	badges := services.NewBadgeEngine(db, metrics, sugar)
	hooks := services.NewAwardHooks(ledger, badges, metrics, sugar)
	slaPolicy := services.NewSLAPolicy(db, sugar)
	complaintSvc := services.NewComplaintService(db, geo.FromRules(rules), slaPolicy, router, history, hooks, metrics, sugar)
	redemptionSvc := services.NewRedemptionService(db, ledger, metrics, sugar)
	leaderboardSvc := services.NewLeaderboardService(db, cache, cfg.LeaderboardCacheTTL, sugar)
	profileSvc := services.NewProfileService(ledger, badges, leaderboardSvc)

	scheduler := services.NewSLAScheduler(db, history, hooks, cfg.SweepBatchSize, metrics, sugar)
	if cache != nil {
		host, _ := os.Hostname()
		scheduler.UseLocker(services.NewRedisLocker(cache, fmt.Sprintf("%s:%d", host, os.Getpid())), cfg.SweepInterval)
	}

	merkleSvc := services.NewMerkleService(sugar)
	auditor := services.NewLedgerAuditor(db, merkleSvc, metrics, sugar)

	// Initialize handlers
	complaintHandler := handlers.NewComplaintHandler(complaintSvc, sugar)
	economyHandler := handlers.NewEconomyHandler(ledger, redemptionSvc, badges, profileSvc, sugar)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardSvc, sugar)
	activityHandler := handlers.NewActivityHandler(history, sugar)
	integrityHandler := handlers.NewIntegrityHandler(merkleSvc, sugar)
	healthHandler := handlers.NewHealthHandler(db, cache, merkleSvc.GetRoot, sugar)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	staff := middleware.RequireRole(models.RoleAuthority, models.RoleAdmin)

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", healthHandler.Check)
		r.Get("/health/ready", healthHandler.Ready)

		// Integrity endpoints (Merkle tree over coin transactions)
		r.Route("/integrity", func(r chi.Router) {
			r.Get("/root", integrityHandler.GetRoot)
			r.Get("/proof/{index}", integrityHandler.GetProof)
			r.Post("/verify", integrityHandler.Verify)
		})

		r.Get("/rewards", economyHandler.Rewards)
		r.Get("/leaderboard", leaderboardHandler.Rank)

		// Everything below requires a bearer token
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(cfg.JWTSecret))
			r.Use(middleware.RateLimit(ctx, cfg.RateLimitRPM))

			r.Route("/complaints", func(r chi.Router) {
				r.With(middleware.RequireRole(models.RoleCitizen)).Post("/", complaintHandler.Submit)
				r.Get("/mine", complaintHandler.Mine)
				r.Post("/suggest-category", complaintHandler.SuggestCategory)
				r.Get("/{id}", complaintHandler.Get)
				r.Get("/{id}/history", complaintHandler.History)
				r.With(staff).Put("/{id}/status", complaintHandler.UpdateStatus)
			})

			r.Get("/wallet", economyHandler.Wallet)
			r.Get("/wallet/transactions", economyHandler.Transactions)
			r.Post("/rewards/{id}/redeem", economyHandler.Redeem)
			r.Get("/redemptions", economyHandler.Redemptions)
			r.Get("/badges", economyHandler.Badges)
			r.Get("/profile", economyHandler.Profile)
			r.Get("/leaderboard/me", leaderboardHandler.Me)

			r.With(staff).Get("/activity/recent", activityHandler.Recent)

			r.Route("/analytics", func(r chi.Router) {
				r.Use(staff)
				r.Get("/trends", complaintHandler.Trends)
				r.Get("/categories", complaintHandler.Categories)
				r.Get("/departments", complaintHandler.Departments)
			})
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infof("Server listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	// Background workers stop with the group context
	g.Go(func() error {
		scheduler.Start(gctx, cfg.SweepInterval)
		return nil
	})
	g.Go(func() error {
		auditor.Start(gctx, cfg.IntegrityInterval)
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		sugar.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		sugar.Errorw("Server stopped with error", "error", err)
		return
	}

	sugar.Info("Server stopped")
}
