package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"

	"github.com/macrosnap/macrosnap/internal/analysis"
	"github.com/macrosnap/macrosnap/internal/api"
	"github.com/macrosnap/macrosnap/internal/auth"
	"github.com/macrosnap/macrosnap/internal/config"
	"github.com/macrosnap/macrosnap/internal/database"
	"github.com/macrosnap/macrosnap/internal/events"
	"github.com/macrosnap/macrosnap/internal/ledger"
	"github.com/macrosnap/macrosnap/internal/meals"
	mw "github.com/macrosnap/macrosnap/internal/middleware"
	"github.com/macrosnap/macrosnap/internal/provider"
	iredis "github.com/macrosnap/macrosnap/internal/redis"
	"github.com/macrosnap/macrosnap/internal/server"
	"github.com/macrosnap/macrosnap/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS is optional: without it analysis events are simply not published.
	var eventsClient *events.Client
	var publisher analysis.EventPublisher
	if cfg.NATS.URL != "" {
		eventsClient, err = events.NewClient(ctx, cfg.NATS.URL)
		if err != nil {
			slog.Error("connecting to nats", "error", err)
			os.Exit(1)
		}
		defer eventsClient.Close()
		publisher = events.NewPublisher(eventsClient.JetStream())
	} else {
		slog.Warn("NATS_URL not set, event publishing disabled")
	}

	// Auth
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	// Usage ledger
	ledgerRepo := ledger.NewRepository(pool)
	ledgerSvc := ledger.NewService(ledgerRepo, map[string]decimal.Decimal{
		"gemini": cfg.Providers.Gemini.Cost,
		"openai": cfg.Providers.OpenAI.Cost,
	})
	ledgerHandler := ledger.NewHandler(ledgerSvc, cfg.Limits.DailyCallLimit, cfg.Limits.MonthlyCeiling)

	// Meal history
	mealRepo := meals.NewRepository(pool)
	mealHandler := meals.NewHandler(mealRepo)

	// Inference adapters: Gemini is the primary, OpenAI the fallback.
	// Text analysis goes straight to OpenAI when configured.
	primary, err := provider.NewGeminiAdapter(
		cfg.Providers.Gemini.APIKey,
		cfg.Providers.Gemini.Model,
		cfg.Providers.Gemini.Timeout,
		cfg.Image.FetchTimeout,
		cfg.Image.MaxBytes,
	)
	if err != nil {
		slog.Error("creating gemini adapter", "error", err)
		os.Exit(1)
	}

	var secondary, text provider.Adapter
	if cfg.Providers.OpenAI.APIKey != "" {
		oa, err := provider.NewOpenAIAdapter(
			cfg.Providers.OpenAI.APIKey,
			cfg.Providers.OpenAI.Model,
			cfg.Providers.OpenAI.Timeout,
		)
		if err != nil {
			slog.Error("creating openai adapter", "error", err)
			os.Exit(1)
		}
		secondary = oa
		text = oa
	}

	// Analysis pipeline
	gate := analysis.NewGate(ledgerSvc, analysis.GateConfig{
		DailyCallLimit: cfg.Limits.DailyCallLimit,
		MonthlyCeiling: cfg.Limits.MonthlyCeiling,
		ProbeTimeout:   cfg.Image.ProbeTimeout,
	})
	orch := analysis.NewOrchestrator(gate, primary, secondary, text, ledgerSvc, mealRepo, publisher)
	analysisHandler := analysis.NewHandler(orch)

	// Brute-force protection on the public auth endpoints
	authLimiter := mw.NewRateLimiter(redisClient, "auth", 10, 60)

	// Router
	router := api.NewRouter(pool, redisClient, eventsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		AuthRateLimiter:    authLimiter.Middleware,
	}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		Analyze:   analysisHandler.Analyze,
		ListMeals: mealHandler.List,
		GetUsage:  ledgerHandler.GetUsage,

		AuthMiddleware: auth.Middleware(authSvc),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
