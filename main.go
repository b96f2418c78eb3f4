package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/variantlab/variant-engine/pkg/cache"
	"github.com/variantlab/variant-engine/pkg/config"
	"github.com/variantlab/variant-engine/pkg/database"
	"github.com/variantlab/variant-engine/pkg/handlers"
	"github.com/variantlab/variant-engine/pkg/logging"
	"github.com/variantlab/variant-engine/pkg/middleware"
	"github.com/variantlab/variant-engine/pkg/repositories"
	"github.com/variantlab/variant-engine/pkg/services"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting variant engine",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env))

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// golang-migrate needs a database/sql handle; the pool above stays on
	// native pgx for everything else.
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	migrationDB.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	if redisClient == nil {
		logger.Info("redis not configured, flag cache disabled")
	}

	flagCache := cache.NewFlagCache(redisClient, cfg.FlagCacheTTL, logger)

	// Repositories
	flagRepo := repositories.NewFlagRepository(db)
	experimentRepo := repositories.NewExperimentRepository(db)
	userRepo := repositories.NewUserRepository(db)
	assignmentRepo := repositories.NewAssignmentRepository(db)
	userFlagRepo := repositories.NewUserFlagAssignmentRepository(db)
	eventRepo := repositories.NewEventRepository(db)

	// Services
	flagService := services.NewFlagService(flagRepo, flagCache, logger)
	experimentService := services.NewExperimentService(experimentRepo, flagRepo, assignmentRepo, logger)
	userService := services.NewUserService(userRepo, userFlagRepo, flagRepo, logger)
	evaluationService := services.NewEvaluationService(flagService, userRepo, experimentRepo, assignmentRepo, logger)
	metricsService := services.NewMetricsService(eventRepo, flagRepo, logger)

	// Handlers
	healthHandler := handlers.NewHealthHandler(cfg.Version)
	flagHandler := handlers.NewFlagHandler(flagService, evaluationService, logger)
	experimentHandler := handlers.NewExperimentHandler(experimentService, evaluationService, logger)
	userHandler := handlers.NewUserHandler(userService, logger)
	metricsHandler := handlers.NewMetricsHandler(metricsService, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /ping", healthHandler.Ping)
	mux.HandleFunc("GET /health", healthHandler.Health)

	mux.HandleFunc("POST /api/flags", flagHandler.Create)
	mux.HandleFunc("GET /api/flags", flagHandler.List)
	mux.HandleFunc("GET /api/flags/{flagId}", flagHandler.Get)
	mux.HandleFunc("PUT /api/flags/{flagId}", flagHandler.Update)
	mux.HandleFunc("DELETE /api/flags/{flagId}", flagHandler.Delete)
	mux.HandleFunc("GET /api/flags/{flagIdOrKey}/evaluate/{userId}", flagHandler.Evaluate)

	mux.HandleFunc("POST /api/experiments", experimentHandler.Create)
	mux.HandleFunc("GET /api/experiments", experimentHandler.List)
	mux.HandleFunc("GET /api/experiments/flag/{flagId}", experimentHandler.ListForFlag)
	mux.HandleFunc("GET /api/experiments/{experimentId}", experimentHandler.Get)
	mux.HandleFunc("PUT /api/experiments/{experimentId}", experimentHandler.Update)
	mux.HandleFunc("DELETE /api/experiments/{experimentId}", experimentHandler.Delete)
	mux.HandleFunc("GET /api/experiments/{experimentId}/assignments", experimentHandler.ListAssignments)
	mux.HandleFunc("POST /api/experiments/{experimentId}/assign/{userId}", experimentHandler.Assign)

	mux.HandleFunc("POST /api/users", userHandler.Create)
	mux.HandleFunc("GET /api/users", userHandler.List)
	mux.HandleFunc("GET /api/users/{userId}", userHandler.Get)
	mux.HandleFunc("PUT /api/users/{userId}", userHandler.Update)
	mux.HandleFunc("DELETE /api/users/{userId}", userHandler.Delete)
	mux.HandleFunc("GET /api/users/{userId}/flags", userHandler.ListFlagOverrides)
	mux.HandleFunc("POST /api/users/{userId}/flags/{flagId}", userHandler.SetFlagOverride)
	mux.HandleFunc("DELETE /api/users/{userId}/flags/{flagId}", userHandler.RemoveFlagOverride)

	mux.HandleFunc("GET /api/metrics/dashboard", metricsHandler.Dashboard)
	mux.HandleFunc("GET /api/metrics/flags/{flagId}", metricsHandler.FlagMetrics)
	mux.HandleFunc("POST /api/metrics/events", metricsHandler.TrackEvent)
	mux.HandleFunc("GET /api/metrics/events", metricsHandler.ListEvents)

	handler := middleware.RequestLogger(logger)(mux)

	addr := fmt.Sprintf("%s:%s", cfg.BindAddr, cfg.Port)
	logger.Info("listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
