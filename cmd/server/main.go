package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alcyxob/neuralfit/internal/api"
	"alcyxob/neuralfit/internal/config"
	"alcyxob/neuralfit/internal/generator"
	"alcyxob/neuralfit/internal/metrics"
	"alcyxob/neuralfit/internal/repository"
	"alcyxob/neuralfit/internal/repository/mongo"
	"alcyxob/neuralfit/internal/retry"
	"alcyxob/neuralfit/internal/service"
	"alcyxob/neuralfit/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// @title NeuralFit API
// @version 1.0
// @description Training plans, completion tracking and progression for NeuralFit.
// @contact.name API Support
// @contact.email support@example.com
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("could not load config")
	}
	logger := newLogger(cfg.Log)
	logger.Info().Str("address", cfg.Server.Address).Msg("starting NeuralFit server")

	if cfg.JWT.Secret == "" {
		logger.Fatal().Msg("jwt.secret must be set")
	}
	loc, err := cfg.Tracker.Location()
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Tracker.Timezone).Msg("invalid tracker timezone")
	}

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not connect to MongoDB")
	}
	defer func() {
		logger.Info().Msg("disconnecting MongoDB")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logger.Error().Err(err).Msg("failed to disconnect MongoDB")
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)

	// --- Ensure Indexes ---
	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), time.Minute)
	g, gctx := errgroup.WithContext(indexCtx)
	g.Go(func() error { return mongo.EnsureUserIndexes(gctx, appDB) })
	g.Go(func() error { return mongo.EnsurePlanArchiveIndexes(gctx, appDB) })
	if err := g.Wait(); err != nil {
		logger.Warn().Err(err).Msg("index creation failed, continuing")
	}
	changeStreams := mongo.SupportsChangeStreams(indexCtx, appDB)
	cancelIndexes()
	logger.Info().Bool("changeStreams", changeStreams).Msg("database ready")

	// --- Plan archive storage ---
	var (
		files    storage.FileStorage
		archives repository.PlanArchiveRepository
	)
	if cfg.S3.Enabled {
		files, err = storage.NewS3Storage(context.Background(), cfg.S3, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize S3 storage")
		}
		archives = mongo.NewMongoPlanArchiveRepository(appDB)
	} else {
		logger.Info().Msg("s3 disabled, replaced plans will not be archived")
	}

	// --- Generator ---
	retryCfg := retry.DefaultConfig()
	if cfg.Generator.MaxAttempts > 0 {
		retryCfg.MaxAttempts = cfg.Generator.MaxAttempts
	}
	if cfg.Generator.BaseDelay > 0 {
		retryCfg.BaseDelay = cfg.Generator.BaseDelay
	}
	providerOpts := func(name string) []generator.HTTPOption {
		return []generator.HTTPOption{
			generator.WithName(name),
			generator.WithModel(cfg.Generator.Model),
			generator.WithRetry(retryCfg),
			generator.WithHTTPClient(&http.Client{Timeout: cfg.Generator.Timeout}),
			generator.WithLogger(logger),
		}
	}
	var provider generator.Provider = generator.NewHTTPProvider(cfg.Generator.BaseURL, providerOpts("primary")...)
	if cfg.Generator.FallbackURL != "" {
		provider = generator.NewFallbackProvider(logger, provider,
			generator.NewHTTPProvider(cfg.Generator.FallbackURL, providerOpts("fallback")...))
	}

	// --- Services ---
	m := metrics.New()
	hub := service.NewHub(32, logger)
	tracker := service.NewTracker(service.TrackerDeps{
		Store:     mongo.NewDocumentStore(appDB, changeStreams, cfg.Tracker.PollInterval, logger),
		Archives:  archives,
		Files:     files,
		Generator: generator.New(provider, logger),
		Hub:       hub,
		Metrics:   m,
	}, service.SessionConfig{
		TaskAward:           cfg.Progression.TaskAward,
		WorkoutLogAward:     cfg.Progression.WorkoutLogAward,
		DefaultBurnCalories: cfg.Progression.DefaultBurnCalories,
		WriteQueueSize:      cfg.Tracker.WriteQueueSize,
		IdleTimeout:         cfg.Tracker.IdleTimeout,
		Location:            loc,
	}, logger)
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	go tracker.RunReaper(reaperCtx, 0)

	authService := service.NewAuthService(mongo.NewMongoUserRepository(appDB), cfg.JWT.Secret, cfg.JWT.Expiration, logger)

	// --- Gin Engine ---
	if !cfg.Log.Pretty {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, cfg.JWT.Secret, authService, tracker, m, logger)

	// --- Start HTTP Server ---
	// No WriteTimeout: /api/v1/events streams for the lifetime of the connection.
	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen failed")
		}
	}()
	logger.Info().Str("address", cfg.Server.Address).Msg("server listening")

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	// Drains every session's pending writes before the client goes away.
	stopReaper()
	tracker.Close()
	logger.Info().Msg("server exiting")
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("service", "neuralfit").Logger()
}
