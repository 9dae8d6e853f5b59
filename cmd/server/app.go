package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/omnimedia-api/internal/broadcast"
	"github.com/phrazzld/omnimedia-api/internal/config"
	"github.com/phrazzld/omnimedia-api/internal/events"
	"github.com/phrazzld/omnimedia-api/internal/generation"
	"github.com/phrazzld/omnimedia-api/internal/generation/simulated"
	"github.com/phrazzld/omnimedia-api/internal/platform/gemini"
	"github.com/phrazzld/omnimedia-api/internal/platform/influx"
	"github.com/phrazzld/omnimedia-api/internal/platform/openai"
	"github.com/phrazzld/omnimedia-api/internal/platform/postgres"
	"github.com/phrazzld/omnimedia-api/internal/platform/s3"
	"github.com/phrazzld/omnimedia-api/internal/service/auth"
	"github.com/phrazzld/omnimedia-api/internal/store"
	"github.com/phrazzld/omnimedia-api/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// db is nil unless tasks are stored in postgres
	db        *sql.DB
	taskStore store.TaskStore

	hub        *broadcast.Hub
	emitter    *events.InMemoryEventEmitter
	recorder   *influx.Recorder
	dispatcher *task.Dispatcher

	// jwtService is nil when authentication is disabled
	jwtService auth.JWTService
}

// newApplication creates a new application instance with all dependencies
// initialized. The dispatcher is started before it returns.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	if err := app.setupStore(ctx); err != nil {
		return nil, err
	}

	registry, err := buildRegistry(ctx, cfg.Generation, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize generators: %w", err)
	}
	logger.Info("generators initialized", "provider", cfg.Generation.Provider)

	app.hub = broadcast.NewHub(logger)
	app.emitter = events.NewInMemoryEventEmitter(logger)
	app.emitter.RegisterHandler(broadcast.NewAnnouncer(app.hub, logger))

	if cfg.Metrics.URL != "" {
		app.recorder, err = influx.NewRecorder(ctx, influx.Config{
			URL:    cfg.Metrics.URL,
			Token:  cfg.Metrics.Token,
			Org:    cfg.Metrics.Org,
			Bucket: cfg.Metrics.Bucket,
		}, logger)
		if err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to initialize metrics recorder: %w", err)
		}
		app.emitter.RegisterHandler(app.recorder)
	}

	var sink task.ResultSink
	if cfg.Storage.Bucket != "" {
		s3Sink, err := s3.NewSink(ctx, s3.Config{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
			PresignTTL:      cfg.Storage.PresignTTL,
		}, logger)
		if err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to initialize result storage: %w", err)
		}
		sink = s3Sink
		logger.Info("binary results will be uploaded", "bucket", cfg.Storage.Bucket)
	}

	if cfg.Auth.JWTSecret != "" {
		app.jwtService, err = auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenLifetime)
		if err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
		}
		logger.Info("JWT authentication enabled", "token_lifetime", cfg.Auth.TokenLifetime)
	} else {
		logger.Warn("JWT secret not configured, API routes are unauthenticated")
	}

	app.dispatcher, err = task.NewDispatcher(task.Config{
		WorkerCount:       cfg.Task.WorkerCount,
		QueueSize:         cfg.Task.QueueSize,
		GenerationTimeout: cfg.Task.GenerationTimeout,
	}, task.Dependencies{
		Store:       app.taskStore,
		Registry:    registry,
		Publisher:   app.hub,
		Connections: app.hub,
		Emitter:     app.emitter,
		Sink:        sink,
	}, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	app.dispatcher.Start()

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupStore opens the configured task store, migrating postgres first.
func (app *application) setupStore(ctx context.Context) error {
	if app.config.Task.Store != "postgres" {
		app.taskStore = store.NewMemoryTaskStore()
		return nil
	}

	db, err := postgres.Open(ctx, app.config.Database.URL, app.logger)
	if err != nil {
		return err
	}
	if err := postgres.Migrate(ctx, db, app.logger); err != nil {
		_ = db.Close()
		return err
	}

	app.db = db
	app.taskStore = postgres.NewPostgresTaskStore(db)
	return nil
}

// buildRegistry assigns a generator to every media kind. Kinds the
// configured provider cannot produce fall back to simulated generators.
func buildRegistry(ctx context.Context, cfg config.GenerationConfig, logger *slog.Logger) (*generation.Registry, error) {
	simCfg := simulated.Config{StageDelay: cfg.StageDelay, WordDelay: cfg.WordDelay}
	image := generation.Generator(simulated.NewImage(simCfg))
	video := generation.Generator(simulated.NewVideo(simCfg))
	audio := generation.Generator(simulated.NewAudio(simCfg))
	text := generation.Generator(simulated.NewText(simCfg))

	switch cfg.Provider {
	case "gemini":
		g, err := gemini.NewGenerator(ctx, gemini.Config{
			APIKey:     cfg.GeminiAPIKey,
			TextModel:  cfg.GeminiTextModel,
			ImageModel: cfg.GeminiImageModel,
		}, logger)
		if err != nil {
			return nil, err
		}
		image, text = g, g

	case "openai":
		g, err := openai.NewGenerator(openai.Config{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			TextModel:  cfg.OpenAITextModel,
			ImageModel: cfg.OpenAIImageModel,
		}, logger)
		if err != nil {
			return nil, err
		}
		image, audio, text = g, g, g
	}

	return generation.NewRegistry(image, video, audio, text), nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router, err := app.setupRouter()
	if err != nil {
		app.cleanup()
		return fmt.Errorf("failed to set up router: %w", err)
	}

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// closeStreams ends every open WebSocket and SSE stream. Shutdown does not
// wait on hijacked connections and would otherwise block on idle SSE
// responses until its timeout.
func (app *application) closeStreams() {
	if app.hub != nil {
		app.hub.CloseAll()
	}
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.dispatcher != nil {
		app.dispatcher.Stop()
	}

	if app.recorder != nil {
		app.recorder.Close()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
