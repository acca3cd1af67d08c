package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/phrazzld/studycycle-api/internal/api"
	"github.com/phrazzld/studycycle-api/internal/config"
	"github.com/phrazzld/studycycle-api/internal/domain/training"
	"github.com/phrazzld/studycycle-api/internal/events"
	"github.com/phrazzld/studycycle-api/internal/platform/filestore"
	"github.com/phrazzld/studycycle-api/internal/platform/gemini"
	"github.com/phrazzld/studycycle-api/internal/platform/postgres"
	"github.com/phrazzld/studycycle-api/internal/platform/redis"
	calibrationsvc "github.com/phrazzld/studycycle-api/internal/service/calibration"
	"github.com/phrazzld/studycycle-api/internal/service/engine"
	"github.com/phrazzld/studycycle-api/internal/service/scheduling"
	"github.com/phrazzld/studycycle-api/internal/store"
	"github.com/phrazzld/studycycle-api/internal/task"
)

// application holds the shared dependencies so they can be released in
// order on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	closeLocalLambdas func() error

	engine      *engine.Service
	calibration *calibrationsvc.Service
	scheduling  *scheduling.Service

	eventEmitter *events.InMemoryEventEmitter
	taskRunner   *task.TaskRunner
	scheduler    *cron.Cron
}

// newApplication connects to the stores and builds the services, the task
// runner and the training schedule. Resources acquired before a failure are
// released before returning.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *application, err error) {
	if cfg.Database.URL == "" {
		return nil, postgres.ErrEmptyDatabaseURL
	}

	app := &application{config: cfg, logger: logger}
	defer func() {
		if err != nil {
			app.cleanup()
		}
	}()

	app.db, err = postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	logger.Info("database connection established")

	localLambdas, closeLocal, err := redis.NewLocalLambdaStore(ctx, cfg.Redis, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open local lambda store: %w", err)
	}
	app.closeLocalLambdas = closeLocal

	generator, err := gemini.NewFromConfig(ctx, logger.With("component", "llm_generator"), cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}
	generatorName := "mock"
	if cfg.LLM.GeminiAPIKey != "" {
		generatorName = cfg.LLM.ModelName
	}

	profiles := postgres.NewPostgresProfileStore(app.db, logger)
	contents := postgres.NewPostgresContentStore(app.db, logger)
	reviewEvents := postgres.NewPostgresReviewEventStore(app.db, logger)
	examples := postgres.NewPostgresTrainingExampleStore(app.db, logger)
	variants := postgres.NewPostgresVariantStore(app.db, logger)
	backendLambdas := postgres.NewPostgresLambdaStore(app.db, logger)

	app.engine, err = engine.NewService(engine.Deps{
		Profiles:     profiles,
		Contents:     contents,
		Coefficients: coefficientStore(cfg.Training, app.db, logger),
		Examples:     examples,
		Trainer:      training.NewTrainer(nil, trainingConfig(cfg.Training)),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	if err = app.engine.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)

	app.calibration, err = calibrationsvc.NewService(
		localLambdas,
		backendLambdas,
		reviewEvents,
		app.eventEmitter,
		calibrationsvc.Config{},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calibration service: %w", err)
	}

	registry := task.NewRegistry()
	registry.Register(task.TaskTypeLambdaSync, task.LambdaSyncFactory(backendLambdas, task.SyncOptions{}, logger))
	registry.Register(task.TaskTypeModelTraining, task.ModelTrainingFactory(app.engine, logger))
	registry.Register(task.TaskTypeLambdaEstimation, task.LambdaEstimationFactory(app.calibration, logger))

	app.taskRunner = task.NewTaskRunner(postgres.NewPostgresTaskStore(app.db, registry, logger), task.TaskRunnerConfig{
		QueueSize:    cfg.Task.QueueSize,
		WorkerCount:  cfg.Task.WorkerCount,
		StuckTaskAge: time.Duration(cfg.Task.StuckTaskAgeMinutes) * time.Minute,
	}, logger)
	if err = app.taskRunner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}
	app.eventEmitter.RegisterHandler(task.NewTaskFactoryEventHandler(registry, app.taskRunner, logger))

	app.scheduling, err = scheduling.NewService(scheduling.Deps{
		DB:            app.db,
		Variants:      variants,
		Events:        reviewEvents,
		Contents:      contents,
		Examples:      examples,
		Lambdas:       app.calibration,
		Generator:     generator,
		GeneratorName: generatorName,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduling service: %w", err)
	}

	if app.scheduler, err = newTrainingScheduler(cfg.Training.Schedule, app.eventEmitter, logger); err != nil {
		return nil, err
	}

	logger.Info("application initialized")
	return app, nil
}

// coefficientStore keeps coefficients in a YAML file when one is configured
// and in Postgres otherwise.
func coefficientStore(cfg config.TrainingConfig, db *sql.DB, logger *slog.Logger) store.CoefficientStore {
	if cfg.CoefficientsFile != "" {
		return filestore.NewCoefficientStore(cfg.CoefficientsFile, logger)
	}
	return postgres.NewPostgresCoefficientStore(db, logger)
}

func trainingConfig(cfg config.TrainingConfig) training.Config {
	return training.Config{
		Epochs:       cfg.Epochs,
		LearningRate: cfg.LearningRate,
		Optimizer:    cfg.Optimizer,
	}
}

// newTrainingScheduler requests a training run and a lambda estimation on the
// given cron spec. An empty spec disables the schedule and returns nil.
func newTrainingScheduler(spec string, emitter events.EventEmitter, logger *slog.Logger) (*cron.Cron, error) {
	if spec == "" {
		logger.Info("scheduled training disabled")
		return nil, nil
	}

	log := logger.With("component", "training_scheduler")
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx := context.Background()
		err := errors.Join(
			events.Emit(ctx, emitter, events.TypeModelTraining, task.TrainingRequest{Trigger: "schedule"}),
			events.Emit(ctx, emitter, events.TypeLambdaEstimation, nil),
		)
		if err != nil {
			log.Error("failed to request scheduled tasks", "error", err)
			return
		}
		log.Info("scheduled training requested")
	})
	if err != nil {
		return nil, fmt.Errorf("invalid training schedule %q: %w", spec, err)
	}
	c.Start()
	log.Info("scheduled training enabled", "schedule", spec)
	return c, nil
}

// Run serves the API until ctx is cancelled, then shuts down.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()
	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (app *application) handlers() routeHandlers {
	return routeHandlers{
		ml:      api.NewMLHandler(app.calibration, app.scheduling, app.engine, app.eventEmitter, app.logger),
		reviews: api.NewReviewHandler(app.scheduling, app.logger),
		content: api.NewContentHandler(app.engine, app.scheduling, app.logger),
	}
}

// cleanup releases resources in reverse order of acquisition. It tolerates a
// partially built application.
func (app *application) cleanup() {
	if app.scheduler != nil {
		<-app.scheduler.Stop().Done()
	}
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}
	if app.closeLocalLambdas != nil {
		if err := app.closeLocalLambdas(); err != nil {
			app.logger.Error("error closing local lambda store", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}
