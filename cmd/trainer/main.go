// Package main implements the offline trainer. It fits the memory model
// coefficients to logged training examples and can re-estimate every
// learner's forgetting rate from the review log.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/phrazzld/studycycle-api/internal/config"
	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/domain/training"
	"github.com/phrazzld/studycycle-api/internal/platform/filestore"
	"github.com/phrazzld/studycycle-api/internal/platform/logger"
	"github.com/phrazzld/studycycle-api/internal/platform/postgres"
	"github.com/phrazzld/studycycle-api/internal/platform/redis"
	calibrationsvc "github.com/phrazzld/studycycle-api/internal/service/calibration"
	"github.com/phrazzld/studycycle-api/internal/store"
)

// Example sources.
const (
	sourceDB   = "db"
	sourceFile = "file"
)

// options are the command line flags.
type options struct {
	source          string
	dataset         string
	output          string
	estimateLambdas bool
}

func main() {
	var opts options
	flag.StringVar(&opts.source, "source", sourceDB, "where to read training examples: db or file")
	flag.StringVar(&opts.dataset, "dataset", "", "YAML dataset of training examples (implies -source file)")
	flag.StringVar(&opts.output, "output", "", "YAML file to write coefficients to (overrides training.coefficients_file)")
	flag.BoolVar(&opts.estimateLambdas, "estimate-lambdas", false, "re-estimate every learner's forgetting rate from the review log")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("trainer: failed to load configuration: %v", err)
	}
	l, err := logger.Setup(cfg.Server)
	if err != nil {
		log.Fatalf("trainer: failed to set up logger: %v", err)
	}

	if err := run(ctx, cfg, opts, l); err != nil {
		l.Error("trainer failed", "error", err)
		log.Fatalf("trainer: %v", err)
	}
}

// run trains once and, when asked, estimates lambdas afterwards. A database
// connection is opened only when some step needs it.
func run(ctx context.Context, cfg *config.Config, opts options, logger *slog.Logger) error {
	if opts.dataset != "" {
		opts.source = sourceFile
	}
	if opts.output != "" {
		cfg.Training.CoefficientsFile = opts.output
	}
	if opts.source != sourceDB && opts.source != sourceFile {
		return fmt.Errorf("unknown source %q (expected %s or %s)", opts.source, sourceDB, sourceFile)
	}
	if opts.source == sourceFile && opts.dataset == "" {
		return errors.New("-source file requires -dataset")
	}

	needsDB := opts.source == sourceDB || opts.estimateLambdas || cfg.Training.CoefficientsFile == ""
	var db *sql.DB
	if needsDB {
		var err error
		if db, err = postgres.Open(ctx, cfg.Database.URL); err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("error closing database connection", "error", err)
			}
		}()
	}

	examples, err := loadExamples(ctx, opts, db, logger)
	if err != nil {
		return err
	}

	coefStore := coefficientStore(cfg.Training, db, logger)
	if _, err := trainAndSave(ctx, cfg.Training, examples, coefStore, logger); err != nil {
		return err
	}

	if opts.estimateLambdas {
		return estimateLambdas(ctx, cfg.Redis, db, logger)
	}
	return nil
}

func loadExamples(ctx context.Context, opts options, db *sql.DB, logger *slog.Logger) ([]domain.TrainingExample, error) {
	if opts.source == sourceFile {
		ds, err := filestore.LoadDataset(opts.dataset)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded dataset", "path", opts.dataset, "examples", len(ds.Examples))
		return ds.Examples, nil
	}

	examples, err := postgres.NewPostgresTrainingExampleStore(db, logger).ListTrainingExamples(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list training examples: %w", err)
	}
	logger.Info("loaded training examples from database", "examples", len(examples))
	return examples, nil
}

func coefficientStore(cfg config.TrainingConfig, db *sql.DB, logger *slog.Logger) store.CoefficientStore {
	if cfg.CoefficientsFile != "" {
		return filestore.NewCoefficientStore(cfg.CoefficientsFile, logger)
	}
	return postgres.NewPostgresCoefficientStore(db, logger)
}

// trainAndSave starts from the stored coefficients, or the defaults when
// none are stored, and saves the result. An empty example set leaves the
// store untouched.
func trainAndSave(
	ctx context.Context,
	cfg config.TrainingConfig,
	examples []domain.TrainingExample,
	coefs store.CoefficientStore,
	logger *slog.Logger,
) (domain.ModelCoefficients, error) {
	initial, err := coefs.LoadCoefficients(ctx)
	switch {
	case errors.Is(err, store.ErrCoefficientsNotFound):
		initial = domain.DefaultCoefficients()
	case err != nil:
		return domain.ModelCoefficients{}, fmt.Errorf("failed to load coefficients: %w", err)
	}

	if len(examples) == 0 {
		logger.Warn("no training examples, coefficients unchanged")
		return initial, nil
	}

	trainer := training.NewTrainer(nil, training.Config{
		Epochs:       cfg.Epochs,
		LearningRate: cfg.LearningRate,
		Optimizer:    cfg.Optimizer,
	})
	logger.Info("training started",
		"examples", len(examples),
		"epochs", trainer.Config().Epochs,
		"optimizer", trainer.Config().Optimizer)

	trained, err := trainer.Train(ctx, examples, initial, training.LogEvery(logger, 10))
	if err != nil {
		return initial, fmt.Errorf("training failed: %w", err)
	}
	if err := coefs.SaveCoefficients(ctx, trained); err != nil {
		return trained, fmt.Errorf("failed to save coefficients: %w", err)
	}

	logger.Info("coefficients saved",
		"alpha1", trained.Alpha1,
		"alpha2", trained.Alpha2,
		"alpha3", trained.Alpha3,
		"alpha4", trained.Alpha4,
		"alpha5", trained.Alpha5,
		"beta", trained.Beta)
	return trained, nil
}

// estimateLambdas writes a worker estimate to Postgres for every learner
// with review events. The server reads rates from its Redis cache first, so
// the cache is refreshed with each estimate when Redis is configured.
func estimateLambdas(ctx context.Context, cfg config.RedisConfig, db *sql.DB, logger *slog.Logger) error {
	local, closeLocal, err := redis.NewLocalLambdaStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLocal(); err != nil {
			logger.Warn("error closing lambda cache", "error", err)
		}
	}()

	return estimateInto(ctx,
		local,
		postgres.NewPostgresLambdaStore(db, logger),
		postgres.NewPostgresReviewEventStore(db, logger),
		logger)
}

// estimateInto runs the worker estimation against backend, copying each
// result into local.
func estimateInto(
	ctx context.Context,
	local, backend store.LambdaStore,
	reviewEvents store.ReviewEventStore,
	logger *slog.Logger,
) error {
	svc, err := calibrationsvc.NewService(local, backend, reviewEvents, nil, calibrationsvc.Config{}, logger)
	if err != nil {
		return err
	}

	n, err := svc.EstimateAll(ctx)
	if err != nil {
		return fmt.Errorf("lambda estimation failed: %w", err)
	}
	logger.Info("lambda estimation finished", "users_updated", n)
	return nil
}
