package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/domain/training"
)

// ModelTrainer retrains the memory model and installs the result.
type ModelTrainer interface {
	Train(ctx context.Context, observer training.Observer) (domain.ModelCoefficients, error)
}

// LambdaEstimator re-estimates forgetting rates for every user with events.
// It returns the number of users updated.
type LambdaEstimator interface {
	EstimateAll(ctx context.Context) (int, error)
}

// TrainingRequest is the payload of a model training task.
type TrainingRequest struct {
	// Trigger records what asked for the run, such as "api" or "schedule".
	Trigger string `json:"trigger"`
}

// ModelTrainingTask runs one training pass.
type ModelTrainingTask struct {
	*state
	request TrainingRequest
	trainer ModelTrainer
	logger  *slog.Logger
}

// ModelTrainingFactory builds training tasks.
func ModelTrainingFactory(trainer ModelTrainer, logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return func(id uuid.UUID, payload []byte) (Task, error) {
		if trainer == nil {
			return nil, errors.New("model trainer cannot be nil")
		}
		var req TrainingRequest
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				return nil, fmt.Errorf("invalid training payload: %w", err)
			}
		}
		s := newState(id)
		return &ModelTrainingTask{
			state:   s,
			request: req,
			trainer: trainer,
			logger:  logger.With("task_type", TaskTypeModelTraining, "task_id", s.id, "trigger", req.Trigger),
		}, nil
	}
}

// Type returns the task type identifier
func (t *ModelTrainingTask) Type() string {
	return TaskTypeModelTraining
}

// Payload returns the JSON-encoded request.
func (t *ModelTrainingTask) Payload() []byte {
	data, err := json.Marshal(t.request)
	if err != nil {
		return []byte("{}")
	}
	return data
}

// Execute trains and logs progress every ten epochs.
func (t *ModelTrainingTask) Execute(ctx context.Context) error {
	t.setStatus(TaskStatusProcessing)
	t.logger.Info("starting model training")

	coefs, err := t.trainer.Train(ctx, training.LogEvery(t.logger, 10))
	if err != nil {
		return t.finish(fmt.Errorf("model training failed: %w", err))
	}

	t.logger.Info("model training finished",
		"alpha1", coefs.Alpha1,
		"alpha2", coefs.Alpha2,
		"alpha3", coefs.Alpha3,
		"alpha4", coefs.Alpha4,
		"alpha5", coefs.Alpha5,
		"beta", coefs.Beta)
	return t.finish(nil)
}

// LambdaEstimationTask re-estimates every user's forgetting rate.
type LambdaEstimationTask struct {
	*state
	estimator LambdaEstimator
	logger    *slog.Logger
}

// LambdaEstimationFactory builds estimation tasks. The payload is ignored.
func LambdaEstimationFactory(estimator LambdaEstimator, logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return func(id uuid.UUID, _ []byte) (Task, error) {
		if estimator == nil {
			return nil, errors.New("lambda estimator cannot be nil")
		}
		s := newState(id)
		return &LambdaEstimationTask{
			state:     s,
			estimator: estimator,
			logger:    logger.With("task_type", TaskTypeLambdaEstimation, "task_id", s.id),
		}, nil
	}
}

// Type returns the task type identifier
func (t *LambdaEstimationTask) Type() string {
	return TaskTypeLambdaEstimation
}

// Payload returns an empty JSON object.
func (t *LambdaEstimationTask) Payload() []byte {
	return []byte("{}")
}

// Execute runs the estimation.
func (t *LambdaEstimationTask) Execute(ctx context.Context) error {
	t.setStatus(TaskStatusProcessing)

	n, err := t.estimator.EstimateAll(ctx)
	if err != nil {
		return t.finish(fmt.Errorf("lambda estimation failed: %w", err))
	}

	t.logger.Info("lambda estimation finished", "users_updated", n)
	return t.finish(nil)
}
