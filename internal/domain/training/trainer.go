package training

import (
	"context"
	"errors"
	"log/slog"

	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/domain/memory"
)

// Common errors
var (
	ErrUnknownOptimizer = errors.New("unknown optimizer")
)

// Synthetic session used to score every example: one day elapsed, unit base
// stability and a fixed reference learner.
const (
	trainingDays            = 1.0
	trainingBaseStability   = 1.0
	trainingMemoryFactor    = 0.4
	trainingPerformanceMean = 0.65
)

// Config configures a Trainer. Zero values are replaced with defaults:
// Epochs=100, LearningRate=0.01, Optimizer="sgd".
type Config struct {
	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
	Optimizer    string  `json:"optimizer"`
}

// Observer is notified after every epoch with the zero-based epoch number and
// the mean loss over the examples.
type Observer func(epoch int, loss float64)

// LogEvery returns an Observer that logs progress every n epochs.
func LogEvery(logger *slog.Logger, n int) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	if n <= 0 {
		n = 1
	}
	return func(epoch int, loss float64) {
		if epoch%n == 0 {
			logger.Info("training progress",
				slog.Int("epoch", epoch),
				slog.Float64("average_loss", loss))
		}
	}
}

// Trainer fits ModelCoefficients to TrainingExamples.
type Trainer struct {
	model     memory.Model
	estimator GradientEstimator
	config    Config
}

// NewTrainer creates a Trainer using the given memory model for the forward
// pass and the surrogate gradient for updates. A nil model uses the default.
func NewTrainer(model memory.Model, config Config) *Trainer {
	if model == nil {
		model = memory.NewDefaultModel()
	}
	if config.Epochs <= 0 {
		config.Epochs = 100
	}
	if config.LearningRate <= 0 {
		config.LearningRate = 0.01
	}
	if config.Optimizer == "" {
		config.Optimizer = OptimizerSGD
	}
	return &Trainer{
		model:     model,
		estimator: SurrogateGradient{},
		config:    config,
	}
}

// WithEstimator returns a copy of the trainer that uses the given gradient estimator.
func (t *Trainer) WithEstimator(estimator GradientEstimator) *Trainer {
	clone := *t
	clone.estimator = estimator
	return &clone
}

// Config returns the effective configuration.
func (t *Trainer) Config() Config {
	return t.config
}

// Train runs the configured number of epochs and returns the fitted
// coefficients. An empty example set returns initial unchanged. The context
// is checked between epochs; on cancellation the coefficients reached so far
// are returned together with the context error. observer may be nil.
func (t *Trainer) Train(
	ctx context.Context,
	examples []domain.TrainingExample,
	initial domain.ModelCoefficients,
	observer Observer,
) (domain.ModelCoefficients, error) {
	if len(examples) == 0 {
		return initial, nil
	}

	opt, err := NewOptimizer(t.config.Optimizer, t.config.LearningRate)
	if err != nil {
		return initial, err
	}

	coefs := initial
	for epoch := 0; epoch < t.config.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return coefs, err
		}

		var totalLoss float64
		for _, example := range examples {
			input, content, profile := t.syntheticSession(example, coefs)

			days := trainingDays
			prediction := t.model.PredictRememberProbability(input, content, profile, coefs, &days)

			label := example.Label()
			totalLoss += BinaryCrossEntropy(prediction, label)

			sample := Sample{
				Features:           t.model.Features(input, content),
				CalibrationFeature: profile.PerformanceMean - t.model.Params().ReferencePerformance,
				Label:              label,
			}
			coefs = opt.Step(coefs, t.estimator.Estimate(sample, prediction))
		}

		if observer != nil {
			observer(epoch, totalLoss/float64(len(examples)))
		}
	}

	return coefs, nil
}

// Evaluation summarizes how well a coefficient set predicts a labeled set.
type Evaluation struct {
	MeanLoss float64 `json:"mean_loss"`
	Accuracy float64 `json:"accuracy"`
	Count    int     `json:"count"`
}

// Evaluate scores coefs against examples with the same synthetic session used
// for training. A prediction of at least 0.5 counts as "remembered".
func (t *Trainer) Evaluate(examples []domain.TrainingExample, coefs domain.ModelCoefficients) Evaluation {
	if len(examples) == 0 {
		return Evaluation{}
	}

	var totalLoss float64
	var correct int
	for _, example := range examples {
		input, content, profile := t.syntheticSession(example, coefs)

		days := trainingDays
		prediction := t.model.PredictRememberProbability(input, content, profile, coefs, &days)

		totalLoss += BinaryCrossEntropy(prediction, example.Label())
		if (prediction >= 0.5) == example.Remembered {
			correct++
		}
	}

	n := float64(len(examples))
	return Evaluation{
		MeanLoss: totalLoss / n,
		Accuracy: float64(correct) / n,
		Count:    len(examples),
	}
}

func (t *Trainer) syntheticSession(
	example domain.TrainingExample,
	coefs domain.ModelCoefficients,
) (domain.StudySessionInput, domain.ContentItem, domain.UserProfile) {
	lastCorrect := example.PreviousIntervalSuccess == 1

	input := domain.StudySessionInput{
		DaysSinceReview:         trainingDays,
		History:                 example.History,
		StudyTime:               example.StudyTime,
		Confidence:              example.Confidence,
		PreviousIntervalSuccess: example.PreviousIntervalSuccess,
		LastCorrect:             &lastCorrect,
	}
	content := domain.ContentItem{
		BaseStability: trainingBaseStability,
		Difficulty:    example.Difficulty,
	}
	beta := coefs.Beta
	profile := domain.UserProfile{
		MemoryFactor:    trainingMemoryFactor,
		PerformanceMean: trainingPerformanceMean,
		Beta:            &beta,
	}
	return input, content, profile
}
