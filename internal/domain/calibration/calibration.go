package calibration

import (
	"errors"
	"math"
	"sort"

	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/domain/interval"
)

// DefaultLambda is the forgetting rate assumed when a learner has none stored.
const DefaultLambda = 0.15

// ErrInsufficientData is returned when there are no events to calibrate from.
var ErrInsufficientData = errors.New("not enough events to adjust lambda")

// AutoAdjustConfig configures AutoAdjust. Zero values take the defaults
// Window=50, LearningRate=0.2, Target=0.8.
type AutoAdjustConfig struct {
	Window       int
	LearningRate float64
	Target       float64
}

func (c AutoAdjustConfig) withDefaults() AutoAdjustConfig {
	if c.Window <= 0 {
		c.Window = 50
	}
	if c.LearningRate == 0 {
		c.LearningRate = 0.2
	}
	if c.Target == 0 {
		c.Target = 0.8
	}
	return c
}

// AutoAdjustResult reports the outcome of an AutoAdjust step.
type AutoAdjustResult struct {
	Lambda             float64 `json:"lambda"`
	Previous           float64 `json:"previous"`
	AverageCorrectness float64 `json:"avg_correctness"`
	WindowSize         int     `json:"window_size"`
}

// AutoAdjust applies λ' = max(1e-8, λ·exp(lr·(target − avg))) where avg is
// the mean correctness of the most recent Window events by timestamp.
// Sustained low accuracy raises λ and sustained high accuracy lowers it.
// current may be nil, in which case DefaultLambda is used.
func AutoAdjust(events []domain.ReviewEvent, current *float64, cfg AutoAdjustConfig) (AutoAdjustResult, error) {
	if len(events) == 0 {
		return AutoAdjustResult{}, ErrInsufficientData
	}
	cfg = cfg.withDefaults()

	window := recent(events, cfg.Window)
	avg := interval.MeanCorrectness(window)

	prev := DefaultLambda
	if current != nil {
		prev = *current
	}

	factor := math.Exp(cfg.LearningRate * (cfg.Target - avg))
	next := math.Max(1e-8, prev*factor)

	return AutoAdjustResult{
		Lambda:             next,
		Previous:           prev,
		AverageCorrectness: avg,
		WindowSize:         len(window),
	}, nil
}

// OnlineConfig configures OnlineUpdate. Zero values take the defaults
// LearningRate=1e-7, Min=1e-6, Max=1.
type OnlineConfig struct {
	LearningRate float64
	Min          float64
	Max          float64
}

func (c OnlineConfig) withDefaults() OnlineConfig {
	if c.LearningRate == 0 {
		c.LearningRate = 1e-7
	}
	if c.Min == 0 {
		c.Min = 1e-6
	}
	if c.Max == 0 {
		c.Max = 1
	}
	return c
}

// Observation is one observed recall outcome projected from the history.
type Observation struct {
	// TNextSec is the time since the previous review, in seconds.
	TNextSec float64
	// NNext is the repetition count; values below 1 count as 1.
	NNext float64
	// Y is 1 when recalled, 0 otherwise.
	Y float64
}

// OnlineResult reports the outcome of an OnlineUpdate step.
type OnlineResult struct {
	Lambda          float64 `json:"lambda"`
	Previous        float64 `json:"previous"`
	PredictedBefore float64 `json:"predicted_before"`
}

// OnlineUpdate takes one gradient step on the squared error (R − y)² where
// R = exp(−λ·(S + t/n)) and S is the history stability of events:
//
//	∂L/∂λ = −2·(R − y)·(S + t/n)·R
//
// A non-finite result keeps the previous value. The result is clamped to
// [Min, Max]. current may be nil, in which case DefaultLambda is used.
func OnlineUpdate(events []domain.ReviewEvent, current *float64, obs Observation, cfg OnlineConfig) OnlineResult {
	cfg = cfg.withDefaults()

	prev := DefaultLambda
	if current != nil {
		prev = *current
	}

	s := interval.HistoryStability(events)
	n := math.Max(1, obs.NNext)
	r := interval.Retention(prev, s, obs.TNextSec, n)

	grad := -2 * (r - obs.Y) * (s + obs.TNextSec/n) * r
	next := prev - cfg.LearningRate*grad
	if math.IsNaN(next) || math.IsInf(next, 0) {
		next = prev
	}
	next = math.Max(cfg.Min, math.Min(cfg.Max, next))

	return OnlineResult{Lambda: next, Previous: prev, PredictedBefore: r}
}

// recent returns the last n events in chronological order.
func recent(events []domain.ReviewEvent, n int) []domain.ReviewEvent {
	sorted := make([]domain.ReviewEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	if len(sorted) > n {
		sorted = sorted[len(sorted)-n:]
	}
	return sorted
}
