package interval

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/phrazzld/studycycle-api/internal/domain"
)

const day = 24 * 60 * 60

// Defaults for the candidate search.
const (
	DefaultTarget       = 0.9
	DefaultLambda       = 0.15
	DefaultHistoryLimit = 10
	ModelName           = "baseline-exponential"
)

// ErrNoCandidates is returned when the candidate list is empty.
var ErrNoCandidates = errors.New("no candidate intervals")

// DefaultCandidates returns 1, 2, 4 and 7 days in seconds.
func DefaultCandidates() []float64 {
	return []float64{1 * day, 2 * day, 4 * day, 7 * day}
}

// ExtendedCandidates returns the default candidates followed by 14, 30 and 60 days.
func ExtendedCandidates() []float64 {
	return append(DefaultCandidates(), 14*day, 30*day, 60*day)
}

// HistoryStability returns Σ tᵢ/nᵢ over events, where tᵢ is the recorded
// time since the previous review (0 when absent) and nᵢ the repetition count
// (1 when absent or non-positive).
func HistoryStability(events []domain.ReviewEvent) float64 {
	var s float64
	for i := range events {
		s += events[i].ElapsedSeconds() / float64(events[i].RepsOrDefault())
	}
	return s
}

// Retention evaluates exp(−λ·(s + tNext/max(1,nNext))), clamped to [0,1].
// Non-finite results are reported as 0.
func Retention(lambda, s, tNextSec, nNext float64) float64 {
	r := math.Exp(-lambda * (s + tNextSec/math.Max(1, nNext)))
	if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// Predictor maps a candidate interval, in seconds, to predicted retention.
type Predictor func(intervalSec float64) float64

// BaselinePredictor returns a Predictor for the exponential baseline.
func BaselinePredictor(lambda, s, nNext float64) Predictor {
	return func(intervalSec float64) float64 {
		return Retention(lambda, s, intervalSec, nNext)
	}
}

// Candidate is one evaluated interval.
type Candidate struct {
	IntervalSec        float64 `json:"interval_sec"`
	PredictedRetention float64 `json:"predicted_retention"`
}

// Recommendation is the outcome of a candidate search.
type Recommendation struct {
	Chosen     Candidate   `json:"chosen"`
	Candidates []Candidate `json:"candidates"`
}

// Recommend evaluates the candidates from shortest to longest and chooses
// the smallest whose predicted retention is at least target. When none
// qualifies the largest candidate is chosen. The returned candidates are in
// ascending order; the input slice is left untouched.
func Recommend(candidates []float64, predict Predictor, target float64) (Recommendation, error) {
	if len(candidates) == 0 {
		return Recommendation{}, ErrNoCandidates
	}

	sorted := append([]float64(nil), candidates...)
	sort.Float64s(sorted)

	results := make([]Candidate, len(sorted))
	chosen := -1
	for i, t := range sorted {
		results[i] = Candidate{IntervalSec: t, PredictedRetention: predict(t)}
		if chosen < 0 && results[i].PredictedRetention >= target {
			chosen = i
		}
	}
	if chosen < 0 {
		chosen = len(results) - 1
	}

	return Recommendation{Chosen: results[chosen], Candidates: results}, nil
}

// FallbackInterval maps recent accuracy to a fixed delay when no predictive
// signal is available: ≥0.9 → 6 days, ≥0.7 → 3 days, ≥0.5 → 1 day, otherwise
// half a day.
func FallbackInterval(accuracy float64) time.Duration {
	switch {
	case accuracy >= 0.9:
		return 6 * 24 * time.Hour
	case accuracy >= 0.7:
		return 3 * 24 * time.Hour
	case accuracy >= 0.5:
		return 24 * time.Hour
	default:
		return 12 * time.Hour
	}
}

// MeanCorrectness returns the average correctness of events, or 0 for none.
func MeanCorrectness(events []domain.ReviewEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	var sum float64
	for i := range events {
		sum += float64(events[i].Correctness)
	}
	return sum / float64(len(events))
}
