package memory

import (
	"github.com/phrazzld/studycycle-api/internal/domain"
)

// Model exposes the forgetting-curve memory model and the review decision
// policy built on it. All methods are pure and safe for concurrent use.
type Model interface {
	// Stability computes the memory stability S in days, clamped to the model bounds.
	Stability(input domain.StudySessionInput, content domain.ContentItem, coefs domain.ModelCoefficients) float64

	// CalibrationFactor derives the per-call multiplier λ from a profile snapshot.
	CalibrationFactor(profile domain.UserProfile) float64

	// RetentionProbability evaluates exp(−t/S)·λ·memoryFactor, clamped to [0,1].
	RetentionProbability(t, s, lambda, memoryFactor float64) float64

	// ShouldReview reports whether p is strictly below the threshold.
	ShouldReview(p, threshold float64) bool

	// NextInterval returns the next review interval in days.
	NextInterval(s float64, lastCorrect bool, threshold float64) float64

	// SuggestReview runs the full forward pass and decision policy for one session.
	SuggestReview(
		input domain.StudySessionInput,
		content domain.ContentItem,
		profile domain.UserProfile,
		coefs domain.ModelCoefficients,
	) domain.ReviewSuggestion

	// PredictRememberProbability runs the forward pass, optionally substituting
	// the elapsed days. It is shared by training and evaluation.
	PredictRememberProbability(
		input domain.StudySessionInput,
		content domain.ContentItem,
		profile domain.UserProfile,
		coefs domain.ModelCoefficients,
		daysOverride *float64,
	) float64

	// Features returns the normalized feature vector in coefficient order.
	Features(input domain.StudySessionInput, content domain.ContentItem) [5]float64

	// Params returns the model's bounds and constants.
	Params() *Params
}

// defaultModel is the standard implementation of the Model interface
type defaultModel struct {
	params *Params
}

// NewDefaultModel creates a memory model with default parameters
func NewDefaultModel() Model {
	return &defaultModel{params: NewDefaultParams()}
}

// NewModelWithParams creates a memory model with custom parameters.
// A nil params value uses the defaults.
func NewModelWithParams(params *Params) Model {
	if params == nil {
		params = NewDefaultParams()
	}
	return &defaultModel{params: params}
}

func (m *defaultModel) Stability(
	input domain.StudySessionInput,
	content domain.ContentItem,
	coefs domain.ModelCoefficients,
) float64 {
	return calculateStability(input, content, coefs, m.params)
}

func (m *defaultModel) CalibrationFactor(profile domain.UserProfile) float64 {
	return calculateCalibration(profile, m.params)
}

func (m *defaultModel) RetentionProbability(t, s, lambda, memoryFactor float64) float64 {
	return calculateProbability(t, s, lambda, memoryFactor)
}

func (m *defaultModel) ShouldReview(p, threshold float64) bool {
	return p < threshold
}

func (m *defaultModel) NextInterval(s float64, lastCorrect bool, threshold float64) float64 {
	return calculateNextInterval(s, lastCorrect, threshold, m.params)
}

func (m *defaultModel) SuggestReview(
	input domain.StudySessionInput,
	content domain.ContentItem,
	profile domain.UserProfile,
	coefs domain.ModelCoefficients,
) domain.ReviewSuggestion {
	s := m.Stability(input, content, coefs)
	lambda := m.CalibrationFactor(profile)
	p := m.RetentionProbability(input.DaysSinceReview, s, lambda, profile.MemoryFactor)

	threshold := resolveThreshold(input.Threshold, m.params)

	lastCorrect := true
	if input.LastCorrect != nil {
		lastCorrect = *input.LastCorrect
	}

	return domain.ReviewSuggestion{
		Probability:      p,
		ShouldReview:     m.ShouldReview(p, threshold),
		NextIntervalDays: m.NextInterval(s, lastCorrect, threshold),
		Stability:        s,
		Lambda:           lambda,
	}
}

func (m *defaultModel) PredictRememberProbability(
	input domain.StudySessionInput,
	content domain.ContentItem,
	profile domain.UserProfile,
	coefs domain.ModelCoefficients,
	daysOverride *float64,
) float64 {
	t := input.DaysSinceReview
	if daysOverride != nil {
		t = *daysOverride
	}

	s := m.Stability(input, content, coefs)
	lambda := m.CalibrationFactor(profile)
	return m.RetentionProbability(t, s, lambda, profile.MemoryFactor)
}

func (m *defaultModel) Features(input domain.StudySessionInput, content domain.ContentItem) [5]float64 {
	return featuresOf(input, content)
}

func (m *defaultModel) Params() *Params {
	return m.params
}
