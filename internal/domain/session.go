package domain

// StudySessionInput describes one review decision request. All feature
// fields are normalized to [0,1]; out-of-range values are clamped by the
// model rather than rejected.
type StudySessionInput struct {
	// DaysSinceReview is the elapsed time since the last review, in days.
	DaysSinceReview float64 `json:"days_since_review" validate:"gte=0"`

	History                 float64 `json:"history"`
	StudyTime               float64 `json:"study_time"`
	Confidence              float64 `json:"confidence"`
	PreviousIntervalSuccess float64 `json:"previous_interval_success"`

	// Threshold is the retention probability below which a review is due.
	// Nil or zero means the default threshold.
	Threshold *float64 `json:"threshold,omitempty" validate:"omitempty,gte=0,lt=1"`

	// LastCorrect reports whether the most recent review succeeded.
	// Nil is treated as true.
	LastCorrect *bool `json:"last_correct,omitempty"`
}

// ReviewSuggestion is the model's decision for a study session.
type ReviewSuggestion struct {
	Probability      float64 `json:"probability"`
	ShouldReview     bool    `json:"should_review"`
	NextIntervalDays float64 `json:"next_interval_days"`
	Stability        float64 `json:"stability"`
	Lambda           float64 `json:"lambda"`
}
