package domain

import (
	"time"

	"github.com/google/uuid"
)

// TrainingExample is one labeled observation used to fit ModelCoefficients.
// Examples are immutable once logged.
type TrainingExample struct {
	ID     uuid.UUID  `json:"id" yaml:"-"`
	UserID *uuid.UUID `json:"user_id,omitempty" yaml:"-"`
	ItemID *uuid.UUID `json:"item_id,omitempty" yaml:"-"`

	Difficulty              float64 `json:"difficulty" yaml:"difficulty"`
	History                 float64 `json:"history" yaml:"history"`
	StudyTime               float64 `json:"study_time" yaml:"study_time"`
	Confidence              float64 `json:"confidence" yaml:"confidence"`
	PreviousIntervalSuccess float64 `json:"previous_interval_success" yaml:"previous_interval_success"`

	// Remembered is the observed recall outcome.
	Remembered bool `json:"remembered" yaml:"remembered"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Label returns the example's outcome as 1 or 0.
func (e TrainingExample) Label() float64 {
	if e.Remembered {
		return 1
	}
	return 0
}
