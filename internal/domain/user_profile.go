package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Memory factor presets assigned by the self-assessment questionnaire.
// Larger values mean the learner retains more after a given interval.
const (
	MemoryProfileGood     = 0.2
	MemoryProfilePoor     = 0.4
	MemoryProfileTerrible = 0.8
)

// ErrUserProfileIDEmpty is returned when a profile has no user ID.
var ErrUserProfileIDEmpty = fmt.Errorf("%w: user profile ID cannot be empty", ErrValidation)

// UserProfile captures the per-learner inputs to the memory model.
type UserProfile struct {
	ID uuid.UUID `json:"id"`

	// MemoryFactor is the self-reported memory quality in (0,1].
	MemoryFactor float64 `json:"memory_factor"`

	// PerformanceMean is the learner's historical mean accuracy in [0,1].
	PerformanceMean float64 `json:"performance_mean"`

	// Beta is the learner's calibration slope. Nil defers to the model-wide
	// coefficient; an explicit zero is kept.
	Beta *float64 `json:"beta,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserProfile creates a validated UserProfile for the given user.
func NewUserProfile(userID uuid.UUID, memoryFactor, performanceMean float64, beta *float64) (*UserProfile, error) {
	profile := &UserProfile{
		ID:              userID,
		MemoryFactor:    memoryFactor,
		PerformanceMean: performanceMean,
		Beta:            beta,
		UpdatedAt:       time.Now().UTC(),
	}

	if err := profile.Validate(); err != nil {
		return nil, err
	}

	return profile, nil
}

// Validate checks the profile's ranges.
func (p *UserProfile) Validate() error {
	if p.ID == uuid.Nil {
		return ErrUserProfileIDEmpty
	}

	if p.MemoryFactor <= 0 || p.MemoryFactor > 1 {
		return fmt.Errorf("%w: memory factor must be in (0,1], got %v", ErrOutOfRange, p.MemoryFactor)
	}

	if p.PerformanceMean < 0 || p.PerformanceMean > 1 {
		return fmt.Errorf("%w: performance mean must be in [0,1], got %v", ErrOutOfRange, p.PerformanceMean)
	}

	if p.Beta != nil && (math.IsNaN(*p.Beta) || math.IsInf(*p.Beta, 0)) {
		return fmt.Errorf("%w: beta must be finite", ErrOutOfRange)
	}

	return nil
}

// BetaOr returns the profile's calibration slope, or fallback when unset.
func (p UserProfile) BetaOr(fallback float64) float64 {
	if p.Beta == nil {
		return fallback
	}
	return *p.Beta
}
