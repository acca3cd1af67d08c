package schedule

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/studycycle-api/internal/domain"
)

// Scheduling constants.
const (
	// DefaultLambda is used when the learner has no stored forgetting rate.
	DefaultLambda = 1e-6

	// MinDelay is the shortest delay ever scheduled.
	MinDelay = 60 * time.Second
)

// Compute schedules the learner's next review of an item.
//
// The history sum is Σ max(0, now − tsᵢ)/nᵢ in seconds over events, with nᵢ
// the repetition count (1 when absent). The delay is that sum rounded, but
// never less than MinDelay. ForgettingProb is the diagnostic exp(−λ·sum).
// A nil lambda uses DefaultLambda.
func Compute(userID uuid.UUID, events []domain.ReviewEvent, lambda *float64, now time.Time) domain.Schedule {
	var sum float64
	for i := range events {
		elapsed := math.Max(0, now.Sub(events[i].Timestamp).Seconds())
		sum += elapsed / float64(events[i].RepsOrDefault())
	}

	lam := DefaultLambda
	if lambda != nil {
		lam = *lambda
	}

	delay := int64(math.Round(sum))
	if floor := int64(MinDelay / time.Second); delay < floor {
		delay = floor
	}

	return domain.Schedule{
		UserID:         userID,
		NextReviewAt:   now.Add(time.Duration(delay) * time.Second).UTC(),
		NextDelaySec:   delay,
		ForgettingProb: math.Exp(-lam * sum),
		LambdaUsed:     lam,
		Sum:            sum,
	}
}

// IsDue reports whether the variant carries a schedule for userID whose
// review time is not after now.
func IsDue(variant domain.ReviewVariant, userID uuid.UUID, now time.Time) bool {
	s := variant.Metadata.Schedule
	if s == nil || s.UserID != userID || s.NextReviewAt.IsZero() {
		return false
	}
	return !s.NextReviewAt.After(now)
}

// FilterDue returns the variants that are due for userID at now, preserving order.
func FilterDue(variants []domain.ReviewVariant, userID uuid.UUID, now time.Time) []domain.ReviewVariant {
	due := make([]domain.ReviewVariant, 0, len(variants))
	for _, v := range variants {
		if IsDue(v, userID, now) {
			due = append(due, v)
		}
	}
	return due
}

// ChooseVariant picks the variant to present. It returns nil for an empty
// list and the first variant when userID is nil. Otherwise the first variant
// the user has never seen wins; when all have been seen, the one seen least
// recently wins, with ties going to the earlier variant. The result is a
// copy; the input is not modified.
func ChooseVariant(variants []domain.ReviewVariant, userID uuid.UUID) *domain.ReviewVariant {
	if len(variants) == 0 {
		return nil
	}
	if userID == uuid.Nil {
		chosen := variants[0]
		return &chosen
	}

	oldest := -1
	var oldestAt time.Time
	for i := range variants {
		at, seen := variants[i].LastUsed(userID)
		if !seen {
			chosen := variants[i]
			return &chosen
		}
		if oldest < 0 || at.Before(oldestAt) {
			oldest = i
			oldestAt = at
		}
	}
	chosen := variants[oldest]
	return &chosen
}
