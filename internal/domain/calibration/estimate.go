package calibration

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/phrazzld/studycycle-api/internal/domain"
)

// Grid search bounds for EstimateLambda.
const (
	gridMin    = 1e-6
	gridMax    = 1.0
	gridPoints = 300
	gridClamp  = 1e-6
)

// Sample pairs the stability accumulated before a review with its outcome.
type Sample struct {
	S     float64
	Label float64
}

// BuildSamples turns a review log into per-user samples. Events are grouped
// by user and item and ordered by timestamp. For each event the sample's S is
// the running Σ tᵢ/nᵢ of the earlier events in the group, where tᵢ is the gap
// to the preceding event's timestamp or, for the first event, the recorded
// time since last review.
func BuildSamples(events []domain.ReviewEvent) map[uuid.UUID][]Sample {
	type key struct{ user, item uuid.UUID }

	groups := make(map[key][]domain.ReviewEvent)
	var order []key
	for _, e := range events {
		k := key{e.UserID, e.ItemID}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], e)
	}

	samples := make(map[uuid.UUID][]Sample)
	for _, k := range order {
		evs := groups[k]
		sort.SliceStable(evs, func(i, j int) bool { return evs[i].Timestamp.Before(evs[j].Timestamp) })

		var running float64
		for i := range evs {
			samples[k.user] = append(samples[k.user], Sample{S: running, Label: float64(evs[i].Correctness)})

			t := evs[i].ElapsedSeconds()
			if i > 0 {
				if gap := evs[i].Timestamp.Sub(evs[i-1].Timestamp).Seconds(); gap > 0 {
					t = gap
				}
			}
			running += t / float64(evs[i].RepsOrDefault())
		}
	}
	return samples
}

// EstimateLambda returns the λ on a 300-point grid over [1e-6, 1] that
// minimizes the negative log-likelihood of samples under p = exp(−λ·S),
// with p clamped to [1e-6, 1−1e-6]. ok is false when samples is empty.
func EstimateLambda(samples []Sample) (lambda float64, ok bool) {
	if len(samples) == 0 {
		return 0, false
	}

	best := math.Inf(1)
	step := (gridMax - gridMin) / float64(gridPoints-1)
	for i := 0; i < gridPoints; i++ {
		lam := gridMin + float64(i)*step

		var nll float64
		for _, s := range samples {
			p := math.Exp(-lam * s.S)
			p = math.Max(gridClamp, math.Min(1-gridClamp, p))
			nll -= s.Label*math.Log(p) + (1-s.Label)*math.Log(1-p)
		}

		if nll < best {
			best = nll
			lambda = lam
		}
	}
	return lambda, true
}
