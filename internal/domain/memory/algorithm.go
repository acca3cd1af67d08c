package memory

import (
	"math"

	"github.com/phrazzld/studycycle-api/internal/domain"
)

// calculateStability computes the memory stability S, in days, for a content
// item under a given study session.
//
// Parameters:
//   - input: The study session features (history, study time, confidence, previous interval success)
//   - content: The content item supplying base stability s0 and difficulty
//   - coefs: The model coefficients weighting each feature
//   - params: Model bounds
//
// Returns:
//   - S = s0 * (1 + α1·difficulty + α2·history + α3·studyTime + α4·confidence + α5·previousInterval),
//     clamped to [params.MinStability, params.MaxStability]
//
// Algorithm behavior:
//   - Every feature is clamped to [0,1] before weighting
//   - The result is clamped even when coefficients are adversarial, so exp(-t/S)
//     downstream never sees a non-positive or unbounded S
func calculateStability(
	input domain.StudySessionInput,
	content domain.ContentItem,
	coefs domain.ModelCoefficients,
	params *Params,
) float64 {
	f := featuresOf(input, content)

	s := content.BaseStability * (1 +
		coefs.Alpha1*f[0] +
		coefs.Alpha2*f[1] +
		coefs.Alpha3*f[2] +
		coefs.Alpha4*f[3] +
		coefs.Alpha5*f[4])

	if math.IsNaN(s) {
		return params.MinStability
	}
	return clamp(s, params.MinStability, params.MaxStability)
}

// calculateCalibration computes the per-call calibration factor
// λ = 1 + β·(performanceMean − reference), clamped to
// [params.MinCalibration, params.MaxCalibration]. A profile without β uses
// the default coefficient's.
func calculateCalibration(profile domain.UserProfile, params *Params) float64 {
	beta := profile.BetaOr(domain.DefaultCoefficients().Beta)
	lambda := 1 + beta*(profile.PerformanceMean-params.ReferencePerformance)
	if math.IsNaN(lambda) {
		return 1
	}
	return clamp(lambda, params.MinCalibration, params.MaxCalibration)
}

// calculateProbability applies the forgetting curve:
// P = exp(−t/S) · λ · memoryFactor, clamped to [0,1].
func calculateProbability(t, s, lambda, memoryFactor float64) float64 {
	p := math.Exp(-t/s) * lambda * memoryFactor
	if math.IsNaN(p) {
		return 0
	}
	return clamp(p, 0, 1)
}

// calculateNextInterval inverts the forgetting curve at the threshold,
// t = −S·ln(threshold), then scales by the success or failure multiplier.
//
// Algorithm behavior:
//   - A successful last attempt earns a longer runway (×1.3 by default)
//   - A failed last attempt tightens the loop (×0.5 by default)
//   - The result is clamped to [params.MinIntervalDays, params.MaxIntervalDays]
//   - A threshold outside (0,1) has no positive inverse and is replaced by
//     params.DefaultThreshold
func calculateNextInterval(s float64, lastCorrect bool, threshold float64, params *Params) float64 {
	threshold = resolveThreshold(&threshold, params)
	base := -s * math.Log(threshold)

	factor := params.FailureMultiplier
	if lastCorrect {
		factor = params.SuccessMultiplier
	}

	interval := base * factor
	if math.IsNaN(interval) {
		return params.MinIntervalDays
	}
	return clamp(interval, params.MinIntervalDays, params.MaxIntervalDays)
}

// resolveThreshold returns the session's threshold, or the default when unset
// or outside (0,1).
func resolveThreshold(threshold *float64, params *Params) float64 {
	if threshold == nil || *threshold <= 0 || *threshold >= 1 {
		return params.DefaultThreshold
	}
	return *threshold
}

// featuresOf returns the five normalized model features in coefficient order.
func featuresOf(input domain.StudySessionInput, content domain.ContentItem) [5]float64 {
	return [5]float64{
		clamp(content.Difficulty, 0, 1),
		clamp(input.History, 0, 1),
		clamp(input.StudyTime, 0, 1),
		clamp(input.Confidence, 0, 1),
		clamp(input.PreviousIntervalSuccess, 0, 1),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
