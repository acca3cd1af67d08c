package training

import "math"

// lossEpsilon keeps the logarithms finite when a prediction is exactly 0 or 1.
const lossEpsilon = 1e-8

// BinaryCrossEntropy returns −[y·ln(p+ε) + (1−y)·ln(1−p+ε)].
func BinaryCrossEntropy(prediction, label float64) float64 {
	return -(label*math.Log(prediction+lossEpsilon) + (1-label)*math.Log(1-prediction+lossEpsilon))
}
