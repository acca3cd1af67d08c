package training

import "github.com/phrazzld/studycycle-api/internal/domain"

// Gradient holds one value per coefficient in the order
// Alpha1..Alpha5, Beta.
type Gradient [6]float64

// Sample is the information a GradientEstimator sees for one example.
type Sample struct {
	// Features are the normalized model inputs in coefficient order.
	Features [5]float64

	// CalibrationFeature is the input associated with Beta,
	// performance mean minus the reference performance.
	CalibrationFeature float64

	// Label is 1 when the example was remembered, 0 otherwise.
	Label float64
}

// GradientEstimator turns a prediction for a sample into a gradient.
type GradientEstimator interface {
	Estimate(sample Sample, prediction float64) Gradient
}

// SurrogateGradient treats the forward pass as locally linear in each
// feature: the gradient for a coefficient is (p̂ − y) times its feature.
type SurrogateGradient struct{}

// Estimate implements GradientEstimator.
func (SurrogateGradient) Estimate(sample Sample, prediction float64) Gradient {
	e := prediction - sample.Label

	var g Gradient
	for i, f := range sample.Features {
		g[i] = e * f
	}
	g[5] = e * sample.CalibrationFeature
	return g
}

func toVector(c domain.ModelCoefficients) [6]float64 {
	return [6]float64{c.Alpha1, c.Alpha2, c.Alpha3, c.Alpha4, c.Alpha5, c.Beta}
}

func fromVector(v [6]float64) domain.ModelCoefficients {
	return domain.ModelCoefficients{
		Alpha1: v[0],
		Alpha2: v[1],
		Alpha3: v[2],
		Alpha4: v[3],
		Alpha5: v[4],
		Beta:   v[5],
	}
}
