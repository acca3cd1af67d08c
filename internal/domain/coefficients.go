package domain

import (
	"fmt"
	"math"
)

// ModelCoefficients are the learned weights of the memory model.
// Alpha1 weighs difficulty, Alpha2 study history, Alpha3 study time,
// Alpha4 confidence and Alpha5 previous-interval success. Beta is the
// slope of the performance calibration.
type ModelCoefficients struct {
	Alpha1 float64 `json:"alpha1" yaml:"alpha1"`
	Alpha2 float64 `json:"alpha2" yaml:"alpha2"`
	Alpha3 float64 `json:"alpha3" yaml:"alpha3"`
	Alpha4 float64 `json:"alpha4" yaml:"alpha4"`
	Alpha5 float64 `json:"alpha5" yaml:"alpha5"`
	Beta   float64 `json:"beta" yaml:"beta"`
}

// DefaultCoefficients returns the untrained starting weights.
func DefaultCoefficients() ModelCoefficients {
	return ModelCoefficients{
		Alpha1: -0.3,
		Alpha2: 0.5,
		Alpha3: 0.4,
		Alpha4: 0.3,
		Alpha5: 0.6,
		Beta:   0.5,
	}
}

// Validate rejects coefficient sets containing NaN or infinities.
func (c ModelCoefficients) Validate() error {
	for i, v := range c.values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: coefficient %d is not finite", ErrOutOfRange, i)
		}
	}
	return nil
}

func (c ModelCoefficients) values() [6]float64 {
	return [6]float64{c.Alpha1, c.Alpha2, c.Alpha3, c.Alpha4, c.Alpha5, c.Beta}
}
