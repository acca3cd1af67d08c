package training

import (
	"fmt"
	"math"
	"strings"

	"github.com/phrazzld/studycycle-api/internal/domain"
)

// Optimizer names accepted by NewOptimizer.
const (
	OptimizerSGD  = "sgd"
	OptimizerAdam = "adam"
)

// Optimizer applies a gradient to a coefficient set. Implementations may be
// stateful; a Trainer creates a fresh one for every run.
type Optimizer interface {
	Step(coefs domain.ModelCoefficients, grad Gradient) domain.ModelCoefficients
}

// NewOptimizer returns the named optimizer with the given learning rate.
// An empty name selects plain gradient descent.
func NewOptimizer(name string, learningRate float64) (Optimizer, error) {
	switch strings.ToLower(name) {
	case "", OptimizerSGD:
		return NewSGD(learningRate), nil
	case OptimizerAdam:
		return NewAdam(learningRate), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOptimizer, name)
	}
}

// SGD is plain gradient descent: coef −= lr·g.
type SGD struct {
	LearningRate float64
}

// NewSGD creates a gradient descent optimizer.
func NewSGD(learningRate float64) *SGD {
	return &SGD{LearningRate: learningRate}
}

// Step implements Optimizer.
func (o *SGD) Step(coefs domain.ModelCoefficients, grad Gradient) domain.ModelCoefficients {
	v := toVector(coefs)
	for i := range v {
		v[i] -= o.LearningRate * grad[i]
	}
	return fromVector(v)
}

// Adam implements the Adam optimizer with bias correction.
//
//	m[i] = β1·m[i] + (1-β1)·g[i]
//	v[i] = β2·v[i] + (1-β2)·g[i]²
//	w[i] = w[i] - lr · m̂[i] / (√v̂[i] + ε)
type Adam struct {
	lr           float64
	beta1, beta2 float64
	eps          float64
	m, v         [6]float64
	step         int
}

// NewAdam creates an Adam optimizer with β1=0.9, β2=0.999, ε=1e-8.
func NewAdam(learningRate float64) *Adam {
	return &Adam{
		lr:    learningRate,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
	}
}

// Step implements Optimizer.
func (a *Adam) Step(coefs domain.ModelCoefficients, grad Gradient) domain.ModelCoefficients {
	a.step++
	w := toVector(coefs)

	for i, g := range grad {
		if g == 0 {
			continue
		}

		a.m[i] = a.beta1*a.m[i] + (1-a.beta1)*g
		a.v[i] = a.beta2*a.v[i] + (1-a.beta2)*g*g

		mHat := a.m[i] / (1 - math.Pow(a.beta1, float64(a.step)))
		vHat := a.v[i] / (1 - math.Pow(a.beta2, float64(a.step)))

		w[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
	}

	return fromVector(w)
}
