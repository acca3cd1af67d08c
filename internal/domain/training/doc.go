// Package training fits the memory model's coefficients from labeled
// examples.
//
// Each epoch walks the examples in order, predicts recall for a synthetic
// one-day session, scores it with binary cross-entropy and applies one
// optimizer step per example. The gradient is estimated by a
// GradientEstimator and applied by an Optimizer so either can be replaced
// without touching the training loop. Progress is reported through an
// Observer rather than written to a log directly.
package training
