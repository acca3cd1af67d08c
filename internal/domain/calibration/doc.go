// Package calibration maintains each learner's forgetting rate λ from their
// review history.
//
// Three estimators are provided. AutoAdjust nudges λ multiplicatively toward
// a target accuracy over a sliding window of recent events. OnlineUpdate
// takes one squared-error gradient step per observed outcome. EstimateLambda
// is the batch estimator run by the worker: a grid search minimizing the
// negative log-likelihood of the learner's outcomes.
//
// This λ is a persisted per-user scalar and is independent of the per-call
// calibration factor computed by the memory package.
package calibration
