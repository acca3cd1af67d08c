// Package scheduling runs the review loop around the per-learner forgetting
// rate: generating review variants from content, deciding which variants
// are due and which one to show next, recording review outcomes, and
// recommending the next review interval.
//
// Calibration is a side effect of recording an outcome. A failure to update
// the forgetting rate, log a training example or mark a variant used is
// logged and reported in the result but never fails the call; only the
// review event itself must be stored.
package scheduling
