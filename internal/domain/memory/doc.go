// Package memory implements the forgetting-curve memory model and the review
// decision policy.
//
// Stability S grows with base stability and a weighted sum of normalized
// study features. Retention after t days is exp(−t/S) scaled by the
// learner's calibration factor and memory factor. A review is due when
// retention falls strictly below the threshold; the next interval inverts
// the curve at that threshold and is stretched after success and shortened
// after failure.
package memory
