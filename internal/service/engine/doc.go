// Package engine owns the memory model's coefficients and serves review
// suggestions.
//
// A Service is constructed with its stores and model and must be
// initialized before use: Initialize loads the latest trained coefficients,
// falling back to domain.DefaultCoefficients when none are stored or the
// store is unavailable. Train refits the coefficients from the logged
// training examples and swaps them in atomically.
package engine
