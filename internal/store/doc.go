// Package store defines the persistence contracts the study engine depends
// on: profiles, content items, coefficient sets, the review event log,
// per-user forgetting rates, review variants and training examples.
// Implementations live under internal/platform.
package store
