// Package domain contains the core entities of the study engine: content
// items and their memory parameters, learner profiles, the model
// coefficient set, review events, per-user forgetting rates and review
// variants. The types here are plain data with validation; the math that
// operates on them lives in the sub-packages memory, training, calibration,
// interval and schedule.
package domain
