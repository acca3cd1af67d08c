// Package task runs background work: pushing locally calibrated forgetting
// rates to the shared store, retraining the memory model and re-estimating
// per-user rates from the event log.
//
// Tasks are persisted before they are queued so that work interrupted by a
// restart is recovered. Recovered rows are rebuilt through a Registry that
// maps each task type to a Factory.
package task
