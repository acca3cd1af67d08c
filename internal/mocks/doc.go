// Package mocks provides in-memory implementations of the store interfaces
// and of generation.Generator for tests.
//
// Every store keeps its data in maps guarded by a mutex and returns the same
// not-found errors as the Postgres stores. Each exposes an error field per
// operation so tests can inject failures, and WithTx returns the receiver so
// the stores can run inside store.RunInTransaction with a sqlmock database.
//
//	profiles := mocks.NewProfileStore()
//	profiles.GetErr = errors.New("connection reset")
package mocks
