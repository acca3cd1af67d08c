// Package testdb provides helpers for tests that need a real Postgres
// database. Tests using it are skipped unless STUDYCYCLE_TEST_DATABASE_URL
// is set.
package testdb
