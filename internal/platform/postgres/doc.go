// Package postgres implements the internal/store interfaces and the task
// store on PostgreSQL through the pgx database/sql driver.
//
// Every store accepts a store.DBTX so it can run against a *sql.DB or inside
// a transaction obtained with WithTx. Schema migrations are embedded in the
// binary and applied with goose.
package postgres
