// Package postgres provides PostgreSQL implementations of the store
// interfaces. All stores operate over store.DBTX so they work identically
// on a *sql.DB connection pool and inside a *sql.Tx transaction.
package postgres
