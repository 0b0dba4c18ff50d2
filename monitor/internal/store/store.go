// Package store provides the data access layer for the monitoring database:
// snapshots, changes, recipients, and the outbound message audit log.
//
// The store receives an already-opened *sql.DB (see dbopen); it never opens
// connections itself.
package store

import "database/sql"

// Store wraps the monitoring database.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}
