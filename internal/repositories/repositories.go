package repositories

import (
	"database/sql"
	"fmt"
)

// queryRower is satisfied by both *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

// NextSequence bumps the counter in the table's companion `<table>_sequence` row and returns it.
//
// Sequence numbers give runs a short id (`plexio history show 3`). Called with a transaction, the bump
// is rolled back together with the insert it numbers. The table name is interpolated and must never
// come from user input.
func NextSequence(q queryRower, table string) (int, error) {
	var seq int
	query := "UPDATE " + table + "_sequence SET value = value + 1 WHERE id = 1 RETURNING value"
	if err := q.QueryRow(query).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", table, err)
	}
	return seq, nil
}

// withTx runs fn inside a transaction and commits when fn returns nil.
func withTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
