// Package repository holds the MySQL implementations of the stores used by
// the reservation engine, the sweep jobs and the public browse handlers.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// erForeignKeyMissing is MySQL's ER_NO_REFERENCED_ROW_2: an insert referenced
// a parent row that does not exist.
const erForeignKeyMissing = 1452

func isMissingParent(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == erForeignKeyMissing
}

// notFound translates sql.ErrNoRows into the given domain sentinel so
// callers never depend on database/sql directly.
func notFound(err error, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

// rollback is deferred by every transactional method; it is a no-op once the
// transaction has been committed.
func rollback(tx *sql.Tx, committed *bool) {
	if !*committed {
		_ = tx.Rollback()
	}
}
