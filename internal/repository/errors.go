// Package repository defines error types shared by the data access
// layer. These sentinel values allow the service layer to tell apart
// caller mistakes (a duplicate username) from store failures without
// inspecting driver-specific errors itself.
package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrDuplicate is returned when an insert or update violates the
// unique username or email constraint.
var ErrDuplicate = errors.New("duplicate entry")

// ErrNotFound is returned when the requested user row does not exist.
var ErrNotFound = errors.New("not found")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// classify maps driver errors onto the sentinels above and passes every
// other error through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return ErrDuplicate
	}
	if strings.Contains(err.Error(), "1062") {
		return ErrDuplicate
	}
	return err
}
