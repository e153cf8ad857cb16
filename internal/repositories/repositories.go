package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/mattn/go-sqlite3"
)

// classify wraps a driver error in the matching shared sentinel.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", shared.ErrNotFound, op)
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s: %v", shared.ErrConflict, op, err)
	}
	return fmt.Errorf("%w: %s: %v", shared.ErrPersistence, op, err)
}

// isUniqueViolation reports whether err is a SQLite UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}

// checkAffected maps a zero-row write to [shared.ErrNotFound].
func checkAffected(op string, result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrNotFound, op)
	}
	return nil
}
