package store

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("store: not found")

// isNoRows reports whether err is a pgx empty-result error.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
