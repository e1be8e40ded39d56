package repository

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the asset or the queued request does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateAsset is returned when an asset with the same normalized name exists.
	ErrDuplicateAsset = errors.New("asset already exists")

	// ErrDuplicateActiveRequest is returned when the requester already has a queued request.
	ErrDuplicateActiveRequest = errors.New("requester already has an active request")

	// ErrStoreUnavailable wraps persistence failures that are not a domain condition.
	ErrStoreUnavailable = errors.New("store unavailable")
)

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// isDuplicateKey matches translated gorm errors and the raw driver messages
// of SQLite and PostgreSQL.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
