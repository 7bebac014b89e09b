package storage

import "errors"

var (
	// ErrNotFound means no listing, series or run matches the key.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey means the key is already stored. Runs, window tables,
	// trades and cached series are written once and never updated.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput rejects nil, empty or unkeyed records.
	ErrInvalidInput = errors.New("invalid input")
)
