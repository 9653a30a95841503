// Package repository is the system of record for short code mappings.
package repository

import (
	"context"
	"errors"

	"github.com/darkodi/linkify/internal/model"
)

var (
	// ErrNotFound is returned when no mapping has the requested short code.
	ErrNotFound = errors.New("url not found")

	// ErrDuplicateKey is returned by TryCreate when the short code is already stored.
	ErrDuplicateKey = errors.New("short code already exists")

	// ErrUnavailable marks storage faults: unreachable backend, timeouts, driver errors.
	ErrUnavailable = errors.New("store unavailable")
)

// Store is implemented by every mapping backend.
// All implementations must be safe for concurrent use.
type Store interface {
	// TryCreate atomically inserts m iff no mapping with m.ShortCode exists.
	// Returns ErrDuplicateKey if the code is taken.
	TryCreate(ctx context.Context, m *model.URLMapping) (*model.URLMapping, error)

	// FindByCode returns a copy of the mapping, or ErrNotFound.
	FindByCode(ctx context.Context, code string) (*model.URLMapping, error)

	// IncrementClicks atomically adds one click and advances UpdatedAt.
	// Returns ErrNotFound if the code doesn't exist.
	IncrementClicks(ctx context.Context, code string) error

	// List returns mappings newest first plus the total count.
	List(ctx context.Context, offset, limit int) ([]model.URLMapping, int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// isDomainError reports whether err is an expected outcome rather than a fault.
func isDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateKey)
}
