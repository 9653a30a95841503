package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/darkodi/linkify/internal/model"
)

// timeoutStore bounds every call with a deadline and turns faults into
// ErrUnavailable so callers never see driver-specific errors as business outcomes.
type timeoutStore struct {
	next    Store
	timeout time.Duration
}

// WithTimeout wraps next so each operation fails fast after d.
func WithTimeout(next Store, d time.Duration) Store {
	return &timeoutStore{next: next, timeout: d}
}

func (s *timeoutStore) TryCreate(ctx context.Context, m *model.URLMapping) (*model.URLMapping, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stored, err := s.next.TryCreate(ctx, m)
	return stored, unavailable("create", m.ShortCode, err)
}

func (s *timeoutStore) FindByCode(ctx context.Context, code string) (*model.URLMapping, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	m, err := s.next.FindByCode(ctx, code)
	return m, unavailable("find", code, err)
}

func (s *timeoutStore) IncrementClicks(ctx context.Context, code string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return unavailable("increment", code, s.next.IncrementClicks(ctx, code))
}

func (s *timeoutStore) List(ctx context.Context, offset, limit int) ([]model.URLMapping, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	urls, total, err := s.next.List(ctx, offset, limit)
	return urls, total, unavailable("list", "", err)
}

func (s *timeoutStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return unavailable("ping", "", s.next.Ping(ctx))
}

func (s *timeoutStore) Close() error {
	return s.next.Close()
}

func unavailable(op, key string, err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	if key == "" {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s %q: %w: %w", op, key, ErrUnavailable, err)
}
