package cache

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"

	"github.com/darkodi/linkify/internal/logger"
	"github.com/darkodi/linkify/internal/model"
	"github.com/darkodi/linkify/internal/repository"
)

// Store is a repository.Store that answers lookups from a Cache first.
// Concurrent misses for the same code share one backend read. Cache faults
// are logged and never fail the call; the backend stays the source of truth.
type Store struct {
	next   repository.Store
	cache  Cache
	log    *logger.Logger
	flight singleflight.Group
}

var _ repository.Store = (*Store)(nil)

// Wrap puts c in front of next.
func Wrap(next repository.Store, c Cache, log *logger.Logger) *Store {
	return &Store{next: next, cache: c, log: log}
}

func (s *Store) TryCreate(ctx context.Context, m *model.URLMapping) (*model.URLMapping, error) {
	stored, err := s.next.TryCreate(ctx, m)
	if err != nil {
		return nil, err
	}
	s.set(ctx, stored)
	return stored, nil
}

func (s *Store) FindByCode(ctx context.Context, code string) (*model.URLMapping, error) {
	m, ok, err := s.cache.Get(ctx, code)
	if err != nil {
		s.log.WithContext(ctx).Warn("cache read failed", "short_code", code, "error", err)
	}
	if ok {
		return m, nil
	}

	v, err, _ := s.flight.Do(code, func() (any, error) {
		found, err := s.next.FindByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		s.set(ctx, found)
		return found, nil
	})
	if err != nil {
		return nil, err
	}

	// callers sharing a flight must not share the pointer
	found := *v.(*model.URLMapping)
	return &found, nil
}

func (s *Store) IncrementClicks(ctx context.Context, code string) error {
	if err := s.next.IncrementClicks(ctx, code); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, code); err != nil {
		s.log.WithContext(ctx).Warn("cache invalidate failed", "short_code", code, "error", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, offset, limit int) ([]model.URLMapping, int64, error) {
	return s.next.List(ctx, offset, limit)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *Store) Close() error {
	return errors.Join(s.cache.Close(), s.next.Close())
}

func (s *Store) set(ctx context.Context, m *model.URLMapping) {
	if err := s.cache.Set(ctx, m); err != nil {
		s.log.WithContext(ctx).Warn("cache write failed", "short_code", m.ShortCode, "error", err)
	}
}
