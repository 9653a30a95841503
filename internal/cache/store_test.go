package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkodi/linkify/internal/logger"
	"github.com/darkodi/linkify/internal/model"
	"github.com/darkodi/linkify/internal/repository"
)

// memStore is a minimal backend that counts lookups.
type memStore struct {
	mu      sync.Mutex
	urls    map[string]model.URLMapping
	finds   atomic.Int32
	gate    chan struct{}
	closed  bool
	findErr error
}

func newMemStore() *memStore {
	return &memStore{urls: make(map[string]model.URLMapping)}
}

func (s *memStore) TryCreate(_ context.Context, m *model.URLMapping) (*model.URLMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.urls[m.ShortCode]; ok {
		return nil, repository.ErrDuplicateKey
	}
	s.urls[m.ShortCode] = *m
	stored := *m
	return &stored, nil
}

func (s *memStore) FindByCode(_ context.Context, code string) (*model.URLMapping, error) {
	s.finds.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if s.findErr != nil {
		return nil, s.findErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.urls[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (s *memStore) IncrementClicks(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.urls[code]
	if !ok {
		return repository.ErrNotFound
	}
	m.Clicks++
	s.urls[code] = m
	return nil
}

func (s *memStore) List(context.Context, int, int) ([]model.URLMapping, int64, error) {
	return nil, 0, nil
}

func (s *memStore) Ping(context.Context) error { return nil }

func (s *memStore) Close() error {
	s.closed = true
	return nil
}

func TestStore_CreateWritesThrough(t *testing.T) {
	backend := newMemStore()
	c, mr := newRedisCache(t, time.Minute)
	s := Wrap(backend, c, logger.Discard())
	ctx := context.Background()

	_, err := s.TryCreate(ctx, sampleMapping("abc1234"))
	require.NoError(t, err)
	assert.True(t, mr.Exists("cache:url:abc1234"))

	got, err := s.FindByCode(ctx, "abc1234")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/abc1234", got.OriginalURL)
	assert.Equal(t, int32(0), backend.finds.Load())
}

func TestStore_DuplicateNotCached(t *testing.T) {
	backend := newMemStore()
	c, mr := newRedisCache(t, time.Minute)
	s := Wrap(backend, c, logger.Discard())
	ctx := context.Background()

	_, err := s.TryCreate(ctx, sampleMapping("abc1234"))
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, "abc1234"))

	_, err = s.TryCreate(ctx, sampleMapping("abc1234"))
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)
	assert.False(t, mr.Exists("cache:url:abc1234"))
}

func TestStore_MissPopulatesCache(t *testing.T) {
	backend := newMemStore()
	_, err := backend.TryCreate(context.Background(), sampleMapping("abc1234"))
	require.NoError(t, err)

	c, _ := newRedisCache(t, time.Minute)
	s := Wrap(backend, c, logger.Discard())

	for i := 0; i < 3; i++ {
		_, err := s.FindByCode(context.Background(), "abc1234")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), backend.finds.Load())
}

func TestStore_NotFoundIsNotCached(t *testing.T) {
	backend := newMemStore()
	c, _ := newRedisCache(t, time.Minute)
	s := Wrap(backend, c, logger.Discard())

	_, err := s.FindByCode(context.Background(), "nope123")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.FindByCode(context.Background(), "nope123")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, int32(2), backend.finds.Load())
}

func TestStore_ConcurrentMissesShareOneRead(t *testing.T) {
	backend := newMemStore()
	_, err := backend.TryCreate(context.Background(), sampleMapping("abc1234"))
	require.NoError(t, err)
	backend.gate = make(chan struct{})

	c, _ := newRedisCache(t, time.Minute)
	s := Wrap(backend, c, logger.Discard())

	const n = 20
	var wg sync.WaitGroup
	results := make([]*model.URLMapping, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := s.FindByCode(context.Background(), "abc1234")
			assert.NoError(t, err)
			results[i] = m
		}(i)
	}

	require.Eventually(t, func() bool { return backend.finds.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(backend.gate)
	wg.Wait()

	// late arrivals are served by the cache filled inside the flight
	assert.Equal(t, int32(1), backend.finds.Load())
	for i := 1; i < n; i++ {
		require.NotNil(t, results[i])
		assert.NotSame(t, results[0], results[i])
	}
}

func TestStore_IncrementInvalidates(t *testing.T) {
	backend := newMemStore()
	c, mr := newRedisCache(t, time.Minute)
	s := Wrap(backend, c, logger.Discard())
	ctx := context.Background()

	_, err := s.TryCreate(ctx, sampleMapping("abc1234"))
	require.NoError(t, err)
	require.NoError(t, s.IncrementClicks(ctx, "abc1234"))
	assert.False(t, mr.Exists("cache:url:abc1234"))

	got, err := s.FindByCode(ctx, "abc1234")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Clicks)

	assert.ErrorIs(t, s.IncrementClicks(ctx, "nope123"), repository.ErrNotFound)
}

func TestStore_CacheDownFallsBackToBackend(t *testing.T) {
	backend := newMemStore()
	_, err := backend.TryCreate(context.Background(), sampleMapping("abc1234"))
	require.NoError(t, err)

	c, mr := newRedisCache(t, time.Minute)
	mr.Close()
	s := Wrap(backend, c, logger.Discard())

	got, err := s.FindByCode(context.Background(), "abc1234")
	require.NoError(t, err)
	assert.Equal(t, "abc1234", got.ShortCode)
}

func TestStore_BackendFaultPropagates(t *testing.T) {
	backend := newMemStore()
	backend.findErr = errors.New("boom")
	c, _ := newRedisCache(t, time.Minute)
	s := Wrap(backend, c, logger.Discard())

	_, err := s.FindByCode(context.Background(), "abc1234")
	assert.EqualError(t, err, "boom")
}

func TestStore_CloseClosesBackend(t *testing.T) {
	backend := newMemStore()
	c, err := NewLocal(10, 100, time.Minute)
	require.NoError(t, err)

	s := Wrap(backend, c, logger.Discard())
	require.NoError(t, s.Close())
	assert.True(t, backend.closed)
}
