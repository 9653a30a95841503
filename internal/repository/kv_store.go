package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/darkodi/linkify/internal/model"
)

// casBackoff caps the jittered pause between conflicting click updates.
const casBackoff = 5 * time.Millisecond

// KVStore implements Store on a NATS JetStream key-value bucket keyed by short code.
// Create is the atomic insert; click increments are revision-checked updates.
type KVStore struct {
	conn   *nats.Conn
	bucket jetstream.KeyValue
}

// NewKVStore connects to NATS and opens (or creates) the bucket.
func NewKVStore(ctx context.Context, natsURL, bucket string) (*KVStore, error) {
	conn, err := nats.Connect(natsURL, nats.Name("linkify"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := getOrCreateBucket(ctx, js, bucket)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open %s bucket: %w", bucket, err)
	}

	return &KVStore{conn: conn, bucket: kv}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	bucket, err := js.KeyValue(ctx, name)
	if err == nil {
		return bucket, nil
	}

	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "short code to URL mappings",
		History:     1,
	})
}

func (s *KVStore) TryCreate(ctx context.Context, m *model.URLMapping) (*model.URLMapping, error) {
	stored := *m
	stored.Clicks = 0
	stored.CreatedAt = stored.CreatedAt.UTC()
	stored.UpdatedAt = stored.CreatedAt

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal URL: %w", err)
	}

	if _, err := s.bucket.Create(ctx, m.ShortCode, data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("failed to store URL: %w", err)
	}
	return &stored, nil
}

func (s *KVStore) FindByCode(ctx context.Context, code string) (*model.URLMapping, error) {
	m, _, err := s.get(ctx, code)
	return m, err
}

// IncrementClicks retries conflicting updates until one lands or ctx ends;
// callers bound it with a deadline.
func (s *KVStore) IncrementClicks(ctx context.Context, code string) error {
	for attempt := 1; ; attempt++ {
		m, revision, err := s.get(ctx, code)
		if err != nil {
			return err
		}

		m.Clicks++
		m.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal URL: %w", err)
		}

		_, err = s.bucket.Update(ctx, code, data, revision)
		if err == nil {
			return nil
		}
		if !isRevisionConflict(err) {
			return fmt.Errorf("failed to update clicks: %w", err)
		}

		// another increment won the race; reread and retry
		pause := time.Duration(rand.Int64N(int64(casBackoff)) + 1)
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("increment %q after %d attempts: %w", code, attempt, ctx.Err())
		case <-timer.C:
		}
	}
}

// List loads every key; the bucket has no secondary ordering, so the page is
// sorted in memory. Admin listing only, never on the redirect path.
func (s *KVStore) List(ctx context.Context, offset, limit int) ([]model.URLMapping, int64, error) {
	keys, err := s.bucket.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return []model.URLMapping{}, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to list keys: %w", err)
	}

	all := make([]model.URLMapping, 0, len(keys))
	for _, key := range keys {
		m, _, err := s.get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		all = append(all, *m)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ShortCode < all[j].ShortCode
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	if offset < 0 || offset >= len(all) || limit <= 0 {
		return []model.URLMapping{}, total, nil
	}
	end := offset + limit
	if end > len(all) || end < offset {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (s *KVStore) Ping(ctx context.Context) error {
	if s.conn == nil || !s.conn.IsConnected() {
		return errors.New("nats: not connected")
	}
	return s.conn.FlushWithContext(ctx)
}

func (s *KVStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

func (s *KVStore) get(ctx context.Context, code string) (*model.URLMapping, uint64, error) {
	entry, err := s.bucket.Get(ctx, code)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("failed to get URL: %w", err)
	}

	var m model.URLMapping
	if err := json.Unmarshal(entry.Value(), &m); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal URL: %w", err)
	}
	return &m, entry.Revision(), nil
}

func isRevisionConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}
