package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/darkodi/linkify/internal/model"
)

// KEYS[1] url hash, KEYS[2] created-at index, KEYS[3] id index
// ARGV: id, original_url, short_code, created_at, score
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
    return 0
end
if redis.call('HEXISTS', KEYS[3], ARGV[1]) == 1 then
    return -1
end
redis.call('HSET', KEYS[1],
    'id', ARGV[1],
    'original_url', ARGV[2],
    'short_code', ARGV[3],
    'clicks', '0',
    'created_at', ARGV[4],
    'updated_at', ARGV[4])
redis.call('HSET', KEYS[3], ARGV[1], ARGV[3])
redis.call('ZADD', KEYS[2], ARGV[5], ARGV[3])
return 1
`)

// KEYS[1] url hash; ARGV[1] updated_at
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
    return -1
end
local n = redis.call('HINCRBY', KEYS[1], 'clicks', '1')
redis.call('HSET', KEYS[1], 'updated_at', ARGV[1])
return n
`)

// RedisStore keeps each mapping in a hash and a sorted set of codes by
// creation time for listing. Lua scripts make create and increment atomic.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore uses an already connected client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) urlKey(code string) string { return s.prefix + "url:" + code }
func (s *RedisStore) indexKey() string         { return s.prefix + "urls:by_created" }
func (s *RedisStore) idsKey() string           { return s.prefix + "urls:ids" }

func (s *RedisStore) TryCreate(ctx context.Context, m *model.URLMapping) (*model.URLMapping, error) {
	stored := *m
	stored.Clicks = 0
	stored.CreatedAt = stored.CreatedAt.UTC()
	stored.UpdatedAt = stored.CreatedAt

	res, err := createScript.Run(ctx, s.client,
		[]string{s.urlKey(m.ShortCode), s.indexKey(), s.idsKey()},
		stored.ID,
		stored.OriginalURL,
		stored.ShortCode,
		stored.CreatedAt.Format(time.RFC3339Nano),
		stored.CreatedAt.UnixMilli(),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("redis create %q: %w", m.ShortCode, err)
	}
	if res != 1 {
		return nil, ErrDuplicateKey
	}
	return &stored, nil
}

func (s *RedisStore) FindByCode(ctx context.Context, code string) (*model.URLMapping, error) {
	fields, err := s.client.HGetAll(ctx, s.urlKey(code)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", code, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return parseHash(fields)
}

func (s *RedisStore) IncrementClicks(ctx context.Context, code string) error {
	n, err := incrementScript.Run(ctx, s.client,
		[]string{s.urlKey(code)},
		time.Now().UTC().Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return fmt.Errorf("redis increment %q: %w", code, err)
	}
	if n < 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, offset, limit int) ([]model.URLMapping, int64, error) {
	total, err := s.client.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis count: %w", err)
	}
	if offset < 0 || limit <= 0 || int64(offset) >= total {
		return []model.URLMapping{}, total, nil
	}

	codes, err := s.client.ZRevRange(ctx, s.indexKey(), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis list: %w", err)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(codes))
	for i, code := range codes {
		cmds[i] = pipe.HGetAll(ctx, s.urlKey(code))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, 0, fmt.Errorf("redis list: %w", err)
	}

	urls := make([]model.URLMapping, 0, len(codes))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		m, err := parseHash(fields)
		if err != nil {
			return nil, 0, err
		}
		urls = append(urls, *m)
	}
	return urls, total, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op: the client is shared with the cache and closed by its owner.
func (s *RedisStore) Close() error {
	return nil
}

func parseHash(fields map[string]string) (*model.URLMapping, error) {
	clicks, err := strconv.ParseInt(fields["clicks"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis clicks field: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("redis created_at field: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, fields["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("redis updated_at field: %w", err)
	}

	return &model.URLMapping{
		ID:          fields["id"],
		OriginalURL: fields["original_url"],
		ShortCode:   fields["short_code"],
		Clicks:      clicks,
		CreatedAt:   createdAt.UTC(),
		UpdatedAt:   updatedAt.UTC(),
	}, nil
}
