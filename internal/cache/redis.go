package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/schoolhealth/internal/model"
	"github.com/jwalitptl/schoolhealth/internal/repository"
	"github.com/jwalitptl/schoolhealth/pkg/metrics"
)

// RedisStore shares snapshots between BFF replicas. Redis failures degrade to cache misses.
type RedisStore struct {
	client  *redis.Client
	ttl     time.Duration
	prefix  string
	metrics *metrics.Metrics
}

var _ repository.SnapshotStore = (*RedisStore)(nil)

type RedisConfig struct {
	URL          string
	Prefix       string
	TTL          time.Duration
	PoolSize     int
	MinIdleConns int
}

func NewRedisStore(cfg RedisConfig, m *metrics.Metrics) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	// Snapshots are advisory; a failed command is a miss, not something to retry.
	opts.MaxRetries = -1

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "schoolhealth"
	}
	return &RedisStore{
		client:  redis.NewClient(opts),
		ttl:     cfg.TTL,
		prefix:  prefix,
		metrics: m,
	}, nil
}

func (s *RedisStore) key(k string) string {
	return s.prefix + ":" + k
}

func (s *RedisStore) get(ctx context.Context, kind, key string, dst interface{}) bool {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("snapshot read failed")
		}
		observe(s.metrics, kind, false)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("snapshot decode failed")
		observe(s.metrics, kind, false)
		return false
	}
	observe(s.metrics, kind, true)
	return true
}

func (s *RedisStore) set(ctx context.Context, key string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("snapshot encode failed")
		return
	}
	if err := s.client.Set(ctx, s.key(key), raw, s.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("snapshot write failed")
	}
}

func (s *RedisStore) del(ctx context.Context, key string) {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("snapshot invalidation failed")
	}
}

func (s *RedisStore) GetSubmissions(ctx context.Context, actorKey string) ([]model.Submission, bool) {
	var out []model.Submission
	ok := s.get(ctx, "submissions", submissionsKey(actorKey), &out)
	return out, ok
}

func (s *RedisStore) SetSubmissions(ctx context.Context, actorKey string, submissions []model.Submission) {
	s.set(ctx, submissionsKey(actorKey), submissions)
}

func (s *RedisStore) InvalidateSubmissions(ctx context.Context, actorKey string) {
	s.del(ctx, submissionsKey(actorKey))
}

func (s *RedisStore) GetSchedules(ctx context.Context, actorKey, submissionID string) ([]model.ScheduleSlot, bool) {
	var out []model.ScheduleSlot
	ok := s.get(ctx, "schedules", schedulesKey(actorKey, submissionID), &out)
	return out, ok
}

func (s *RedisStore) SetSchedules(ctx context.Context, actorKey, submissionID string, slots []model.ScheduleSlot) {
	s.set(ctx, schedulesKey(actorKey, submissionID), slots)
}

func (s *RedisStore) InvalidateSchedules(ctx context.Context, actorKey, submissionID string) {
	s.del(ctx, schedulesKey(actorKey, submissionID))
}

func (s *RedisStore) GetBatches(ctx context.Context, actorKey string, kind model.BatchKind) ([]model.Batch, bool) {
	var out []model.Batch
	ok := s.get(ctx, "batches", batchesKey(actorKey, kind), &out)
	return out, ok
}

func (s *RedisStore) SetBatches(ctx context.Context, actorKey string, kind model.BatchKind, batches []model.Batch) {
	s.set(ctx, batchesKey(actorKey, kind), batches)
}

func (s *RedisStore) InvalidateBatches(ctx context.Context, actorKey string, kind model.BatchKind) {
	s.del(ctx, batchesKey(actorKey, kind))
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
