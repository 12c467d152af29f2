package cache

import (
	"context"
	"fmt"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/schoolhealth/internal/model"
	"github.com/jwalitptl/schoolhealth/internal/repository"
	"github.com/jwalitptl/schoolhealth/pkg/metrics"
)

// MemoryStore keeps snapshots in process memory.
type MemoryStore struct {
	c       *gocache.Cache
	metrics *metrics.Metrics
}

var _ repository.SnapshotStore = (*MemoryStore)(nil)

func NewMemoryStore(cfg repository.SnapshotConfig, m *metrics.Metrics) *MemoryStore {
	return &MemoryStore{
		c:       gocache.New(cfg.TTL, cfg.CleanupInterval),
		metrics: m,
	}
}

func submissionsKey(actorKey string) string {
	return fmt.Sprintf("submissions:%s", actorKey)
}

func schedulesKey(actorKey, submissionID string) string {
	return fmt.Sprintf("schedules:%s:%s", actorKey, submissionID)
}

func batchesKey(actorKey string, kind model.BatchKind) string {
	return fmt.Sprintf("batches:%s:%s", actorKey, kind)
}

func (s *MemoryStore) GetSubmissions(_ context.Context, actorKey string) ([]model.Submission, bool) {
	v, ok := s.c.Get(submissionsKey(actorKey))
	observe(s.metrics, "submissions", ok)
	if !ok {
		return nil, false
	}
	return cloneSubmissions(v.([]model.Submission)), true
}

func (s *MemoryStore) SetSubmissions(_ context.Context, actorKey string, submissions []model.Submission) {
	s.c.Set(submissionsKey(actorKey), cloneSubmissions(submissions), gocache.DefaultExpiration)
}

func (s *MemoryStore) InvalidateSubmissions(_ context.Context, actorKey string) {
	s.c.Delete(submissionsKey(actorKey))
}

func (s *MemoryStore) GetSchedules(_ context.Context, actorKey, submissionID string) ([]model.ScheduleSlot, bool) {
	v, ok := s.c.Get(schedulesKey(actorKey, submissionID))
	observe(s.metrics, "schedules", ok)
	if !ok {
		return nil, false
	}
	return append([]model.ScheduleSlot(nil), v.([]model.ScheduleSlot)...), true
}

func (s *MemoryStore) SetSchedules(_ context.Context, actorKey, submissionID string, slots []model.ScheduleSlot) {
	s.c.Set(schedulesKey(actorKey, submissionID), append([]model.ScheduleSlot(nil), slots...), gocache.DefaultExpiration)
}

func (s *MemoryStore) InvalidateSchedules(_ context.Context, actorKey, submissionID string) {
	s.c.Delete(schedulesKey(actorKey, submissionID))
}

func (s *MemoryStore) GetBatches(_ context.Context, actorKey string, kind model.BatchKind) ([]model.Batch, bool) {
	v, ok := s.c.Get(batchesKey(actorKey, kind))
	observe(s.metrics, "batches", ok)
	if !ok {
		return nil, false
	}
	return append([]model.Batch(nil), v.([]model.Batch)...), true
}

func (s *MemoryStore) SetBatches(_ context.Context, actorKey string, kind model.BatchKind, batches []model.Batch) {
	s.c.Set(batchesKey(actorKey, kind), append([]model.Batch(nil), batches...), gocache.DefaultExpiration)
}

func (s *MemoryStore) InvalidateBatches(_ context.Context, actorKey string, kind model.BatchKind) {
	s.c.Delete(batchesKey(actorKey, kind))
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// cloneSubmissions copies the slice and each confirmation so callers cannot edit the snapshot.
func cloneSubmissions(in []model.Submission) []model.Submission {
	out := make([]model.Submission, len(in))
	for i, sub := range in {
		out[i] = sub
		if sub.Confirmation != nil {
			c := *sub.Confirmation
			out[i].Confirmation = &c
		}
	}
	return out
}

func observe(m *metrics.Metrics, kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(kind, result).Inc()
}
