package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/schoolhealth/internal/cache"
	"github.com/jwalitptl/schoolhealth/internal/model"
	"github.com/jwalitptl/schoolhealth/internal/repository"
	"github.com/jwalitptl/schoolhealth/pkg/messaging"
	"github.com/jwalitptl/schoolhealth/pkg/metrics"
)

type fakeBroker struct {
	msgs         chan []byte
	subscribeErr error
	channel      string
}

func (b *fakeBroker) Publish(context.Context, string, interface{}) error { return nil }

func (b *fakeBroker) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	b.channel = channel
	if b.subscribeErr != nil {
		return nil, b.subscribeErr
	}
	return b.msgs, nil
}

func (b *fakeBroker) Close() error { return nil }

func encode(t *testing.T, evt messaging.ActionEvent) []byte {
	t.Helper()
	raw, err := json.Marshal(evt)
	require.NoError(t, err)
	return raw
}

var nurse = model.ActorContext{ActorID: "nurse-1", Role: model.RoleNurse, Token: "nurse-token"}

func seededStore() *cache.MemoryStore {
	ctx := context.Background()
	store := cache.NewMemoryStore(repository.SnapshotConfig{TTL: time.Minute, CleanupInterval: time.Minute}, nil)
	store.SetSubmissions(ctx, nurse.Key(), []model.Submission{{ID: "sub-1"}})
	store.SetSchedules(ctx, nurse.Key(), "sub-1", []model.ScheduleSlot{{MedicationScheduleID: "slot-1"}})
	store.SetBatches(ctx, nurse.Key(), model.BatchVaccination, []model.Batch{{ID: "v-1"}})
	return store
}

// run feeds events through Start and returns once they have all been handled.
func run(t *testing.T, w *ActivityWorker, b *fakeBroker, events ...[]byte) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- w.Start(context.Background()) }()
	for _, raw := range events {
		b.msgs <- raw
	}
	close(b.msgs)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestActivityWorker_ScheduleEventDropsSnapshots(t *testing.T) {
	ctx := context.Background()
	store := seededStore()
	b := &fakeBroker{msgs: make(chan []byte, 4)}
	m := metrics.New("test")
	w := NewActivityWorker(b, store, ActivityConfig{Channel: "actions", Origin: "replica-a"}, nil, m)

	evt := messaging.NewActionEvent("schedule", "slot-1", "Chờ lấy thuốc", "Đã cho uống", "nurse-1", "after lunch")
	evt.Parent = "sub-1"
	evt.ActorKey = nurse.Key()
	evt.Origin = "replica-b"
	run(t, w, b, encode(t, evt))

	assert.Equal(t, "actions", b.channel)
	_, ok := store.GetSubmissions(ctx, nurse.Key())
	assert.False(t, ok)
	_, ok = store.GetSchedules(ctx, nurse.Key(), "sub-1")
	assert.False(t, ok)
	_, ok = store.GetBatches(ctx, nurse.Key(), model.BatchVaccination)
	assert.True(t, ok)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsConsumed.WithLabelValues("schedule", "applied")))
}

func TestActivityWorker_SkipsOwnEvents(t *testing.T) {
	ctx := context.Background()
	store := seededStore()
	b := &fakeBroker{msgs: make(chan []byte, 4)}
	m := metrics.New("test")
	w := NewActivityWorker(b, store, ActivityConfig{Channel: "actions", Origin: "replica-a"}, nil, m)

	evt := messaging.NewActionEvent("confirmation", "conf-1", "Đang xử lý", "Đã xác nhận", "nurse-1", "ok")
	evt.ActorKey = nurse.Key()
	evt.Origin = "replica-a"
	run(t, w, b, encode(t, evt))

	_, ok := store.GetSubmissions(ctx, nurse.Key())
	assert.True(t, ok)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsConsumed.WithLabelValues("confirmation", "own")))
}

func TestActivityWorker_BatchAndMalformedEvents(t *testing.T) {
	ctx := context.Background()
	store := seededStore()
	b := &fakeBroker{msgs: make(chan []byte, 4)}
	m := metrics.New("test")
	w := NewActivityWorker(b, store, ActivityConfig{Channel: "actions"}, nil, m)

	evt := messaging.NewActionEvent("vaccination_batch", "v-1", "Chờ duyệt", "Đã duyệt", "nurse-1", "stock ok")
	evt.Parent = string(model.BatchVaccination)
	evt.ActorKey = nurse.Key()
	run(t, w, b, []byte("{not json"), encode(t, evt))

	_, ok := store.GetBatches(ctx, nurse.Key(), model.BatchVaccination)
	assert.False(t, ok)
	_, ok = store.GetSubmissions(ctx, nurse.Key())
	assert.True(t, ok)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsConsumed.WithLabelValues("unknown", "malformed")))
}

func TestActivityWorker_AnonymousEventKeepsSnapshots(t *testing.T) {
	ctx := context.Background()
	store := seededStore()
	b := &fakeBroker{msgs: make(chan []byte, 1)}
	m := metrics.New("test")
	w := NewActivityWorker(b, store, ActivityConfig{Channel: "actions"}, nil, m)

	evt := messaging.NewActionEvent("confirmation", "conf-1", "Đang xử lý", "Đã xác nhận", "nurse-1", "ok")
	run(t, w, b, encode(t, evt))

	_, ok := store.GetSubmissions(ctx, nurse.Key())
	assert.True(t, ok, "an actor id alone does not select a snapshot")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsConsumed.WithLabelValues("confirmation", "applied")))
}

func TestActivityWorker_WithoutStoreOnlyLogs(t *testing.T) {
	b := &fakeBroker{msgs: make(chan []byte, 1)}
	w := NewActivityWorker(b, nil, ActivityConfig{Channel: "actions"}, nil, nil)

	run(t, w, b, encode(t, messaging.NewActionEvent("submission", "sub-1", "a", "b", "parent-1", "")))
}

func TestActivityWorker_SubscribeFailure(t *testing.T) {
	b := &fakeBroker{subscribeErr: errors.New("connection refused")}
	w := NewActivityWorker(b, nil, ActivityConfig{Channel: "actions"}, nil, nil)

	err := w.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to subscribe")
}

func TestNewActivityWorker_RequiresChannel(t *testing.T) {
	assert.Panics(t, func() {
		NewActivityWorker(&fakeBroker{}, nil, ActivityConfig{}, nil, nil)
	})
}
