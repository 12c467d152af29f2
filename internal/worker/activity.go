package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/schoolhealth/internal/model"
	"github.com/jwalitptl/schoolhealth/internal/repository"
	"github.com/jwalitptl/schoolhealth/pkg/logger"
	"github.com/jwalitptl/schoolhealth/pkg/messaging"
	"github.com/jwalitptl/schoolhealth/pkg/metrics"
)

type ActivityConfig struct {
	Channel string
	// Origin is this process's id. Events it published itself are skipped.
	Origin string
}

// ActivityWorker consumes action events published by BFF replicas. Each event is logged and,
// when a store is set, the snapshots it made stale are dropped.
type ActivityWorker struct {
	broker  messaging.Broker
	store   repository.SnapshotStore
	config  ActivityConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewActivityWorker(
	broker messaging.Broker,
	store repository.SnapshotStore,
	config ActivityConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) *ActivityWorker {
	if config.Channel == "" {
		panic("Channel must not be empty")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ActivityWorker{
		broker:  broker,
		store:   store,
		config:  config,
		logger:  log.WithFields(map[string]interface{}{"worker": "activity", "origin": config.Origin}),
		metrics: m,
	}
}

// InstanceID names the running process in published events.
func InstanceID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8])
}

// Start blocks until ctx is done or the subscription closes.
func (w *ActivityWorker) Start(ctx context.Context) error {
	msgs, err := w.broker.Subscribe(ctx, w.config.Channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to activity channel: %w", err)
	}

	w.logger.Info("Starting activity worker", "channel", w.config.Channel)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Shutting down activity worker")
			return nil
		case raw, ok := <-msgs:
			if !ok {
				w.logger.Warn("Activity subscription closed")
				return nil
			}
			w.handle(ctx, raw)
		}
	}
}

func (w *ActivityWorker) handle(ctx context.Context, raw []byte) {
	var evt messaging.ActionEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		w.logger.Error(err, "Failed to decode activity event")
		w.count("unknown", "malformed")
		return
	}

	if w.config.Origin != "" && evt.Origin == w.config.Origin {
		w.count(evt.Domain, "own")
		return
	}

	w.logger.Info("Activity",
		"event_id", evt.ID.String(),
		"domain", evt.Domain,
		"entity_id", evt.EntityID,
		"from", evt.From,
		"to", evt.To,
		"actor_id", evt.ActorID,
	)

	w.invalidate(ctx, evt)
	w.count(evt.Domain, "applied")
	if w.metrics != nil && !evt.CreatedAt.IsZero() {
		w.metrics.EventLatency.WithLabelValues(evt.Domain).Observe(time.Since(evt.CreatedAt).Seconds())
	}
}

func (w *ActivityWorker) invalidate(ctx context.Context, evt messaging.ActionEvent) {
	key := evt.ActorKey
	if w.store == nil || key == "" {
		return
	}

	switch {
	case evt.Domain == "submission":
		w.store.InvalidateSubmissions(ctx, key)
		w.store.InvalidateSchedules(ctx, key, evt.EntityID)
	case evt.Domain == "confirmation":
		w.store.InvalidateSubmissions(ctx, key)
	case evt.Domain == "schedule":
		w.store.InvalidateSubmissions(ctx, key)
		if evt.Parent != "" {
			w.store.InvalidateSchedules(ctx, key, evt.Parent)
		}
	case strings.HasSuffix(evt.Domain, "_batch") && evt.Parent != "":
		w.store.InvalidateBatches(ctx, key, model.BatchKind(evt.Parent))
	}
}

func (w *ActivityWorker) count(domain, outcome string) {
	if w.metrics == nil {
		return
	}
	w.metrics.EventsConsumed.WithLabelValues(domain, outcome).Inc()
}
