// Package batch approves or rejects vaccination and health-check batches through the
// same workflow the medication confirmations use.
package batch

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/schoolhealth/internal/confirm"
	"github.com/jwalitptl/schoolhealth/internal/model"
	"github.com/jwalitptl/schoolhealth/internal/repository"
	"github.com/jwalitptl/schoolhealth/internal/service/approval"
	"github.com/jwalitptl/schoolhealth/internal/transition"
	"github.com/jwalitptl/schoolhealth/pkg/errors"
	"github.com/jwalitptl/schoolhealth/pkg/messaging"
	"github.com/jwalitptl/schoolhealth/pkg/metrics"
)

type BatchServicer interface {
	List(ctx context.Context, actor model.ActorContext, kind model.BatchKind) ([]model.Batch, error)
	UpdateStatus(ctx context.Context, actor model.ActorContext, kind model.BatchKind, change Change, confirmer confirm.Confirmer) ([]model.Batch, error)
}

type Change struct {
	BatchID string            `json:"batchId"`
	Status  model.BatchStatus `json:"status"`
	Reason  string            `json:"reason"`
}

type Config struct {
	Publisher messaging.Publisher
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

type Service struct {
	backend repository.BatchBackend
	store   repository.SnapshotStore
	logger  zerolog.Logger
	flows   map[model.BatchKind]*approval.Workflow[model.BatchStatus]
}

var _ BatchServicer = (*Service)(nil)

func NewService(backend repository.BatchBackend, store repository.SnapshotStore, cfg Config) *Service {
	s := &Service{
		backend: backend,
		store:   store,
		logger:  cfg.Logger.With().Str("service", "batch").Logger(),
		flows:   make(map[model.BatchKind]*approval.Workflow[model.BatchStatus]),
	}
	for _, kind := range []model.BatchKind{model.BatchVaccination, model.BatchHealthCheck} {
		s.flows[kind] = approval.New(transition.Batch,
			approval.Hooks[model.BatchStatus]{
				Current: s.current,
				Mutate:  s.mutate,
				Refresh: s.refresh,
			},
			approval.WithDomain[model.BatchStatus](strings.ReplaceAll(string(kind), "-", "_")+"_batch"),
			approval.WithPublisher[model.BatchStatus](cfg.Publisher),
			approval.WithMetrics[model.BatchStatus](cfg.Metrics),
			approval.WithLogger[model.BatchStatus](s.logger),
		)
	}
	return s
}

func (s *Service) List(ctx context.Context, actor model.ActorContext, kind model.BatchKind) ([]model.Batch, error) {
	if _, ok := s.flows[kind]; !ok {
		return nil, errors.Validation("unknown batch kind " + string(kind))
	}
	return s.fetch(ctx, actor, kind)
}

// UpdateStatus returns the re-read batch list of kind on success.
func (s *Service) UpdateStatus(ctx context.Context, actor model.ActorContext, kind model.BatchKind, change Change, confirmer confirm.Confirmer) ([]model.Batch, error) {
	flow, ok := s.flows[kind]
	if !ok {
		return nil, errors.Validation("unknown batch kind " + string(kind))
	}
	err := flow.Apply(ctx, actor, approval.Change[model.BatchStatus]{
		ID:     change.BatchID,
		Parent: string(kind),
		Target: change.Status,
		Reason: change.Reason,
	}, confirmer)
	if err != nil {
		return nil, err
	}
	batches, err := s.snapshot(ctx, actor, kind)
	if err != nil {
		return nil, errors.AtStep(approval.StepRefresh, err)
	}
	return batches, nil
}

func (s *Service) fetch(ctx context.Context, actor model.ActorContext, kind model.BatchKind) ([]model.Batch, error) {
	batches, err := s.backend.ListBatches(ctx, actor, kind)
	if err != nil {
		s.logger.Error().Err(err).Str("kind", string(kind)).Msg("failed to list batches")
		return nil, err
	}
	if !actor.Anonymous() {
		s.store.SetBatches(ctx, actor.Key(), kind, batches)
	}
	return batches, nil
}

// snapshot serves the list left by the last fetch, re-reading it when the store has none.
func (s *Service) snapshot(ctx context.Context, actor model.ActorContext, kind model.BatchKind) ([]model.Batch, error) {
	if !actor.Anonymous() {
		if batches, ok := s.store.GetBatches(ctx, actor.Key(), kind); ok {
			return batches, nil
		}
	}
	return s.fetch(ctx, actor, kind)
}

func (s *Service) current(ctx context.Context, actor model.ActorContext, change approval.Change[model.BatchStatus]) (model.BatchStatus, error) {
	kind := model.BatchKind(change.Parent)
	if !actor.Anonymous() {
		if batches, ok := s.store.GetBatches(ctx, actor.Key(), kind); ok {
			if b := find(batches, change.ID); b != nil {
				return b.Status, nil
			}
		}
	}
	batches, err := s.fetch(ctx, actor, kind)
	if err != nil {
		return "", err
	}
	if b := find(batches, change.ID); b != nil {
		return b.Status, nil
	}
	return "", errors.NotFound("batch", nil)
}

func (s *Service) mutate(ctx context.Context, actor model.ActorContext, change approval.Change[model.BatchStatus]) error {
	return s.backend.UpdateBatchStatus(ctx, actor, model.BatchKind(change.Parent), change.ID, model.BatchStatusPayload{
		Status:  change.Target,
		NurseID: actor.ActorID,
		Reason:  change.Reason,
	})
}

func (s *Service) refresh(ctx context.Context, actor model.ActorContext, change approval.Change[model.BatchStatus]) error {
	kind := model.BatchKind(change.Parent)
	s.store.InvalidateBatches(ctx, actor.Key(), kind)
	_, err := s.fetch(ctx, actor, kind)
	return err
}

func find(batches []model.Batch, id string) *model.Batch {
	for i := range batches {
		if batches[i].ID == id {
			return &batches[i]
		}
	}
	return nil
}
