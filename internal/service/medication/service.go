package medication

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/schoolhealth/internal/confirm"
	"github.com/jwalitptl/schoolhealth/internal/model"
	"github.com/jwalitptl/schoolhealth/internal/repository"
	"github.com/jwalitptl/schoolhealth/internal/service/approval"
	"github.com/jwalitptl/schoolhealth/internal/transition"
	"github.com/jwalitptl/schoolhealth/pkg/imageutil"
	"github.com/jwalitptl/schoolhealth/pkg/messaging"
	"github.com/jwalitptl/schoolhealth/pkg/metrics"
	"github.com/jwalitptl/schoolhealth/pkg/validator"
)

type MedicationServicer interface {
	CreateSubmission(ctx context.Context, actor model.ActorContext, req model.CreateSubmissionRequest) (*model.Submission, error)
	ListSubmissions(ctx context.Context, actor model.ActorContext, day time.Time) ([]model.Submission, error)
	ListSchedules(ctx context.Context, actor model.ActorContext, submissionID string) ([]model.ScheduleSlot, error)
	CancelSubmission(ctx context.Context, actor model.ActorContext, submissionID string, confirmer confirm.Confirmer) ([]model.Submission, error)
	UpdateConfirmationStatus(ctx context.Context, actor model.ActorContext, change ConfirmationChange, confirmer confirm.Confirmer) ([]model.Submission, error)
	UpdateScheduleStatus(ctx context.Context, actor model.ActorContext, change ScheduleChange, confirmer confirm.Confirmer) ([]model.ScheduleSlot, error)
	GetEvidenceImage(ctx context.Context, actor model.ActorContext, scheduleID string) (*ImageResult, error)
	GetMedicineImage(ctx context.Context, actor model.ActorContext, submissionID string) (*ImageResult, error)
}

// Config carries the optional collaborators of Service.
type Config struct {
	Validator validator.Validator
	Publisher messaging.Publisher
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
	// MaxImageDimension bounds the longest edge of an attached medicine image.
	MaxImageDimension int
}

type Service struct {
	backend   repository.MedicationBackend
	store     repository.SnapshotStore
	validate  validator.Validator
	publisher messaging.Publisher
	logger    zerolog.Logger
	maxImage  int

	confirmations *approval.Workflow[model.ConfirmationStatus]
	schedules     *approval.Workflow[model.ScheduleStatus]
}

var _ MedicationServicer = (*Service)(nil)

func NewService(backend repository.MedicationBackend, store repository.SnapshotStore, cfg Config) *Service {
	s := &Service{
		backend:   backend,
		store:     store,
		validate:  cfg.Validator,
		publisher: cfg.Publisher,
		logger:    cfg.Logger.With().Str("service", "medication").Logger(),
		maxImage:  cfg.MaxImageDimension,
	}
	if s.validate == nil {
		s.validate = validator.New()
	}
	if s.maxImage == 0 {
		s.maxImage = imageutil.DefaultMaxDimension
	}

	s.confirmations = approval.New(transition.Confirmation,
		approval.Hooks[model.ConfirmationStatus]{
			Current: s.currentConfirmation,
			Mutate:  s.mutateConfirmation,
			Refresh: s.refreshSubmissions,
		},
		approval.WithPublisher[model.ConfirmationStatus](cfg.Publisher),
		approval.WithMetrics[model.ConfirmationStatus](cfg.Metrics),
		approval.WithLogger[model.ConfirmationStatus](s.logger),
	)

	s.schedules = approval.New(transition.Schedule,
		approval.Hooks[model.ScheduleStatus]{
			Current: s.currentSchedule,
			Prepare: s.uploadEvidence,
			Mutate:  s.mutateSchedule,
			Refresh: s.refreshSchedules,
		},
		approval.WithReasonMessage[model.ScheduleStatus]("note is required"),
		approval.WithPrepareStep[model.ScheduleStatus]("evidence upload"),
		approval.WithPublisher[model.ScheduleStatus](cfg.Publisher),
		approval.WithMetrics[model.ScheduleStatus](cfg.Metrics),
		approval.WithLogger[model.ScheduleStatus](s.logger),
	)
	return s
}

// fetchSubmissions re-reads the full list and replaces the snapshot.
func (s *Service) fetchSubmissions(ctx context.Context, actor model.ActorContext) ([]model.Submission, error) {
	subs, err := s.backend.ListSubmissions(ctx, actor)
	if err != nil {
		s.logger.Error().Err(err).Str("actor_id", actor.ActorID).Msg("failed to list submissions")
		return nil, err
	}
	if !actor.Anonymous() {
		s.store.SetSubmissions(ctx, actor.Key(), subs)
	}
	return subs, nil
}

func (s *Service) fetchSchedules(ctx context.Context, actor model.ActorContext, submissionID string) ([]model.ScheduleSlot, error) {
	slots, err := s.backend.ListSchedules(ctx, actor, submissionID)
	if err != nil {
		s.logger.Error().Err(err).Str("submission_id", submissionID).Msg("failed to list schedules")
		return nil, err
	}
	if !actor.Anonymous() {
		s.store.SetSchedules(ctx, actor.Key(), submissionID, slots)
	}
	return slots, nil
}

// snapshotSubmissions serves the last fetched list, fetching it on a miss.
// Anonymous actors have no snapshot and always fetch.
func (s *Service) snapshotSubmissions(ctx context.Context, actor model.ActorContext) ([]model.Submission, error) {
	if actor.Anonymous() {
		return s.fetchSubmissions(ctx, actor)
	}
	if subs, ok := s.store.GetSubmissions(ctx, actor.Key()); ok {
		return subs, nil
	}
	return s.fetchSubmissions(ctx, actor)
}

func (s *Service) snapshotSchedules(ctx context.Context, actor model.ActorContext, submissionID string) ([]model.ScheduleSlot, error) {
	if actor.Anonymous() {
		return s.fetchSchedules(ctx, actor, submissionID)
	}
	if slots, ok := s.store.GetSchedules(ctx, actor.Key(), submissionID); ok {
		return slots, nil
	}
	return s.fetchSchedules(ctx, actor, submissionID)
}
