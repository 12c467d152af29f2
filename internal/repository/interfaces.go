package repository

import (
	"context"
	"time"

	"github.com/jwalitptl/schoolhealth/internal/model"
)

// MedicationBackend is the remote school-health API for medication submissions.
// The backend owns every record; implementations never retry.
type MedicationBackend interface {
	SubmitSubmission(ctx context.Context, actor model.ActorContext, payload model.SubmitPayload) (*model.Submission, error)
	ListSubmissions(ctx context.Context, actor model.ActorContext) ([]model.Submission, error)
	ListSchedules(ctx context.Context, actor model.ActorContext, submissionID string) ([]model.ScheduleSlot, error)
	CancelSubmission(ctx context.Context, actor model.ActorContext, submissionID string) error
	UpdateConfirmationStatus(ctx context.Context, actor model.ActorContext, confirmID string, payload model.ConfirmationStatusPayload) error
	UpdateScheduleStatus(ctx context.Context, actor model.ActorContext, scheduleID string, payload model.ScheduleStatusPayload) error
	UploadEvidence(ctx context.Context, actor model.ActorContext, scheduleID string, evidence model.Evidence) error
	GetEvidenceImage(ctx context.Context, actor model.ActorContext, scheduleID string) (*model.Image, error)
	GetMedicineImage(ctx context.Context, actor model.ActorContext, submissionID string) (*model.Image, error)
}

// BatchBackend is the remote API for vaccination and health-check batch approvals.
type BatchBackend interface {
	ListBatches(ctx context.Context, actor model.ActorContext, kind model.BatchKind) ([]model.Batch, error)
	UpdateBatchStatus(ctx context.Context, actor model.ActorContext, kind model.BatchKind, batchID string, payload model.BatchStatusPayload) error
}

// SnapshotStore keeps the last fetched copy of an aggregate. Entries are advisory and are
// invalidated after every mutation.
type SnapshotStore interface {
	GetSubmissions(ctx context.Context, actorKey string) ([]model.Submission, bool)
	SetSubmissions(ctx context.Context, actorKey string, submissions []model.Submission)
	InvalidateSubmissions(ctx context.Context, actorKey string)

	GetSchedules(ctx context.Context, actorKey, submissionID string) ([]model.ScheduleSlot, bool)
	SetSchedules(ctx context.Context, actorKey, submissionID string, slots []model.ScheduleSlot)
	InvalidateSchedules(ctx context.Context, actorKey, submissionID string)

	GetBatches(ctx context.Context, actorKey string, kind model.BatchKind) ([]model.Batch, bool)
	SetBatches(ctx context.Context, actorKey string, kind model.BatchKind, batches []model.Batch)
	InvalidateBatches(ctx context.Context, actorKey string, kind model.BatchKind)

	Ping(ctx context.Context) error
}

type SnapshotConfig struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}
