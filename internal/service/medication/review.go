package medication

import (
	"context"

	"github.com/jwalitptl/schoolhealth/internal/confirm"
	"github.com/jwalitptl/schoolhealth/internal/model"
	"github.com/jwalitptl/schoolhealth/internal/service/approval"
	"github.com/jwalitptl/schoolhealth/pkg/errors"
	"github.com/jwalitptl/schoolhealth/pkg/imageutil"
)

// ConfirmationChange is a nurse's disposition of a whole submission.
type ConfirmationChange struct {
	ConfirmID string                   `json:"confirmId"`
	Status    model.ConfirmationStatus `json:"status"`
	Reason    string                   `json:"reason"`
}

// ScheduleChange is a nurse's action on one schedule slot.
type ScheduleChange struct {
	SubmissionID string               `json:"submissionId"`
	ScheduleID   string               `json:"scheduleId"`
	Status       model.ScheduleStatus `json:"status"`
	Note         string               `json:"noteSchedule"`
	Evidence     *model.Evidence      `json:"-"`
}

// UpdateConfirmationStatus returns the re-read submission list on success.
func (s *Service) UpdateConfirmationStatus(ctx context.Context, actor model.ActorContext, change ConfirmationChange, confirmer confirm.Confirmer) ([]model.Submission, error) {
	err := s.confirmations.Apply(ctx, actor, approval.Change[model.ConfirmationStatus]{
		ID:     change.ConfirmID,
		Target: change.Status,
		Reason: change.Reason,
	}, confirmer)
	if err != nil {
		return nil, err
	}
	subs, err := s.snapshotSubmissions(ctx, actor)
	if err != nil {
		return nil, errors.AtStep(approval.StepRefresh, err)
	}
	return subs, nil
}

// UpdateScheduleStatus uploads any queued evidence, then sets the slot status and
// returns the re-read slots of the owning submission.
func (s *Service) UpdateScheduleStatus(ctx context.Context, actor model.ActorContext, change ScheduleChange, confirmer confirm.Confirmer) ([]model.ScheduleSlot, error) {
	if change.SubmissionID == "" {
		return nil, errors.Validation("submission id is required")
	}
	if change.Evidence != nil {
		if _, err := imageutil.DetectImage(change.Evidence.Data); err != nil {
			return nil, errors.Validation("evidence: " + err.Error())
		}
	}

	err := s.schedules.Apply(ctx, actor, approval.Change[model.ScheduleStatus]{
		ID:       change.ScheduleID,
		Parent:   change.SubmissionID,
		Target:   change.Status,
		Reason:   change.Note,
		Evidence: change.Evidence,
	}, confirmer)
	if err != nil {
		return nil, err
	}
	slots, err := s.snapshotSchedules(ctx, actor, change.SubmissionID)
	if err != nil {
		return nil, errors.AtStep(approval.StepRefresh, err)
	}
	return slots, nil
}

func (s *Service) currentConfirmation(ctx context.Context, actor model.ActorContext, change approval.Change[model.ConfirmationStatus]) (model.ConfirmationStatus, error) {
	sub, err := s.findSubmission(ctx, actor, func(sub *model.Submission) bool {
		return sub.Confirmation != nil && sub.Confirmation.ConfirmID == change.ID
	})
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return "", errors.NotFound("confirmation", nil)
		}
		return "", err
	}
	return sub.DisplayStatus(), nil
}

func (s *Service) mutateConfirmation(ctx context.Context, actor model.ActorContext, change approval.Change[model.ConfirmationStatus]) error {
	return s.backend.UpdateConfirmationStatus(ctx, actor, change.ID, model.ConfirmationStatusPayload{
		Status:  change.Target,
		NurseID: actor.ActorID,
		Reason:  change.Reason,
	})
}

// refreshSubmissions re-reads the whole list: a confirmation change may cascade into slots.
func (s *Service) refreshSubmissions(ctx context.Context, actor model.ActorContext, _ approval.Change[model.ConfirmationStatus]) error {
	s.store.InvalidateSubmissions(ctx, actor.Key())
	_, err := s.fetchSubmissions(ctx, actor)
	return err
}

// currentSchedule finds the slot in the owning submission's snapshot, re-reading once on a miss.
func (s *Service) currentSchedule(ctx context.Context, actor model.ActorContext, change approval.Change[model.ScheduleStatus]) (model.ScheduleStatus, error) {
	slots, err := s.snapshotSchedules(ctx, actor, change.Parent)
	if err != nil {
		return "", err
	}
	if slot := findSlot(slots, change.ID); slot != nil {
		return slot.Status, nil
	}
	if slots, err = s.fetchSchedules(ctx, actor, change.Parent); err != nil {
		return "", err
	}
	if slot := findSlot(slots, change.ID); slot != nil {
		return slot.Status, nil
	}
	return "", errors.NotFound("schedule", nil)
}

func findSlot(slots []model.ScheduleSlot, scheduleID string) *model.ScheduleSlot {
	for i := range slots {
		if slots[i].MedicationScheduleID == scheduleID {
			return &slots[i]
		}
	}
	return nil
}

func (s *Service) uploadEvidence(ctx context.Context, actor model.ActorContext, change approval.Change[model.ScheduleStatus]) error {
	if change.Evidence == nil {
		return nil
	}
	if err := s.backend.UploadEvidence(ctx, actor, change.ID, *change.Evidence); err != nil {
		s.logger.Error().Err(err).Str("schedule_id", change.ID).Msg("failed to upload evidence")
		return err
	}
	return nil
}

func (s *Service) mutateSchedule(ctx context.Context, actor model.ActorContext, change approval.Change[model.ScheduleStatus]) error {
	return s.backend.UpdateScheduleStatus(ctx, actor, change.ID, model.ScheduleStatusPayload{
		Status:       change.Target,
		NoteSchedule: change.Reason,
	})
}

func (s *Service) refreshSchedules(ctx context.Context, actor model.ActorContext, change approval.Change[model.ScheduleStatus]) error {
	s.store.InvalidateSchedules(ctx, actor.Key(), change.Parent)
	_, err := s.fetchSchedules(ctx, actor, change.Parent)
	return err
}
