package medication

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/schoolhealth/internal/confirm"
	"github.com/jwalitptl/schoolhealth/internal/model"
	"github.com/jwalitptl/schoolhealth/pkg/errors"
	"github.com/jwalitptl/schoolhealth/pkg/imageutil"
	"github.com/jwalitptl/schoolhealth/pkg/messaging"
)

// CreateSubmission validates every detail locally and submits them in one call.
// A submission with any invalid detail is refused whole.
func (s *Service) CreateSubmission(ctx context.Context, actor model.ActorContext, req model.CreateSubmissionRequest) (*model.Submission, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, errors.Validation(err.Error())
	}
	if len(req.Details) == 0 {
		return nil, errors.Validation(errors.MsgFillDrugDetails)
	}

	details := make([]model.MedicationDetail, 0, len(req.Details))
	var firstErr error
	for i, in := range req.Details {
		if err := s.validate.Validate(in); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("medication %d: %w", i+1, err)
			}
			continue
		}
		details = append(details, model.MedicationDetail{
			MedicineName:  strings.TrimSpace(in.MedicineName),
			Dosage:        strings.TrimSpace(in.Dosage),
			TimeToUseList: in.TimeToUseList,
			Note:          in.Note,
		})
	}
	if len(details) == 0 {
		return nil, errors.Validation(errors.MsgFillDrugDetails)
	}
	if firstErr != nil {
		return nil, errors.Validation(firstErr.Error())
	}

	if img := req.Details[0].Image; len(img) > 0 {
		encoded, err := imageutil.EncodeBase64(img, s.maxImage)
		if err != nil {
			return nil, errors.Validation(fmt.Sprintf("medicine image: %v", err))
		}
		details[0].MedicineImage = encoded
	}

	sub, err := s.backend.SubmitSubmission(ctx, actor, model.SubmitPayload{
		ParentID:          req.ParentID,
		StudentID:         req.StudentID,
		MedicationDetails: details,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("student_id", req.StudentID).Msg("failed to submit medication")
		return nil, err
	}

	s.store.InvalidateSubmissions(ctx, actor.Key())
	s.logger.Info().Str("submission_id", sub.ID).Int("details", len(details)).Msg("medication submitted")
	return sub, nil
}

// ListSubmissions fetches the submission list and keeps those submitted on day.
// A zero day returns everything.
func (s *Service) ListSubmissions(ctx context.Context, actor model.ActorContext, day time.Time) ([]model.Submission, error) {
	subs, err := s.fetchSubmissions(ctx, actor)
	if err != nil {
		return nil, err
	}
	return filterDay(subs, day), nil
}

func (s *Service) ListSchedules(ctx context.Context, actor model.ActorContext, submissionID string) ([]model.ScheduleSlot, error) {
	if strings.TrimSpace(submissionID) == "" {
		return nil, errors.Validation("submission id is required")
	}
	return s.fetchSchedules(ctx, actor, submissionID)
}

// CancelSubmission withdraws a submission no nurse has acted on yet.
func (s *Service) CancelSubmission(ctx context.Context, actor model.ActorContext, submissionID string, confirmer confirm.Confirmer) ([]model.Submission, error) {
	if strings.TrimSpace(submissionID) == "" {
		return nil, errors.Validation("submission id is required")
	}

	sub, err := s.findSubmission(ctx, actor, func(sub *model.Submission) bool { return sub.ID == submissionID })
	if err != nil {
		return nil, err
	}
	if sub.NurseActed() {
		return nil, errors.Validation("a nurse has already acted on this submission, it can no longer be cancelled")
	}
	// Slots appear once the backend accepts the submission, so none yet is not an error.
	slots, err := s.snapshotSchedules(ctx, actor, submissionID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	for _, slot := range slots {
		if slot.Status != model.ScheduleAwaitingPickup {
			return nil, errors.Validation("a nurse has already acted on this submission, it can no longer be cancelled")
		}
	}

	if confirmer == nil {
		confirmer = confirm.Deny
	}
	if err := confirmer.Confirm(ctx, confirm.Prompt{
		Action:  "cancel submission",
		Subject: "submission " + submissionID,
		Message: fmt.Sprintf("Cancelling submission %s cannot be undone.", submissionID),
	}); err != nil {
		return nil, err
	}

	if err := s.backend.CancelSubmission(ctx, actor, submissionID); err != nil {
		s.logger.Error().Err(err).Str("submission_id", submissionID).Msg("failed to cancel submission")
		return nil, err
	}

	if s.publisher != nil {
		evt := messaging.NewActionEvent("submission", submissionID, sub.DisplayStatus().String(),
			model.ConfirmationCancelled.String(), actor.ActorID, "cancelled by parent")
		evt.Parent = submissionID
		evt.ActorKey = actor.Key()
		if err := s.publisher.PublishAction(ctx, evt); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish action event")
		}
	}

	s.store.InvalidateSubmissions(ctx, actor.Key())
	s.store.InvalidateSchedules(ctx, actor.Key(), submissionID)
	subs, err := s.fetchSubmissions(ctx, actor)
	if err != nil {
		return nil, errors.AtStep("reload", err)
	}
	return subs, nil
}

// findSubmission looks in the snapshot first and re-reads the list once on a miss.
func (s *Service) findSubmission(ctx context.Context, actor model.ActorContext, match func(*model.Submission) bool) (*model.Submission, error) {
	subs, err := s.snapshotSubmissions(ctx, actor)
	if err != nil {
		return nil, err
	}
	if sub := pick(subs, match); sub != nil {
		return sub, nil
	}
	if subs, err = s.fetchSubmissions(ctx, actor); err != nil {
		return nil, err
	}
	if sub := pick(subs, match); sub != nil {
		return sub, nil
	}
	return nil, errors.NotFound("submission", nil)
}

func pick(subs []model.Submission, match func(*model.Submission) bool) *model.Submission {
	for i := range subs {
		if match(&subs[i]) {
			return &subs[i]
		}
	}
	return nil
}

func filterDay(subs []model.Submission, day time.Time) []model.Submission {
	if day.IsZero() {
		return subs
	}
	out := make([]model.Submission, 0, len(subs))
	for _, sub := range subs {
		if model.SameDay(sub.SubmissionDate, day) {
			out = append(out, sub)
		}
	}
	return out
}
