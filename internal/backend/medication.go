package backend

import (
	"context"
	"net/http"

	"github.com/jwalitptl/schoolhealth/internal/model"
	"github.com/jwalitptl/schoolhealth/internal/repository"
)

const (
	pathSubmit          = "/medication-submission/submit"
	pathSubmissionsInfo = "/medication-submission/submissions-info"
	pathCancel          = "/medication-submission/submissions/cancel"
)

var _ repository.MedicationBackend = (*Client)(nil)

func (c *Client) SubmitSubmission(ctx context.Context, actor model.ActorContext, payload model.SubmitPayload) (*model.Submission, error) {
	var out model.Submission
	if err := c.doJSON(ctx, actor, "submit_submission", http.MethodPost, pathSubmit, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListSubmissions(ctx context.Context, actor model.ActorContext) ([]model.Submission, error) {
	var out []model.Submission
	if err := c.doJSON(ctx, actor, "list_submissions", http.MethodGet, pathSubmissionsInfo, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListSchedules(ctx context.Context, actor model.ActorContext, submissionID string) ([]model.ScheduleSlot, error) {
	var out []model.ScheduleSlot
	path := "/medication-submission/submissions/" + escape(submissionID) + "/details"
	if err := c.doJSON(ctx, actor, "list_schedules", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].SubmissionID == "" {
			out[i].SubmissionID = submissionID
		}
	}
	return out, nil
}

func (c *Client) CancelSubmission(ctx context.Context, actor model.ActorContext, submissionID string) error {
	return c.doJSON(ctx, actor, "cancel_submission", http.MethodPost, pathCancel,
		model.CancelSubmissionPayload{SubmissionID: submissionID}, nil)
}

func (c *Client) UpdateConfirmationStatus(ctx context.Context, actor model.ActorContext, confirmID string, payload model.ConfirmationStatusPayload) error {
	path := "/medication-confirmations/" + escape(confirmID) + "/status"
	return c.doJSON(ctx, actor, "update_confirmation", http.MethodPut, path, payload, nil)
}

func (c *Client) UpdateScheduleStatus(ctx context.Context, actor model.ActorContext, scheduleID string, payload model.ScheduleStatusPayload) error {
	path := "/medication-submission/schedules/" + escape(scheduleID) + "/status"
	return c.doJSON(ctx, actor, "update_schedule", http.MethodPut, path, payload, nil)
}

func (c *Client) UploadEvidence(ctx context.Context, actor model.ActorContext, scheduleID string, evidence model.Evidence) error {
	path := "/medication-submission/schedules/" + escape(scheduleID) + "/evidence"
	return c.doMultipart(ctx, actor, "upload_evidence", path, "file", evidence)
}

func (c *Client) GetEvidenceImage(ctx context.Context, actor model.ActorContext, scheduleID string) (*model.Image, error) {
	return c.doBinary(ctx, actor, "get_evidence", "/medication-submission/schedules/"+escape(scheduleID)+"/evidence")
}

func (c *Client) GetMedicineImage(ctx context.Context, actor model.ActorContext, submissionID string) (*model.Image, error) {
	return c.doBinary(ctx, actor, "get_medicine_image", "/medication-submission/submissions/"+escape(submissionID)+"/image")
}
