package medication

import (
	"context"

	"github.com/jwalitptl/schoolhealth/internal/model"
	"github.com/jwalitptl/schoolhealth/pkg/errors"
	"github.com/jwalitptl/schoolhealth/pkg/imageutil"
)

type ImageOutcome string

const (
	ImageFound  ImageOutcome = "found"
	ImageAbsent ImageOutcome = "absent"
)

// MsgNoEvidence is shown in place of an evidence image that was never uploaded.
const MsgNoEvidence = "no evidence yet"

// ImageResult is a retrieved image or the note that none exists. Absence is not an error.
type ImageResult struct {
	Outcome ImageOutcome `json:"outcome"`
	Message string       `json:"message,omitempty"`
	Image   *model.Image `json:"-"`
}

func (s *Service) GetEvidenceImage(ctx context.Context, actor model.ActorContext, scheduleID string) (*ImageResult, error) {
	if scheduleID == "" {
		return nil, errors.Validation("schedule id is required")
	}
	img, err := s.backend.GetEvidenceImage(ctx, actor, scheduleID)
	return s.imageResult(img, err, MsgNoEvidence, "schedule_id", scheduleID)
}

func (s *Service) GetMedicineImage(ctx context.Context, actor model.ActorContext, submissionID string) (*ImageResult, error) {
	if submissionID == "" {
		return nil, errors.Validation("submission id is required")
	}
	img, err := s.backend.GetMedicineImage(ctx, actor, submissionID)
	return s.imageResult(img, err, "no medicine image was attached", "submission_id", submissionID)
}

// imageResult folds a binary fetch into found, absent, access denied or retrieval failure.
func (s *Service) imageResult(img *model.Image, err error, absentMsg, idField, id string) (*ImageResult, error) {
	switch {
	case err == nil:
		if img.ContentType == "" || img.ContentType == "application/octet-stream" {
			img.ContentType = imageutil.ContentType(img.Data)
		}
		return &ImageResult{Outcome: ImageFound, Image: img}, nil
	case errors.Is(err, errors.ErrNotFound):
		return &ImageResult{Outcome: ImageAbsent, Message: absentMsg}, nil
	case errors.Is(err, errors.ErrForbidden):
		s.logger.Warn().Str(idField, id).Msg("image access denied")
		return nil, errors.Forbidden(errors.MsgAccessDenied, err)
	default:
		s.logger.Error().Err(err).Str(idField, id).Msg("failed to retrieve image")
		return nil, errors.Retrieval(err)
	}
}
