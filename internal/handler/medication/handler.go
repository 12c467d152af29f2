package medication

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/schoolhealth/internal/confirm"
	"github.com/jwalitptl/schoolhealth/internal/handler"
	"github.com/jwalitptl/schoolhealth/internal/middleware"
	"github.com/jwalitptl/schoolhealth/internal/model"
	medicationService "github.com/jwalitptl/schoolhealth/internal/service/medication"
	"github.com/jwalitptl/schoolhealth/pkg/errors"
)

const dayLayout = "2006-01-02"

type Handler struct {
	service  medicationService.MedicationServicer
	guard    *confirm.TokenGuard
	location *time.Location
}

// NewHandler serves the medication screens. Days in ?day= are read in loc.
func NewHandler(service medicationService.MedicationServicer, guard *confirm.TokenGuard, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{service: service, guard: guard, location: loc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	submissions := r.Group("/submissions")
	{
		submissions.GET("", h.ListSubmissions)
		submissions.POST("", h.CreateSubmission)
		submissions.POST("/:id/cancel", h.CancelSubmission)
		submissions.GET("/:id/schedules", h.ListSchedules)
		submissions.GET("/:id/image", h.GetMedicineImage)
	}

	r.PUT("/confirmations/:id/status", h.UpdateConfirmationStatus)

	schedules := r.Group("/schedules")
	{
		schedules.PUT("/:id/status", h.UpdateScheduleStatus)
		schedules.GET("/:id/evidence", h.GetEvidenceImage)
	}
}

func (h *Handler) confirmer(c *gin.Context, actor model.ActorContext) confirm.Confirmer {
	return h.guard.For(actor.Key(), c.GetHeader(middleware.HeaderConfirmToken))
}

func (h *Handler) ListSubmissions(c *gin.Context) {
	var day time.Time
	if v := c.Query("day"); v != "" {
		parsed, err := time.ParseInLocation(dayLayout, v, h.location)
		if err != nil {
			handler.Fail(c, errors.BadRequest("day must be formatted as YYYY-MM-DD", err))
			return
		}
		day = parsed
	}

	subs, err := h.service.ListSubmissions(c.Request.Context(), middleware.ActorFrom(c), day)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(subs))
}

// CreateSubmission accepts JSON, or multipart with the JSON in "payload" and the
// medicine picture in "image".
func (h *Handler) CreateSubmission(c *gin.Context) {
	var req model.CreateSubmissionRequest

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := json.Unmarshal([]byte(c.PostForm("payload")), &req); err != nil {
			handler.Fail(c, errors.BadRequest("payload must be a JSON submission", err))
			return
		}
		if fh, err := c.FormFile("image"); err == nil {
			data, err := readFile(fh)
			if err != nil {
				handler.Fail(c, errors.BadRequest("failed to read image", err))
				return
			}
			if len(req.Details) > 0 {
				req.Details[0].Image = data
			}
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, errors.BadRequest(err.Error(), err))
		return
	}

	actor := middleware.ActorFrom(c)
	if req.ParentID == "" && actor.Role == model.RoleParent {
		req.ParentID = actor.ActorID
	}

	sub, err := h.service.CreateSubmission(c.Request.Context(), actor, req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(sub))
}

func (h *Handler) CancelSubmission(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	subs, err := h.service.CancelSubmission(c.Request.Context(), actor, c.Param("id"), h.confirmer(c, actor))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(subs))
}

func (h *Handler) ListSchedules(c *gin.Context) {
	slots, err := h.service.ListSchedules(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(slots))
}

type confirmationStatusRequest struct {
	Status model.ConfirmationStatus `json:"status" binding:"required"`
	Reason string                   `json:"reason"`
}

func (h *Handler) UpdateConfirmationStatus(c *gin.Context) {
	var req confirmationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, errors.BadRequest(err.Error(), err))
		return
	}

	actor := middleware.ActorFrom(c)
	subs, err := h.service.UpdateConfirmationStatus(c.Request.Context(), actor, medicationService.ConfirmationChange{
		ConfirmID: c.Param("id"),
		Status:    req.Status,
		Reason:    req.Reason,
	}, h.confirmer(c, actor))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(subs))
}

type scheduleStatusRequest struct {
	SubmissionID string               `json:"submissionId" binding:"required"`
	Status       model.ScheduleStatus `json:"status" binding:"required"`
	NoteSchedule string               `json:"noteSchedule"`
}

// UpdateScheduleStatus accepts JSON, or multipart with an "evidence" file.
func (h *Handler) UpdateScheduleStatus(c *gin.Context) {
	var (
		req      scheduleStatusRequest
		evidence *model.Evidence
	)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		status, err := model.ParseScheduleStatus(c.PostForm("status"))
		if err != nil {
			handler.Fail(c, errors.BadRequest(err.Error(), err))
			return
		}
		req = scheduleStatusRequest{
			SubmissionID: c.PostForm("submissionId"),
			Status:       status,
			NoteSchedule: c.PostForm("noteSchedule"),
		}
		if fh, err := c.FormFile("evidence"); err == nil {
			data, err := readFile(fh)
			if err != nil {
				handler.Fail(c, errors.BadRequest("failed to read evidence", err))
				return
			}
			evidence = &model.Evidence{Filename: fh.Filename, Data: data}
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, errors.BadRequest(err.Error(), err))
		return
	}

	actor := middleware.ActorFrom(c)
	slots, err := h.service.UpdateScheduleStatus(c.Request.Context(), actor, medicationService.ScheduleChange{
		SubmissionID: req.SubmissionID,
		ScheduleID:   c.Param("id"),
		Status:       req.Status,
		Note:         req.NoteSchedule,
		Evidence:     evidence,
	}, h.confirmer(c, actor))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(slots))
}

func (h *Handler) GetEvidenceImage(c *gin.Context) {
	res, err := h.service.GetEvidenceImage(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	writeImage(c, res, err)
}

func (h *Handler) GetMedicineImage(c *gin.Context) {
	res, err := h.service.GetMedicineImage(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	writeImage(c, res, err)
}

// writeImage streams a found image and answers an absent one with an informative body.
func writeImage(c *gin.Context, res *medicationService.ImageResult, err error) {
	if err != nil {
		handler.Fail(c, err)
		return
	}
	if res.Outcome == medicationService.ImageAbsent {
		c.JSON(http.StatusOK, handler.NewInfoResponse(res.Message, res))
		return
	}
	c.Data(http.StatusOK, res.Image.ContentType, res.Image.Data)
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
