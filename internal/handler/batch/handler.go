package batch

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/schoolhealth/internal/confirm"
	"github.com/jwalitptl/schoolhealth/internal/handler"
	"github.com/jwalitptl/schoolhealth/internal/middleware"
	"github.com/jwalitptl/schoolhealth/internal/model"
	batchService "github.com/jwalitptl/schoolhealth/internal/service/batch"
	"github.com/jwalitptl/schoolhealth/pkg/errors"
)

type Handler struct {
	service batchService.BatchServicer
	guard   *confirm.TokenGuard
}

func NewHandler(service batchService.BatchServicer, guard *confirm.TokenGuard) *Handler {
	return &Handler{service: service, guard: guard}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	batches := r.Group("/batches/:kind")
	{
		batches.GET("", h.List)
		batches.PUT("/:id/status", h.UpdateStatus)
	}
}

func kindParam(c *gin.Context) (model.BatchKind, bool) {
	kind, err := model.ParseBatchKind(c.Param("kind"))
	if err != nil {
		handler.Fail(c, errors.NotFound("batch kind", err))
		return "", false
	}
	return kind, true
}

func (h *Handler) List(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	batches, err := h.service.List(c.Request.Context(), middleware.ActorFrom(c), kind)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(batches))
}

type updateStatusRequest struct {
	Status model.BatchStatus `json:"status" binding:"required"`
	Reason string            `json:"reason"`
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, errors.BadRequest(err.Error(), err))
		return
	}

	actor := middleware.ActorFrom(c)
	confirmer := h.guard.For(actor.Key(), c.GetHeader(middleware.HeaderConfirmToken))
	batches, err := h.service.UpdateStatus(c.Request.Context(), actor, kind, batchService.Change{
		BatchID: c.Param("id"),
		Status:  req.Status,
		Reason:  req.Reason,
	}, confirmer)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(batches))
}
