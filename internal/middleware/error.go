package middleware

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/schoolhealth/pkg/errors"
)

// HeaderConfirmToken carries the token issued by a confirmation-required response.
const HeaderConfirmToken = "X-Confirm-Token"

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Status       string `json:"status"`
	Code         int    `json:"code"`
	Message      string `json:"message"`
	Step         string `json:"step,omitempty"`
	ConfirmToken string `json:"confirm_token,omitempty"`
	TraceID      string `json:"trace_id,omitempty"`
}

// ErrorHandler renders the last error a handler attached with c.Error.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		traceID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("request_id", traceID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Msg("Request error")
		}

		c.JSON(NewErrorResponse(c.Errors.Last().Err, traceID))
	}
}

// NewErrorResponse maps err to a status code and body.
func NewErrorResponse(err error, traceID string) (int, ErrorResponse) {
	resp := ErrorResponse{Status: "error", TraceID: traceID}

	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		resp.Code = http.StatusInternalServerError
		resp.Message = "internal server error"
		return resp.Code, resp
	}

	resp.Code = appErr.StatusCode()
	resp.Message = appErr.Message
	resp.Step = appErr.Step
	resp.ConfirmToken = appErr.Token
	return resp.Code, resp
}
