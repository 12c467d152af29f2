package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/schoolhealth/internal/model"
	"github.com/jwalitptl/schoolhealth/pkg/circuitbreaker"
	"github.com/jwalitptl/schoolhealth/pkg/errors"
)

var nurse = model.ActorContext{ActorID: "nurse-1", Role: model.RoleNurse, Token: "tok"}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "not a url"}, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestListSubmissions_DecodesEnvelopeAndBearer(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/medication-submission/submissions-info", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":[{"id":"s-1","studentId":"st-1","parentId":"p-1",
			"submissionDate":"2026-10-18T07:30:00Z",
			"medicationDetails":[{"medicineName":"Paracetamol","dosage":"1 viên","timeToUseList":["Sáng"]}],
			"confirmation":{"confirmId":"c-1","status":"Đã hoàn thành","reason":"ok"}}]}`)
	}))

	subs, err := c.ListSubmissions(context.Background(), nurse)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "s-1", subs[0].ID)
	assert.Equal(t, model.ConfirmationCompleted, subs[0].DisplayStatus())
	assert.Equal(t, []model.TimeOfDay{model.Morning}, subs[0].MedicationDetails[0].TimeToUseList)
}

func TestListSchedules_BareArray(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/medication-submission/submissions/s-1/details", r.URL.Path)
		io.WriteString(w, `[{"medicationScheduleId":"m-1","timeToUse":"Trưa","status":"Chờ nhận thuốc"}]`)
	}))

	slots, err := c.ListSchedules(context.Background(), nurse, "s-1")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, model.ScheduleAwaitingPickup, slots[0].Status)
	assert.Equal(t, "s-1", slots[0].SubmissionID)
}

func TestAnonymousRequestHasNoAuthorization(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		io.WriteString(w, `[]`)
	}))

	_, err := c.ListSubmissions(context.Background(), model.ActorContext{})
	assert.NoError(t, err)
}

func TestUpdateScheduleStatus_Payload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/medication-submission/schedules/m-1/status", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Đã phát thuốc", body["status"])
		assert.Equal(t, "given at 08:00", body["noteSchedule"])
		w.WriteHeader(http.StatusNoContent)
	}))

	err := c.UpdateScheduleStatus(context.Background(), nurse, "m-1", model.ScheduleStatusPayload{
		Status:       model.ScheduleDispensed,
		NoteSchedule: "given at 08:00",
	})
	assert.NoError(t, err)
}

func TestUploadEvidence_Multipart(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/medication-submission/schedules/m-1/evidence", r.URL.Path)
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "proof.png", hdr.Filename)
		assert.Equal(t, []byte("png-bytes"), data)
		w.WriteHeader(http.StatusCreated)
	}))

	err := c.UploadEvidence(context.Background(), nurse, "m-1", model.Evidence{Filename: "proof.png", Data: []byte("png-bytes")})
	assert.NoError(t, err)
}

func TestServerErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode errors.ErrorCode
		wantMsg  string
	}{
		{name: "message_verbatim", status: http.StatusBadRequest, body: `{"message":"Đơn thuốc đã bị hủy"}`, wantCode: errors.ErrServer, wantMsg: "Đơn thuốc đã bị hủy"},
		{name: "error_field", status: http.StatusConflict, body: `{"error":"stale"}`, wantCode: errors.ErrServer, wantMsg: "stale"},
		{name: "fallback_by_status", status: http.StatusInternalServerError, body: `oops`, wantCode: errors.ErrServer, wantMsg: "the server failed to process the request"},
		{name: "not_found", status: http.StatusNotFound, body: ``, wantCode: errors.ErrNotFound},
		{name: "forbidden", status: http.StatusForbidden, body: ``, wantCode: errors.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))

			err := c.CancelSubmission(context.Background(), nurse, "s-1")
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.CodeOf(err))
			var appErr *errors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.status, appErr.Status)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, appErr.Message)
			}
		})
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: url, Timeout: time.Second}, nil, zerolog.Nop())
	require.NoError(t, err)

	_, err = c.ListSubmissions(context.Background(), nurse)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTransport))
	assert.Contains(t, err.Error(), errors.MsgCannotReachServer)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(Config{
		BaseURL: srv.URL,
		Breaker: circuitbreaker.Settings{Name: "test", MaxRequests: 1, Timeout: time.Minute, ConsecutiveFailures: 2},
	}, nil, zerolog.Nop())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := c.ListSubmissions(context.Background(), nurse)
		assert.True(t, errors.Is(err, errors.ErrServer))
	}
	_, err = c.ListSubmissions(context.Background(), nurse)
	assert.True(t, errors.Is(err, errors.ErrTransport))
	assert.Equal(t, 2, calls, "open breaker must not reach the server")
	assert.Error(t, c.Ping(context.Background()))
}

func TestBatchEndpoints(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health-check-batches":
			io.WriteString(w, `[{"id":"b-1","name":"Khám định kỳ","status":"Chờ duyệt"}]`)
		case "/health-check-batches/b-1/status":
			assert.Equal(t, http.MethodPut, r.Method)
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	batches, err := c.ListBatches(context.Background(), nurse, model.BatchHealthCheck)
	require.NoError(t, err)
	assert.Equal(t, model.BatchPending, batches[0].Status)

	err = c.UpdateBatchStatus(context.Background(), nurse, model.BatchHealthCheck, "b-1", model.BatchStatusPayload{Status: model.BatchApproved, Reason: "ok"})
	assert.NoError(t, err)

	_, err = c.ListBatches(context.Background(), nurse, model.BatchKind("dental"))
	assert.Error(t, err)
}

func TestGetEvidenceImage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))

	img, err := c.GetEvidenceImage(context.Background(), nurse, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Len(t, img.Data, 4)
}
