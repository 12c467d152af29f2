package router

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/schoolhealth/internal/backend"
	"github.com/jwalitptl/schoolhealth/internal/cache"
	"github.com/jwalitptl/schoolhealth/internal/confirm"
	batchHandler "github.com/jwalitptl/schoolhealth/internal/handler/batch"
	"github.com/jwalitptl/schoolhealth/internal/handler/health"
	medicationHandler "github.com/jwalitptl/schoolhealth/internal/handler/medication"
	"github.com/jwalitptl/schoolhealth/internal/handler/prometheus"
	"github.com/jwalitptl/schoolhealth/internal/middleware"
	"github.com/jwalitptl/schoolhealth/internal/repository"
	batchService "github.com/jwalitptl/schoolhealth/internal/service/batch"
	medicationService "github.com/jwalitptl/schoolhealth/internal/service/medication"
)

// fakeBackend is a stateful stand-in for the school-health API.
type fakeBackend struct {
	mu            sync.Mutex
	confirmations map[string]string
	slots         map[string]string
	evidence      map[string][]byte
	mutations     []string
	authHeaders   []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		confirmations: map[string]string{"c-1": "Đang xử lí", "c-2": "Đã hoàn thành"},
		slots:         map[string]string{"m-1": "Chờ nhận thuốc", "m-2": "Đã phát thuốc"},
		evidence:      map[string][]byte{},
	}
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && path == "/medication-submission/submissions-info":
		writeJSON(w, map[string]interface{}{"data": []map[string]interface{}{
			{
				"id": "s-1", "studentId": "st-1", "parentId": "p-1",
				"submissionDate":    "2026-10-18T07:30:00Z",
				"medicationDetails": []map[string]interface{}{{"medicineName": "Paracetamol", "dosage": "1 viên", "timeToUseList": []string{"Sáng", "Trưa"}}},
				"confirmation":      map[string]string{"confirmId": "c-1", "status": f.confirmations["c-1"]},
			},
			{
				"id": "s-2", "studentId": "st-2", "parentId": "p-2",
				"submissionDate":    "2026-10-17T07:30:00Z",
				"medicationDetails": []map[string]interface{}{{"medicineName": "Siro", "dosage": "5ml", "timeToUseList": []string{"Chiều"}}},
				"confirmation":      map[string]string{"confirmId": "c-2", "status": f.confirmations["c-2"]},
			},
		}})
	case r.Method == http.MethodGet && path == "/medication-submission/submissions/s-1/details":
		writeJSON(w, []map[string]interface{}{
			{"medicationScheduleId": "m-1", "timeToUse": "Sáng", "status": f.slots["m-1"]},
			{"medicationScheduleId": "m-2", "timeToUse": "Trưa", "status": f.slots["m-2"]},
		})
	case r.Method == http.MethodPut && strings.HasPrefix(path, "/medication-confirmations/"):
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		id := strings.Split(path, "/")[2]
		f.confirmations[id] = body["status"]
		f.mutations = append(f.mutations, "confirmation:"+id+":"+body["nurseId"])
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && strings.HasSuffix(path, "/status") && strings.HasPrefix(path, "/medication-submission/schedules/"):
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		id := strings.Split(path, "/")[3]
		f.slots[id] = body["status"]
		f.mutations = append(f.mutations, "schedule:"+id+":"+body["noteSchedule"])
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/evidence"):
		id := strings.Split(path, "/")[3]
		file, _, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		f.evidence[id] = data
		f.mutations = append(f.mutations, "evidence:"+id)
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/evidence"):
		id := strings.Split(path, "/")[3]
		if id == "m-403" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		data, ok := f.evidence[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	case r.Method == http.MethodGet && path == "/vaccination-batches":
		writeJSON(w, []map[string]string{{"id": "v-1", "name": "Sởi", "status": "Chờ duyệt"}})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type apiResponse struct {
	Code         int
	Status       string          `json:"status"`
	Message      string          `json:"message"`
	ConfirmToken string          `json:"confirm_token"`
	Step         string          `json:"step"`
	Data         json.RawMessage `json:"data"`
}

func (r apiResponse) IsSuccess() bool {
	return r.Status == "success"
}

type testServer struct {
	engine  http.Handler
	backend *fakeBackend
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	fake := newFakeBackend()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := backend.NewClient(backend.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil, zerolog.Nop())
	require.NoError(t, err)
	store := cache.NewMemoryStore(repository.SnapshotConfig{TTL: time.Minute, CleanupInterval: time.Minute}, nil)
	guard := confirm.NewTokenGuard(confirm.DefaultTokenConfig())

	medSvc := medicationService.NewService(client, store, medicationService.Config{Logger: zerolog.Nop()})
	batchSvc := batchService.NewService(client, store, batchService.Config{Logger: zerolog.Nop()})

	r := NewRouter(
		health.NewHandler(map[string]health.Pinger{"snapshot_store": store}),
		medicationHandler.NewHandler(medSvc, guard, time.UTC),
		batchHandler.NewHandler(batchSvc, guard),
		prometheus.New("test"),
		RouterConfig{Mode: "test", CORSConfig: middleware.DefaultCORSConfig()},
	)
	r.Setup()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "nurse-1", "role": "nurse"}).SignedString([]byte("test"))
	require.NoError(t, err)

	return &testServer{engine: r.Engine(), backend: fake, token: token}
}

func (s *testServer) do(t *testing.T, req *http.Request, headers map[string]string) apiResponse {
	t.Helper()
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	resp := apiResponse{Code: w.Code}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return resp
}

func (s *testServer) makeRequest(t *testing.T, method, path string, body interface{}, headers map[string]string) apiResponse {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	return s.do(t, req, headers)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.makeRequest(t, http.MethodGet, "/health/live", nil, nil).Code)
	assert.Equal(t, http.StatusOK, s.makeRequest(t, http.MethodGet, "/health/ready", nil, nil).Code)
}

func TestListSubmissionsByDay(t *testing.T) {
	s := newTestServer(t)

	resp := s.makeRequest(t, http.MethodGet, "/submissions?day=2026-10-18", nil, nil)
	require.True(t, resp.IsSuccess(), resp.Message)

	var subs []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &subs))
	require.Len(t, subs, 1)
	assert.Equal(t, "s-1", subs[0]["id"])
	assert.Equal(t, "Bearer "+s.token, s.backend.authHeaders[0])

	bad := s.makeRequest(t, http.MethodGet, "/submissions?day=18/10/2026", nil, nil)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestConfirmationFlow(t *testing.T) {
	s := newTestServer(t)

	// Completed cannot be cancelled; nothing reaches the backend.
	blocked := s.makeRequest(t, http.MethodPut, "/confirmations/c-2/status",
		map[string]string{"status": "Cancelled", "reason": "mistake"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, blocked.Code)
	assert.Equal(t, "cannot move from Completed to Cancelled", blocked.Message)
	assert.Empty(t, s.backend.mutations)

	// Cancelling needs a second round trip with the issued token.
	first := s.makeRequest(t, http.MethodPut, "/confirmations/c-1/status",
		map[string]string{"status": "Đã Hủy", "reason": "out of stock"}, nil)
	assert.Equal(t, http.StatusPreconditionRequired, first.Code)
	require.NotEmpty(t, first.ConfirmToken)
	assert.Empty(t, s.backend.mutations)

	second := s.makeRequest(t, http.MethodPut, "/confirmations/c-1/status",
		map[string]string{"status": "Đã Hủy", "reason": "out of stock"},
		map[string]string{middleware.HeaderConfirmToken: first.ConfirmToken})
	require.True(t, second.IsSuccess(), second.Message)
	assert.Equal(t, []string{"confirmation:c-1:nurse-1"}, s.backend.mutations)
	assert.Equal(t, "Đã Hủy", s.backend.confirmations["c-1"])

	// Tokens are single use.
	replay := s.makeRequest(t, http.MethodPut, "/confirmations/c-1/status",
		map[string]string{"status": "Đã Hủy", "reason": "again"},
		map[string]string{middleware.HeaderConfirmToken: first.ConfirmToken})
	assert.Equal(t, http.StatusPreconditionRequired, replay.Code)
}

func TestAnonymousCallerReadsBackendNotSnapshot(t *testing.T) {
	s := newTestServer(t)

	require.True(t, s.makeRequest(t, http.MethodGet, "/submissions", nil, nil).IsSuccess())

	s.backend.mu.Lock()
	s.backend.confirmations["c-2"] = "Đang xử lí"
	before := len(s.backend.authHeaders)
	s.backend.mu.Unlock()

	// Claiming the nurse's id without a token neither reuses the nurse's snapshot nor
	// gets a confirmation token.
	s.token = ""
	resp := s.makeRequest(t, http.MethodPut, "/confirmations/c-2/status",
		map[string]string{"status": "Đã Hủy", "reason": "mistake"},
		map[string]string{middleware.HeaderActorID: "nurse-1"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Contains(t, resp.Message, "not confirmed")
	assert.Empty(t, resp.ConfirmToken)
	assert.Empty(t, s.backend.mutations)

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	require.Len(t, s.backend.authHeaders, before+1, "the submission list is fetched again")
	assert.Empty(t, s.backend.authHeaders[before])
}

func TestConfirmationReasonRequired(t *testing.T) {
	s := newTestServer(t)

	resp := s.makeRequest(t, http.MethodPut, "/confirmations/c-1/status", map[string]string{"status": "Completed"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Empty(t, s.backend.mutations)
}

func TestScheduleFlow(t *testing.T) {
	s := newTestServer(t)

	blocked := s.makeRequest(t, http.MethodPut, "/schedules/m-2/status",
		map[string]string{"submissionId": "s-1", "status": "Rejected", "noteSchedule": "vomited"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, blocked.Code)
	assert.Equal(t, "cannot move from Dispensed to Rejected", blocked.Message)

	ok := s.makeRequest(t, http.MethodPut, "/schedules/m-1/status",
		map[string]string{"submissionId": "s-1", "status": "Đã phát thuốc", "noteSchedule": "given at 08:00"}, nil)
	require.True(t, ok.IsSuccess(), ok.Message)
	assert.Equal(t, []string{"schedule:m-1:given at 08:00"}, s.backend.mutations)

	var slots []map[string]interface{}
	require.NoError(t, json.Unmarshal(ok.Data, &slots))
	assert.Equal(t, "Đã phát thuốc", slots[0]["status"])
}

func TestScheduleWithEvidenceUpload(t *testing.T) {
	s := newTestServer(t)

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 2, 2))))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("submissionId", "s-1"))
	require.NoError(t, mw.WriteField("status", "Dispensed"))
	require.NoError(t, mw.WriteField("noteSchedule", "given"))
	part, err := mw.CreateFormFile("evidence", "proof.png")
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/v1/schedules/m-1/status", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := s.do(t, req, nil)
	require.True(t, resp.IsSuccess(), resp.Message)
	assert.Equal(t, []string{"evidence:m-1", "schedule:m-1:given"}, s.backend.mutations)

	get := httptest.NewRequest(http.MethodGet, "/api/v1/schedules/m-1/evidence", nil)
	w := httptest.NewRecorder()
	get.Header.Set("Authorization", "Bearer "+s.token)
	s.engine.ServeHTTP(w, get)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, img.Bytes(), w.Body.Bytes())
}

func TestEvidenceOutcomes(t *testing.T) {
	s := newTestServer(t)

	absent := s.makeRequest(t, http.MethodGet, "/schedules/m-9/evidence", nil, nil)
	assert.Equal(t, http.StatusOK, absent.Code)
	assert.Equal(t, "no evidence yet", absent.Message)

	denied := s.makeRequest(t, http.MethodGet, "/schedules/m-403/evidence", nil, nil)
	assert.Equal(t, http.StatusForbidden, denied.Code)
	assert.Equal(t, "you do not have permission to view this image", denied.Message)
}

func TestAnonymousRequestsAreForwarded(t *testing.T) {
	s := newTestServer(t)
	s.token = ""

	resp := s.makeRequest(t, http.MethodGet, "/batches/vaccination", nil, nil)
	require.True(t, resp.IsSuccess(), resp.Message)
	assert.Equal(t, []string{""}, s.backend.authHeaders)

	unknown := s.makeRequest(t, http.MethodGet, "/batches/dental", nil, nil)
	assert.Equal(t, http.StatusNotFound, unknown.Code)
}

func TestRecordsAreNotCached(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions", nil)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
}
