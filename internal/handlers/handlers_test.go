package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/test-attempt-service/internal/services"
)

func doRequest(router *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body is not an error response: %s", w.Body.String())
	}
	return resp
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", services.ValidationErrors{{Field: "question_id", Message: "is required"}}, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"permission", services.NewPermissionError("u2", 1, "attempt", "submit", "not owned by user"), http.StatusForbidden, "ACCESS_DENIED"},
		{"business rule", services.NewBusinessRuleError(services.ErrUnscorableQuestion, "correct_option_required", "question has no correct option", nil), http.StatusUnprocessableEntity, "BUSINESS_RULE_VIOLATION"},
		{"not eligible", services.ErrNotEligible, http.StatusForbidden, "NOT_ELIGIBLE"},
		{"already finalized", services.ErrAttemptAlreadyFinalized, http.StatusConflict, "ATTEMPT_ALREADY_FINALIZED"},
		{"not finalized", services.ErrAttemptNotFinalized, http.StatusConflict, "ATTEMPT_NOT_FINALIZED"},
		{"expired", services.ErrAttemptExpired, http.StatusGone, "ATTEMPT_EXPIRED"},
		{"unknown question", services.ErrUnknownQuestion, http.StatusBadRequest, "UNKNOWN_QUESTION"},
		{"wrapped not found", fmt.Errorf("load: %w", services.ErrAttemptNotFound), http.StatusNotFound, "ATTEMPT_NOT_FOUND"},
		{"test not found", services.ErrTestNotFound, http.StatusNotFound, "TEST_NOT_FOUND"},
		{"window not open", services.ErrTestWindowNotOpen, http.StatusForbidden, "TEST_NOT_OPEN"},
		{"window closed", services.ErrTestWindowClosed, http.StatusGone, "TEST_CLOSED"},
		{"definition unavailable", fmt.Errorf("%w: connection refused", services.ErrDefinitionUnavailable), http.StatusServiceUnavailable, "DEFINITION_UNAVAILABLE"},
		{"cutoff exists", services.ErrCutoffExists, http.StatusConflict, "CUTOFF_EXISTS"},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			h := NewBaseHandler(testLogger())
			h.handleServiceError(c, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := decodeError(t, w).Code; got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestStartTest(t *testing.T) {
	sm := newFakeServiceManager()
	router := newTestRouter(sm)

	w := doRequest(router, http.MethodPost, "/api/v1/tests/1/10/start", "u1", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("first start status = %d, body %s", w.Code, w.Body.String())
	}

	var resp services.AttemptResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.UserID != "u1" || resp.SeriesID != 1 || resp.TestID != 10 {
		t.Errorf("response = %+v", resp)
	}

	sm.attempts.start = func(userID string, seriesID, testID uint) (*services.AttemptResponse, error) {
		return &services.AttemptResponse{ID: 1, UserID: userID}, nil
	}
	if w := doRequest(router, http.MethodPost, "/api/v1/tests/1/10/start", "u1", ""); w.Code != http.StatusOK {
		t.Errorf("resume status = %d, want 200", w.Code)
	}

	sm.attempts.start = func(userID string, seriesID, testID uint) (*services.AttemptResponse, error) {
		return nil, services.ErrAttemptAlreadyFinalized
	}
	if w := doRequest(router, http.MethodPost, "/api/v1/tests/1/10/start", "u1", ""); w.Code != http.StatusConflict {
		t.Errorf("finalized status = %d, want 409", w.Code)
	}
}

func TestAuthentication(t *testing.T) {
	router := newTestRouter(newFakeServiceManager())

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"invalid token", "bad", http.StatusUnauthorized},
		{"unknown user falls back to claims", "stranger", http.StatusOK},
		{"known user", "u1", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, "/api/v1/tests/1/10/attempt", tt.token, "")
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestSubmitAnswerRoutes(t *testing.T) {
	sm := newFakeServiceManager()
	router := newTestRouter(sm)

	w := doRequest(router, http.MethodPost, "/api/v1/attempts/7/answers", "u1", `{"question_id":101,"selected_option":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if sm.attempts.lastAttempt != 7 {
		t.Errorf("attempt id = %d, want 7", sm.attempts.lastAttempt)
	}

	if w := doRequest(router, http.MethodPost, "/api/v1/attempts/7/answers", "u1", `{"question_id":`); w.Code != http.StatusBadRequest || decodeError(t, w).Code != "INVALID_PAYLOAD" {
		t.Errorf("malformed body status = %d", w.Code)
	}

	if w := doRequest(router, http.MethodPost, "/api/v1/attempts/abc/answers", "u1", `{}`); w.Code != http.StatusBadRequest || decodeError(t, w).Code != "INVALID_PARAMETER" {
		t.Errorf("bad id status = %d", w.Code)
	}

	sm.attempts.answer = func(userID string, req *services.SubmitAnswerRequest) (*services.AnswerAck, error) {
		return nil, services.ErrAttemptExpired
	}
	if w := doRequest(router, http.MethodPost, "/api/v1/tests/1/10/submit-question", "u1", `{"question_id":101,"selected_option":0}`); w.Code != http.StatusGone {
		t.Errorf("expired status = %d, want 410", w.Code)
	}
}

func TestSubmitAndResult(t *testing.T) {
	sm := newFakeServiceManager()
	router := newTestRouter(sm)

	if w := doRequest(router, http.MethodPost, "/api/v1/attempts/3/submit", "u1", ""); w.Code != http.StatusOK || sm.attempts.lastAttempt != 3 {
		t.Errorf("submit status = %d, attempt %d", w.Code, sm.attempts.lastAttempt)
	}
	if w := doRequest(router, http.MethodPost, "/api/v1/tests/1/10/submit", "u1", ""); w.Code != http.StatusOK {
		t.Errorf("test submit status = %d", w.Code)
	}

	w := doRequest(router, http.MethodGet, "/api/v1/attempts/3/result", "u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("result status = %d", w.Code)
	}
	var result services.ResultAnalysis
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.AttemptID != 3 || result.Verdict != services.VerdictQualified {
		t.Errorf("result = %+v", result)
	}

	sm.results.err = services.ErrAttemptNotFinalized
	router = newTestRouter(sm)
	if w := doRequest(router, http.MethodGet, "/api/v1/attempts/3/result", "u1", ""); w.Code != http.StatusConflict {
		t.Errorf("unfinalized result status = %d, want 409", w.Code)
	}
}

func TestAdminRoutes(t *testing.T) {
	sm := newFakeServiceManager()
	router := newTestRouter(sm)
	const base = "/api/v1/admin/test-series/1/tests/10"

	if w := doRequest(router, http.MethodGet, base+"/participants", "u1", ""); w.Code != http.StatusForbidden {
		t.Errorf("student status = %d, want 403", w.Code)
	}

	steps := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/cutoff", "", http.StatusNotFound},
		{http.MethodPost, "/cutoff", `{"score":40}`, http.StatusCreated},
		{http.MethodPost, "/cutoff", `{"score":40}`, http.StatusConflict},
		{http.MethodPut, "/cutoff", `{"score":45}`, http.StatusOK},
		{http.MethodGet, "/cutoff", "", http.StatusOK},
		{http.MethodDelete, "/cutoff", "", http.StatusOK},
		{http.MethodDelete, "/cutoff", "", http.StatusNotFound},
		{http.MethodGet, "/participants", "", http.StatusOK},
		{http.MethodDelete, "/definition-cache", "", http.StatusNoContent},
	}
	for _, s := range steps {
		if w := doRequest(router, s.method, base+s.path, "admin", s.body); w.Code != s.want {
			t.Errorf("%s %s status = %d, want %d (%s)", s.method, s.path, w.Code, s.want, w.Body.String())
		}
	}

	if sm.definitions.invalidated != 1 {
		t.Errorf("definition cache invalidated %d times", sm.definitions.invalidated)
	}
}

func TestExportParticipants(t *testing.T) {
	router := newTestRouter(newFakeServiceManager())

	w := doRequest(router, http.MethodGet, "/api/v1/admin/test-series/1/tests/10/participants/export", "admin", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != xlsxContentType {
		t.Errorf("content type = %s", got)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="participants-1-10.xlsx"` {
		t.Errorf("content disposition = %s", got)
	}
	if w.Body.String() != "xlsx" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	sm := newFakeServiceManager()
	router := newTestRouter(sm)

	w := doRequest(router, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK || w.Header().Get("X-Request-ID") == "" {
		t.Errorf("health status = %d, request id %q", w.Code, w.Header().Get("X-Request-ID"))
	}

	if w := doRequest(router, http.MethodGet, "/health/db", "", ""); w.Code != http.StatusOK {
		t.Errorf("ready status = %d", w.Code)
	}

	sm.storage.err = errors.New("database ping failed")
	if w := doRequest(router, http.MethodGet, "/health/db", "", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("storage down status = %d, want 503", w.Code)
	}

	sm.storage.err = nil
	sm.healthErr = errors.New("service manager is shut down")
	if w := doRequest(router, http.MethodGet, "/health/db", "", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("services down status = %d, want 503", w.Code)
	}
}
