package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tasktrack/api/internal/authpw"
	"tasktrack/api/internal/identity"
	"tasktrack/api/internal/session"
	"tasktrack/api/internal/store"
)

func newTestHTTPServer(t *testing.T, checks ...Check) http.Handler {
	t.Helper()
	users := store.NewMemoryUserStore()
	svc := New(Deps{
		Directory: identity.NewDirectory("test-secret", time.Hour, users, session.NewMemoryStore()),
		Accounts:  authpw.NewServiceWithCost(users, bcrypt.MinCost),
		Checks:    checks,
	})
	return NewHTTPServer(svc, "*", nil).Handler()
}

type apiResponse struct {
	Code int
	Body map[string]any
	List []map[string]any
	Raw  []byte
}

func doRequest(t *testing.T, handler http.Handler, method, path, token, body string) apiResponse {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	resp := apiResponse{Code: rr.Code, Raw: rr.Body.Bytes()}
	trimmed := bytes.TrimSpace(resp.Raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &resp.List); err != nil {
			t.Fatalf("decode list %s: %v", trimmed, err)
		}
	} else if len(trimmed) > 0 {
		if err := json.Unmarshal(trimmed, &resp.Body); err != nil {
			t.Fatalf("decode body %s: %v", trimmed, err)
		}
	}
	return resp
}

func expectStatus(t *testing.T, resp apiResponse, want int) {
	t.Helper()
	if resp.Code != want {
		t.Fatalf("status = %d, want %d; body=%s", resp.Code, want, resp.Raw)
	}
}

func signUp(t *testing.T, handler http.Handler, email string) (string, int64) {
	t.Helper()
	resp := doRequest(t, handler, http.MethodPost, "/api/auth/signup", "",
		fmt.Sprintf(`{"email":%q,"password":"correct-horse","displayName":"Tester"}`, email))
	expectStatus(t, resp, http.StatusCreated)
	token, _ := resp.Body["token"].(string)
	if token == "" {
		t.Fatalf("signup returned no token: %s", resp.Raw)
	}
	user, _ := resp.Body["user"].(map[string]any)
	id, _ := user["id"].(float64)
	return token, int64(id)
}

func TestHealth(t *testing.T) {
	handler := newTestHTTPServer(t)
	resp := doRequest(t, handler, http.MethodGet, "/api/health", "", "")
	expectStatus(t, resp, http.StatusOK)
	if resp.Body["ok"] != true {
		t.Fatalf("body = %s", resp.Raw)
	}
}

func TestReadyReportsFailingChecks(t *testing.T) {
	handler := newTestHTTPServer(t,
		Check{Name: "users", Ping: func(context.Context) error { return nil }},
		Check{Name: "sessions", Ping: func(context.Context) error { return errors.New("connection refused") }},
	)
	resp := doRequest(t, handler, http.MethodGet, "/api/ready", "", "")
	expectStatus(t, resp, http.StatusServiceUnavailable)
	if resp.Body["status"] != "not_ready" {
		t.Fatalf("status = %v", resp.Body["status"])
	}
	checks, _ := resp.Body["checks"].(map[string]any)
	sessions, _ := checks["sessions"].(map[string]any)
	if sessions["status"] != "error" || sessions["error"] != "connection refused" {
		t.Fatalf("sessions check = %v", sessions)
	}
	users, _ := checks["users"].(map[string]any)
	if users["status"] != "ok" {
		t.Fatalf("users check = %v", users)
	}
}

func TestReadyWithoutChecks(t *testing.T) {
	handler := newTestHTTPServer(t)
	resp := doRequest(t, handler, http.MethodGet, "/api/ready", "", "")
	expectStatus(t, resp, http.StatusOK)
	if resp.Body["status"] != "ready" {
		t.Fatalf("body = %s", resp.Raw)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	handler := newTestHTTPServer(t)

	resp := doRequest(t, handler, http.MethodGet, "/api/projects", "", "")
	expectStatus(t, resp, http.StatusUnauthorized)
	if resp.Body["error"] != "No token, authorization denied" {
		t.Fatalf("error = %v", resp.Body["error"])
	}

	resp = doRequest(t, handler, http.MethodGet, "/api/notifications", "not-a-token", "")
	expectStatus(t, resp, http.StatusUnauthorized)
	if resp.Body["code"] != "UNAUTHORIZED" {
		t.Fatalf("code = %v", resp.Body["code"])
	}
}

func TestAuthFlow(t *testing.T) {
	handler := newTestHTTPServer(t)
	token, userID := signUp(t, handler, "ada@example.com")

	resp := doRequest(t, handler, http.MethodPost, "/api/auth/signup", "",
		`{"email":"ADA@example.com","password":"another-pass"}`)
	expectStatus(t, resp, http.StatusConflict)

	resp = doRequest(t, handler, http.MethodPost, "/api/auth/login", "",
		`{"email":"ada@example.com","password":"wrong-password"}`)
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = doRequest(t, handler, http.MethodPost, "/api/auth/login", "",
		`{"email":"ada@example.com","password":"correct-horse"}`)
	expectStatus(t, resp, http.StatusOK)
	loginToken, _ := resp.Body["token"].(string)
	if loginToken == "" {
		t.Fatal("login returned no token")
	}

	resp = doRequest(t, handler, http.MethodGet, "/api/auth/user", token, "")
	expectStatus(t, resp, http.StatusOK)
	if resp.Body["email"] != "ada@example.com" || int64(resp.Body["id"].(float64)) != userID {
		t.Fatalf("user = %s", resp.Raw)
	}
	if _, leaked := resp.Body["PasswordHash"]; leaked {
		t.Fatal("password hash leaked")
	}

	resp = doRequest(t, handler, http.MethodPut, "/api/users/me", token, `{"displayName":"Ada L."}`)
	expectStatus(t, resp, http.StatusOK)
	if resp.Body["displayName"] != "Ada L." {
		t.Fatalf("displayName = %v", resp.Body["displayName"])
	}

	resp = doRequest(t, handler, http.MethodPost, "/api/auth/logout", token, "")
	expectStatus(t, resp, http.StatusOK)

	resp = doRequest(t, handler, http.MethodGet, "/api/auth/user", token, "")
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = doRequest(t, handler, http.MethodGet, "/api/auth/user", loginToken, "")
	expectStatus(t, resp, http.StatusOK)
}

func TestSignUpValidation(t *testing.T) {
	handler := newTestHTTPServer(t)
	for name, body := range map[string]string{
		"missing password": `{"email":"a@example.com"}`,
		"bad email":        `{"email":"not-an-email","password":"correct-horse"}`,
		"short password":   `{"email":"a@example.com","password":"short"}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp := doRequest(t, handler, http.MethodPost, "/api/auth/signup", "", body)
			expectStatus(t, resp, http.StatusBadRequest)
			if resp.Body["code"] != "VALIDATION_ERROR" {
				t.Fatalf("code = %v", resp.Body["code"])
			}
		})
	}
}

func TestXAuthTokenHeader(t *testing.T) {
	handler := newTestHTTPServer(t)
	token, _ := signUp(t, handler, "ada@example.com")

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("X-Auth-Token", token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body=%s", rr.Code, rr.Body.String())
	}
	if got := bytes.TrimSpace(rr.Body.Bytes()); string(got) != "[]" {
		t.Fatalf("body = %s, want []", got)
	}
}

func TestProjectTaskCommentFlow(t *testing.T) {
	handler := newTestHTTPServer(t)
	ada, _ := signUp(t, handler, "ada@example.com")
	grace, graceID := signUp(t, handler, "grace@example.com")
	outsider, _ := signUp(t, handler, "linus@example.com")

	resp := doRequest(t, handler, http.MethodPost, "/api/projects", ada,
		`{"name":"Launch","members":["grace@example.com", "nobody@example.com", {"bad":true}]}`)
	expectStatus(t, resp, http.StatusCreated)
	projectID := int64(resp.Body["id"].(float64))
	members, _ := resp.Body["members"].([]any)
	if len(members) != 2 || int64(members[0].(float64)) != graceID {
		t.Fatalf("members = %v", members)
	}

	resp = doRequest(t, handler, http.MethodGet, fmt.Sprintf("/api/projects/%d", projectID), outsider, "")
	expectStatus(t, resp, http.StatusForbidden)
	if resp.Body["code"] != "FORBIDDEN" {
		t.Fatalf("code = %v", resp.Body["code"])
	}

	resp = doRequest(t, handler, http.MethodPost, "/api/tasks", ada,
		fmt.Sprintf(`{"title":"Ship","projectId":%d,"assigneeId":%d,"dueDate":"2024-06-01"}`, projectID, graceID))
	expectStatus(t, resp, http.StatusCreated)
	taskID := int64(resp.Body["id"].(float64))
	if resp.Body["status"] != "pending" {
		t.Fatalf("status = %v", resp.Body["status"])
	}

	resp = doRequest(t, handler, http.MethodGet, fmt.Sprintf("/api/tasks/project/%d", projectID), grace, "")
	expectStatus(t, resp, http.StatusOK)
	if len(resp.List) != 1 {
		t.Fatalf("tasks = %s", resp.Raw)
	}

	resp = doRequest(t, handler, http.MethodPut, fmt.Sprintf("/api/tasks/%d", taskID), grace,
		`{"status":"in-progress","assigneeId":null}`)
	expectStatus(t, resp, http.StatusOK)
	if resp.Body["status"] != "in-progress" || resp.Body["assigneeId"] != nil {
		t.Fatalf("task = %s", resp.Raw)
	}

	resp = doRequest(t, handler, http.MethodGet, "/api/notifications/unread-count", grace, "")
	expectStatus(t, resp, http.StatusOK)
	if resp.Body["count"] != float64(2) {
		t.Fatalf("unread = %s", resp.Raw)
	}

	resp = doRequest(t, handler, http.MethodPut, "/api/notifications/read-all", grace, "")
	expectStatus(t, resp, http.StatusOK)
	if len(resp.List) != 2 || resp.List[0]["read"] != true {
		t.Fatalf("read-all = %s", resp.Raw)
	}

	resp = doRequest(t, handler, http.MethodPost, "/api/comments", grace,
		fmt.Sprintf(`{"content":"<b>done</b><script>x()</script>","projectId":%d}`, projectID))
	expectStatus(t, resp, http.StatusCreated)
	commentID := int64(resp.Body["id"].(float64))
	if resp.Body["content"] != "<b>done</b>" {
		t.Fatalf("content = %v", resp.Body["content"])
	}

	resp = doRequest(t, handler, http.MethodDelete, fmt.Sprintf("/api/comments/%d", commentID), ada, "")
	expectStatus(t, resp, http.StatusForbidden)

	resp = doRequest(t, handler, http.MethodDelete, fmt.Sprintf("/api/projects/%d", projectID), grace, "")
	expectStatus(t, resp, http.StatusForbidden)

	resp = doRequest(t, handler, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", taskID), ada, "")
	expectStatus(t, resp, http.StatusOK)
	if resp.Body["message"] != "Task removed" {
		t.Fatalf("body = %s", resp.Raw)
	}

	resp = doRequest(t, handler, http.MethodDelete, fmt.Sprintf("/api/projects/%d", projectID), ada, "")
	expectStatus(t, resp, http.StatusOK)
	if resp.Body["message"] != "Project removed" {
		t.Fatalf("body = %s", resp.Raw)
	}

	resp = doRequest(t, handler, http.MethodGet, fmt.Sprintf("/api/comments/project/%d", projectID), grace, "")
	expectStatus(t, resp, http.StatusNotFound)
}

func TestErrorResponses(t *testing.T) {
	handler := newTestHTTPServer(t)
	token, _ := signUp(t, handler, "ada@example.com")

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"missing task", http.MethodGet, "/api/tasks/999", "", http.StatusNotFound, "NOT_FOUND"},
		{"non-numeric id", http.MethodGet, "/api/projects/abc", "", http.StatusNotFound, "NOT_FOUND"},
		{"delete missing task", http.MethodDelete, "/api/tasks/7", "", http.StatusNotFound, "NOT_FOUND"},
		{"malformed json", http.MethodPost, "/api/projects", `{"name":`, http.StatusBadRequest, "INVALID_BODY"},
		{"empty body", http.MethodPost, "/api/projects", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"mark missing notification", http.MethodPut, "/api/notifications/5/read", "", http.StatusNotFound, "NOT_FOUND"},
		{"unknown route", http.MethodGet, "/api/unknown", "", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doRequest(t, handler, tc.method, tc.path, token, tc.body)
			expectStatus(t, resp, tc.status)
			if resp.Body["code"] != tc.code {
				t.Fatalf("code = %v, want %s", resp.Body["code"], tc.code)
			}
			if _, ok := resp.Body["error"].(string); !ok {
				t.Fatalf("missing error message: %s", resp.Raw)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestHTTPServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	handler := newTestHTTPServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "req-123" {
		t.Fatalf("X-Request-ID = %q", got)
	}
}
