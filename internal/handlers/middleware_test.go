package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"calagent/internal/service"
)

func TestUserIdMiddleware_RejectsMissingAndMalformed(t *testing.T) {
	auth := &mockAuth{parseID: 7}
	s := &service.Service{Authorization: auth, APIKeys: &mockAPIKeys{}, Feeds: &mockFeeds{masterToken: "mf_x"}}
	r := newTestRouter(s)

	// no header
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/feeds/master", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", w.Code)
	}

	// wrong scheme
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/feeds/master", nil)
	req.Header.Set("Authorization", "Basic abc")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong scheme, got %d", w.Code)
	}

	// valid token passes through
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/feeds/master", nil)
	req.Header = authHeader("jwt-token")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d body=%s", w.Code, w.Body.String())
	}
	if auth.lastParseToken != "jwt-token" {
		t.Fatalf("middleware did not forward the bearer token, got %q", auth.lastParseToken)
	}
}

func TestAPIKeyMiddleware_ValidatesKey(t *testing.T) {
	keys := &mockAPIKeys{validateID: 9}
	subs := &mockSubscriptions{}
	s := &service.Service{APIKeys: keys, Subscriptions: subs}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions", nil)
	req.Header = authHeader("cal_abc123")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	if keys.lastValidateKey != "cal_abc123" {
		t.Fatalf("expected key forwarded to Validate, got %q", keys.lastValidateKey)
	}

	// revoked key
	keys.validateErr = errors.New("revoked")
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions", nil)
	req.Header = authHeader("cal_abc123")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for rejected key, got %d", w.Code)
	}
}
