package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"calagent/internal/models"
	"calagent/internal/service"
)

func TestCreateKey(t *testing.T) {
	auth := &mockAuth{parseID: 2}
	keys := &mockAPIKeys{issued: service.IssuedKey{
		ID:        "k1",
		Name:      "laptop agent",
		Key:       "cal_deadbeef",
		KeyPrefix: "cal_deadbeef"[:12],
		CreatedAt: time.Now().UTC(),
	}}
	s := &service.Service{Authorization: auth, APIKeys: keys}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/keys", bytes.NewBufferString(`{"name":"laptop agent"}`))
	req.Header = authHeader("jwt")
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var issued service.IssuedKey
	if err := json.Unmarshal(w.Body.Bytes(), &issued); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if issued.Key != "cal_deadbeef" {
		t.Fatalf("raw key missing from response: %+v", issued)
	}
	if keys.lastIssuedName != "laptop agent" {
		t.Fatalf("name not forwarded, got %q", keys.lastIssuedName)
	}
}

func TestCreateKey_MissingName(t *testing.T) {
	s := &service.Service{Authorization: &mockAuth{parseID: 2}, APIKeys: &mockAPIKeys{}}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/keys", bytes.NewBufferString(`{}`))
	req.Header = authHeader("jwt")
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestListKeys(t *testing.T) {
	auth := &mockAuth{parseID: 2}
	keys := &mockAPIKeys{keys: []models.APIKey{
		{ID: "k1", Name: "a", KeyPrefix: "cal_aaaaaaaa"},
		{ID: "k2", Name: "b", KeyPrefix: "cal_bbbbbbbb"},
	}}
	s := &service.Service{Authorization: auth, APIKeys: keys}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/keys", nil)
	req.Header = authHeader("jwt")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body struct {
		Keys []models.APIKey `json:"keys"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(body.Keys))
	}
}

func TestRevokeKey_NotFound(t *testing.T) {
	auth := &mockAuth{parseID: 2}
	keys := &mockAPIKeys{revokeErr: service.ErrNotFound}
	s := &service.Service{Authorization: auth, APIKeys: keys}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/keys/nope", nil)
	req.Header = authHeader("jwt")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if keys.lastRevokedID != "nope" {
		t.Fatalf("path id not forwarded, got %q", keys.lastRevokedID)
	}
}
