package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeStatus struct {
	active int
	online bool
}

func (f *fakeStatus) ActiveSessions() int   { return f.active }
func (f *fakeStatus) TransportOnline() bool { return f.online }

func TestHealthEndpoint(t *testing.T) {
	s := NewServer("127.0.0.1", 0, &fakeStatus{active: 3, online: true})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected status field: %v", body["status"])
	}
	if body["transport"] != "online" {
		t.Fatalf("unexpected transport field: %v", body["transport"])
	}
	if body["active_sessions"] != float64(3) {
		t.Fatalf("unexpected active_sessions: %v", body["active_sessions"])
	}
}

func TestHealthEndpointOffline(t *testing.T) {
	s := NewServer("127.0.0.1", 0, &fakeStatus{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)

	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["transport"] != "offline" {
		t.Fatalf("unexpected transport field: %v", body["transport"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewServer("127.0.0.1", 0, &fakeStatus{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if rr.Body.Len() == 0 {
		t.Fatalf("metrics body should not be empty")
	}
}
