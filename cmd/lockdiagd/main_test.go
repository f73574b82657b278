package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"lockcore/clock"
	"lockcore/rangelock"
	"lockcore/tokenlock"
)

func newTestServer() *diagServer {
	return &diagServer{
		tokens: tokenlock.New(),
		ranges: rangelock.NewWithOptions(clock.Real{}, false, nil, 0),
	}
}

func TestHealthReportsOK(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field = %q, want ok", body["status"])
	}
}

func TestStatsReturnsBothServiceSnapshots(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.stats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body["tokenlock"]; !ok {
		t.Fatal("expected a tokenlock key in the stats response")
	}
	if _, ok := body["rangelock"]; !ok {
		t.Fatal("expected a rangelock key in the stats response")
	}
}

func TestStaleLocksReportsDisabledWithoutTracer(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/debug/stale-locks", nil)
	rec := httptest.NewRecorder()
	s.staleLocks(rec, req)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["enabled"] != false {
		t.Fatalf("enabled = %v, want false when no tracer is wired", body["enabled"])
	}
}

func TestRequestIDMiddlewareStampsResponseHeader(t *testing.T) {
	called := false
	h := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Fatal("inner handler was not invoked")
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected X-Request-Id to be set on the response")
	}
}
