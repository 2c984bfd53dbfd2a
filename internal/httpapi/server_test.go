package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/octoreflex/edgelif/internal/gateway"
)

type fakeSource struct{ snap gateway.Snapshot }

func (f fakeSource) SnapshotMetrics() gateway.Snapshot { return f.snap }

func TestHandleMetricsServesJSONSnapshot(t *testing.T) {
	src := fakeSource{snap: gateway.Snapshot{
		TotalMessages: 3,
		CollisionMode: "spikes",
	}}
	srv := NewServer(":0", src, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.handleMetrics(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS header = %q", got)
	}

	var snap gateway.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.TotalMessages != 3 || snap.CollisionMode != "spikes" {
		t.Errorf("got %+v", snap)
	}
}

type panickingSource struct{}

func (panickingSource) SnapshotMetrics() gateway.Snapshot {
	panic("boom: simulated assembly failure")
}

func TestHandleMetricsReturns500OnPanic(t *testing.T) {
	srv := NewServer(":0", panickingSource{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.handleMetrics(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body["error"]; !ok {
		t.Errorf("expected body to contain \"error\" key, got %v", body)
	}
}

func TestHandleIndexServesDashboardStub(t *testing.T) {
	srv := NewServer(":0", fakeSource{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.handleIndex(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestHandleIndex404sOnOtherPaths(t *testing.T) {
	srv := NewServer(":0", fakeSource{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rec := httptest.NewRecorder()
	srv.handleIndex(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
