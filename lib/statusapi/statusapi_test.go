// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package statusapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/muster/lib/clock"
	"github.com/bureau-foundation/muster/lib/eventdb"
	"github.com/bureau-foundation/muster/lib/metrics"
)

func newTestServer(t *testing.T) (*Server, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	server := New(Config{
		Metrics: metrics.New(),
		Clock:   fake,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	server.Observe(
		[]eventdb.Summary{{ID: 3, Title: "Operation"}, {ID: 4, Title: "Side Operation"}},
		[]eventdb.Summary{{ID: 1, Title: "Cancelled Operation", Cancelled: true}},
	)
	return server, fake
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
	return recorder
}

func TestListEvents(t *testing.T) {
	server, _ := newTestServer(t)

	response := get(t, server, "/events")
	if response.Code != http.StatusOK {
		t.Fatalf("status = %d", response.Code)
	}
	var active []eventdb.Summary
	if err := json.Unmarshal(response.Body.Bytes(), &active); err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 || active[0].ID != 3 || active[1].ID != 4 {
		t.Errorf("active = %+v", active)
	}

	response = get(t, server, "/events?archived=true")
	var archived []eventdb.Summary
	if err := json.Unmarshal(response.Body.Bytes(), &archived); err != nil {
		t.Fatal(err)
	}
	if len(archived) != 1 || !archived[0].Cancelled {
		t.Errorf("archived = %+v", archived)
	}

	if response := get(t, server, "/events?archived=maybe"); response.Code != http.StatusBadRequest {
		t.Errorf("bad archived flag: status = %d", response.Code)
	}
}

func TestEventByID(t *testing.T) {
	server, _ := newTestServer(t)

	response := get(t, server, "/events/1")
	if response.Code != http.StatusOK {
		t.Fatalf("status = %d", response.Code)
	}
	var summary eventdb.Summary
	if err := json.Unmarshal(response.Body.Bytes(), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.ID != 1 {
		t.Errorf("summary = %+v", summary)
	}

	if response := get(t, server, "/events/99"); response.Code != http.StatusNotFound {
		t.Errorf("unknown event: status = %d", response.Code)
	}
	if response := get(t, server, "/events/abc"); response.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d", response.Code)
	}
}

func TestHealthReportsSnapshotAge(t *testing.T) {
	server, fake := newTestServer(t)
	fake.Advance(90 * time.Second)

	response := get(t, server, "/healthz")
	var body struct {
		Status string `json:"status"`
		Active int    `json:"active"`
		Age    int64  `json:"snapshot_age_seconds"`
	}
	if err := json.Unmarshal(response.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Active != 2 || body.Age != 90 {
		t.Errorf("health = %+v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	response := get(t, server, "/metrics")
	if response.Code != http.StatusOK {
		t.Fatalf("status = %d", response.Code)
	}
	if !strings.Contains(response.Body.String(), "muster_") {
		t.Error("exposition has no muster metrics")
	}
}

func TestEmptySnapshotEncodesArrays(t *testing.T) {
	server := New(Config{})
	server.Observe(nil, nil)
	response := get(t, server, "/events")
	if strings.TrimSpace(response.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", response.Body.String())
	}
}
