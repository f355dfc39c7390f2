package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/oceanguard/hazard-fusion/internal/adapter/http"
	"github.com/oceanguard/hazard-fusion/internal/domain"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockFeed struct {
	events    []domain.HazardEvent
	reports   []domain.RawReport
	lastLimit int
	err       error
}

func (m *mockFeed) ListEvents(_ context.Context, limit int) ([]domain.HazardEvent, error) {
	m.lastLimit = limit
	return m.events, m.err
}

func (m *mockFeed) ListReports(_ context.Context, limit int) ([]domain.RawReport, error) {
	m.lastLimit = limit
	return m.reports, m.err
}

func newTestServer(readyErr error, feed *mockFeed) *httpadapter.Server {
	if feed == nil {
		feed = &mockFeed{}
	}
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, feed, slog.Default())
}

func get(srv *httpadapter.Server, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(nil, nil), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(newTestServer(nil, nil), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(newTestServer(fmt.Errorf("pipeline warming up"), nil), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "pipeline warming up", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(nil, nil), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestHazardsFeed(t *testing.T) {
	feed := &mockFeed{events: []domain.HazardEvent{{
		ID:          "ev-1",
		GroupID:     4,
		HazardType:  domain.HazardFlood,
		Severity:    "high",
		Status:      domain.StatusActive,
		Confidence:  0.73,
		SourceCount: 3,
		AreaName:    "Marina Beach",
		UpdatedAt:   time.Date(2025, 11, 12, 9, 0, 0, 0, time.UTC),
	}}}

	rec := get(newTestServer(nil, feed), "/hazards")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, feed.lastLimit, "default limit")

	var body struct {
		Hazards []domain.HazardEvent `json:"hazards"`
		Count   int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Hazards, 1)
	assert.Equal(t, "ev-1", body.Hazards[0].ID)
	assert.Equal(t, domain.HazardFlood, body.Hazards[0].HazardType)
	assert.Equal(t, "Marina Beach", body.Hazards[0].AreaName)
}

func TestHazardsFeed_EmptyIsJSONArray(t *testing.T) {
	rec := get(newTestServer(nil, &mockFeed{}), "/hazards")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hazards":[]`)
}

func TestReportsFeed(t *testing.T) {
	feed := &mockFeed{reports: []domain.RawReport{{
		ID:     "r1",
		Source: domain.SourceCitizen,
		Text:   "flooding near the beach",
	}}}

	rec := get(newTestServer(nil, feed), "/reports?limit=5")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, feed.lastLimit)

	var body struct {
		Reports []domain.RawReport `json:"reports"`
		Count   int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Reports, 1)
	assert.Equal(t, "r1", body.Reports[0].ID)
}

func TestFeedLimitValidation(t *testing.T) {
	feed := &mockFeed{}
	srv := newTestServer(nil, feed)

	assert.Equal(t, http.StatusBadRequest, get(srv, "/hazards?limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(srv, "/hazards?limit=-3").Code)
	assert.Equal(t, http.StatusBadRequest, get(srv, "/reports?limit=soon").Code)

	assert.Equal(t, http.StatusOK, get(srv, "/hazards?limit=99999").Code)
	assert.Equal(t, 500, feed.lastLimit, "oversized limits are capped")
}

func TestFeedStoreError(t *testing.T) {
	feed := &mockFeed{err: errors.New("db locked")}
	rec := get(newTestServer(nil, feed), "/hazards")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db locked", "internal details stay internal")
}
