package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncRequests()
		m.IncErrors()
		m.SetConnections("screen", 3)
		m.ResetSessions()
		m.SetSessions("hls", "streaming", 1)
		m.IncBroadcast("content-updated")
		m.IncDropped()
		m.IncSweeps()
		m.AddStatusChanges("inactive", 2)
		m.IncLaunch("hls", "ok")
		m.AddSegmentsDeleted(4)
	})
	assert.Nil(t, m.Registry())
}

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestCounters(t *testing.T) {
	m := New()

	m.IncBroadcast("content-updated")
	m.IncBroadcast("content-updated")
	m.AddStatusChanges("inactive", 3)
	m.AddSegmentsDeleted(5)
	m.IncSweeps()

	body := scrape(t, m.Handler(nil))
	assert.Contains(t, body, `signage_presence_broadcasts_total{kind="content-updated"} 2`)
	assert.Contains(t, body, `signage_liveness_status_changes_total{status="inactive"} 3`)
	assert.Contains(t, body, `signage_segments_deleted_total 5`)
	assert.Contains(t, body, `signage_liveness_sweeps_total 1`)
}

func TestHandlerRefreshesGauges(t *testing.T) {
	m := New()
	called := false

	srv := httptest.NewServer(m.Handler(func() {
		called = true
		m.SetConnections("admin", 2)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, called)
	assert.Contains(t, string(body), `signage_presence_connections{role="admin"} 2`)
}
