package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaisil18/tv-transmision-sub000/internal/apperr"
	"github.com/jaisil18/tv-transmision-sub000/internal/streaming"
)

// mockPipelineManager is a test helper that implements pipelineManager
type mockPipelineManager struct {
	createFunc func(ctx context.Context, screenID string, variant streaming.Variant) (streaming.SessionStatus, error)
	stopFunc   func(ctx context.Context, screenID string, variant streaming.Variant) (streaming.SessionStatus, error)
	statusFunc func(screenID string, variant streaming.Variant) (streaming.SessionStatus, error)
	sessions   []streaming.SessionStatus
	segmentDir string
	stopped    []string
}

func (m *mockPipelineManager) CreateOrReplaceSession(ctx context.Context, screenID string, variant streaming.Variant) (streaming.SessionStatus, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, screenID, variant)
	}
	return streaming.SessionStatus{ScreenID: screenID, Variant: variant, Status: streaming.StatusStreaming}, nil
}

func (m *mockPipelineManager) StopSession(ctx context.Context, screenID string, variant streaming.Variant) (streaming.SessionStatus, error) {
	if m.stopFunc != nil {
		return m.stopFunc(ctx, screenID, variant)
	}
	m.stopped = append(m.stopped, screenID+"/"+string(variant))
	return streaming.SessionStatus{ScreenID: screenID, Variant: variant, Status: streaming.StatusStopped}, nil
}

func (m *mockPipelineManager) StopScreen(ctx context.Context, screenID string) []streaming.SessionStatus {
	out := make([]streaming.SessionStatus, 0, len(streaming.Variants))
	for _, v := range streaming.Variants {
		st, _ := m.StopSession(ctx, screenID, v)
		out = append(out, st)
	}
	return out
}

func (m *mockPipelineManager) Status(screenID string, variant streaming.Variant) (streaming.SessionStatus, error) {
	if m.statusFunc != nil {
		return m.statusFunc(screenID, variant)
	}
	return streaming.SessionStatus{}, apperr.NotFound("streaming.status", screenID, "no session")
}

func (m *mockPipelineManager) ScreenStatus(screenID string) []streaming.SessionStatus {
	var out []streaming.SessionStatus
	for _, s := range m.sessions {
		if s.ScreenID == screenID {
			out = append(out, s)
		}
	}
	return out
}

func (m *mockPipelineManager) List() []streaming.SessionStatus { return m.sessions }

func (m *mockPipelineManager) SegmentDir(screenID string) string {
	return filepath.Join(m.segmentDir, screenID)
}

func setupStreamTestRouter(manager *mockPipelineManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupStreamRoutes(router.Group("/api"), router.Group("/hls"), NewStreamHandler(manager))
	return router
}

func TestStartStream(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		createErr  error
		wantStatus int
		wantCode   string
	}{
		{"created", "/api/streams/s1/hls", nil, http.StatusCreated, ""},
		{"unknown variant", "/api/streams/s1/dash", nil, http.StatusBadRequest, "validation"},
		{"missing source", "/api/streams/s1/stream", apperr.NotFound("streaming.create", "s1", "no such file"), http.StatusNotFound, "not_found"},
		{"launch failed", "/api/streams/s1/stream", apperr.PipelineLaunch("streaming.launch", "s1/stream", "spawn", errors.New("exec")), http.StatusBadGateway, "pipeline_launch"},
		{"storage failure", "/api/streams/s1/stream", apperr.Storage("store.read", "/data/screens.json", os.ErrPermission), http.StatusInternalServerError, "storage"},
		{"manager stopped", "/api/streams/s1/stream", streaming.ErrManagerStopped, http.StatusServiceUnavailable, "service_unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := &mockPipelineManager{}
			if tt.createErr != nil {
				manager.createFunc = func(context.Context, string, streaming.Variant) (streaming.SessionStatus, error) {
					return streaming.SessionStatus{}, tt.createErr
				}
			}
			router := setupStreamTestRouter(manager)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, tt.path, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				var resp ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantCode, resp.Error)
			}
		})
	}
}

func TestGetStream(t *testing.T) {
	manager := &mockPipelineManager{
		statusFunc: func(screenID string, variant streaming.Variant) (streaming.SessionStatus, error) {
			if screenID != "s1" {
				return streaming.SessionStatus{}, apperr.NotFound("streaming.status", screenID, "no session")
			}
			return streaming.SessionStatus{ScreenID: screenID, Variant: variant, Status: streaming.StatusError, LastError: "exit status 1"}, nil
		},
	}
	router := setupStreamTestRouter(manager)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/streams/s1/stream", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var st streaming.SessionStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, streaming.StatusError, st.Status)
	assert.Equal(t, "exit status 1", st.LastError)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/streams/other/stream", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAndScreenStreams(t *testing.T) {
	manager := &mockPipelineManager{sessions: []streaming.SessionStatus{
		{ScreenID: "s1", Variant: streaming.VariantHLS, Status: streaming.StatusStreaming},
		{ScreenID: "s2", Variant: streaming.VariantStream, Status: streaming.StatusStreaming},
	}}
	router := setupStreamTestRouter(manager)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/streams", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var all StreamsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all.Sessions, 2)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/streams/s2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var one StreamsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &one))
	require.Len(t, one.Sessions, 1)
	assert.Equal(t, "s2", one.Sessions[0].ScreenID)
}

func TestStopStreams(t *testing.T) {
	manager := &mockPipelineManager{}
	router := setupStreamTestRouter(manager)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/streams/s1/hls", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/streams/s2", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"s1/hls", "s2/stream", "s2/hls"}, manager.stopped)
}

func TestGetHLSFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "s1")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, streaming.ManifestName), []byte("#EXTM3U\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segment_00001.ts"), []byte("ts-data"), 0644))

	router := setupStreamTestRouter(&mockPipelineManager{segmentDir: root})

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"manifest", "/hls/s1/index.m3u8", http.StatusOK, "#EXTM3U\n"},
		{"segment", "/hls/s1/segment_00001.ts", http.StatusOK, "ts-data"},
		{"manifest not ready", "/hls/s2/index.m3u8", http.StatusServiceUnavailable, ""},
		{"missing segment", "/hls/s1/segment_00099.ts", http.StatusNotFound, ""},
		{"other file type", "/hls/s1/screens.json", http.StatusBadRequest, ""},
		{"traversal", "/hls/s1/..%5C..%5Csecret.ts", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{apperr.Validation("op", "bad"), http.StatusBadRequest},
		{apperr.NotFound("op", "x", ""), http.StatusNotFound},
		{apperr.PipelineLaunch("op", "x", "", nil), http.StatusBadGateway},
		{apperr.Storage("op", "p", nil), http.StatusInternalServerError},
		{apperr.Protocol("bad json", nil), http.StatusBadRequest},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		status, _ := statusForError(tt.err)
		assert.Equal(t, tt.status, status, "error %v", tt.err)
	}
}
