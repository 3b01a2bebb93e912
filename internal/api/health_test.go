package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaisil18/tv-transmision-sub000/internal/apperr"
	"github.com/jaisil18/tv-transmision-sub000/internal/models"
)

type stubScreens struct{ err error }

func (s stubScreens) Read(context.Context) ([]models.Screen, error) { return nil, s.err }

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		storeErr   error
		encoderErr error
		wantStatus int
		wantState  string
	}{
		{"healthy", nil, nil, http.StatusOK, "ok"},
		{"encoder missing", nil, errors.New("ffmpeg binary not found"), http.StatusOK, "degraded"},
		{"store unreadable", apperr.Storage("store.read", "/data/screens.json", os.ErrPermission), nil, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			router := gin.New()
			handler := NewHealthHandler(stubScreens{err: tt.storeErr}, func() error { return tt.encoderErr }, func() int { return 2 })
			SetupHealthRoutes(router.Group("/api"), handler)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
			assert.Equal(t, tt.wantStatus, w.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantState, resp.Status)
			assert.Equal(t, 2, resp.Sessions)
		})
	}
}
