package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kaelvalen/nanonet/internal/buffer"
	"github.com/kaelvalen/nanonet/internal/connstate"
	"github.com/kaelvalen/nanonet/internal/counters"
)

func TestHealthHandlerDegradedWhenDisconnected(t *testing.T) {
	state := connstate.New()
	s := New("1.0.0", state, counters.New(), buffer.New(10), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.False(t, resp.WSConnected)
	assert.Equal(t, "1.0.0", resp.AgentVersion)
}

func TestHealthHandlerOKWhenConnected(t *testing.T) {
	state := connstate.New()
	state.SetConnected(true)
	s := New("1.0.0", state, counters.New(), buffer.New(10), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.WSConnected)
}

func TestStatusHandlerIncludesCounterSnapshot(t *testing.T) {
	state := connstate.New()
	ctrs := counters.New()
	ctrs.IncFramesSent()
	ctrs.IncFramesSent()
	ctrs.IncCommandsHandled()
	buf := buffer.New(10)
	buf.Push("frame-1")

	s := New("1.0.0", state, ctrs, buf, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(2), resp.Metrics.Sent)
	assert.Equal(t, 1, resp.Metrics.Buffered)
	assert.Equal(t, uint64(1), resp.Commands.Handled)
}

func TestMetricsEndpointExposesPrometheusFormat(t *testing.T) {
	state := connstate.New()
	ctrs := counters.New()
	ctrs.IncFramesSent()
	s := New("1.0.0", state, ctrs, buffer.New(10), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nanonet_frames_sent")
}
