package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaelvalen/nanonet/internal/model"
)

func TestProbeUpFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber(srv.URL, 5)
	result := p.Probe(context.Background())

	assert.Equal(t, model.HealthUp, result.Status)
	require.NotNil(t, result.HTTPStatus)
	assert.Equal(t, 200, *result.HTTPStatus)
	assert.Equal(t, float64(0), result.ErrorRate)
}

func TestProbeDegradedSlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber(srv.URL, 5)
	result := p.Probe(context.Background())

	assert.Equal(t, model.HealthDegraded, result.Status)
	assert.Equal(t, float64(0), result.ErrorRate, "slow 2xx is not an error")
}

func TestProbeDegradedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewProber(srv.URL, 5)
	result := p.Probe(context.Background())

	assert.Equal(t, model.HealthDegraded, result.Status)
	assert.Equal(t, float64(100), result.ErrorRate, "5xx counts as an error")
}

func TestProbeDegradedClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewProber(srv.URL, 5)
	result := p.Probe(context.Background())

	assert.Equal(t, model.HealthDegraded, result.Status)
	assert.Equal(t, float64(0), result.ErrorRate, "non-5xx is reachable, not an error")
}

func TestProbeDownOnConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // connection will now be refused

	p := NewProber(url, 5)
	result := p.Probe(context.Background())

	assert.Equal(t, model.HealthDown, result.Status)
	assert.Equal(t, float64(0), result.LatencyMS)
	assert.Equal(t, float64(100), result.ErrorRate)
}
