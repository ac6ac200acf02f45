// Package health probes the target service's HTTP liveness endpoint,
// classifies the result, and maintains the rolling ErrorWindow used to
// compute error_rate.
package health

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kaelvalen/nanonet/internal/model"
)

// Deadline is the fixed per-probe timeout.
const Deadline = 5 * time.Second

// degradedLatencyThreshold is the boundary at or above which a 2xx response
// is classified "degraded" rather than "up".
const degradedLatencyThreshold = 2000 * time.Millisecond

// Prober issues health checks against a single URL using a shared resty
// client (connection pooling, consistent timeout behaviour) the way
// cyw0ng95-v2e/pkg/cve/remote/fetcher.go configures its NVD client.
type Prober struct {
	client *resty.Client
	url    string
	window *ErrorWindow
}

// NewProber builds a Prober for url. windowSize configures the ErrorWindow.
func NewProber(url string, windowSize int) *Prober {
	return &Prober{
		client: resty.New(),
		url:    url,
		window: NewErrorWindow(windowSize),
	}
}

// Result is the outcome of one probe, already folded into the rolling
// error rate.
type Result struct {
	Status     model.HealthStatus
	LatencyMS  float64
	HTTPStatus *int
	ErrorRate  float64
}

// Probe issues one GET against the configured URL with a 5s deadline and
// classifies the outcome:
//
//	2xx, latency <  2000ms -> up,       not an error
//	2xx, latency >= 2000ms -> degraded, not an error
//	5xx                    -> degraded, is an error
//	other non-2xx          -> degraded, not an error
//	transport failure/timeout -> down,  is an error, latency reported as 0
func (p *Prober) Probe(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, Deadline)
	defer cancel()

	start := time.Now()
	resp, err := p.client.R().SetContext(ctx).Get(p.url)
	latency := time.Since(start)

	if err != nil {
		rate := p.window.Push(true)
		return Result{
			Status:    model.HealthDown,
			LatencyMS: 0,
			ErrorRate: rate,
		}
	}

	code := resp.StatusCode()
	latencyMS := float64(latency.Microseconds()) / 1000

	var status model.HealthStatus
	var isError bool
	switch {
	case code >= 200 && code < 300 && latency < degradedLatencyThreshold:
		status, isError = model.HealthUp, false
	case code >= 200 && code < 300:
		status, isError = model.HealthDegraded, false
	case code >= 500:
		status, isError = model.HealthDegraded, true
	default:
		status, isError = model.HealthDegraded, false
	}

	rate := p.window.Push(isError)

	return Result{
		Status:     status,
		LatencyMS:  latencyMS,
		HTTPStatus: &code,
		ErrorRate:  rate,
	}
}
