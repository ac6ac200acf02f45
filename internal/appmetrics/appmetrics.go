// Package appmetrics fetches the target service's own application metrics
// endpoint, if configured.
package appmetrics

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kaelvalen/nanonet/internal/model"
)

// Deadline is the fixed per-fetch timeout.
const Deadline = 3 * time.Second

// Fetcher issues GETs against a configured application-metrics URL.
type Fetcher struct {
	client *resty.Client
	url    string
}

// NewFetcher returns a Fetcher for url, or nil if url is empty (no
// application-metrics endpoint configured).
func NewFetcher(url string) *Fetcher {
	if url == "" {
		return nil
	}
	return &Fetcher{client: resty.New(), url: url}
}

type payload struct {
	CPUPercent   *float64 `json:"cpu_percent"`
	MemoryUsedMB *float64 `json:"memory_used_mb"`
}

// Fetch GETs the configured URL with a 3s deadline. On any non-2xx status,
// timeout, connection error, or JSON parse failure, it returns a zero-value
// AppMetrics (both fields nil) rather than an error — non-fatal to the tick.
func (f *Fetcher) Fetch(ctx context.Context) model.AppMetrics {
	if f == nil {
		return model.AppMetrics{}
	}

	ctx, cancel := context.WithTimeout(ctx, Deadline)
	defer cancel()

	var body payload
	resp, err := f.client.R().SetContext(ctx).SetResult(&body).Get(f.url)
	if err != nil || !resp.IsSuccess() {
		return model.AppMetrics{}
	}

	return model.AppMetrics{
		CPUPercent:   body.CPUPercent,
		MemoryUsedMB: body.MemoryUsedMB,
	}
}
