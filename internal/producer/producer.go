// Package producer implements the Metric Producer (C1): on a fixed tick it
// assembles one Observation from the host, process, application, and
// health samplers, then hands the serialized frame to the dispatcher.
// Structured the way the teacher's agent drives its own periodic job-status
// reporting loop (a ticker plus a context-aware select), generalized from a
// fixed job-status payload to the full Observation assembled here.
package producer

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kaelvalen/nanonet/internal/appmetrics"
	"github.com/kaelvalen/nanonet/internal/counters"
	"github.com/kaelvalen/nanonet/internal/health"
	"github.com/kaelvalen/nanonet/internal/hostmetrics"
	"github.com/kaelvalen/nanonet/internal/identity"
	"github.com/kaelvalen/nanonet/internal/model"
	"github.com/kaelvalen/nanonet/internal/procwatch"
)

// Sink is the dispatcher capability the producer needs: handing off one
// serialized frame per tick.
type Sink interface {
	Dispatch(frame string)
}

// Producer owns every per-tick sampler and the identity/counters it stamps
// into each Observation.
type Producer struct {
	agent     identity.Agent
	serviceID string
	interval  time.Duration

	host    *hostmetrics.Sampler
	proc    *procwatch.Watcher
	app     *appmetrics.Fetcher
	probe   *health.Prober
	sink    Sink
	counters *counters.Counters
	logger  *zap.Logger

	startedAt time.Time
}

// New creates a Producer. host must already be primed (see
// hostmetrics.NewSampler); proc and app may be nil when unconfigured.
func New(
	agent identity.Agent,
	serviceID string,
	interval time.Duration,
	host *hostmetrics.Sampler,
	proc *procwatch.Watcher,
	app *appmetrics.Fetcher,
	probe *health.Prober,
	sink Sink,
	ctrs *counters.Counters,
	logger *zap.Logger,
) *Producer {
	return &Producer{
		agent:     agent,
		serviceID: serviceID,
		interval:  interval,
		host:      host,
		proc:      proc,
		app:       app,
		probe:     probe,
		sink:      sink,
		counters:  ctrs,
		logger:    logger.Named("producer"),
		startedAt: time.Now(),
	}
}

// Run ticks at the configured interval until ctx is cancelled, producing
// exactly one Observation per tick. The tick loop is infallible: any
// per-step sampling failure degrades that step's output without aborting
// the tick.
func (p *Producer) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("metric producer stopped")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick samples every step and hands the resulting frame to the dispatcher.
// Never blocks the scheduler: every HTTP-bound step already carries its own
// short deadline (health.Deadline, appmetrics.Deadline).
func (p *Producer) tick(ctx context.Context) {
	obs := model.NewObservation()
	obs.AgentID = p.agent.ID
	obs.AgentVersion = p.agent.Version
	obs.ServiceID = p.serviceID
	obs.Timestamp = time.Now()

	obs.System = p.host.Sample(ctx)
	obs.TargetProcess = p.proc.Sample(ctx)
	obs.App = p.app.Fetch(ctx)

	healthResult := p.probe.Probe(ctx)
	obs.Service = model.ServiceHealth{
		Status:     healthResult.Status,
		LatencyMS:  healthResult.LatencyMS,
		HTTPStatus: healthResult.HTTPStatus,
		ErrorRate:  healthResult.ErrorRate,
	}

	obs.Process = model.ProcessStats{
		PID:           processID(),
		UptimeSeconds: int64(time.Since(p.startedAt).Seconds()),
		RestartCount:  p.counters.RestartCount(),
	}

	frame, err := json.Marshal(obs)
	if err != nil {
		p.logger.Error("failed to encode observation, dropping tick", zap.Error(err))
		return
	}

	p.sink.Dispatch(string(frame))
}

func processID() int {
	return os.Getpid()
}
