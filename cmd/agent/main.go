// Package main is the entry point for the nanonet monitoring agent binary.
// It wires every internal package together and runs the cooperative task
// graph until a termination signal arrives.
//
// Startup sequence:
//  1. Parse CLI flags / environment variables
//  2. Build logger
//  3. Validate configuration
//  4. Resolve identity
//  5. Wire dispatcher, command handler, transport; prime host metrics;
//     wire producer and status endpoint
//  6. Start all tasks concurrently
//  7. Block until SIGINT/SIGTERM, then graceful shutdown
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kaelvalen/nanonet/internal/appmetrics"
	"github.com/kaelvalen/nanonet/internal/buffer"
	"github.com/kaelvalen/nanonet/internal/command"
	"github.com/kaelvalen/nanonet/internal/config"
	"github.com/kaelvalen/nanonet/internal/connstate"
	"github.com/kaelvalen/nanonet/internal/counters"
	"github.com/kaelvalen/nanonet/internal/dispatcher"
	"github.com/kaelvalen/nanonet/internal/health"
	"github.com/kaelvalen/nanonet/internal/hostmetrics"
	"github.com/kaelvalen/nanonet/internal/identity"
	"github.com/kaelvalen/nanonet/internal/procwatch"
	"github.com/kaelvalen/nanonet/internal/producer"
	"github.com/kaelvalen/nanonet/internal/shellrun"
	"github.com/kaelvalen/nanonet/internal/status"
	"github.com/kaelvalen/nanonet/internal/transport"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config.Config{Version: version}

	root := &cobra.Command{
		Use:   "nanonet-agent",
		Short: "nanonet agent — monitors a co-located service and reports to a control plane",
		Long: `nanonet agent samples host and application metrics, probes a target
service's health, watches an optional target process, and streams the
result to a control plane over a persistent WebSocket connection. It also
accepts restart/stop/start/exec/scale commands from the control plane.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())
	config.RegisterFlags(root, cfg)

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nanonet-agent %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	agent := identity.New(cfg.Version)

	logger.Info("starting nanonet agent",
		zap.String("version", cfg.Version),
		zap.String("agent_id", agent.ID),
		zap.String("backend", cfg.Backend),
		zap.String("service_id", cfg.ServiceID),
	)

	ctrs := counters.New()
	state := connstate.New()
	buf := buffer.New(cfg.BufferSize)

	disp := dispatcher.New(buf, state, ctrs, logger)

	cmdHandler := command.New(command.Config{
		RestartCmd:   cfg.RestartCmd,
		StopCmd:      cfg.StopCmd,
		StartCmd:     cfg.StartCmd,
		ScaleCmd:     cfg.ScaleCmd,
		ExecDisabled: cfg.ExecDisabled,
	}, shellRunner{}, ctrs, logger)

	transportCfg := transport.Config{
		Backend:   cfg.Backend,
		ServiceID: cfg.ServiceID,
		Token:     cfg.AuthToken(),
	}
	supervisor := transport.New(transportCfg, ctrs, disp, cmdHandler, logger)
	disp.SetTransport(supervisor)

	host := hostmetrics.NewSampler(ctx)
	proc := procwatch.NewWatcher(cfg.Process)
	app := appmetrics.NewFetcher(cfg.MetricsEndpoint)
	probe := health.NewProber(cfg.HealthURL(), cfg.ErrorRateWindow)

	prod := producer.New(agent, cfg.ServiceID, cfg.PollInterval, host, proc, app, probe, disp, ctrs, logger)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		supervisor.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		prod.Run(ctx)
	}()

	if cfg.AgentPort != 0 {
		statusSrv := status.New(cfg.Version, state, ctrs, buf, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			addr := fmt.Sprintf(":%d", cfg.AgentPort)
			if err := statusSrv.Run(ctx, addr); err != nil {
				logger.Error("status endpoint stopped with error", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received, waiting for tasks to stop")
	wg.Wait()

	snap := ctrs.Snapshot()
	logger.Info("nanonet agent stopped",
		zap.Uint64("frames_sent", snap.FramesSent),
		zap.Uint64("commands_handled", snap.CommandsHandled),
		zap.Uint64("restart_count", snap.RestartCount),
		zap.Uint64("frames_dropped", snap.FramesDropped),
		zap.Uint64("frames_total_buffered", snap.FramesTotalBuffered),
	)
	return nil
}

// shellRunner adapts shellrun.Run to the command.Runner interface.
type shellRunner struct{}

func (shellRunner) Run(ctx context.Context, cmd string, timeout time.Duration) command.RunResult {
	r := shellrun.Run(ctx, cmd, timeout)
	return command.RunResult{Success: r.Success, Output: r.Output, Reason: r.Reason}
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}
