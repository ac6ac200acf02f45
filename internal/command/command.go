// Package command implements the command handler: for every inbound
// command frame it enforces the action allow-list, runs the corresponding
// shell action through shellrun, and emits exactly one ACK followed by
// exactly one terminal Result. Grounded on the same allow-list-then-dispatch
// shape the teacher's agent uses for job execution, adapted from a gRPC job
// queue to this agent's single-frame command contract.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kaelvalen/nanonet/internal/counters"
	"github.com/kaelvalen/nanonet/internal/model"
	"github.com/kaelvalen/nanonet/internal/transport"
)

// allowList is the closed set of actions the handler will ever execute. It
// is an unexported package-level map that nothing writes after
// initialization — never sourced from the command payload, configuration,
// or remote data.
var allowList = map[string]bool{
	"ping":    true,
	"restart": true,
	"stop":    true,
	"start":   true,
	"exec":    true,
	"scale":   true,
}

const (
	defaultRestartTimeout = 30 * time.Second
	defaultStopTimeout    = 30 * time.Second
	defaultStartTimeout   = 60 * time.Second
	defaultExecTimeout    = 30 * time.Second
	defaultScaleTimeout   = 60 * time.Second
)

// Runner is the subset of shellrun the handler needs, broken out so tests
// can substitute a fake without spawning real processes.
type Runner interface {
	Run(ctx context.Context, command string, timeout time.Duration) RunResult
}

// RunResult mirrors shellrun.Result; defined locally so this package does
// not force its Runner abstraction to depend on shellrun's concrete type.
type RunResult struct {
	Success bool
	Output  string
	Reason  string
}

// Config holds the configured shell templates for the restart/stop/start/
// scale actions.
type Config struct {
	RestartCmd string
	StopCmd    string
	StartCmd   string
	ScaleCmd   string

	// ExecDisabled turns the exec action into a disallowed action at
	// runtime (spec.md §9: "exec is itself a policy choice; deployments
	// requiring stricter isolation should disable exec by configuration").
	// The rest of the allow-list remains a compile-time constant; this
	// flag only narrows it further, it never widens it.
	ExecDisabled bool
}

// Handler executes inbound Commands.
type Handler struct {
	cfg      Config
	runner   Runner
	counters *counters.Counters
	logger   *zap.Logger
}

// New creates a Handler.
func New(cfg Config, runner Runner, ctrs *counters.Counters, logger *zap.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		runner:   runner,
		counters: ctrs,
		logger:   logger.Named("command"),
	}
}

// Handle implements transport.CommandSink. raw is the full inbound frame
// bytes; sender is used to emit the ACK and Result frames directly onto the
// live connection that delivered the command.
//
// Handle does not deduplicate on command_id: a replayed command_id is
// acknowledged and executed again. Whether command_ids are single-use is
// left to the control plane's contract.
func (h *Handler) Handle(ctx context.Context, raw []byte, sender transport.FrameSender) {
	var cmd model.Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		h.logger.Warn("discarding unparseable command frame", zap.Error(err))
		return
	}

	ack, err := json.Marshal(model.NewAck(cmd.CommandID))
	if err != nil {
		h.logger.Error("failed to encode ack frame", zap.Error(err))
		return
	}
	if !sender.TrySend(string(ack)) {
		h.logger.Warn("ack send failed, skipping execution", zap.String("command_id", cmd.CommandID))
		return
	}

	result := h.execute(ctx, cmd)

	frame, err := json.Marshal(result)
	if err != nil {
		h.logger.Error("failed to encode result frame", zap.Error(err))
		return
	}
	if !sender.TrySend(string(frame)) {
		h.logger.Warn("result send failed after execution completed",
			zap.String("command_id", cmd.CommandID), zap.String("status", result.Status))
		return
	}

	if result.Status == "success" {
		h.counters.IncCommandsHandled()
		if cmd.Action == "restart" {
			h.counters.IncRestartCount()
		}
	}
}

// execute enforces the allow-list and runs the action, returning the
// terminal Result frame.
func (h *Handler) execute(ctx context.Context, cmd model.Command) model.Result {
	if !allowList[cmd.Action] {
		return model.NewFailedResult(cmd.CommandID, "disallowed action")
	}
	if cmd.Action == "exec" && h.cfg.ExecDisabled {
		return model.NewFailedResult(cmd.CommandID, "disallowed action: exec is disabled by configuration")
	}

	switch cmd.Action {
	case "ping":
		return model.NewSuccessResult(cmd.CommandID, "")
	case "restart":
		return h.runConfigured(ctx, cmd, "restart", h.cfg.RestartCmd, defaultRestartTimeout)
	case "stop":
		return h.runConfigured(ctx, cmd, "stop", h.cfg.StopCmd, defaultStopTimeout)
	case "start":
		return h.runConfigured(ctx, cmd, "start", h.cfg.StartCmd, defaultStartTimeout)
	case "exec":
		return h.runExec(ctx, cmd)
	case "scale":
		return h.runScale(ctx, cmd)
	default:
		// Unreachable: every allow-listed action is handled above.
		return model.NewFailedResult(cmd.CommandID, "disallowed action")
	}
}

func (h *Handler) runConfigured(ctx context.Context, cmd model.Command, action, shellCmd string, defaultTimeout time.Duration) model.Result {
	if shellCmd == "" {
		return model.NewFailedResult(cmd.CommandID, fmt.Sprintf("%s command is not configured", action))
	}
	timeout := resolveTimeout(cmd.TimeoutSec, defaultTimeout)
	return toResult(cmd.CommandID, h.runner.Run(ctx, shellCmd, timeout))
}

func (h *Handler) runExec(ctx context.Context, cmd model.Command) model.Result {
	if cmd.Command == "" {
		return model.NewFailedResult(cmd.CommandID, "exec requires a non-empty command")
	}
	timeout := resolveTimeout(cmd.TimeoutSec, defaultExecTimeout)
	return toResult(cmd.CommandID, h.runner.Run(ctx, cmd.Command, timeout))
}

func (h *Handler) runScale(ctx context.Context, cmd model.Command) model.Result {
	instances := 1
	if cmd.Instances != nil {
		instances = *cmd.Instances
	}
	strategy := "round_robin"
	if cmd.Strategy != "" {
		strategy = cmd.Strategy
	}

	if h.cfg.ScaleCmd == "" {
		return model.NewSuccessResult(cmd.CommandID, fmt.Sprintf("scale acknowledged (instances=%d, strategy=%s)", instances, strategy))
	}

	invocation := fmt.Sprintf("INSTANCES=%d STRATEGY=%s %s", instances, strategy, h.cfg.ScaleCmd)
	return toResult(cmd.CommandID, h.runner.Run(ctx, invocation, defaultScaleTimeout))
}

func resolveTimeout(timeoutSec *int, fallback time.Duration) time.Duration {
	if timeoutSec != nil && *timeoutSec > 0 {
		return time.Duration(*timeoutSec) * time.Second
	}
	return fallback
}

func toResult(commandID string, r RunResult) model.Result {
	if r.Success {
		return model.NewSuccessResult(commandID, r.Output)
	}
	return model.NewFailedResult(commandID, r.Reason)
}
