package command

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kaelvalen/nanonet/internal/counters"
	"github.com/kaelvalen/nanonet/internal/model"
)

type fakeRunner struct {
	result RunResult
	gotCmd string
	gotTO  time.Duration
}

func (f *fakeRunner) Run(ctx context.Context, cmd string, timeout time.Duration) RunResult {
	f.gotCmd = cmd
	f.gotTO = timeout
	return f.result
}

type fakeSender struct {
	accept bool
	frames []string
}

func (f *fakeSender) TrySend(frame string) bool {
	if !f.accept {
		return false
	}
	f.frames = append(f.frames, frame)
	return true
}

func newHandler(t *testing.T, cfg Config, runner *fakeRunner) (*Handler, *counters.Counters) {
	t.Helper()
	ctrs := counters.New()
	return New(cfg, runner, ctrs, zap.NewNop()), ctrs
}

func decodeFrames(t *testing.T, frames []string) (ack model.Ack, result model.Result) {
	t.Helper()
	require.Len(t, frames, 2)
	require.NoError(t, json.Unmarshal([]byte(frames[0]), &ack))
	require.NoError(t, json.Unmarshal([]byte(frames[1]), &result))
	return ack, result
}

// TestRestartHappyPath covers the end-to-end restart command path: ack,
// execution, success result, counters bumped.
func TestRestartHappyPath(t *testing.T) {
	runner := &fakeRunner{result: RunResult{Success: true, Output: "restarted"}}
	h, ctrs := newHandler(t, Config{RestartCmd: "true"}, runner)
	sender := &fakeSender{accept: true}

	timeoutSec := 5
	cmd := model.Command{Type: "command", CommandID: "c1", Action: "restart", TimeoutSec: &timeoutSec}
	raw, err := json.Marshal(cmd)
	require.NoError(t, err)

	h.Handle(context.Background(), raw, sender)

	ack, result := decodeFrames(t, sender.frames)
	assert.Equal(t, "c1", ack.CommandID)
	assert.Equal(t, "c1", result.CommandID)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, uint64(1), ctrs.RestartCount())
	assert.Equal(t, uint64(1), ctrs.CommandsHandled())
	assert.Equal(t, 5*time.Second, runner.gotTO)
}

// TestRestartUnconfigured covers a restart request with no configured
// restart command.
func TestRestartUnconfigured(t *testing.T) {
	runner := &fakeRunner{}
	h, ctrs := newHandler(t, Config{}, runner)
	sender := &fakeSender{accept: true}

	cmd := model.Command{Type: "command", CommandID: "c2", Action: "restart"}
	raw, _ := json.Marshal(cmd)

	h.Handle(context.Background(), raw, sender)

	_, result := decodeFrames(t, sender.frames)
	assert.Equal(t, "failed", result.Status)
	assert.Contains(t, result.Error, "restart command is not configured")
	assert.Equal(t, uint64(0), ctrs.RestartCount())
	assert.Equal(t, uint64(0), ctrs.CommandsHandled())
}

func TestDisallowedAction(t *testing.T) {
	h, ctrs := newHandler(t, Config{}, &fakeRunner{})
	sender := &fakeSender{accept: true}

	cmd := model.Command{Type: "command", CommandID: "c3", Action: "reboot_host"}
	raw, _ := json.Marshal(cmd)

	h.Handle(context.Background(), raw, sender)

	_, result := decodeFrames(t, sender.frames)
	assert.Equal(t, "failed", result.Status)
	assert.Equal(t, "disallowed action", result.Error)
	assert.Equal(t, uint64(0), ctrs.CommandsHandled())
}

func TestPingNoOp(t *testing.T) {
	h, ctrs := newHandler(t, Config{}, &fakeRunner{})
	sender := &fakeSender{accept: true}

	cmd := model.Command{Type: "command", CommandID: "c4", Action: "ping"}
	raw, _ := json.Marshal(cmd)

	h.Handle(context.Background(), raw, sender)

	_, result := decodeFrames(t, sender.frames)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, uint64(1), ctrs.CommandsHandled())
}

func TestExecRequiresCommand(t *testing.T) {
	h, _ := newHandler(t, Config{}, &fakeRunner{})
	sender := &fakeSender{accept: true}

	cmd := model.Command{Type: "command", CommandID: "c5", Action: "exec"}
	raw, _ := json.Marshal(cmd)

	h.Handle(context.Background(), raw, sender)

	_, result := decodeFrames(t, sender.frames)
	assert.Equal(t, "failed", result.Status)
	assert.Contains(t, result.Error, "non-empty command")
}

func TestExecRunsConfiguredCommand(t *testing.T) {
	runner := &fakeRunner{result: RunResult{Success: true, Output: "ok"}}
	h, _ := newHandler(t, Config{}, runner)
	sender := &fakeSender{accept: true}

	cmd := model.Command{Type: "command", CommandID: "c6", Action: "exec", Command: "echo ok"}
	raw, _ := json.Marshal(cmd)

	h.Handle(context.Background(), raw, sender)

	assert.Equal(t, "echo ok", runner.gotCmd)
	assert.Equal(t, 30*time.Second, runner.gotTO)
}

func TestScaleNoOpWhenUnconfigured(t *testing.T) {
	h, ctrs := newHandler(t, Config{}, &fakeRunner{})
	sender := &fakeSender{accept: true}

	instances := 3
	cmd := model.Command{Type: "command", CommandID: "c7", Action: "scale", Instances: &instances, Strategy: "blue_green"}
	raw, _ := json.Marshal(cmd)

	h.Handle(context.Background(), raw, sender)

	_, result := decodeFrames(t, sender.frames)
	assert.Equal(t, "success", result.Status)
	assert.Contains(t, result.Output, "instances=3")
	assert.Contains(t, result.Output, "blue_green")
	assert.Equal(t, uint64(1), ctrs.CommandsHandled())
}

func TestScaleInvokesConfiguredCommandWithEnv(t *testing.T) {
	runner := &fakeRunner{result: RunResult{Success: true}}
	h, _ := newHandler(t, Config{ScaleCmd: "scale.sh"}, runner)
	sender := &fakeSender{accept: true}

	instances := 2
	cmd := model.Command{Type: "command", CommandID: "c8", Action: "scale", Instances: &instances, Strategy: "round_robin"}
	raw, _ := json.Marshal(cmd)

	h.Handle(context.Background(), raw, sender)

	assert.Contains(t, runner.gotCmd, "INSTANCES=2")
	assert.Contains(t, runner.gotCmd, "STRATEGY=round_robin")
	assert.Contains(t, runner.gotCmd, "scale.sh")
	assert.Equal(t, 60*time.Second, runner.gotTO)
}

func TestExecDisabledByConfig(t *testing.T) {
	runner := &fakeRunner{}
	h, _ := newHandler(t, Config{ExecDisabled: true}, runner)
	sender := &fakeSender{accept: true}

	cmd := model.Command{Type: "command", CommandID: "c10", Action: "exec", Command: "echo ok"}
	raw, _ := json.Marshal(cmd)

	h.Handle(context.Background(), raw, sender)

	_, result := decodeFrames(t, sender.frames)
	assert.Equal(t, "failed", result.Status)
	assert.Contains(t, result.Error, "disallowed action")
	assert.Empty(t, runner.gotCmd, "no subprocess should spawn when exec is disabled")
}

func TestUnparseableFrameIsDropped(t *testing.T) {
	h, _ := newHandler(t, Config{}, &fakeRunner{})
	sender := &fakeSender{accept: true}

	h.Handle(context.Background(), []byte("not json"), sender)

	assert.Empty(t, sender.frames, "an unparseable frame must produce neither an ack nor a result")
}

func TestNoExecutionWhenAckSendFails(t *testing.T) {
	runner := &fakeRunner{}
	h, ctrs := newHandler(t, Config{RestartCmd: "true"}, runner)
	sender := &fakeSender{accept: false}

	cmd := model.Command{Type: "command", CommandID: "c9", Action: "restart"}
	raw, _ := json.Marshal(cmd)

	h.Handle(context.Background(), raw, sender)

	assert.Empty(t, runner.gotCmd, "command must not execute when ack cannot be sent")
	assert.Equal(t, uint64(0), ctrs.CommandsHandled())
}
