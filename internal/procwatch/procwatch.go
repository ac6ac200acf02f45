// Package procwatch locates and samples the configured target process by
// PID or by a case-insensitive name/cmdline substring match, per spec.md
// §4.1 step 2. Out of scope as a from-scratch algorithm per spec.md §1 ("PID
// or name" discovery is named an external collaborator) — this package is
// the concrete implementation the agent needs to compile and run, built the
// way bc-dunia-mcpdrill/cmd/agent/main.go uses gopsutil's process package
// for the same job.
package procwatch

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/kaelvalen/nanonet/internal/model"
)

// Watcher resolves and samples a single configured target process. ident is
// either a numeric PID or a name/cmdline substring.
type Watcher struct {
	ident string
}

// NewWatcher returns a Watcher for ident, or nil if ident is empty (no
// target process configured — callers should treat a nil Watcher as "skip
// this step").
func NewWatcher(ident string) *Watcher {
	if ident == "" {
		return nil
	}
	return &Watcher{ident: ident}
}

// Sample locates the target process and returns its current snapshot.
// Returns nil if no matching process is found this tick — this is not an
// error, it degrades the Observation's target_process field to absent per
// spec.md §4.1's failure semantics.
func (w *Watcher) Sample(ctx context.Context) *model.TargetProcess {
	if w == nil {
		return nil
	}

	if pid, err := strconv.ParseInt(w.ident, 10, 32); err == nil {
		proc, err := process.NewProcessWithContext(ctx, int32(pid))
		if err != nil {
			return nil
		}
		return snapshot(ctx, proc)
	}

	return w.matchByNameOrCmdline(ctx)
}

// matchByNameOrCmdline scans every process, case-insensitively matching its
// name or full command line against ident, and picks the highest-CPU match.
// Ties are broken by lowest PID so the result is stable within a tick even
// when multiple matches report identical CPU usage (spec.md §9's documented
// deviation from "arbitrary but stable").
func (w *Watcher) matchByNameOrCmdline(ctx context.Context) *model.TargetProcess {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil
	}

	sort.Slice(procs, func(i, j int) bool { return procs[i].Pid < procs[j].Pid })

	needle := strings.ToLower(w.ident)

	var best *process.Process
	var bestCPU float64

	for _, proc := range procs {
		if !matches(ctx, proc, needle) {
			continue
		}

		cpuPct, err := proc.CPUPercentWithContext(ctx)
		if err != nil {
			continue
		}

		if best == nil || cpuPct > bestCPU {
			best = proc
			bestCPU = cpuPct
		}
	}

	if best == nil {
		return nil
	}
	return snapshot(ctx, best)
}

func matches(ctx context.Context, proc *process.Process, needle string) bool {
	if name, err := proc.NameWithContext(ctx); err == nil && strings.Contains(strings.ToLower(name), needle) {
		return true
	}
	if cmdline, err := proc.CmdlineWithContext(ctx); err == nil && strings.Contains(strings.ToLower(cmdline), needle) {
		return true
	}
	return false
}

func snapshot(ctx context.Context, proc *process.Process) *model.TargetProcess {
	name, _ := proc.NameWithContext(ctx)
	cpuPct, _ := proc.CPUPercentWithContext(ctx)
	status := "unknown"
	if st, err := proc.StatusWithContext(ctx); err == nil && len(st) > 0 {
		status = st[0]
	}

	var memMB float64
	if mi, err := proc.MemoryInfoWithContext(ctx); err == nil && mi != nil {
		memMB = float64(mi.RSS) / 1024 / 1024
	}

	return &model.TargetProcess{
		PID:        proc.Pid,
		Name:       name,
		CPUPercent: cpuPct,
		MemoryMB:   memMB,
		Status:     status,
	}
}
