// Package hostmetrics samples host-wide CPU, memory, and disk utilization
// using gopsutil, replacing the teacher's metrics.go stub (which named
// gopsutil as a TODO) with a real implementation.
package hostmetrics

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/kaelvalen/nanonet/internal/model"
)

// primeDelay is the pause after the initial priming refresh so the first
// reported CPU percentage reflects real usage instead of the cold zero
// reading every per-core sampler returns on its first call.
const primeDelay = 1 * time.Second

// Sampler holds no state beyond what gopsutil itself tracks internally; the
// CPU percentage comes from cpu.PercentWithContext with a zero interval,
// which gopsutil computes as the delta since its previous call (the priming
// call in NewSampler, then the previous tick).
type Sampler struct{}

// NewSampler primes gopsutil's CPU counters and sleeps briefly so the first
// real sample is meaningful.
func NewSampler(ctx context.Context) *Sampler {
	_, _ = cpu.PercentWithContext(ctx, 0, false)
	select {
	case <-time.After(primeDelay):
	case <-ctx.Done():
	}
	return &Sampler{}
}

// Sample takes one snapshot of host CPU (mean across cores since the
// previous call), memory, and aggregate disk usage.
func (s *Sampler) Sample(ctx context.Context) model.SystemMetrics {
	var out model.SystemMetrics

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		out.CPUPercent = pct[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		out.MemoryUsedMB = float64(vm.Used) / 1024 / 1024
	}

	out.DiskUsedGB = diskUsedGB(ctx)

	return out
}

// diskUsedGB sums used bytes across every mounted partition gopsutil can
// read, skipping any it cannot stat (pseudo filesystems, permission
// errors) rather than aborting the whole sample.
func diskUsedGB(ctx context.Context) float64 {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return 0
	}

	var totalUsed uint64
	seen := make(map[string]bool, len(partitions))
	for _, p := range partitions {
		if seen[p.Mountpoint] {
			continue
		}
		seen[p.Mountpoint] = true

		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			continue
		}
		totalUsed += usage.Used
	}

	return float64(totalUsed) / 1024 / 1024 / 1024
}
