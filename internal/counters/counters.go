// Package counters holds the process-wide atomic counters shared by every
// component. All fields are monotonically non-decreasing for the lifetime of
// the process and are read by the status endpoint and by the shutdown
// supervisor's final diagnostic line.
package counters

import "sync/atomic"

// Counters is safe for concurrent use from any goroutine. The zero value is
// ready to use.
type Counters struct {
	framesSent         atomic.Uint64
	commandsHandled    atomic.Uint64
	restartCount       atomic.Uint64
	framesDropped      atomic.Uint64
	framesTotalBuffered atomic.Uint64
}

// New returns a ready-to-use Counters.
func New() *Counters {
	return &Counters{}
}

func (c *Counters) IncFramesSent()          { c.framesSent.Add(1) }
func (c *Counters) IncCommandsHandled()     { c.commandsHandled.Add(1) }
func (c *Counters) IncRestartCount()        { c.restartCount.Add(1) }
func (c *Counters) IncFramesDropped()       { c.framesDropped.Add(1) }
func (c *Counters) IncFramesTotalBuffered() { c.framesTotalBuffered.Add(1) }

func (c *Counters) FramesSent() uint64          { return c.framesSent.Load() }
func (c *Counters) CommandsHandled() uint64     { return c.commandsHandled.Load() }
func (c *Counters) RestartCount() uint64        { return c.restartCount.Load() }
func (c *Counters) FramesDropped() uint64       { return c.framesDropped.Load() }
func (c *Counters) FramesTotalBuffered() uint64 { return c.framesTotalBuffered.Load() }

// Snapshot is an immutable copy of all counter values at one instant, used by
// the status endpoint so the JSON response is consistent even if counters
// keep advancing mid-encode.
type Snapshot struct {
	FramesSent          uint64 `json:"frames_sent"`
	CommandsHandled     uint64 `json:"commands_handled"`
	RestartCount        uint64 `json:"restart_count"`
	FramesDropped       uint64 `json:"frames_dropped"`
	FramesTotalBuffered uint64 `json:"frames_total_buffered"`
}

// Snapshot captures the current value of every counter.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		FramesSent:          c.FramesSent(),
		CommandsHandled:     c.CommandsHandled(),
		RestartCount:        c.RestartCount(),
		FramesDropped:       c.FramesDropped(),
		FramesTotalBuffered: c.FramesTotalBuffered(),
	}
}
