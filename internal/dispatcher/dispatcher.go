// Package dispatcher implements the buffered dispatcher: it routes each
// outbound frame to the live transport when connected, falls back to the
// disconnection buffer otherwise, and owns the drain-on-reconnect handoff
// that the transport supervisor invokes synchronously before accepting any
// newer frame.
//
// A single mutex serializes routing decisions and the drain handoff. The
// only concurrent accessors are one producer (the metric producer's tick)
// and one consumer (the transport supervisor's reconnect signal), so
// contention is trivial; the mutex exists purely to make the ordering
// invariant hold (every buffered frame precedes any frame produced after a
// reconnect) even though those two callers run on different goroutines.
package dispatcher

import (
	"sync"

	"go.uber.org/zap"

	"github.com/kaelvalen/nanonet/internal/buffer"
	"github.com/kaelvalen/nanonet/internal/connstate"
	"github.com/kaelvalen/nanonet/internal/counters"
)

// FrameSender is the transport capability the dispatcher needs: a
// non-blocking attempt to enqueue one frame for sending.
type FrameSender interface {
	TrySend(frame string) bool
}

// Dispatcher routes frames between the transport and the disconnection
// buffer.
type Dispatcher struct {
	mu        sync.Mutex
	buf       *buffer.Buffer
	state     *connstate.State
	counters  *counters.Counters
	transport FrameSender
	logger    *zap.Logger
}

// New creates a Dispatcher. The transport FrameSender is supplied
// separately via SetTransport, since the transport supervisor's own
// constructor takes the Dispatcher as its reconnect callback — wiring the
// two together needs the dispatcher to exist first.
func New(buf *buffer.Buffer, state *connstate.State, ctrs *counters.Counters, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		buf:      buf,
		state:    state,
		counters: ctrs,
		logger:   logger.Named("dispatcher"),
	}
}

// SetTransport wires the live FrameSender. Must be called once, before the
// metric producer's Run starts producing frames.
func (d *Dispatcher) SetTransport(transport FrameSender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transport = transport
}

// Dispatch routes one frame: live send when connected, buffered otherwise.
// Called by the metric producer once per tick.
func (d *Dispatcher) Dispatch(frame string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.Connected() {
		if d.transport.TrySend(frame) {
			// frames_sent is incremented once the frame is actually written
			// to the socket (writePump), not on enqueue here.
			return
		}
		// Channel closed or full because the transport is tearing down —
		// fall through to the buffer path.
	}

	d.bufferLocked(frame)
}

// bufferLocked pushes frame into the disconnection buffer. Must be called
// with mu held.
func (d *Dispatcher) bufferLocked(frame string) {
	if dropped := d.buf.Push(frame); dropped {
		d.counters.IncFramesDropped()
	}
	d.counters.IncFramesTotalBuffered()
}

// MarkDisconnected flips ConnectionState to disconnected. Called by the
// transport supervisor whenever a session ends, under the same mutex that
// guards routing so no frame dispatched mid-transition is lost or
// misrouted.
func (d *Dispatcher) MarkDisconnected() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.SetConnected(false)
}

// OnReconnect drains the disconnection buffer in FIFO order and hands each
// frame to send, which the transport supervisor wires to a direct,
// synchronous write on the fresh connection — guaranteeing every buffered
// frame precedes any frame produced after this call returns. The
// connection state only flips to connected once the full drain succeeds;
// on partial failure the remaining un-drained frames are dropped, since
// they have already left the buffer, and the caller is expected to retry
// the whole session.
func (d *Dispatcher) OnReconnect(send func(frame string) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	frames := d.buf.Drain()
	for i, frame := range frames {
		if err := send(frame); err != nil {
			d.logger.Warn("drain send failed, dropping remaining buffered frames",
				zap.Int("remaining", len(frames)-i),
				zap.Error(err),
			)
			return err
		}
		d.counters.IncFramesSent()
	}

	d.state.SetConnected(true)
	return nil
}
