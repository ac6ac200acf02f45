// Package transport implements the Transport Supervisor (spec.md §4.3): a
// single persistent duplex WebSocket channel to the control plane, with
// heartbeat and exponential-backoff-plus-jitter reconnection. It is built
// the way the teacher's agent/internal/connection.Manager drives a
// reconnecting RPC session, using the sibling server/internal/websocket
// package's gorilla/websocket read/write-pump split for the wire protocol
// itself (pings from the write pump, pongs observed in the read pump,
// per-call write deadlines).
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kaelvalen/nanonet/internal/counters"
	"github.com/kaelvalen/nanonet/internal/model"
)

const (
	backoffInitial = 1 * time.Second
	backoffMax     = 32 * time.Second
	jitterMaxMS    = 1000

	// heartbeatInterval is how often the supervisor sends a ping once
	// connected (spec.md §4.3).
	heartbeatInterval = 30 * time.Second

	writeWait      = 10 * time.Second
	outboundBuffer = 64
)

// Dispatcher is the subset of the buffered dispatcher the transport needs:
// draining the disconnection buffer synchronously on reconnect, before any
// newer frame is accepted (spec.md §4.2).
type Dispatcher interface {
	OnReconnect(send func(frame string) error) error
	MarkDisconnected()
}

// CommandSink receives inbound command frames. Implemented by the command
// handler.
type CommandSink interface {
	Handle(ctx context.Context, raw []byte, sender FrameSender)
}

// FrameSender is implemented by the Supervisor itself and handed to the
// dispatcher and the command handler so neither needs to know about
// WebSocket internals.
type FrameSender interface {
	// TrySend enqueues frame onto the live outbound channel. Returns false
	// if there is no active connection, or the channel is full — callers
	// fall back to the disconnection buffer in that case.
	TrySend(frame string) bool
}

// Config holds the parameters needed to reach the control plane.
type Config struct {
	Backend   string
	ServiceID string
	Token     string
}

// connectionURL composes the WebSocket URL per spec.md §4.3.
func (c Config) connectionURL() (string, error) {
	u, err := url.Parse(c.Backend)
	if err != nil {
		return "", fmt.Errorf("transport: invalid backend URL: %w", err)
	}
	u.Path = "/ws/agent"
	q := u.Query()
	q.Set("service_id", c.ServiceID)
	q.Set("token", c.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Supervisor owns the single persistent WebSocket connection and its
// reconnect loop.
type Supervisor struct {
	cfg      Config
	dialer   *websocket.Dialer
	counters *counters.Counters
	disp     Dispatcher
	cmds     CommandSink
	logger   *zap.Logger

	mu       sync.RWMutex
	outbound chan string
}

// New creates a Supervisor. Call Run to start the connection loop.
func New(cfg Config, ctrs *counters.Counters, disp Dispatcher, cmds CommandSink, logger *zap.Logger) *Supervisor {
	return &Supervisor{
		cfg:      cfg,
		dialer:   websocket.DefaultDialer,
		counters: ctrs,
		disp:     disp,
		cmds:     cmds,
		logger:   logger.Named("transport"),
	}
}

// TrySend implements FrameSender.
func (s *Supervisor) TrySend(frame string) bool {
	// The read lock is held across the non-blocking send so clearOutbound
	// cannot close the channel between the nil check and the send.
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.outbound == nil {
		return false
	}
	select {
	case s.outbound <- frame:
		return true
	default:
		return false
	}
}

// Run drives the state machine of spec.md §4.3 until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	delay := backoffInitial

	for {
		if ctx.Err() != nil {
			s.logger.Info("transport supervisor stopped")
			return
		}

		cleanClose, err := s.session(ctx)

		s.disp.MarkDisconnected()
		s.clearOutbound()

		if ctx.Err() != nil {
			return
		}

		if cleanClose {
			// Reconnect-Immediate: delay resets to 1s, attempt count resets.
			s.logger.Info("server closed connection cleanly, reconnecting immediately")
			delay = backoffInitial
			continue
		}

		if err != nil {
			s.logger.Warn("connection failed, backing off", zap.Error(err), zap.Duration("delay", delay))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(jitter(delay)):
		}
		delay = nextBackoff(delay)
	}
}

// session establishes one WebSocket connection, drains the disconnection
// buffer, and runs the read/write pumps until the connection ends. Returns
// whether the end was a clean server-initiated close (reset backoff to 1s)
// and any error encountered.
func (s *Supervisor) session(ctx context.Context) (cleanClose bool, err error) {
	connURL, err := s.cfg.connectionURL()
	if err != nil {
		return false, err
	}

	s.logger.Info("connecting to control plane")
	conn, _, err := s.dialer.DialContext(ctx, connURL, nil)
	if err != nil {
		return false, fmt.Errorf("dial failed: %w", err)
	}

	// Drain the disconnection buffer directly over the wire before any
	// newer frame is accepted onto the outbound channel — the channel does
	// not exist yet, so nothing produced this session can race ahead of
	// the drained frames (spec.md §4.2, §8 invariant 4).
	drainErr := s.disp.OnReconnect(func(frame string) error {
		return s.writeDirect(conn, frame)
	})
	if drainErr != nil {
		s.logger.Warn("drain-on-reconnect failed, reconnecting", zap.Error(drainErr))
		conn.Close()
		return false, drainErr
	}

	s.logger.Info("connected to control plane")

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.outbound = make(chan string, outboundBuffer)
	outbound := s.outbound
	s.mu.Unlock()

	errCh := make(chan error, 2)
	cleanCh := make(chan bool, 1)

	go func() {
		errCh <- s.writePump(sessionCtx, conn, outbound)
	}()
	go func() {
		clean, rerr := s.readPump(conn)
		cleanCh <- clean
		errCh <- rerr
	}()

	select {
	case <-ctx.Done():
		conn.Close()
		<-errCh
		return false, nil
	case err = <-errCh:
		cancel()
		conn.Close()
		select {
		case cleanClose = <-cleanCh:
		default:
		}
		return cleanClose, err
	}
}

func (s *Supervisor) clearOutbound() {
	s.mu.Lock()
	if s.outbound != nil {
		close(s.outbound)
		s.outbound = nil
	}
	s.mu.Unlock()
}

// writeDirect writes one text frame synchronously, bypassing the outbound
// channel. Used only for the drain-on-reconnect handoff, before writePump
// starts — gorilla/websocket connections are not safe for concurrent
// writes, so this must never run concurrently with writePump.
func (s *Supervisor) writeDirect(conn *websocket.Conn, frame string) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// writePump is the sole writer to conn for the lifetime of one session. It
// forwards frames from the outbound channel and sends periodic pings,
// mirroring the teacher's server/internal/websocket Client.writePump.
func (s *Supervisor) writePump(ctx context.Context, conn *websocket.Conn, outbound <-chan string) error {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case frame, ok := <-outbound:
			if !ok {
				return nil
			}
			if err := s.writeDirect(conn, frame); err != nil {
				return fmt.Errorf("write failed: %w", err)
			}
			s.counters.IncFramesSent()

		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return fmt.Errorf("ping deadline failed: %w", err)
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("ping failed: %w", err)
			}
		}
	}
}

// readPump reads inbound frames until the connection closes or errors. It
// forwards "command" frames to the command handler in their own goroutine
// so a long-running command never stalls the read loop (spec.md §4.4's
// handler may suspend on subprocess execution).
func (s *Supervisor) readPump(conn *websocket.Conn) (cleanClose bool, err error) {
	conn.SetPongHandler(func(string) error {
		s.logger.Debug("pong received")
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true, nil
			}
			return false, fmt.Errorf("read failed: %w", err)
		}

		if msgType != websocket.TextMessage {
			continue
		}

		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Warn("discarding unparseable inbound frame", zap.Error(err))
			continue
		}

		switch env.Type {
		case "command":
			raw := append([]byte(nil), data...)
			// Deliberately not ctx/sessionCtx: the session ending or the
			// shutdown signal does not cancel a command's execution. Each
			// action is bounded by its own configured timeout in shellrun.
			// Neither Run nor cmd/agent waits for in-flight commands: one
			// still running when the process exits is cut off, and its
			// Result is sent only if a session is live when it finishes.
			go s.cmds.Handle(context.Background(), raw, s)
		case "pong":
			// acknowledged silently
		default:
			s.logger.Debug("discarding unknown inbound frame type", zap.String("type", env.Type))
		}
	}
}

// nextBackoff doubles current, capped at backoffMax (spec.md §4.3, §8
// invariant 5).
func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > backoffMax {
		return backoffMax
	}
	return next
}

// jitter adds uniform random jitter in [0, 1000)ms on top of d. A
// low-resolution wall-clock source is sufficient per spec.md §4.3 — this
// uses the sub-second portion of the current time so no separate PRNG state
// needs to be threaded through the supervisor.
func jitter(d time.Duration) time.Duration {
	ms := time.Now().Nanosecond() / int(time.Millisecond) % jitterMaxMS
	return d + time.Duration(ms)*time.Millisecond
}

