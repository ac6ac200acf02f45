// Package connstate holds the single process-wide ConnectionState flag.
// It is its own package (rather than living inside transport) because the
// dispatcher and the local status endpoint both need to read it without
// importing the transport supervisor itself.
package connstate

import "sync/atomic"

// State is a process-wide atomic flag exposing transport liveness.
// The zero value reports disconnected, matching an agent that has not yet
// completed its first connection attempt.
type State struct {
	connected atomic.Bool
}

// New returns a State initialized to disconnected.
func New() *State {
	return &State{}
}

// SetConnected is called by the transport supervisor on every state
// transition.
func (s *State) SetConnected(v bool) {
	s.connected.Store(v)
}

// Connected reports the current liveness of the transport.
func (s *State) Connected() bool {
	return s.connected.Load()
}
