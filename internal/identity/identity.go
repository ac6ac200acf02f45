// Package identity assigns the agent's stable identifiers for one process
// lifetime. The agent ID is generated once at startup and held in memory
// only — it is not written to disk and does not survive a restart.
package identity

import "github.com/google/uuid"

// Agent carries the identifiers that accompany every Observation for the
// life of one process.
type Agent struct {
	// ID is a UUIDv4 generated once at startup. Stable for the process
	// lifetime; a restart gets a new ID — the control plane is expected to
	// reconcile agents by service_id, not by agent_id, across restarts.
	ID string
	// Version is the build-time agent version string (set via -ldflags, or
	// "dev" when built without it).
	Version string
}

// New generates a fresh Agent identity.
func New(version string) Agent {
	return Agent{
		ID:      uuid.NewString(),
		Version: version,
	}
}
