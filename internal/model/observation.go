// Package model defines the wire-level JSON records exchanged with the
// control plane: the outbound metrics Observation, ACK, and Result frames,
// and the inbound Command frame. These are opaque strings to the
// dispatcher and transport; only the producer and the command handler
// know the shapes below.
package model

import "time"

// HealthStatus classifies the outcome of a target-service health probe.
type HealthStatus string

const (
	HealthUp       HealthStatus = "up"
	HealthDegraded HealthStatus = "degraded"
	HealthDown     HealthStatus = "down"
)

// SystemMetrics is the host-level resource snapshot, sampled once per tick.
type SystemMetrics struct {
	CPUPercent   float64 `json:"cpu_percent"`
	MemoryUsedMB float64 `json:"memory_used_mb"`
	DiskUsedGB   float64 `json:"disk_used_gb"`
}

// AppMetrics is fetched from the target service's own metrics endpoint. Both
// fields are absent (nil) whenever the fetch fails or the endpoint is not
// configured — never fatal to the tick.
type AppMetrics struct {
	CPUPercent   *float64 `json:"cpu_percent"`
	MemoryUsedMB *float64 `json:"memory_used_mb"`
}

// ServiceHealth is the outcome of the HTTP liveness probe plus the rolling
// error rate computed from the last N probes.
type ServiceHealth struct {
	Status     HealthStatus `json:"status"`
	LatencyMS  float64      `json:"latency_ms"`
	HTTPStatus *int         `json:"http_status"`
	ErrorRate  float64      `json:"error_rate"`
}

// ProcessStats describes the agent's own process.
type ProcessStats struct {
	PID           int   `json:"pid"`
	UptimeSeconds int64 `json:"uptime_seconds"`
	RestartCount  uint64 `json:"restart_count"`
}

// TargetProcess is the optional snapshot of the watched target process,
// present only when a `process` identifier is configured and a match was
// found this tick.
type TargetProcess struct {
	PID          int32   `json:"pid"`
	Name         string  `json:"name"`
	CPUPercent   float64 `json:"cpu_percent"`
	MemoryMB     float64 `json:"memory_mb"`
	Status       string  `json:"status"`
}

// Observation is the full per-tick telemetry record produced by the metric
// producer. Created once, serialized immediately, and never mutated again.
type Observation struct {
	Type          string         `json:"type"`
	AgentID       string         `json:"agent_id"`
	AgentVersion  string         `json:"agent_version"`
	ServiceID     string         `json:"service_id"`
	Timestamp     time.Time      `json:"timestamp"`
	System        SystemMetrics  `json:"system"`
	App           AppMetrics     `json:"app"`
	Service       ServiceHealth  `json:"service"`
	Process       ProcessStats   `json:"process"`
	TargetProcess *TargetProcess `json:"target_process,omitempty"`
}

// NewObservation fills in the constant "type":"metrics" discriminator used
// by the control plane to route inbound frames.
func NewObservation() Observation {
	return Observation{Type: "metrics"}
}

// Ack is the frame sent immediately on receipt of a parseable Command,
// before execution begins.
type Ack struct {
	Type      string `json:"type"`
	CommandID string `json:"command_id"`
}

// NewAck builds the ACK frame for commandID.
func NewAck(commandID string) Ack {
	return Ack{Type: "ack", CommandID: commandID}
}

// Result is the terminal frame sent once a Command finishes executing
// (success or failure). Exactly one Result is emitted per executed Command.
type Result struct {
	Type      string `json:"type"`
	CommandID string `json:"command_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Output    string `json:"output,omitempty"`
}

// NewSuccessResult builds a successful Result frame. output may be empty.
func NewSuccessResult(commandID, output string) Result {
	return Result{Type: "result", CommandID: commandID, Status: "success", Output: output}
}

// NewFailedResult builds a failed Result frame. reason must not be empty.
func NewFailedResult(commandID, reason string) Result {
	return Result{Type: "result", CommandID: commandID, Status: "failed", Error: reason}
}

// Command is the inbound frame the control plane dispatches. Per-action
// parameters are all optional and interpreted by the command handler
// according to Action.
type Command struct {
	Type      string `json:"type"`
	CommandID string `json:"command_id"`
	Action    string `json:"action"`

	TimeoutSec *int    `json:"timeout_sec,omitempty"`
	Graceful   *bool   `json:"graceful,omitempty"`
	Command    string  `json:"command,omitempty"`
	Instances  *int    `json:"instances,omitempty"`
	Strategy   string  `json:"strategy,omitempty"`
}

// Envelope is decoded first for every inbound frame so the transport
// supervisor can route on Type without committing to the full Command
// shape: only "type" is inspected before forwarding "command" frames to
// the command handler.
type Envelope struct {
	Type string `json:"type"`
}
