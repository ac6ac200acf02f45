// Package config defines the agent's configuration surface, bindable as a
// CLI flag or an environment variable, following the teacher's
// envOrDefault pattern (flags win over env, env wins over the documented
// default).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// Config holds every tunable the agent accepts. The HealthURL and AuthToken
// helpers compose derived values that downstream packages consume directly.
type Config struct {
	Backend   string
	ServiceID string
	Token     string
	AgentToken string

	Host           string
	Port           int
	HealthEndpoint string

	PollInterval     time.Duration
	ErrorRateWindow  int
	MetricsEndpoint  string
	Process          string

	RestartCmd string
	StopCmd    string
	StartCmd   string
	ScaleCmd   string

	AgentPort  int
	BufferSize int
	ExecDisabled bool

	LogLevel string
	Version  string
}

// HealthURL composes the target service's health-check URL from Host, Port,
// and HealthEndpoint.
func (c Config) HealthURL() string {
	return fmt.Sprintf("http://%s:%d/%s", c.Host, c.Port, trimSlash(c.HealthEndpoint))
}

// AuthToken returns the bearer credential to present on connect, preferring
// the long-lived agent token over the user token.
func (c Config) AuthToken() string {
	if c.AgentToken != "" {
		return c.AgentToken
	}
	return c.Token
}

func trimSlash(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}

// Validate checks that the required keys are present. Called once at
// startup; a non-nil error is a startup failure, so the process exits
// non-zero before spawning any tasks.
func (c Config) Validate() error {
	if c.Backend == "" {
		return fmt.Errorf("config: backend is required")
	}
	if c.ServiceID == "" {
		return fmt.Errorf("config: service_id is required")
	}
	if c.AuthToken() == "" {
		return fmt.Errorf("config: one of token or agent_token is required")
	}
	return nil
}

// RegisterFlags attaches every configuration key to root's persistent flag
// set, defaulting from the environment the same way the teacher's
// cmd/agent/main.go binds its own flags.
func RegisterFlags(root *cobra.Command, cfg *Config) {
	f := root.PersistentFlags()

	f.StringVar(&cfg.Backend, "backend", envOrDefault("NANONET_BACKEND", ""), "base URL of the control plane (ws:// or wss://)")
	f.StringVar(&cfg.ServiceID, "service-id", envOrDefault("NANONET_SERVICE_ID", ""), "target service identifier")
	f.StringVar(&cfg.Token, "token", envOrDefault("NANONET_TOKEN", ""), "bearer credential (user token)")
	f.StringVar(&cfg.AgentToken, "agent-token", envOrDefault("NANONET_AGENT_TOKEN", ""), "bearer credential (long-lived agent token, preferred over token)")

	f.StringVar(&cfg.Host, "host", envOrDefault("NANONET_HOST", "localhost"), "target service host")
	f.IntVar(&cfg.Port, "port", envOrDefaultInt("NANONET_PORT", 8080), "target service port")
	f.StringVar(&cfg.HealthEndpoint, "health-endpoint", envOrDefault("NANONET_HEALTH_ENDPOINT", "health"), "target service health endpoint path")

	f.DurationVar(&cfg.PollInterval, "poll-interval", envOrDefaultDuration("NANONET_POLL_INTERVAL", 10*time.Second), "interval between metric ticks (flag takes a duration such as 10s; NANONET_POLL_INTERVAL takes whole seconds)")
	f.IntVar(&cfg.ErrorRateWindow, "error-rate-window", envOrDefaultInt("NANONET_ERROR_RATE_WINDOW", 20), "rolling health-error window size")
	f.StringVar(&cfg.MetricsEndpoint, "metrics-endpoint", envOrDefault("NANONET_METRICS_ENDPOINT", ""), "optional application-metrics URL")
	f.StringVar(&cfg.Process, "process", envOrDefault("NANONET_PROCESS", ""), "optional PID or process name/cmdline substring to watch")

	f.StringVar(&cfg.RestartCmd, "restart-cmd", envOrDefault("NANONET_RESTART_CMD", ""), "shell template invoked by the restart command")
	f.StringVar(&cfg.StopCmd, "stop-cmd", envOrDefault("NANONET_STOP_CMD", ""), "shell template invoked by the stop command")
	f.StringVar(&cfg.StartCmd, "start-cmd", envOrDefault("NANONET_START_CMD", ""), "shell template invoked by the start command")
	f.StringVar(&cfg.ScaleCmd, "scale-cmd", envOrDefault("NANONET_SCALE_CMD", ""), "shell template invoked by the scale command")

	f.IntVar(&cfg.AgentPort, "agent-port", envOrDefaultInt("NANONET_AGENT_PORT", 0), "local HTTP status port (0 disables)")
	f.IntVar(&cfg.BufferSize, "buffer-size", envOrDefaultInt("NANONET_BUFFER_SIZE", 120), "disconnection buffer capacity")
	f.BoolVar(&cfg.ExecDisabled, "disable-exec", envOrDefaultBool("NANONET_DISABLE_EXEC", false), "reject exec commands regardless of the allow-list (stricter isolation)")

	f.StringVar(&cfg.LogLevel, "log-level", envOrDefault("NANONET_LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envOrDefaultBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return defaultVal
}
