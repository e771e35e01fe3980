// Package config holds the process-wide configuration surface (spec §10.2):
// listen addresses, JWT signing key, redis URL, discovery retry/backoff
// tuning, log format. Domain config (tenants, connections, virtual-MCP
// entities) is never read from here — it is owned by the Kubernetes CRD
// storage adapter in pkg/controller.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the typed process configuration, populated from flags/env at
// startup the way the teacher's cmd/mcp-broker-router populates MCPServersConfig.
type Config struct {
	// ListenAddr is the public front-door HTTP address.
	ListenAddr string

	// MetricsAddr and HealthAddr are the controller-runtime manager's bind
	// addresses.
	MetricsAddr string
	HealthAddr  string

	// LogFormat selects slog.NewTextHandler ("text") or slog.NewJSONHandler
	// ("json").
	LogFormat string
	// LogLevel matches slog.Level's int encoding (-4 debug, 0 info, 4 warn, 8 error).
	LogLevel int

	// DelegationSigningKey signs the short-lived x-mesh-token delegation JWT
	// (internal/credential.Binder). Required; no default.
	DelegationSigningKey string

	// MeshURL is this gateway's own externally-reachable base URL, embedded
	// in delegation tokens and mesh-mode responses.
	MeshURL string

	// RedisURL optionally backs the session cache (internal/session.Cache)
	// for multi-replica deployments; empty means in-process sync.Map only.
	RedisURL string

	// DiscoveryRetryBaseDelay/DiscoveryRetryMaxAttempts are loaded with the
	// rest of the process config; no component in this repository reads
	// them, and upstream session initialization is not retried.
	DiscoveryRetryBaseDelay  time.Duration
	DiscoveryRetryMaxAttempts int
}

// envPrefix is the viper env var prefix (MCP_GATEWAY_LISTEN_ADDR, etc.).
const envPrefix = "MCP_GATEWAY"

// Load reads configuration from an optional file plus MCP_GATEWAY_*
// environment overrides, applying the teacher's defaults-then-override
// pattern (cmd/mcp-broker-router's LoadConfig).
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("listen_addr", "0.0.0.0:8080")
	v.SetDefault("metrics_addr", ":8082")
	v.SetDefault("health_addr", ":8081")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_level", 0)
	v.SetDefault("discovery_retry_base_delay", 250*time.Millisecond)
	v.SetDefault("discovery_retry_max_attempts", 5)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		ListenAddr:                v.GetString("listen_addr"),
		MetricsAddr:               v.GetString("metrics_addr"),
		HealthAddr:                v.GetString("health_addr"),
		LogFormat:                 v.GetString("log_format"),
		LogLevel:                  v.GetInt("log_level"),
		DelegationSigningKey:      v.GetString("delegation_signing_key"),
		MeshURL:                   v.GetString("mesh_url"),
		RedisURL:                  v.GetString("redis_url"),
		DiscoveryRetryBaseDelay:   v.GetDuration("discovery_retry_base_delay"),
		DiscoveryRetryMaxAttempts: v.GetInt("discovery_retry_max_attempts"),
	}

	if cfg.DelegationSigningKey == "" {
		return nil, fmt.Errorf("MCP_GATEWAY_DELEGATION_SIGNING_KEY is required")
	}

	return cfg, nil
}
