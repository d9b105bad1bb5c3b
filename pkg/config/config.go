// Package config provides configuration structures and loading logic for
// the gateway.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wardenai/warden-oss/pkg/domain"
)

// Config holds the global configuration for the gateway.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Model     ModelConfig     `yaml:"model"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Logging   LoggingConfig   `yaml:"logging"`

	// Principals and Policies seed the in-memory stores at startup.
	Principals []domain.Principal `yaml:"principals"`
	Policies   []domain.Policy    `yaml:"policies"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
	Environment  string `yaml:"environment"`
}

// ModelConfig holds configuration for the model backend client.
type ModelConfig struct {
	BaseURL   string `yaml:"base_url"`
	Name      string `yaml:"name"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// Timeout returns the configured client timeout.
func (m ModelConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutMS) * time.Millisecond
}

// GatewayConfig holds pipeline tuning knobs.
type GatewayConfig struct {
	RetrievalK int `yaml:"retrieval_k"`
	// AuthzEngine selects the tool-allowlist evaluator: "direct"
	// (default) or "opa".
	AuthzEngine string `yaml:"authz_engine"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads configuration from a file and applies environment variable
// overrides. A malformed file or an invalid policy payload is fatal.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Address: ":8090",
		},
		Model: ModelConfig{
			BaseURL:   "http://localhost:11434",
			Name:      "llama3",
			TimeoutMS: 60_000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	if path != "" {
		//nolint:gosec // Config file path is controlled by admin/operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &domain.ConfigError{Section: "file", Err: err}
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &domain.ConfigError{Section: "file", Err: fmt.Errorf("parse %s: %w", path, err)}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("WARDEN_ADDR"); val != "" {
		cfg.Server.Address = val
	}
	if val := os.Getenv("WARDEN_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("WARDEN_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}
	if val := os.Getenv("WARDEN_MODEL_URL"); val != "" {
		cfg.Model.BaseURL = val
	}
	if val := os.Getenv("WARDEN_MODEL_NAME"); val != "" {
		cfg.Model.Name = val
	}
	if val := os.Getenv("WARDEN_RETRIEVAL_K"); val != "" {
		if k, err := strconv.Atoi(val); err == nil {
			cfg.Gateway.RetrievalK = k
		}
	}
	if val := os.Getenv("WARDEN_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
}

// Validate checks the configuration, including every seeded policy payload.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return &domain.ConfigError{Section: "server", Err: fmt.Errorf("address must not be empty")}
	}
	if c.Model.BaseURL == "" {
		return &domain.ConfigError{Section: "model", Err: fmt.Errorf("base_url must not be empty")}
	}
	if c.Model.TimeoutMS < 0 {
		return &domain.ConfigError{Section: "model", Err: fmt.Errorf("timeout_ms must not be negative")}
	}
	if c.Gateway.RetrievalK < 0 {
		return &domain.ConfigError{Section: "gateway", Err: fmt.Errorf("retrieval_k must not be negative")}
	}
	switch c.Gateway.AuthzEngine {
	case "", "direct", "opa":
	default:
		return &domain.ConfigError{Section: "gateway", Err: fmt.Errorf("unknown authz_engine %q", c.Gateway.AuthzEngine)}
	}

	seen := make(map[string]struct{}, len(c.Principals))
	for i, p := range c.Principals {
		if p.ID == "" {
			return &domain.ConfigError{Section: "principals", Err: fmt.Errorf("entry %d: id must not be empty", i)}
		}
		if _, dup := seen[p.ID]; dup {
			return &domain.ConfigError{Section: "principals", Err: fmt.Errorf("duplicate id %q", p.ID)}
		}
		seen[p.ID] = struct{}{}
	}

	for i, pol := range c.Policies {
		if pol.Name == "" {
			return &domain.ConfigError{Section: "policies", Err: fmt.Errorf("entry %d: name must not be empty", i)}
		}
		switch pol.Rule.Kind {
		case domain.RuleDLP, domain.RuleToolAllowlist:
		case domain.RuleRAGContext:
			if rule := pol.Rule.RAGContext; rule != nil && rule.RejectionThreshold < 0 {
				return &domain.ConfigError{Section: "policies", Err: fmt.Errorf("policy %q: rejection_threshold must not be negative", pol.Name)}
			}
		default:
			return &domain.ConfigError{Section: "policies", Err: fmt.Errorf("policy %q: unknown rule kind %q", pol.Name, pol.Rule.Kind)}
		}
	}

	return nil
}
