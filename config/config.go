// Package config loads server configuration from an optional YAML file with
// environment variable overrides on top of built-in defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ontolink/ontolink/dsl"
)

// Guardrails configures the DSL complexity limits. Zero values mean "use the
// engine default" for that limit.
type Guardrails struct {
	MaxDepth int `yaml:"max_depth"`
	MaxNodes int `yaml:"max_nodes"`
	MaxCost  int `yaml:"max_cost"`
}

// Limits converts the configuration into engine limits.
func (g Guardrails) Limits() dsl.Limits {
	return dsl.Limits{MaxDepth: g.MaxDepth, MaxNodes: g.MaxNodes, MaxCost: g.MaxCost}
}

// Duration wraps time.Duration so YAML values like "30s" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the full server configuration.
type Config struct {
	ListenAddr  string     `yaml:"listen_addr"`
	DatabaseURL string     `yaml:"database_url"`
	LogLevel    string     `yaml:"log_level"`
	SnapshotTTL Duration   `yaml:"snapshot_ttl"`
	Guardrails  Guardrails `yaml:"guardrails"`
}

// Default returns the built-in configuration: in-memory stores (no database),
// default guardrails, INFO logging.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		LogLevel:   "INFO",
	}
}

// Load reads configuration from path (skipped when empty), then applies
// environment overrides: LISTEN_ADDR, DATABASE_URL, LOG_LEVEL, SNAPSHOT_TTL,
// and GUARDRAIL_MAX_DEPTH / GUARDRAIL_MAX_NODES / GUARDRAIL_MAX_COST.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SNAPSHOT_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid SNAPSHOT_TTL %q: %w", v, err)
		}
		cfg.SnapshotTTL = Duration(ttl)
	}
	if err := overrideInt("GUARDRAIL_MAX_DEPTH", &cfg.Guardrails.MaxDepth); err != nil {
		return cfg, err
	}
	if err := overrideInt("GUARDRAIL_MAX_NODES", &cfg.Guardrails.MaxNodes); err != nil {
		return cfg, err
	}
	if err := overrideInt("GUARDRAIL_MAX_COST", &cfg.Guardrails.MaxCost); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func overrideInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	*dst = n
	return nil
}
