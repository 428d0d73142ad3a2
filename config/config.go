// Package config is the process-wide configuration value-object for a
// didexchange agent: an environment-aware load-then-override pipeline
// covering the agent, ledger, keystore, logging, and metrics sections.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document.
type Config struct {
	Environment string         `yaml:"environment" json:"environment"`
	Agent       *AgentConfig   `yaml:"agent" json:"agent"`
	Ledger      *LedgerConfig  `yaml:"ledger" json:"ledger"`
	KeyStore    *KeyStoreConfig `yaml:"keystore" json:"keystore"`
	Logging     *LoggingConfig `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig `yaml:"metrics" json:"metrics"`
}

// AgentConfig carries every field connection.Config needs; Manager()
// projects it onto that struct's shape so the rest of the module never has
// to know about YAML tags.
type AgentConfig struct {
	Label                string        `yaml:"label" json:"label"`
	Endpoint             string        `yaml:"endpoint" json:"endpoint"`
	AdditionalEndpoints  []string      `yaml:"additional_endpoints" json:"additional_endpoints"`
	PublicInvitesEnabled bool          `yaml:"public_invites_enabled" json:"public_invites_enabled"`
	AutoAcceptRequests   bool          `yaml:"auto_accept_requests" json:"auto_accept_requests"`
	AutoAcceptResponses  bool          `yaml:"auto_accept_responses" json:"auto_accept_responses"`
	MaxRoutingDepth      int           `yaml:"max_routing_depth" json:"max_routing_depth"`
	InboundCacheTTL      time.Duration `yaml:"inbound_cache_ttl" json:"inbound_cache_ttl"`
	TargetCacheTTL       time.Duration `yaml:"target_cache_ttl" json:"target_cache_ttl"`
}

// LedgerConfig configures the Ethereum-backed DID registry client.
type LedgerConfig struct {
	RPCURL          string        `yaml:"rpc_url" json:"rpc_url"`
	ContractAddress string        `yaml:"contract_address" json:"contract_address"`
	RequestTimeout  time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// KeyStoreConfig describes where and how local keys are held;
// wallet.InMemory doesn't read it yet, but a durable wallet implementation
// would.
type KeyStoreConfig struct {
	Type          string `yaml:"type" json:"type"`
	Directory     string `yaml:"directory" json:"directory"`
	PassphraseEnv string `yaml:"passphrase_env" json:"passphrase_env"`
}

// LoggingConfig holds the logging section (level, format, output). It is
// loaded and defaulted here; cmd/didxctl does not build a logger from it.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// Manager projects AgentConfig onto connection.Config's shape. It returns
// plain values (no import of the connection package here) so callers
// assemble the connection.Config literal themselves — keeping config a
// leaf package nothing else needs to import back.
func (a *AgentConfig) Manager() (defaultEndpoint, label string, additionalEndpoints []string, publicInvitesEnabled, autoAcceptRequests, autoAcceptResponses bool, maxRoutingDepth int, inboundCacheTTL, targetCacheTTL time.Duration) {
	return a.Endpoint, a.Label, a.AdditionalEndpoints, a.PublicInvitesEnabled, a.AutoAcceptRequests, a.AutoAcceptResponses, a.MaxRoutingDepth, a.InboundCacheTTL, a.TargetCacheTTL
}

// LoadFromFile reads cfg from path, trying YAML then JSON, and applies
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s (tried YAML and JSON): %w", path, err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes cfg to path, choosing JSON or YAML by extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// setDefaults fills in every section of cfg, allocating sections that are
// nil (no config file sets that section, or no config file exists at all)
// so a caller always gets a fully-populated Config back rather than having
// to nil-check each section before reading it.
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Agent == nil {
		cfg.Agent = &AgentConfig{}
	}
	if cfg.Agent.Label == "" {
		cfg.Agent.Label = "didexchange-agent"
	}
	if cfg.Agent.Endpoint == "" {
		cfg.Agent.Endpoint = "https://example.org/didcomm"
	}
	if cfg.Agent.MaxRoutingDepth == 0 {
		cfg.Agent.MaxRoutingDepth = 8
	}
	if cfg.Agent.InboundCacheTTL == 0 {
		cfg.Agent.InboundCacheTTL = time.Hour
	}
	if cfg.Agent.TargetCacheTTL == 0 {
		cfg.Agent.TargetCacheTTL = time.Hour
	}

	if cfg.Ledger == nil {
		cfg.Ledger = &LedgerConfig{}
	}
	if cfg.Ledger.RequestTimeout == 0 {
		cfg.Ledger.RequestTimeout = 30 * time.Second
	}

	if cfg.KeyStore == nil {
		cfg.KeyStore = &KeyStoreConfig{}
	}
	if cfg.KeyStore.Type == "" {
		cfg.KeyStore.Type = "in-memory"
	}
	if cfg.KeyStore.Directory == "" {
		cfg.KeyStore.Directory = ".didexchange/keys"
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}
