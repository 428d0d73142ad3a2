package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// LoaderOptions configures Load.
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default "config").
	ConfigDir string
	// Environment overrides automatic environment detection.
	Environment string
	// SkipEnvSubstitution disables ${VAR} substitution inside string
	// fields.
	SkipEnvSubstitution bool
}

// DefaultLoaderOptions returns the default loader options.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{ConfigDir: "config"}
}

// Load loads configuration with automatic environment detection: a
// .env file is loaded first (if present, so DIDX_* variables referenced by
// ${...} substitution or the override pass below are available), then
// <env>.yaml, falling back to default.yaml and then config.yaml, then
// environment-variable overrides are applied last.
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	_ = godotenv.Load()

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	cfg, err := loadConfigFile(filepath.Join(options.ConfigDir, env+".yaml"))
	if err != nil {
		cfg, err = loadConfigFile(filepath.Join(options.ConfigDir, "default.yaml"))
		if err != nil {
			cfg, err = loadConfigFile(filepath.Join(options.ConfigDir, "config.yaml"))
			if err != nil {
				cfg = &Config{}
			}
		}
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}
	setDefaults(cfg)

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}
	applyEnvironmentOverrides(cfg)

	return cfg, nil
}

func loadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config: file not found: %s", path)
	}
	return LoadFromFile(path)
}

// applyEnvironmentOverrides lets DIDX_* environment variables win over
// whatever the config file said, the highest-priority layer.
func applyEnvironmentOverrides(cfg *Config) {
	if cfg.Agent != nil {
		if endpoint := os.Getenv("DIDX_ENDPOINT"); endpoint != "" {
			cfg.Agent.Endpoint = endpoint
		}
		if label := os.Getenv("DIDX_LABEL"); label != "" {
			cfg.Agent.Label = label
		}
		if v := os.Getenv("DIDX_PUBLIC_INVITES_ENABLED"); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				cfg.Agent.PublicInvitesEnabled = b
			}
		}
		if v := os.Getenv("DIDX_AUTO_ACCEPT_REQUESTS"); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				cfg.Agent.AutoAcceptRequests = b
			}
		}
		if v := os.Getenv("DIDX_AUTO_ACCEPT_RESPONSES"); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				cfg.Agent.AutoAcceptResponses = b
			}
		}
	}

	if cfg.Ledger != nil {
		if rpc := os.Getenv("DIDX_LEDGER_RPC_URL"); rpc != "" {
			cfg.Ledger.RPCURL = rpc
		}
		if addr := os.Getenv("DIDX_LEDGER_CONTRACT_ADDRESS"); addr != "" {
			cfg.Ledger.ContractAddress = addr
		}
	}

	if cfg.KeyStore != nil {
		if dir := os.Getenv("DIDX_KEYSTORE_DIR"); dir != "" {
			cfg.KeyStore.Directory = dir
		}
	}

	if cfg.Logging != nil {
		if level := os.Getenv("DIDX_LOG_LEVEL"); level != "" {
			cfg.Logging.Level = level
		}
		if format := os.Getenv("DIDX_LOG_FORMAT"); format != "" {
			cfg.Logging.Format = format
		}
	}

	if cfg.Metrics != nil {
		if v := os.Getenv("DIDX_METRICS_ENABLED"); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				cfg.Metrics.Enabled = b
			}
		}
	}
}

// MustLoad loads configuration, panicking on error — for cmd/didxctl's
// startup path where there is no graceful degradation from a broken
// config.
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("config: failed to load: %v", err))
	}
	return cfg
}
