package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFileYAML(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	content := `environment: staging
agent:
  label: "Alice Agent"
  endpoint: "https://alice.example/didcomm"
  public_invites_enabled: true
ledger:
  rpc_url: "https://rpc.example"
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "Alice Agent", cfg.Agent.Label)
	assert.True(t, cfg.Agent.PublicInvitesEnabled)
	assert.Equal(t, "https://rpc.example", cfg.Ledger.RPCURL)
	assert.Equal(t, 30*time.Second, cfg.Ledger.RequestTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("DIDX_TEST_ENDPOINT", "https://from-env.example")

	assert.Equal(t, "https://from-env.example", SubstituteEnvVars("${DIDX_TEST_ENDPOINT}"))
	assert.Equal(t, "fallback", SubstituteEnvVars("${DIDX_TEST_UNSET:fallback}"))
}

func TestApplyEnvironmentOverrides(t *testing.T) {
	t.Setenv("DIDX_LABEL", "Overridden")
	t.Setenv("DIDX_AUTO_ACCEPT_REQUESTS", "true")

	cfg := &Config{Agent: &AgentConfig{Label: "Original"}}
	applyEnvironmentOverrides(cfg)

	assert.Equal(t, "Overridden", cfg.Agent.Label)
	assert.True(t, cfg.Agent.AutoAcceptRequests)
}

func TestGetEnvironmentDefaultsToDevelopment(t *testing.T) {
	t.Setenv("DIDX_ENV", "")
	t.Setenv("ENVIRONMENT", "")
	assert.Equal(t, "development", GetEnvironment())
}

func TestLoadFallsBackToEmptyConfig(t *testing.T) {
	tmpDir := t.TempDir()
	cfg, err := Load(LoaderOptions{ConfigDir: tmpDir})
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
}
