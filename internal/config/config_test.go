package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAMLKeepsDefaultPolicies(t *testing.T) {
	path := writeFile(t, "autopilot.yaml", `
server:
  address: ":9090"
storage:
  driver: SQLite
llm:
  timeout: 3s
agents:
  cfo:
    low_balance_ratio: 0.2
  collections:
    min_days_overdue: 7
  productivity:
    look_ahead: 72h
runtime:
  timezone: Asia/Kolkata
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "file:"+filepath.Join(filepath.Dir(path), "data", "autopilot.db"), cfg.Storage.DSN)
	assert.Equal(t, 3*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "0.2", cfg.Agents.CFO.LowBalanceRatio.String())
	assert.Equal(t, int64(30), cfg.Agents.CFO.DefaultSplit.TaxPct)
	assert.Equal(t, 7, cfg.Agents.Collections.MinDaysOverdue)
	assert.Equal(t, 1, cfg.Agents.Hunter.MaxActionsPerRun)
	assert.Equal(t, 72*time.Hour, cfg.Agents.Productivity.LookAhead)
	assert.Equal(t, "Asia/Kolkata", cfg.Agents.Productivity.Timezone)
	assert.Equal(t, "memory", cfg.Lock.Driver)
}

func TestLoadJSONAndEnvSecrets(t *testing.T) {
	t.Setenv("AUTOPILOT_TEST_DSN", "user:pass@tcp(db:3306)/autopilot?parseTime=true")
	t.Setenv("AUTOPILOT_TEST_OPENAI", "sk-test")
	path := writeFile(t, "autopilot.json", `{
  "storage": {"driver": "mysql", "dsn_env": "AUTOPILOT_TEST_DSN"},
  "llm": {"provider": "openai", "openai": {"api_key_env": "AUTOPILOT_TEST_OPENAI"}},
  "dispatch": {"driver": "redis", "redis": {"address": "localhost:6379"}}
}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "user:pass@tcp(db:3306)/autopilot?parseTime=true", cfg.Storage.DSN)
	assert.Equal(t, "sk-test", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, "autopilot:runs", cfg.Dispatch.Queue)
	assert.Equal(t, 2, cfg.Dispatch.Workers)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := Load(writeFile(t, "bad.json", `{"storage": {"driver": "postgres"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.driver")

	_, err = Load(writeFile(t, "broken.json", `storage: {}`))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "split.yaml", `
agents:
  cfo:
    default_split: {tax_pct: 50, savings_pct: 50, buffer_pct: 10}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_split")

	_, err = Load("")
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "disabled", cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.Runtime.Workers)
	assert.Equal(t, 30*time.Second, cfg.Runtime.RunTimeout)
}
