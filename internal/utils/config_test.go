package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "APP_ENV", "PORT", "REDIS_HOST", "MMDC_BIN", "CHROME_BIN"} {
		t.Setenv(k, "")
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadConfigFrom_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg := LoadConfigFrom(filepath.Join(t.TempDir(), "absent.yaml"))

	assert.Equal(t, DefaultConfig(), cfg)
	assert.True(t, cfg.Production())
	assert.Equal(t, 10000, cfg.Generator.MaxCodeChars)
	assert.Equal(t, 5000, cfg.Export.MaxSourceChars)
	assert.Equal(t, cfg, GetConfig())
}

func TestLoadConfigFrom_YAML(t *testing.T) {
	clearEnv(t)
	p := writeYAML(t, `
server:
  port: ":8080"
  environment: development
generator:
  model: gemini-test
  timeout: 5s
export:
  engine: chrome
  command_args: ["mmdc"]
  timeout: 2s
  stale_after: 1m
cache:
  diagram_cache_enabled: true
  diagram_cache_ttl: 90s
`)
	cfg := LoadConfigFrom(p)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.False(t, cfg.Production())
	assert.Equal(t, "gemini-test", cfg.Generator.Model)
	assert.Equal(t, 5*time.Second, cfg.Generator.Timeout)
	assert.Equal(t, "chrome", cfg.Export.Engine)
	assert.Equal(t, []string{"mmdc"}, cfg.Export.CommandArgs)
	assert.Equal(t, time.Minute, cfg.Export.StaleAfter)
	assert.True(t, cfg.Cache.DiagramCacheEnabled)
	assert.Equal(t, 90*time.Second, cfg.Cache.DiagramCacheTTL)
	// untouched keys keep their defaults
	assert.Equal(t, "neutral", cfg.Export.Theme)
}

func TestLoadConfigFrom_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("APP_ENV", "staging")
	t.Setenv("PORT", "9000")
	t.Setenv("REDIS_HOST", "redis:6379")
	t.Setenv("MMDC_BIN", "/opt/mmdc")
	t.Setenv("CHROME_BIN", "/usr/bin/chromium")

	p := writeYAML(t, "generator:\n  api_key: from-file\nexport:\n  command: npx\n  command_args: [mmdc]\n")
	cfg := LoadConfigFrom(p)

	assert.Equal(t, "from-env", cfg.Generator.APIKey)
	assert.Equal(t, "staging", cfg.Server.Environment)
	assert.Equal(t, ":9000", cfg.Server.Port)
	assert.Equal(t, "redis:6379", cfg.Cache.RedisHost)
	assert.Equal(t, "/opt/mmdc", cfg.Export.Command)
	assert.Empty(t, cfg.Export.CommandArgs)
	assert.Equal(t, "/usr/bin/chromium", cfg.Export.ChromePath)
}

func TestLoadConfigFrom_InvalidPanics(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"bad yaml":        "server: [",
		"unknown engine":  "export:\n  engine: wkhtml\n",
		"stale too short": "export:\n  timeout: 30s\n  stale_after: 10s\n",
		"zero code limit": "generator:\n  max_code_chars: 0\n",
		"negative limit":  "rate_limiter:\n  user_limit: -1\n",
		"cache ttl":       "cache:\n  diagram_cache_enabled: true\n  diagram_cache_ttl: 0s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p := writeYAML(t, body)
			assert.Panics(t, func() { LoadConfigFrom(p) })
		})
	}
}

func TestValidateConfig_Defaults(t *testing.T) {
	assert.NoError(t, validateConfig(DefaultConfig()))

	cfg := DefaultConfig()
	cfg.Auth.Enabled = true
	cfg.Auth.ReloadInterval = 0
	assert.EqualError(t, validateConfig(cfg), "auth.reload_interval must be positive")

	cfg = DefaultConfig()
	cfg.Export.StaleAfter = 0
	assert.NoError(t, validateConfig(cfg), "a zero stale_after disables the sweeper")
}

func TestProduction_CaseInsensitive(t *testing.T) {
	var cfg Config
	cfg.Server.Environment = "Production"
	assert.True(t, cfg.Production())
	cfg.Server.Environment = "dev"
	assert.False(t, cfg.Production())
}
