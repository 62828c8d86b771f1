package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PostgresConfig points at the database holding API tokens.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// TracingConfig selects the OTLP collector. An empty endpoint disables export.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// Config is the full service configuration as read from YAML and the environment.
type Config struct {
	Server struct {
		Host        string `yaml:"host"`
		Port        string `yaml:"port"`
		Prefork     bool   `yaml:"prefork"`
		Environment string `yaml:"environment"`
		BodyLimit   int    `yaml:"body_limit"`
	} `yaml:"server"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Cache struct {
		RedisHost           string        `yaml:"redis_host"`
		RateLimitDB         int           `yaml:"redis_rate_db"`
		DiagramCacheDB      int           `yaml:"redis_diagram_db"`
		DiagramCacheEnabled bool          `yaml:"diagram_cache_enabled"`
		DiagramCacheTTL     time.Duration `yaml:"diagram_cache_ttl"`
	} `yaml:"cache"`

	RateLimiter struct {
		Interval          time.Duration `yaml:"interval"`
		EnableUserLimiter bool          `yaml:"enable_user_limiter"`
		UserLimit         int           `yaml:"user_limit"`
	} `yaml:"rate_limiter"`

	Auth struct {
		Enabled        bool           `yaml:"enabled"`
		ReloadInterval time.Duration  `yaml:"reload_interval"`
		Postgres       PostgresConfig `yaml:"postgres"`
	} `yaml:"auth"`

	Generator struct {
		APIKey       string        `yaml:"api_key"`
		BaseURL      string        `yaml:"base_url"`
		Model        string        `yaml:"model"`
		Timeout      time.Duration `yaml:"timeout"`
		MaxCodeChars int           `yaml:"max_code_chars"`
	} `yaml:"generator"`

	Export struct {
		StagingDir     string        `yaml:"staging_dir"`
		Engine         string        `yaml:"engine"`
		Command        string        `yaml:"command"`
		CommandArgs    []string      `yaml:"command_args"`
		PuppeteerConf  string        `yaml:"puppeteer_config"`
		Theme          string        `yaml:"theme"`
		Background     string        `yaml:"background"`
		Timeout        time.Duration `yaml:"timeout"`
		MaxSourceChars int           `yaml:"max_source_chars"`
		StaleAfter     time.Duration `yaml:"stale_after"`
		SweepInterval  time.Duration `yaml:"sweep_interval"`
		ChromePath     string        `yaml:"chrome_path"`
		ChromeNoSand   bool          `yaml:"chrome_no_sandbox"`
		MermaidJSURL   string        `yaml:"mermaid_js_url"`
	} `yaml:"export"`

	Tracing TracingConfig `yaml:"tracing"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

// Production reports whether raw upstream error detail must be hidden from clients.
func (c Config) Production() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// AppConfig holds the most recently loaded configuration.
var AppConfig Config

var appConfigMu sync.RWMutex

// GetConfig returns a copy of the active configuration.
func GetConfig() Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return AppConfig
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = ":5000"
	cfg.Server.Environment = "production"
	cfg.Server.BodyLimit = 1024 * 1024

	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 50
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 14

	cfg.Cache.RedisHost = "127.0.0.1:6379"
	cfg.Cache.RateLimitDB = 0
	cfg.Cache.DiagramCacheDB = 1
	cfg.Cache.DiagramCacheTTL = time.Hour

	cfg.RateLimiter.Interval = time.Minute

	cfg.Auth.ReloadInterval = time.Minute

	cfg.Generator.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	cfg.Generator.Model = "gemini-2.5-pro"
	cfg.Generator.Timeout = 60 * time.Second
	cfg.Generator.MaxCodeChars = 10000

	cfg.Export.StagingDir = filepath.Join(os.TempDir(), "code2diagram")
	cfg.Export.Engine = "mmdc"
	cfg.Export.Command = "mmdc"
	cfg.Export.Theme = "neutral"
	cfg.Export.Background = "transparent"
	cfg.Export.Timeout = 30 * time.Second
	cfg.Export.MaxSourceChars = 5000
	cfg.Export.StaleAfter = 10 * time.Minute
	cfg.Export.SweepInterval = 5 * time.Minute
	cfg.Export.MermaidJSURL = "https://cdn.jsdelivr.net/npm/mermaid@11/dist/mermaid.esm.min.mjs"

	cfg.Tracing.ServiceName = "code2diagram"
	cfg.Metrics.Enabled = true
	return cfg
}

// LoadConfig reads the file named by CONFIG_PATH (default config.yaml) and
// publishes it as AppConfig.
func LoadConfig() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadConfigFrom(path)
}

// LoadConfigFrom reads path, applies .env and environment overrides and
// validates the result. A missing file yields the defaults; invalid values panic.
func LoadConfigFrom(path string) Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		Warn("Failed to read .env file", "error", err)
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			panic(fmt.Sprintf("invalid config %s: %v", path, err))
		}
	case errors.Is(err, os.ErrNotExist):
		Warn("Config file not found, using defaults", "path", path)
	default:
		panic(fmt.Sprintf("cannot read config %s: %v", path, err))
	}

	applyEnvOverrides(&cfg)
	if err := validateConfig(cfg); err != nil {
		panic(fmt.Sprintf("invalid config %s: %v", path, err))
	}

	appConfigMu.Lock()
	AppConfig = cfg
	appConfigMu.Unlock()
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Generator.APIKey = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Server.Environment = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if !strings.HasPrefix(v, ":") {
			v = ":" + v
		}
		cfg.Server.Port = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Cache.RedisHost = v
	}
	if v := os.Getenv("MMDC_BIN"); v != "" {
		cfg.Export.Command = v
		cfg.Export.CommandArgs = nil
	}
	if cfg.Export.ChromePath == "" {
		cfg.Export.ChromePath = os.Getenv("CHROME_BIN")
	}
}

func validateConfig(cfg Config) error {
	if cfg.Generator.Timeout <= 0 {
		return errors.New("generator.timeout must be positive")
	}
	if cfg.Generator.MaxCodeChars <= 0 {
		return errors.New("generator.max_code_chars must be positive")
	}
	if cfg.Export.Timeout <= 0 {
		return errors.New("export.timeout must be positive")
	}
	if cfg.Export.MaxSourceChars <= 0 {
		return errors.New("export.max_source_chars must be positive")
	}
	if cfg.Export.StagingDir == "" {
		return errors.New("export.staging_dir is empty")
	}
	switch cfg.Export.Engine {
	case "mmdc", "chrome":
	default:
		return fmt.Errorf("export.engine %q must be mmdc or chrome", cfg.Export.Engine)
	}
	if cfg.Export.Engine == "mmdc" && cfg.Export.Command == "" {
		return errors.New("export.command is empty")
	}
	if cfg.Export.StaleAfter > 0 && cfg.Export.StaleAfter <= cfg.Export.Timeout {
		return errors.New("export.stale_after must exceed export.timeout")
	}
	if cfg.RateLimiter.UserLimit < 0 {
		return errors.New("rate_limiter.user_limit must not be negative")
	}
	if (cfg.RateLimiter.UserLimit > 0 || cfg.Auth.Enabled) && cfg.RateLimiter.Interval <= 0 {
		return errors.New("rate_limiter.interval must be positive")
	}
	if cfg.Auth.Enabled && cfg.Auth.ReloadInterval <= 0 {
		return errors.New("auth.reload_interval must be positive")
	}
	if cfg.Cache.DiagramCacheEnabled && cfg.Cache.DiagramCacheTTL <= 0 {
		return errors.New("cache.diagram_cache_ttl must be positive")
	}
	return nil
}
