package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration loaded from YAML.
type Config struct {
	Server struct {
		Host    string `yaml:"host"`
		Port    string `yaml:"port"`
		Prefork bool   `yaml:"prefork"`
	} `yaml:"server"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Limits struct {
		MaxSourceChars int `yaml:"max_source_chars"`
		MaxBodyBytes   int `yaml:"max_body_bytes"`
	} `yaml:"limits"`

	Render struct {
		// TimeoutSecs and StatusTimeoutSecs default when absent; an explicit 0
		// disables the deadline.
		TimeoutSecs       *int `yaml:"timeout_secs"`
		StatusTimeoutSecs *int `yaml:"status_timeout_secs"`
		// MaxConcurrent bounds in-flight operations. 0 means unbounded.
		MaxConcurrent int `yaml:"max_concurrent"`
	} `yaml:"render"`

	Engine EngineConfig `yaml:"engine"`

	Security struct {
		Denylist []string `yaml:"denylist"`
	} `yaml:"security"`

	Moderation struct {
		FlagPatterns []string `yaml:"flag_patterns"`
	} `yaml:"moderation"`

	Cache struct {
		RenderCacheEnabled bool          `yaml:"render_cache_enabled"`
		RenderCacheTTL     time.Duration `yaml:"render_cache_ttl"`
		LocalCacheSize     int           `yaml:"local_cache_size"`
		RedisHost          string        `yaml:"redis_host"`
		RateLimitDB        int           `yaml:"redis_rate_db"`
		RenderCacheDB      int           `yaml:"redis_render_db"`
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
}

// EngineConfig selects and tunes the PlantUML engine.
type EngineConfig struct {
	// Kind is "server" (PlantUML server over HTTP) or "jar" (local subprocess).
	Kind            string `yaml:"kind"`
	ServerURL       string `yaml:"server_url"`
	JarPath         string `yaml:"jar_path"`
	JavaPath        string `yaml:"java_path"`
	PoolSize        int    `yaml:"pool_size"`
	HTTPTimeoutSecs int    `yaml:"http_timeout_secs"`
}

// PostgresConfig holds connection settings for the API token store.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

const (
	EngineServer = "server"
	EngineJar    = "jar"
)

// Default returns a configuration with every default applied.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

// Load reads the file named by CONFIG_PATH, or config.yaml when unset.
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFrom(path)
}

// LoadFrom reads and validates the YAML file at path. It panics when the file
// cannot be read or holds invalid values; the service cannot start without a
// usable configuration.
func LoadFrom(path string) Config {
	data, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("config: read %s: %v", path, err))
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		panic(fmt.Sprintf("config: parse %s: %v", path, err))
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PLANTUML_SERVER_URL"); v != "" {
		cfg.Engine.ServerURL = v
	}
	if v := os.Getenv("PLANTUML_JAR"); v != "" {
		cfg.Engine.JarPath = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Limits.MaxSourceChars == 0 {
		cfg.Limits.MaxSourceChars = 50000
	}
	if cfg.Limits.MaxBodyBytes == 0 {
		cfg.Limits.MaxBodyBytes = 1024 * 1024
	}
	if cfg.Render.TimeoutSecs == nil {
		cfg.Render.TimeoutSecs = Secs(30)
	}
	if cfg.Render.StatusTimeoutSecs == nil {
		cfg.Render.StatusTimeoutSecs = Secs(3)
	}
	if cfg.Engine.Kind == "" {
		cfg.Engine.Kind = EngineServer
	}
	if cfg.Engine.ServerURL == "" {
		cfg.Engine.ServerURL = "http://localhost:8081/plantuml"
	}
	if cfg.Engine.JavaPath == "" {
		cfg.Engine.JavaPath = "java"
	}
	if cfg.Engine.HTTPTimeoutSecs == 0 {
		cfg.Engine.HTTPTimeoutSecs = 30
	}
	if cfg.Security.Denylist == nil {
		cfg.Security.Denylist = []string{`<script`, `javascript:`, `data:text/html`}
	}
	if cfg.Cache.RenderCacheTTL == 0 {
		cfg.Cache.RenderCacheTTL = time.Hour
	}
	if cfg.Cache.LocalCacheSize == 0 {
		cfg.Cache.LocalCacheSize = 256
	}
	if cfg.RateLimiter.Interval == 0 {
		cfg.RateLimiter.Interval = time.Minute
	}
	if cfg.Auth.ReloadInterval == 0 {
		cfg.Auth.ReloadInterval = time.Minute
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Engine.Kind {
	case EngineServer:
		if c.Engine.ServerURL == "" {
			return fmt.Errorf("engine.server_url is required for the server engine")
		}
	case EngineJar:
		if c.Engine.JarPath == "" {
			return fmt.Errorf("engine.jar_path is required for the jar engine")
		}
	default:
		return fmt.Errorf("engine.kind %q is not supported", c.Engine.Kind)
	}
	if c.Engine.PoolSize < 0 {
		return fmt.Errorf("engine.pool_size must not be negative")
	}
	if c.Limits.MaxSourceChars < 0 {
		return fmt.Errorf("limits.max_source_chars must not be negative")
	}
	if secs(c.Render.TimeoutSecs) < 0 || secs(c.Render.StatusTimeoutSecs) < 0 {
		return fmt.Errorf("render timeouts must not be negative")
	}
	if c.Render.MaxConcurrent < 0 {
		return fmt.Errorf("render.max_concurrent must not be negative")
	}
	if c.RateLimiter.Interval < 0 {
		return fmt.Errorf("rate_limiter.interval must be positive")
	}
	if c.RateLimiter.UserLimit < 0 {
		return fmt.Errorf("rate_limiter.user_limit must not be negative")
	}
	if c.Auth.Enabled && c.Auth.Postgres.Host == "" {
		return fmt.Errorf("auth.postgres.host is required when auth is enabled")
	}
	return nil
}

// RenderTimeout is the per-operation deadline. Zero disables it.
func (c Config) RenderTimeout() time.Duration {
	return time.Duration(secs(c.Render.TimeoutSecs)) * time.Second
}

// StatusTimeout bounds the engine version lookup of a status query. Zero
// disables it.
func (c Config) StatusTimeout() time.Duration {
	return time.Duration(secs(c.Render.StatusTimeoutSecs)) * time.Second
}

// Secs returns a pointer to n, for setting optional timeouts in code.
func Secs(n int) *int { return &n }

func secs(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// RedisEnabled reports whether a Redis host is configured.
func (c Config) RedisEnabled() bool {
	return c.Cache.RedisHost != ""
}
