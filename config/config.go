package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Log          LogConfig          `yaml:"log"`
	Schedule     ScheduleConfig     `yaml:"schedule"`
	Sync         SyncConfig         `yaml:"sync"`
	Remote       RemoteConfig       `yaml:"remote"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Push         PushConfig         `yaml:"push"`
	WorkerPool   WorkerPoolConfig   `yaml:"worker_pool"`
	Auth         AuthConfig         `yaml:"auth"`
	Sites        []SiteSeed         `yaml:"sites"`
	Fixtures     []FixtureSeed      `yaml:"fixtures"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
// A DSN starting with postgres:// or postgresql:// selects Postgres; anything
// else is treated as a SQLite path or URI.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// AutoSync reports whether silent passes run.
func (c SyncConfig) AutoSync() bool {
	return c.Enabled == nil || *c.Enabled
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ScheduleConfig holds calendar settings used by the derived views.
type ScheduleConfig struct {
	Timezone string         `yaml:"timezone"`
	Location *time.Location `yaml:"-"`
}

// SyncConfig controls the sync orchestrator cadence. Enabled defaults to true;
// false leaves manual sync as the only trigger.
type SyncConfig struct {
	Enabled         *bool         `yaml:"enabled"`
	SettleDelayMS   int           `yaml:"settle_delay_ms"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	SettleDelay     time.Duration `yaml:"-"`
	Interval        time.Duration `yaml:"-"`
}

// RemoteConfig describes the remote reconciliation endpoint.
type RemoteConfig struct {
	URL              string            `yaml:"url"`
	Headers          map[string]string `yaml:"headers"`
	TimeoutSeconds   int               `yaml:"timeout_seconds"`
	RetryCount       int               `yaml:"retry_count"`
	SimulatedDelayMS int               `yaml:"simulated_delay_ms"`
}

// ConnectivityConfig holds the reachability probe settings.
type ConnectivityConfig struct {
	ProbeURL             string        `yaml:"probe_url"`
	ProbeIntervalSeconds int           `yaml:"probe_interval_seconds"`
	ProbeInterval        time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// AuthConfig enables bearer-token auth on the API when JWTSecret is set.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	Issuer        string `yaml:"issuer"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

// SiteSeed is a site directory entry loaded at startup.
type SiteSeed struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Capacity string `yaml:"capacity"`
	Location string `yaml:"location"`
}

// FixtureSeed is a read-only schedule loaded at startup.
type FixtureSeed struct {
	ID             string `yaml:"id"`
	SiteID         string `yaml:"site_id"`
	Date           string `yaml:"date"`
	Time           string `yaml:"time"`
	Title          string `yaml:"title"`
	Description    string `yaml:"description"`
	AssignedUserID string `yaml:"assigned_user_id"`
	Status         string `yaml:"status"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields and derives the duration fields.
func (cfg *Config) ApplyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "fieldsync.db"
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = "Local"
	}
	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return err
	}
	cfg.Schedule.Location = loc

	if cfg.Sync.Enabled == nil {
		enabled := true
		cfg.Sync.Enabled = &enabled
	}
	if cfg.Sync.SettleDelayMS <= 0 {
		cfg.Sync.SettleDelayMS = 2000
	}
	cfg.Sync.SettleDelay = time.Duration(cfg.Sync.SettleDelayMS) * time.Millisecond
	if cfg.Sync.IntervalSeconds <= 0 {
		cfg.Sync.IntervalSeconds = 600
	}
	cfg.Sync.Interval = time.Duration(cfg.Sync.IntervalSeconds) * time.Second

	if cfg.Remote.TimeoutSeconds <= 0 {
		cfg.Remote.TimeoutSeconds = 30
	}
	if cfg.Remote.SimulatedDelayMS <= 0 {
		cfg.Remote.SimulatedDelayMS = 1500
	}

	if cfg.Connectivity.ProbeIntervalSeconds <= 0 {
		cfg.Connectivity.ProbeIntervalSeconds = 15
	}
	cfg.Connectivity.ProbeInterval = time.Duration(cfg.Connectivity.ProbeIntervalSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}

	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "fieldsyncd"
	}
	if cfg.Auth.TokenTTLHours <= 0 {
		cfg.Auth.TokenTTLHours = 24
	}
	return nil
}
