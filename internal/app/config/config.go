package config

import "time"

// Config provides read-only access to application configuration.
// The application layer depends on this interface, never on the settings file.
type Config interface {
	// Storage
	Home() string    // Base directory (LOANSTAGE_HOME)
	Store() string   // "sqlite" or "file"
	DBPath() string  // SQLite database path
	DataDir() string // File store root

	// Locking
	LockBackend() string         // "sqlite" or "redis"
	LockTTL() time.Duration      // Lease lifetime without heartbeats
	LockWait() time.Duration     // How long a transition waits for a held lease
	LockCleanupSchedule() string // Cron spec for expired-lock cleanup
	MaxConflictRetries() int     // Reload-and-retry budget after a concurrent save
	RedisAddr() string           // Redis address for lock_backend=redis
	RedisPassword() string       // Redis password
	RedisDB() int                // Redis database index

	// Notification
	KafkaBrokers() []string // Empty disables the Kafka sink
	KafkaTopic() string     // Topic for transition events
	NotifyBuffer() int      // Async notification buffer size
	JournalPath() string    // Transition journal file; empty disables it

	// Surfaces
	HTTPAddr() string // Listen address for serve
	Actor() string    // Configured actor identity
	LogLevel() string // debug, info, warn or error
	Output() string   // "text" or "json"

	// Metadata
	ConfigSource() string // "json" or "default"
	SettingPath() string  // Path to setting.json if loaded from file
}

// Values carries every resolved setting into NewAppConfig
type Values struct {
	Home                string
	Store               string
	DBPath              string
	DataDir             string
	LockBackend         string
	LockTTLSec          int
	LockWaitMs          int
	LockCleanupSchedule string
	MaxConflictRetries  int
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	KafkaBrokers        []string
	KafkaTopic          string
	NotifyBuffer        int
	JournalPath         string
	HTTPAddr            string
	Actor               string
	LogLevel            string
	Output              string
	ConfigSource        string
	SettingPath         string
}

// AppConfig is the concrete implementation of Config
type AppConfig struct {
	v Values
}

// NewAppConfig creates a new AppConfig.
// The infrastructure layer calls it after loading and defaulting settings.
func NewAppConfig(v Values) *AppConfig {
	brokers := make([]string, len(v.KafkaBrokers))
	copy(brokers, v.KafkaBrokers)
	v.KafkaBrokers = brokers
	return &AppConfig{v: v}
}

func (c *AppConfig) Home() string    { return c.v.Home }
func (c *AppConfig) Store() string   { return c.v.Store }
func (c *AppConfig) DBPath() string  { return c.v.DBPath }
func (c *AppConfig) DataDir() string { return c.v.DataDir }

func (c *AppConfig) LockBackend() string { return c.v.LockBackend }

// LockTTL returns the lease lifetime as a Duration
func (c *AppConfig) LockTTL() time.Duration {
	return time.Duration(c.v.LockTTLSec) * time.Second
}

// LockWait returns the lease wait as a Duration
func (c *AppConfig) LockWait() time.Duration {
	return time.Duration(c.v.LockWaitMs) * time.Millisecond
}

func (c *AppConfig) LockCleanupSchedule() string { return c.v.LockCleanupSchedule }
func (c *AppConfig) MaxConflictRetries() int     { return c.v.MaxConflictRetries }
func (c *AppConfig) RedisAddr() string           { return c.v.RedisAddr }
func (c *AppConfig) RedisPassword() string       { return c.v.RedisPassword }
func (c *AppConfig) RedisDB() int                { return c.v.RedisDB }

// KafkaBrokers returns a copy of the broker list
func (c *AppConfig) KafkaBrokers() []string {
	out := make([]string, len(c.v.KafkaBrokers))
	copy(out, c.v.KafkaBrokers)
	return out
}

func (c *AppConfig) KafkaTopic() string  { return c.v.KafkaTopic }
func (c *AppConfig) NotifyBuffer() int   { return c.v.NotifyBuffer }
func (c *AppConfig) JournalPath() string { return c.v.JournalPath }
func (c *AppConfig) HTTPAddr() string    { return c.v.HTTPAddr }
func (c *AppConfig) Actor() string       { return c.v.Actor }
func (c *AppConfig) LogLevel() string    { return c.v.LogLevel }
func (c *AppConfig) Output() string      { return c.v.Output }

func (c *AppConfig) ConfigSource() string { return c.v.ConfigSource }
func (c *AppConfig) SettingPath() string  { return c.v.SettingPath }
