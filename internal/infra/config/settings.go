package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/YoshitsuguKoike/loanstage/internal/app/config"
)

// HomeEnv names the environment variable that relocates the home directory
const HomeEnv = "LOANSTAGE_HOME"

// DefaultHome is used when HomeEnv is unset
const DefaultHome = ".loanstage"

// RawSettings represents the structure of setting.json.
// Pointer fields distinguish "absent" from zero values.
type RawSettings struct {
	// Storage
	Store   *string `json:"store"`
	DBPath  *string `json:"db_path"`
	DataDir *string `json:"data_dir"`

	// Locking
	LockBackend         *string `json:"lock_backend"`
	LockTTLSec          *int    `json:"lock_ttl_sec"`
	LockWaitMs          *int    `json:"lock_wait_ms"`
	MaxConflictRetries  *int    `json:"max_conflict_retries"`
	LockCleanupSchedule *string `json:"lock_cleanup_schedule"`
	RedisAddr           *string `json:"redis_addr"`
	RedisPassword       *string `json:"redis_password"`
	RedisDB             *int    `json:"redis_db"`

	// Notification
	KafkaBrokers []string `json:"kafka_brokers"`
	KafkaTopic   *string  `json:"kafka_topic"`
	NotifyBuffer *int     `json:"notify_buffer"`
	JournalPath  *string  `json:"journal_path"` // Empty disables the journal

	// Surfaces
	HTTPAddr *string `json:"http_addr"`
	Actor    *string `json:"actor"`
	LogLevel *string `json:"log_level"`
	Output   *string `json:"output"`
}

// ResolveHome returns $LOANSTAGE_HOME or the default home directory
func ResolveHome() string {
	if h := strings.TrimSpace(os.Getenv(HomeEnv)); h != "" {
		return h
	}
	return DefaultHome
}

// LoadSettings loads configuration from <home>/setting.json.
// Priority: setting.json > defaults
func LoadSettings(home string) (*config.AppConfig, error) {
	settings := &RawSettings{}
	configSource := "default"
	settingPath := ""

	jsonPath := filepath.Join(home, "setting.json")
	data, err := os.ReadFile(jsonPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", jsonPath, err)
		}
		configSource = "json"
		settingPath = jsonPath
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read %s: %w", jsonPath, err)
	}

	applyDefaults(settings, home)

	if err := validate(settings); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", jsonPath, err)
	}

	return buildAppConfig(settings, home, configSource, settingPath), nil
}

func strPtr(v string) *string { return &v }
func intPtr(v int) *int       { return &v }

// applyDefaults fills in default values for any nil fields
func applyDefaults(s *RawSettings, home string) {
	if s.Store == nil {
		s.Store = strPtr("sqlite")
	}
	if s.DBPath == nil {
		s.DBPath = strPtr(filepath.Join(home, "loanstage.db"))
	}
	if s.DataDir == nil {
		s.DataDir = strPtr(filepath.Join(home, "data"))
	}

	if s.LockBackend == nil {
		s.LockBackend = strPtr("sqlite")
	}
	if s.LockTTLSec == nil {
		s.LockTTLSec = intPtr(30)
	}
	if s.LockWaitMs == nil {
		s.LockWaitMs = intPtr(2000)
	}
	if s.MaxConflictRetries == nil {
		s.MaxConflictRetries = intPtr(3)
	}
	if s.LockCleanupSchedule == nil {
		s.LockCleanupSchedule = strPtr("@every 1m")
	}
	if s.RedisAddr == nil {
		s.RedisAddr = strPtr("127.0.0.1:6379")
	}
	if s.RedisPassword == nil {
		s.RedisPassword = strPtr("")
	}
	if s.RedisDB == nil {
		s.RedisDB = intPtr(0)
	}

	if s.KafkaBrokers == nil {
		s.KafkaBrokers = []string{}
	}
	if s.KafkaTopic == nil {
		s.KafkaTopic = strPtr("loan-application-transitions")
	}
	if s.NotifyBuffer == nil {
		s.NotifyBuffer = intPtr(64)
	}
	if s.JournalPath == nil {
		s.JournalPath = strPtr(filepath.Join(home, "journal.ndjson"))
	}

	if s.HTTPAddr == nil {
		s.HTTPAddr = strPtr(":8080")
	}
	if s.Actor == nil {
		s.Actor = strPtr("")
	}
	if s.LogLevel == nil {
		s.LogLevel = strPtr("info")
	}
	if s.Output == nil {
		s.Output = strPtr("text")
	}
}

// validate rejects values no component can run with
func validate(s *RawSettings) error {
	oneOf := func(key, v string, allowed ...string) error {
		for _, a := range allowed {
			if v == a {
				return nil
			}
		}
		return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), v)
	}

	var errs []error
	errs = append(errs,
		oneOf("store", *s.Store, "sqlite", "file"),
		oneOf("lock_backend", *s.LockBackend, "sqlite", "redis"),
		oneOf("log_level", *s.LogLevel, "debug", "info", "warn", "error"),
		oneOf("output", *s.Output, "text", "json"),
	)
	if *s.LockTTLSec <= 0 {
		errs = append(errs, fmt.Errorf("lock_ttl_sec must be positive, got %d", *s.LockTTLSec))
	}
	if *s.LockWaitMs < 0 {
		errs = append(errs, fmt.Errorf("lock_wait_ms must not be negative, got %d", *s.LockWaitMs))
	}
	if *s.MaxConflictRetries < 0 {
		errs = append(errs, fmt.Errorf("max_conflict_retries must not be negative, got %d", *s.MaxConflictRetries))
	}
	if *s.NotifyBuffer <= 0 {
		errs = append(errs, fmt.Errorf("notify_buffer must be positive, got %d", *s.NotifyBuffer))
	}
	return errors.Join(errs...)
}

// buildAppConfig converts RawSettings to AppConfig
func buildAppConfig(s *RawSettings, home, configSource, settingPath string) *config.AppConfig {
	return config.NewAppConfig(config.Values{
		Home:                home,
		Store:               *s.Store,
		DBPath:              *s.DBPath,
		DataDir:             *s.DataDir,
		LockBackend:         *s.LockBackend,
		LockTTLSec:          *s.LockTTLSec,
		LockWaitMs:          *s.LockWaitMs,
		LockCleanupSchedule: *s.LockCleanupSchedule,
		MaxConflictRetries:  *s.MaxConflictRetries,
		RedisAddr:           *s.RedisAddr,
		RedisPassword:       *s.RedisPassword,
		RedisDB:             *s.RedisDB,
		KafkaBrokers:        s.KafkaBrokers,
		KafkaTopic:          *s.KafkaTopic,
		NotifyBuffer:        *s.NotifyBuffer,
		JournalPath:         *s.JournalPath,
		HTTPAddr:            *s.HTTPAddr,
		Actor:               *s.Actor,
		LogLevel:            *s.LogLevel,
		Output:              *s.Output,
		ConfigSource:        configSource,
		SettingPath:         settingPath,
	})
}

// CreateDefaultSettings returns default setting.json content for home
func CreateDefaultSettings(home string) []byte {
	settings := &RawSettings{}
	applyDefaults(settings, home)

	data, _ := json.MarshalIndent(settings, "", "  ")
	return data
}
