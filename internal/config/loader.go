package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const envPrefix = "BOOKING"

// Storage backends accepted by the storage key.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

const minSecretLength = 16

// Config captures the runtime settings of the booking service.
type Config struct {
	HTTPPort        int
	Storage         string
	SQLiteDSN       string
	SessionSecret   string
	SessionTTL      time.Duration
	MaxOccurrences  int
	OpenEndedMonths int
	RejectConflicts bool
	LogLevel        slog.Level
	LogFormat       string
	AdminEmail      string
	AdminPassword   string
}

// Load reads configuration from BOOKING_* environment variables, layered over an
// optional file named by BOOKING_CONFIG_FILE and the built-in defaults.
//
// Every missing or invalid key is reported in a single error using the
// environment variable name.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault("http_port", 8080)
	v.SetDefault("storage", StorageSQLite)
	v.SetDefault("sqlite_dsn", "file:booking.db?_pragma=foreign_keys(1)")
	v.SetDefault("session_secret", "")
	v.SetDefault("session_ttl", "24h")
	v.SetDefault("max_occurrences", 100)
	v.SetDefault("open_ended_months", 1)
	v.SetDefault("reject_conflicts", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("admin_email", "")
	v.SetDefault("admin_password", "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("config_file"); err != nil {
		return Config{}, fmt.Errorf("bind config file variable: %w", err)
	}
	if path := strings.TrimSpace(v.GetString("config_file")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("設定ファイルを読み込めません (%s): %w", path, err)
		}
	}

	var (
		cfg     Config
		missing []string
		invalid []string
	)

	port, err := cast.ToIntE(v.Get("http_port"))
	if err != nil || port <= 0 || port > 65535 {
		invalid = append(invalid, envKey("http_port"))
	}
	cfg.HTTPPort = port

	cfg.Storage = strings.ToLower(strings.TrimSpace(v.GetString("storage")))
	if cfg.Storage != StorageSQLite && cfg.Storage != StorageMemory {
		invalid = append(invalid, envKey("storage"))
	}

	cfg.SQLiteDSN = strings.TrimSpace(v.GetString("sqlite_dsn"))
	if cfg.Storage == StorageSQLite && cfg.SQLiteDSN == "" {
		missing = append(missing, envKey("sqlite_dsn"))
	}

	cfg.SessionSecret = strings.TrimSpace(v.GetString("session_secret"))
	switch {
	case cfg.SessionSecret == "":
		missing = append(missing, envKey("session_secret"))
	case len(cfg.SessionSecret) < minSecretLength:
		invalid = append(invalid, envKey("session_secret"))
	}

	ttl, err := cast.ToDurationE(v.Get("session_ttl"))
	if err != nil || ttl <= 0 {
		invalid = append(invalid, envKey("session_ttl"))
	}
	cfg.SessionTTL = ttl

	maxOccurrences, err := cast.ToIntE(v.Get("max_occurrences"))
	if err != nil || maxOccurrences <= 0 {
		invalid = append(invalid, envKey("max_occurrences"))
	}
	cfg.MaxOccurrences = maxOccurrences

	months, err := cast.ToIntE(v.Get("open_ended_months"))
	if err != nil || months <= 0 {
		invalid = append(invalid, envKey("open_ended_months"))
	}
	cfg.OpenEndedMonths = months

	reject, err := cast.ToBoolE(v.Get("reject_conflicts"))
	if err != nil {
		invalid = append(invalid, envKey("reject_conflicts"))
	}
	cfg.RejectConflicts = reject

	if err := cfg.LogLevel.UnmarshalText([]byte(strings.TrimSpace(v.GetString("log_level")))); err != nil {
		invalid = append(invalid, envKey("log_level"))
	}

	cfg.LogFormat = strings.ToLower(strings.TrimSpace(v.GetString("log_format")))
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		invalid = append(invalid, envKey("log_format"))
	}

	cfg.AdminEmail = strings.TrimSpace(v.GetString("admin_email"))
	cfg.AdminPassword = v.GetString("admin_password")
	switch {
	case cfg.AdminEmail != "" && cfg.AdminPassword == "":
		missing = append(missing, envKey("admin_password"))
	case cfg.AdminEmail == "" && cfg.AdminPassword != "":
		missing = append(missing, envKey("admin_email"))
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", ")))
	}
	if len(invalid) > 0 {
		errs = append(errs, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", ")))
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}

	return cfg, nil
}

// HasBootstrapAdmin reports whether an initial administrator should be ensured.
func (c Config) HasBootstrapAdmin() bool {
	return c.AdminEmail != "" && c.AdminPassword != ""
}

func envKey(key string) string {
	return envPrefix + "_" + strings.ToUpper(key)
}
