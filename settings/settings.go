// Package settings loads server settings from an optional config file,
// CROSSROADBUS_* environment variables and defaults, and builds the logger.
package settings

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CROSSROADBUS_PORT.
const EnvPrefix = "CROSSROADBUS"

// Settings is the resolved server configuration.
type Settings struct {
	Port        int           `mapstructure:"port"`
	ConfigDir   string        `mapstructure:"config_dir"`
	SessionsDir string        `mapstructure:"sessions_dir"`
	ResultsDSN  string        `mapstructure:"results_dsn"`
	LogLevel    string        `mapstructure:"log_level"`
	LogFormat   string        `mapstructure:"log_format"` // console|json
	FPS         int           `mapstructure:"fps"`
	Realtime    bool          `mapstructure:"realtime"`
	SessionTTL  time.Duration `mapstructure:"session_ttl"`
	Ngrok       bool          `mapstructure:"ngrok"`
	NgrokDomain string        `mapstructure:"ngrok_domain"`
}

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("config_dir", "configs")
	v.SetDefault("sessions_dir", "sessions")
	v.SetDefault("results_dsn", "results.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("fps", 30)
	v.SetDefault("realtime", false)
	v.SetDefault("session_ttl", "24h")
	v.SetDefault("ngrok", false)
	v.SetDefault("ngrok_domain", "")
}

// Load resolves settings. configFile may be empty, in which case a
// crossroadbus.{json,yaml,toml} file is looked up in the working directory
// and silently skipped when absent. An explicit configFile must exist.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("crossroadbus")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("error decoding settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks ranges and enumerations.
func (s *Settings) Validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", s.Port)
	}
	if s.FPS < 1 || s.FPS > 240 {
		return fmt.Errorf("fps must be between 1 and 240, got %d", s.FPS)
	}
	if _, err := ParseLevel(s.LogLevel); err != nil {
		return err
	}
	switch s.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", s.LogFormat)
	}
	if s.ConfigDir == "" {
		return fmt.Errorf("config_dir is required")
	}
	return nil
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
}

// NewLogger builds the process logger writing to w (stderr when nil).
func (s *Settings) NewLogger(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, _ := ParseLevel(s.LogLevel)

	if s.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
