package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/reine-ishyanami/mirrors/internal/branding"
	"github.com/spf13/viper"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Setting keys.
const (
	KeyProbeTimeout = "probe.timeout"
	KeyProbeWorkers = "probe.workers"
	KeyLogLevel     = "log_level"
)

// Defaults applied before the config file and environment are read.
const (
	DefaultProbeTimeout = 5 * time.Second
	DefaultProbeWorkers = 10
	DefaultLogLevel     = "warn"
)

// Dir returns the path to the config directory. MIR_HOME overrides ~/.mir.
func Dir() string {
	if v := os.Getenv(branding.EnvVar("HOME")); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file (~/.mir/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Load initializes Viper to read from the config file and environment.
func Load() {
	viper.SetConfigFile(FilePath())
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault(KeyProbeTimeout, DefaultProbeTimeout)
	viper.SetDefault(KeyProbeWorkers, DefaultProbeWorkers)
	viper.SetDefault(KeyLogLevel, DefaultLogLevel)

	// Ignore error if config file doesn't exist yet.
	_ = viper.ReadInConfig()
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	return viper.GetString(key)
}

// Set writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if err := validate(key, value); err != nil {
		return err
	}
	if err := EnsureDir(); err != nil {
		return err
	}

	viper.Set(key, value)

	configFile := FilePath()

	// Create the file if it doesn't exist.
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// ProbeTimeout returns the per-connection probe timeout.
func ProbeTimeout() time.Duration {
	d := viper.GetDuration(KeyProbeTimeout)
	if d <= 0 {
		return DefaultProbeTimeout
	}
	return d
}

// ProbeWorkers returns how many probes may run at once.
func ProbeWorkers() int {
	n := viper.GetInt(KeyProbeWorkers)
	if n <= 0 {
		return DefaultProbeWorkers
	}
	return n
}

// LogLevel returns the configured log level name.
func LogLevel() string {
	if v := viper.GetString(KeyLogLevel); v != "" {
		return v
	}
	return DefaultLogLevel
}

// validate rejects values that the typed accessors could not read back.
func validate(key, value string) error {
	switch key {
	case KeyProbeTimeout:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s must be a duration such as 3s: %w", key, err)
		}
	case KeyProbeWorkers:
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer, got %q", key, value)
		}
	case KeyLogLevel:
		switch strings.ToLower(value) {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("%s must be one of debug, info, warn, error", key)
		}
	}
	return nil
}
