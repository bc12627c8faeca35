// Package config loads run configuration from defaults, a YAML file,
// environment variables, and CLI flag overrides, in that priority
// order, adapted from the layered viper loader seen across the example
// pack's gateway services.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SSH holds the transport defaults. The CLI uses Port and User when no
// flag overrides them, and ConnectTimeout for every node; IdentityFile
// and Sudo are loaded but not read by the transport setup.
type SSH struct {
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	IdentityFile   string        `mapstructure:"identity_file"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Sudo           bool          `mapstructure:"sudo"`
}

// Resilience holds the SSH dial retry and circuit-breaker tuning handed
// to the transport.
type Resilience struct {
	MaxRetries      int           `mapstructure:"max_retries"`
	BaseBackoff     time.Duration `mapstructure:"base_backoff"`
	BreakerWindow   time.Duration `mapstructure:"breaker_window"`
	BreakerFailPct  float64       `mapstructure:"breaker_fail_pct"`
	BreakerMinCalls int           `mapstructure:"breaker_min_calls"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

// Log is resolved with the rest of the config but not consulted by
// obs.InitLogging, which reads BLOCKWART_JSON_LOG and
// BLOCKWART_LOG_LEVEL from the environment directly.
type Log struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

// History controls the optional BoltDB apply-run log.
type History struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

// Config is the fully resolved run configuration.
type Config struct {
	Workers     int        `mapstructure:"workers"`
	Interactive bool       `mapstructure:"interactive"`
	Force       bool       `mapstructure:"force"`
	LockPath    string     `mapstructure:"lock_path"`
	SSH         SSH        `mapstructure:"ssh"`
	Resilience  Resilience `mapstructure:"resilience"`
	Log         Log        `mapstructure:"log"`
	History     History    `mapstructure:"history"`
	OTELEnabled bool       `mapstructure:"otel_enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("workers", 4)
	v.SetDefault("interactive", false)
	v.SetDefault("force", false)
	v.SetDefault("lock_path", "/tmp/blockwart.lock")

	v.SetDefault("ssh.port", 22)
	v.SetDefault("ssh.user", "root")
	v.SetDefault("ssh.connect_timeout", "10s")
	v.SetDefault("ssh.sudo", false)

	v.SetDefault("resilience.max_retries", 3)
	v.SetDefault("resilience.base_backoff", "200ms")
	v.SetDefault("resilience.breaker_window", "30s")
	v.SetDefault("resilience.breaker_fail_pct", 0.5)
	v.SetDefault("resilience.breaker_min_calls", 5)
	v.SetDefault("resilience.breaker_cooldown", "15s")

	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.db_path", "blockwart-history.db")

	v.SetDefault("otel_enabled", false)
}

// Load resolves config from (lowest to highest priority): built-in
// defaults, ~/.blockwart.yaml, ./blockwart.yaml, BLOCKWART_* environment
// variables, and finally any bound CLI flags.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(".blockwart")
	v.SetConfigType("yaml")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read global config: %w", err)
		}
	}

	localPath := filepath.Join(".", "blockwart.yaml")
	if _, err := os.Stat(localPath); err == nil {
		local := viper.New()
		local.SetConfigFile(localPath)
		if err := local.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read local config: %w", err)
		}
		if err := v.MergeConfigMap(local.AllSettings()); err != nil {
			return nil, fmt.Errorf("merge local config: %w", err)
		}
	}

	v.SetEnvPrefix("BLOCKWART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
