package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/e2llm/repoconf/pkg/reconcile"
)

const EnvPrefix = "REPOCONF"

// Vars are substituted into source URLs.
type Vars struct {
	Releasever string `mapstructure:"releasever"`
	Basearch   string `mapstructure:"basearch"`
}

// Config holds all runtime configuration for repoconf.
// Values are populated from .repoconf.yaml, REPOCONF_* env vars, and CLI flags.
type Config struct {
	// StateRoot is a storage URL (dir:// or s3://) holding repos.d and
	// services.d.
	StateRoot           string `mapstructure:"state_root"`
	CachePath           string `mapstructure:"cache_path"`
	KeyringPath         string `mapstructure:"keyring_path"`
	Mode                string `mapstructure:"mode"`
	S3Endpoint          string `mapstructure:"s3_endpoint"`
	LogLevel            string `mapstructure:"log_level"`
	RefreshNewlyEnabled bool   `mapstructure:"refresh_newly_enabled"`
	AutorefreshRemote   bool   `mapstructure:"autorefresh_remote"`
	Vars                Vars   `mapstructure:"vars"`
}

// BindEnv maps REPOCONF_* variables onto config keys; nested keys use
// underscores (REPOCONF_VARS_RELEASEVER).
func BindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("state_root", "dir:///etc/repoconf")
	viper.SetDefault("cache_path", "/var/cache/repoconf/packages.db")
	viper.SetDefault("keyring_path", "trusted.asc")
	viper.SetDefault("mode", string(reconcile.ModeInteractive))
	viper.SetDefault("s3_endpoint", "")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("refresh_newly_enabled", true)
	viper.SetDefault("autorefresh_remote", true)
	viper.SetDefault("vars.releasever", "")
	viper.SetDefault("vars.basearch", Basearch(runtime.GOARCH))

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if _, err := reconcile.ParseMode(cfg.Mode); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.StateRoot) == "" {
		return Config{}, fmt.Errorf("state_root must not be empty")
	}
	return cfg, nil
}

// Basearch maps a Go architecture name to the RPM one.
func Basearch(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "386":
		return "i586"
	case "arm64":
		return "aarch64"
	}
	return goarch
}
