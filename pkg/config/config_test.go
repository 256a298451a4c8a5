package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

// resetViper clears all viper state between tests to avoid cross-contamination.
func resetViper() {
	viper.Reset()
}

func TestLoad_Defaults(t *testing.T) {
	resetViper()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"StateRoot", cfg.StateRoot, "dir:///etc/repoconf"},
		{"CachePath", cfg.CachePath, "/var/cache/repoconf/packages.db"},
		{"KeyringPath", cfg.KeyringPath, "trusted.asc"},
		{"Mode", cfg.Mode, "interactive"},
		{"S3Endpoint", cfg.S3Endpoint, ""},
		{"LogLevel", cfg.LogLevel, "info"},
		{"RefreshNewlyEnabled", cfg.RefreshNewlyEnabled, true},
		{"AutorefreshRemote", cfg.AutorefreshRemote, true},
		{"Releasever", cfg.Vars.Releasever, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		envVal string
		field  func(Config) any
		want   any
	}{
		{
			name:   "state_root",
			envKey: "REPOCONF_STATE_ROOT",
			envVal: "s3://bucket/hosts/web1",
			field:  func(c Config) any { return c.StateRoot },
			want:   "s3://bucket/hosts/web1",
		},
		{
			name:   "mode",
			envKey: "REPOCONF_MODE",
			envVal: "embedded",
			field:  func(c Config) any { return c.Mode },
			want:   "embedded",
		},
		{
			name:   "refresh_newly_enabled",
			envKey: "REPOCONF_REFRESH_NEWLY_ENABLED",
			envVal: "false",
			field:  func(c Config) any { return c.RefreshNewlyEnabled },
			want:   false,
		},
		{
			name:   "vars.releasever",
			envKey: "REPOCONF_VARS_RELEASEVER",
			envVal: "15.6",
			field:  func(c Config) any { return c.Vars.Releasever },
			want:   "15.6",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper()
			t.Setenv(tt.envKey, tt.envVal)
			BindEnv()

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() returned unexpected error: %v", err)
			}
			if got := tt.field(cfg); got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	resetViper()

	path := filepath.Join(t.TempDir(), ".repoconf.yaml")
	data := []byte("state_root: dir:///srv/state\nvars:\n  basearch: ppc64le\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.StateRoot != "dir:///srv/state" || cfg.Vars.Basearch != "ppc64le" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_RejectsUnknownMode(t *testing.T) {
	resetViper()
	viper.Set("mode", "batch")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestBasearch(t *testing.T) {
	for goarch, want := range map[string]string{"amd64": "x86_64", "arm64": "aarch64", "s390x": "s390x"} {
		if got := Basearch(goarch); got != want {
			t.Errorf("Basearch(%q) = %q, want %q", goarch, got, want)
		}
	}
}
