// Package config loads AIde's startup configuration (§6.5): storage
// endpoints/credentials/bucket names, per-tier model identifiers and
// timeouts, flight-recorder queue sizing, and default page
// visibility/blueprint. It keeps the teacher's viper-based
// file-then-env-then-default precedence and override-detection shape,
// retargeted from BeadsLog's CLI flags to AIde's server settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton. Should be called
// once at process startup.
//
// Precedence for locating a config file mirrors the teacher: project
// ./.aide/config.yaml (walking up from cwd) > user config dir
// (~/.config/aide/config.yaml) > home directory (~/.aide/config.yaml).
// Environment variables (prefix AIDE_) take precedence over the file;
// explicit command-line flags, handled by the caller, take precedence over
// everything.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	configFileSet := false

	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			configPath := filepath.Join(dir, ".aide", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
				break
			}
		}
	}

	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			configPath := filepath.Join(configDir, "aide", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	if !configFileSet {
		if homeDir, err := os.UserHomeDir(); err == nil {
			configPath := filepath.Join(homeDir, ".aide", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix("AIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// WatchConfig uses fsnotify under the hood to pick up edits to the
		// project/user config file without a restart; a running `aide serve`
		// picks up a new tier model or recorder setting on its next turn.
		v.OnConfigChange(func(e fsnotify.Event) {
			fmt.Fprintf(os.Stderr, "config: reloaded from %s\n", e.Name)
		})
		v.WatchConfig()
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	// Storage (§6.1/§6.2/§6.5): workspace and public key-value stores.
	v.SetDefault("storage.workspace.endpoint", "")
	v.SetDefault("storage.workspace.bucket", "aide-workspace")
	v.SetDefault("storage.workspace.access-key", "")
	v.SetDefault("storage.workspace.secret-key", "")
	v.SetDefault("storage.public.endpoint", "")
	v.SetDefault("storage.public.bucket", "aide-public")
	v.SetDefault("storage.public.access-key", "")
	v.SetDefault("storage.public.secret-key", "")

	// Tier model identifiers and optional shadow tiers (§4.6/§6.4/§6.5).
	v.SetDefault("tier.l2.model", "claude-3-5-haiku-20241022")
	v.SetDefault("tier.l3.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("tier.l4.model", "claude-opus-4-1-20250805")
	v.SetDefault("tier.l2.shadow-model", "")
	v.SetDefault("tier.l3.shadow-model", "")
	v.SetDefault("tier.l4.shadow-model", "")
	v.SetDefault("tier.l2.timeout", "60s")
	v.SetDefault("tier.l3.timeout", "60s")
	v.SetDefault("tier.l4.timeout", "60s")
	v.SetDefault("tier.api-key", "")

	// Flight recorder (§4.8).
	v.SetDefault("recorder.queue-capacity", 10_000)
	v.SetDefault("recorder.batch-size", 100)
	v.SetDefault("recorder.flush-interval", "60s")
	v.SetDefault("recorder.path", ".aide/flight.jsonl")

	// Page defaults (§6.5 "default page visibility and blueprint").
	v.SetDefault("page.default-visibility", "private")
	v.SetDefault("page.default-blueprint", "default")

	// Server transport.
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("log.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// ConfigSource records where a configuration value ultimately came from.
type ConfigSource string

const (
	SourceDefault    ConfigSource = "default"
	SourceConfigFile ConfigSource = "config_file"
	SourceEnvVar     ConfigSource = "env_var"
	SourceFlag       ConfigSource = "flag"
)

// ConfigOverride describes one detected override, surfaced to operators in
// verbose startup logging.
type ConfigOverride struct {
	Key            string
	EffectiveValue interface{}
	OverriddenBy   ConfigSource
	OriginalSource ConfigSource
	OriginalValue  interface{}
}

// GetValueSource reports where key's effective value came from.
// Priority (highest to lowest): env var > config file > default.
func GetValueSource(key string) ConfigSource {
	if v == nil {
		return SourceDefault
	}
	envKey := "AIDE_" + strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(key, "-", "_"), ".", "_"))
	if os.Getenv(envKey) != "" {
		return SourceEnvVar
	}
	if v.InConfig(key) {
		return SourceConfigFile
	}
	return SourceDefault
}

// LogOverride writes a human-readable note about an override to stderr;
// callers guard this on a verbose flag.
func LogOverride(override ConfigOverride) {
	var sourceDesc string
	switch override.OriginalSource {
	case SourceConfigFile:
		sourceDesc = "config file"
	case SourceEnvVar:
		sourceDesc = "environment variable"
	default:
		sourceDesc = string(override.OriginalSource)
	}
	var overrideDesc string
	switch override.OverriddenBy {
	case SourceFlag:
		overrideDesc = "command-line flag"
	case SourceEnvVar:
		overrideDesc = "environment variable"
	default:
		overrideDesc = string(override.OverriddenBy)
	}
	fmt.Fprintf(os.Stderr, "config: %s overridden by %s (was: %v from %s, now: %v)\n",
		override.Key, overrideDesc, override.OriginalValue, sourceDesc, override.EffectiveValue)
}

func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}
