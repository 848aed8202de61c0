// Package config wraps viper behind typed getters so commands never touch
// the viper instance directly.
//
// Precedence, highest first: command-line flag, PV_* environment variable,
// config file (~/.config/promptvault/config.yaml or ./promptvault.yaml),
// built-in default.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize builds the viper instance with defaults, env binding, and the
// optional config file. A missing config file is not an error; an
// unreadable or malformed one is.
func Initialize() error {
	v = viper.New()

	v.SetDefault("db", defaultDBPath())
	v.SetDefault("watch-dir", "")
	v.SetDefault("rescan-interval", 5*time.Minute)
	v.SetDefault("tracker-ttl", 10*time.Minute)
	v.SetDefault("json", false)

	v.SetEnvPrefix("PV")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "promptvault"))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config file: %w", err)
		}
	}
	return nil
}

// BindFlag gives a cobra flag the highest precedence for key.
func BindFlag(key string, flag *pflag.Flag) error {
	return v.BindPFlag(key, flag)
}

// GetString returns the string value for key.
func GetString(key string) string { return v.GetString(key) }

// GetBool returns the bool value for key.
func GetBool(key string) bool { return v.GetBool(key) }

// GetDuration returns the duration value for key.
func GetDuration(key string) time.Duration { return v.GetDuration(key) }

// defaultDBPath places the database under the user config dir, falling
// back to the working directory when the home cannot be determined.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "promptvault.db"
	}
	return filepath.Join(home, ".config", "promptvault", "prompts.db")
}
