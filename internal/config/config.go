// Copyright 2025 Emiliano Spinella (eminwux)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/spf13/viper"
)

// Config is the effective configuration of one cadmium run.
type Config struct {
	DE         string `mapstructure:"de"`
	LogTTY     uint   `mapstructure:"logtty"`
	DisplayTTY uint   `mapstructure:"displaytty"`
	LogLevel   string `mapstructure:"log_level"`
	LogFile    string `mapstructure:"log_file"`
	RunPath    string `mapstructure:"run_path"`

	Auth    AuthConfig    `mapstructure:"auth"`
	Display DisplayConfig `mapstructure:"display"`
	Session SessionConfig `mapstructure:"session"`
}

type AuthConfig struct {
	Service     string        `mapstructure:"service"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	// Inhibit takes a logind sleep lock while the prompt is shown.
	Inhibit bool `mapstructure:"inhibit"`
}

type DisplayConfig struct {
	Server        string        `mapstructure:"server"`
	Xauth         string        `mapstructure:"xauth"`
	LockDir       string        `mapstructure:"lock_dir"`
	MaxDisplay    int           `mapstructure:"max_display"`
	ReadyTimeout  time.Duration `mapstructure:"ready_timeout"`
	AuthorityFile string        `mapstructure:"authority_file"`
	// Empty means the script bundled into the binary.
	SetupScript string `mapstructure:"setup_script"`
}

type SessionConfig struct {
	// Zero disables the limit.
	Timeout    time.Duration `mapstructure:"timeout"`
	LocaleFile string        `mapstructure:"locale_file"`
	DBusLaunch bool          `mapstructure:"dbus_launch"`
}

//nolint:gochecknoglobals // default table
var defaults = map[string]any{
	"de":                     "bspwm",
	"logtty":                 2,
	"displaytty":             3,
	"log_level":              "info",
	"log_file":               "/var/log/cadmium.log",
	"run_path":               "/run/cadmium",
	"auth.service":           "login",
	"auth.max_attempts":      0,
	"auth.retry_delay":       "0s",
	"auth.inhibit":           true,
	"display.server":         "/usr/bin/X",
	"display.xauth":          "/usr/bin/xauth",
	"display.lock_dir":       "/tmp",
	"display.max_display":    200,
	"display.ready_timeout":  "10s",
	"display.authority_file": ".cdxauth",
	"display.setup_script":   "",
	"session.timeout":        "0s",
	"session.locale_file":    "/etc/locale.conf",
	"session.dbus_launch":    false,
}

// SetDefaults registers every key with its default so that env bindings and
// Unmarshal see the full key set even without a config file.
func SetDefaults(v *viper.Viper) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// Load reads the TOML file into v and decodes the result. A missing file is
// not an error: cadmium runs on defaults.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("%w: %w", errdefs.ErrConfigLoad, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrConfigLoad, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func isNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	if errors.As(err, &nf) {
		return true
	}
	// SetConfigFile bypasses the search path, so a missing file surfaces
	// as the underlying open error.
	return errors.Is(err, fs.ErrNotExist)
}

// Validate rejects values the backend cannot work with.
func (c *Config) Validate() error {
	switch {
	case c.DE == "":
		return fmt.Errorf("%w: de must not be empty", errdefs.ErrConfigLoad)
	case c.DisplayTTY == 0:
		return fmt.Errorf("%w: displaytty must be > 0", errdefs.ErrConfigLoad)
	case c.Display.MaxDisplay <= 0:
		return fmt.Errorf("%w: display.max_display must be > 0", errdefs.ErrConfigLoad)
	case c.Display.Server == "":
		return fmt.Errorf("%w: display.server must not be empty", errdefs.ErrConfigLoad)
	case c.Display.Xauth == "":
		return fmt.Errorf("%w: display.xauth must not be empty", errdefs.ErrConfigLoad)
	case c.Display.AuthorityFile == "":
		return fmt.Errorf("%w: display.authority_file must not be empty", errdefs.ErrConfigLoad)
	case c.Display.ReadyTimeout <= 0:
		return fmt.Errorf("%w: display.ready_timeout must be > 0", errdefs.ErrConfigLoad)
	case c.Auth.MaxAttempts < 0:
		return fmt.Errorf("%w: auth.max_attempts must be >= 0", errdefs.ErrConfigLoad)
	case c.Auth.RetryDelay < 0 || c.Session.Timeout < 0:
		return fmt.Errorf("%w: durations must not be negative", errdefs.ErrConfigLoad)
	case c.Auth.Service == "":
		return fmt.Errorf("%w: auth.service must not be empty", errdefs.ErrConfigLoad)
	}
	return nil
}

// Document renders the config as nested maps with the same keys as the file,
// durations as strings.
func (c *Config) Document() map[string]any {
	return map[string]any{
		"de":         c.DE,
		"logtty":     c.LogTTY,
		"displaytty": c.DisplayTTY,
		"log_level":  c.LogLevel,
		"log_file":   c.LogFile,
		"run_path":   c.RunPath,
		"auth": map[string]any{
			"service":      c.Auth.Service,
			"max_attempts": c.Auth.MaxAttempts,
			"retry_delay":  c.Auth.RetryDelay.String(),
			"inhibit":      c.Auth.Inhibit,
		},
		"display": map[string]any{
			"server":         c.Display.Server,
			"xauth":          c.Display.Xauth,
			"lock_dir":       c.Display.LockDir,
			"max_display":    c.Display.MaxDisplay,
			"ready_timeout":  c.Display.ReadyTimeout.String(),
			"authority_file": c.Display.AuthorityFile,
			"setup_script":   c.Display.SetupScript,
		},
		"session": map[string]any{
			"timeout":     c.Session.Timeout.String(),
			"locale_file": c.Session.LocaleFile,
			"dbus_launch": c.Session.DBusLaunch,
		},
	}
}
