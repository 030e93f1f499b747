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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/spf13/viper"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "cadmium.toml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("expected no error; got: %v", err)
	}
	if cfg.DE != "bspwm" || cfg.LogTTY != 2 || cfg.DisplayTTY != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Display.ReadyTimeout != 10*time.Second {
		t.Fatalf("expected '%v'; got: '%v'", 10*time.Second, cfg.Display.ReadyTimeout)
	}
	if cfg.Display.MaxDisplay != 200 || cfg.Display.LockDir != "/tmp" {
		t.Fatalf("unexpected display defaults: %+v", cfg.Display)
	}
	if cfg.Auth.MaxAttempts != 0 || cfg.Auth.Service != "login" || !cfg.Auth.Inhibit {
		t.Fatalf("unexpected auth defaults: %+v", cfg.Auth)
	}
}

func TestLoad_File(t *testing.T) {
	p := writeFile(t, `
de = "i3"
logtty = 1
displaytty = 7

[auth]
max_attempts = 5
retry_delay = "2s"
inhibit = false

[display]
server = "/usr/lib/Xorg"
ready_timeout = "3s"

[session]
dbus_launch = true
`)
	cfg, err := Load(viper.New(), p)
	if err != nil {
		t.Fatalf("expected no error; got: %v", err)
	}
	if cfg.DE != "i3" || cfg.LogTTY != 1 || cfg.DisplayTTY != 7 {
		t.Fatalf("unexpected top-level values: %+v", cfg)
	}
	if cfg.Auth.MaxAttempts != 5 || cfg.Auth.RetryDelay != 2*time.Second || cfg.Auth.Inhibit {
		t.Fatalf("unexpected auth: %+v", cfg.Auth)
	}
	if cfg.Display.Server != "/usr/lib/Xorg" || cfg.Display.ReadyTimeout != 3*time.Second {
		t.Fatalf("unexpected display: %+v", cfg.Display)
	}
	if cfg.Display.Xauth != "/usr/bin/xauth" {
		t.Fatalf("expected unset keys to keep defaults; got: %q", cfg.Display.Xauth)
	}
	if !cfg.Session.DBusLaunch {
		t.Fatalf("expected dbus_launch to be true")
	}
}

func TestLoad_Malformed(t *testing.T) {
	p := writeFile(t, "de = \n[[[")
	if _, err := Load(viper.New(), p); !errors.Is(err, errdefs.ErrConfigLoad) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrConfigLoad, err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	p := writeFile(t, "displaytty = 0\n")
	if _, err := Load(viper.New(), p); !errors.Is(err, errdefs.ErrConfigLoad) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrConfigLoad, err)
	}
}

func TestDocument(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("expected no error; got: %v", err)
	}
	doc := cfg.Document()
	display, ok := doc["display"].(map[string]any)
	if !ok {
		t.Fatalf("display section missing")
	}
	if display["ready_timeout"] != "10s" {
		t.Fatalf("expected '10s'; got: '%v'", display["ready_timeout"])
	}
}
