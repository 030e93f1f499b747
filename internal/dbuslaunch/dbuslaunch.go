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

// Package dbuslaunch starts a per-session message bus with dbus-launch and
// exports its address to the session.
package dbuslaunch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/joho/godotenv"
)

const (
	DefaultPath = "/usr/bin/dbus-launch"

	addressVar = "DBUS_SESSION_BUS_ADDRESS"
	pidVar     = "DBUS_SESSION_BUS_PID"
)

type Bus struct {
	Address string
	PID     int
}

type Launcher struct {
	Path   string
	logger *slog.Logger
}

func New(logger *slog.Logger, path string) *Launcher {
	if path == "" {
		path = DefaultPath
	}
	return &Launcher{Path: path, logger: logger}
}

// Launch runs dbus-launch, exports every variable it prints and returns the
// bus it started.
func (l *Launcher) Launch(ctx context.Context) (*Bus, error) {
	out, err := exec.CommandContext(ctx, l.Path).Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errdefs.ErrDBus, l.Path, err)
	}

	vars, err := godotenv.Unmarshal(string(out))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s output: %w", errdefs.ErrDBus, l.Path, err)
	}
	for k, v := range vars {
		if err := os.Setenv(k, v); err != nil {
			return nil, fmt.Errorf("%w: setenv %s: %w", errdefs.ErrDBus, k, err)
		}
	}

	bus := &Bus{Address: vars[addressVar]}
	if bus.Address == "" {
		return nil, fmt.Errorf("%w: %s printed no %s", errdefs.ErrDBus, l.Path, addressVar)
	}
	if pid, err := strconv.Atoi(vars[pidVar]); err == nil {
		bus.PID = pid
	}
	l.logger.Info("session bus started", "address", bus.Address, "pid", bus.PID)
	return bus, nil
}

// Stop terminates the bus daemon. dbus-launch detaches it, so nothing else
// would.
func (l *Launcher) Stop(bus *Bus) {
	if bus == nil || bus.PID <= 0 {
		return
	}
	if err := syscall.Kill(bus.PID, syscall.SIGTERM); err != nil {
		l.logger.Debug("stopping session bus failed", "pid", bus.PID, "error", err)
	}
}
