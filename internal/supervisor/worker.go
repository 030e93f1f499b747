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

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cadmiumdm/cadmium/internal/dbuslaunch"
	"github.com/cadmiumdm/cadmium/internal/display"
	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/cadmiumdm/cadmium/internal/identity"
	"github.com/cadmiumdm/cadmium/internal/locale"
	"github.com/cadmiumdm/cadmium/internal/privdrop"
)

// BusLauncher starts and stops a per-session message bus.
type BusLauncher interface {
	Launch(ctx context.Context) (*dbuslaunch.Bus, error)
	Stop(bus *dbuslaunch.Bus)
}

type Worker struct {
	logger     *slog.Logger
	backend    display.Backend
	ops        privdrop.Ops
	localeFile string
	timeout    time.Duration

	Lookup func(username string) (*identity.Identity, error)
	// Bus is optional.
	Bus BusLauncher
}

func NewWorker(logger *slog.Logger, backend display.Backend, ops privdrop.Ops, localeFile string, timeout time.Duration) *Worker {
	return &Worker{
		logger:     logger,
		backend:    backend,
		ops:        ops,
		localeFile: localeFile,
		timeout:    timeout,
		Lookup:     identity.Lookup,
	}
}

// Run does all root work, drops privileges exactly once and runs the
// session. It returns nil once the session has ended, whatever its exit
// status. Any error means the process must exit non-zero.
func (w *Worker) Run(ctx context.Context, username, session string) error {
	id, err := w.Lookup(username)
	if err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrWorkerIdentity, err)
	}

	if err := w.backend.PreSUID(ctx); err != nil {
		w.logger.Error("display backend failed before privilege drop", "error", err)
		if errC := w.backend.Close(); errC != nil {
			w.logger.Warn("closing display backend failed", "error", errC)
		}
		return err
	}
	defer func() {
		if err := w.backend.Close(); err != nil {
			w.logger.Warn("closing display backend failed", "error", err)
		}
	}()

	if keys, err := locale.Source(w.localeFile); err != nil {
		w.logger.Warn("could not source locale", "file", w.localeFile, "error", err)
	} else if len(keys) > 0 {
		w.logger.Debug("locale sourced", "file", w.localeFile, "vars", keys)
	}

	if err := privdrop.Drop(w.ops, id); err != nil {
		return err
	}
	w.logger.Info("privileges dropped", "user", id.Username, "uid", id.UID, "gid", id.GID)

	if err := exportUserEnv(id); err != nil {
		return err
	}

	if w.Bus != nil {
		bus, err := w.Bus.Launch(ctx)
		if err != nil {
			w.logger.Warn("session bus not started", "error", err)
		} else {
			defer w.Bus.Stop(bus)
		}
	}

	sctx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	return w.backend.PostSUID(sctx, id, session)
}

func exportUserEnv(id *identity.Identity) error {
	vars := [][2]string{
		{"HOME", id.HomeDir},
		{"USER", id.Username},
		{"LOGNAME", id.Username},
		{"PWD", id.HomeDir},
	}
	if shell := id.ResolveShell(); shell != "" {
		vars = append(vars, [2]string{"SHELL", shell})
	}
	for _, kv := range vars {
		if err := os.Setenv(kv[0], kv[1]); err != nil {
			return fmt.Errorf("%w: setenv %s: %w", errdefs.ErrIO, kv[0], err)
		}
	}
	return nil
}
