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

// Package supervisor runs one session across the privilege boundary.
//
// The parent (Supervisor) stays root, starts the worker process and waits for
// it. The worker (Worker) brings the display up as root, drops to the user
// and runs the session. The two share nothing but the environment inherited
// at start, the filesystem and the exit status.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/cadmiumdm/cadmium/internal/identity"
	"github.com/cadmiumdm/cadmium/internal/state"
	"golang.org/x/sync/errgroup"
)

// SessionRunner is what the login loop needs from a Supervisor.
type SessionRunner interface {
	RunSession(ctx context.Context, id *identity.Identity) error
}

type Supervisor struct {
	logger     *slog.Logger
	forker     Forker
	store      *state.Store
	session    string
	configFile string
}

func NewSupervisor(logger *slog.Logger, forker Forker, store *state.Store, session, configFile string) *Supervisor {
	return &Supervisor{
		logger:     logger,
		forker:     forker,
		store:      store,
		session:    session,
		configFile: configFile,
	}
}

// RunSession starts a worker for id and blocks until it exits or is stopped
// by job control. A worker that fails or stops returns errdefs.ErrChildExit,
// which only ends this session. Only a failure to start the worker is fatal.
func (s *Supervisor) RunSession(ctx context.Context, id *identity.Identity) error {
	spec := WorkerSpec{Username: id.Username, Session: s.session, ConfigFile: s.configFile}
	child, err := s.forker.Fork(ctx, spec)
	if err != nil {
		if !errors.Is(err, errdefs.ErrForkFailed) {
			err = fmt.Errorf("%w: %w", errdefs.ErrForkFailed, err)
		}
		return err
	}
	pid := child.Pid()
	s.logger.Info("session worker started", "user", id.Username, "pid", pid, "session", s.session)

	s.record(ctx, func(d *state.Document) {
		d.Phase = state.PhaseSession
		d.User = id.Username
		d.WorkerPID = pid
		d.Sessions++
	})

	done := make(chan struct{})
	var g errgroup.Group

	g.Go(func() error {
		defer close(done)
		if err := child.Wait(); err != nil {
			return fmt.Errorf("%w: pid %d: %w", errdefs.ErrChildExit, pid, err)
		}
		return nil
	})

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
		defer signal.Stop(sigCh)

		for {
			select {
			case <-done:
				return nil
			case sig := <-sigCh:
				s.logger.Info("relaying signal to session worker", "signal", sig, "pid", pid)
				s.signal(child, sig)
			case <-ctx.Done():
				s.logger.Info("stopping session worker", "pid", pid, "reason", ctx.Err())
				s.signal(child, syscall.SIGTERM)
				<-done
				return nil
			}
		}
	})

	err = g.Wait()
	if err != nil {
		s.logger.Warn("session worker failed", "user", id.Username, "pid", pid, "error", err)
	} else {
		s.logger.Info("session worker exited", "user", id.Username, "pid", pid)
	}

	s.record(context.WithoutCancel(ctx), func(d *state.Document) {
		d.Phase = state.PhaseLogin
		d.User = ""
		d.WorkerPID = 0
		if err != nil {
			d.LastError = err.Error()
		}
	})
	return err
}

func (s *Supervisor) signal(child Child, sig os.Signal) {
	if err := child.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Warn("could not signal session worker", "signal", sig, "error", err)
	}
}

func (s *Supervisor) record(ctx context.Context, fn func(*state.Document)) {
	if err := s.store.Update(ctx, fn); err != nil {
		s.logger.Warn("could not write state", "error", err)
	}
}
