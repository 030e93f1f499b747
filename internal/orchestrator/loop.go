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

// Package orchestrator runs the top level login loop: authenticate, run a
// session, authenticate again.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cadmiumdm/cadmium/internal/auth"
	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/cadmiumdm/cadmium/internal/state"
	"github.com/cadmiumdm/cadmium/internal/supervisor"
)

type Loop struct {
	logger     *slog.Logger
	gate       auth.Authenticator
	supervisor supervisor.SessionRunner
	policy     RetryPolicy
	store      *state.Store
	tty        uint
}

func NewLoop(logger *slog.Logger, gate auth.Authenticator, sup supervisor.SessionRunner, policy RetryPolicy, store *state.Store, tty uint) *Loop {
	if policy == nil {
		policy = Unlimited{}
	}
	return &Loop{
		logger:     logger,
		gate:       gate,
		supervisor: sup,
		policy:     policy,
		store:      store,
		tty:        tty,
	}
}

// Run only returns on a fatal error or when ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", errdefs.ErrContextDone, err)
		}
		l.record(ctx, func(d *state.Document) {
			d.Phase = state.PhaseLogin
			d.Failures = failures
		})

		id, err := l.gate.Authenticate(ctx, l.tty)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %w", errdefs.ErrContextDone, ctx.Err())
			}
			if !errdefs.IsRetryable(err) {
				l.logger.Error("authentication aborted", "error", err)
				return err
			}
			failures++
			l.logger.Info("authentication failed", "failures", failures, "error", err)
			if errP := l.policy.Allow(ctx, failures); errP != nil {
				l.logger.Error("no further login attempts allowed", "failures", failures, "error", errP)
				return errP
			}
			continue
		}
		failures = 0

		err = l.supervisor.RunSession(ctx, id)
		if errE := l.gate.EndSession(); errE != nil {
			l.logger.Warn("closing authentication session failed", "user", id.Username, "error", errE)
		}
		switch {
		case err == nil:
		case errdefs.IsFatal(err):
			l.logger.Error("session supervision failed", "user", id.Username, "error", err)
			return err
		default:
			l.logger.Warn("session ended with error", "user", id.Username, "error", err)
		}
	}
}

func (l *Loop) record(ctx context.Context, fn func(*state.Document)) {
	if err := l.store.Update(ctx, fn); err != nil {
		l.logger.Warn("could not write state", "error", err)
	}
}
