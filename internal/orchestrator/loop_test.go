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

package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/cadmiumdm/cadmium/internal/auth"
	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/cadmiumdm/cadmium/internal/identity"
	"github.com/cadmiumdm/cadmium/internal/state"
	"github.com/cadmiumdm/cadmium/internal/supervisor"
)

var alice = &identity.Identity{Username: "alice", UID: 1000, GID: 1000, HomeDir: "/home/alice", Shell: "/bin/bash"}

var errStop = errors.New("stop test loop")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// scriptedGate returns the results in order, then a fatal error.
func scriptedGate(results ...error) (*auth.GateTest, *int) {
	calls := 0
	g := &auth.GateTest{
		AuthenticateFunc: func(context.Context, uint) (*identity.Identity, error) {
			calls++
			if calls > len(results) {
				return nil, errdefs.ErrIO
			}
			if err := results[calls-1]; err != nil {
				return nil, err
			}
			return alice, nil
		},
		EndSessionFunc: func() error { return nil },
	}
	return g, &calls
}

func TestLoop_DeniedThenSuccess(t *testing.T) {
	gate, calls := scriptedGate(errdefs.ErrAuthentication, nil)
	sessions := 0
	sup := &supervisor.SupervisorTest{RunSessionFunc: func(_ context.Context, id *identity.Identity) error {
		sessions++
		if id != alice {
			t.Errorf("expected '%v'; got: '%v'", alice, id)
		}
		return errStop
	}}

	err := NewLoop(testLogger(), gate, sup, nil, nil, 2).Run(context.Background())
	if !errors.Is(err, errStop) {
		t.Fatalf("expected '%v'; got: '%v'", errStop, err)
	}
	if *calls != 2 {
		t.Fatalf("expected '2' prompts; got: '%d'", *calls)
	}
	if sessions != 1 {
		t.Fatalf("expected '1' session; got: '%d'", sessions)
	}
}

func TestLoop_SessionEndReturnsToLogin(t *testing.T) {
	gate, calls := scriptedGate(nil, nil)
	ended := 0
	gate.EndSessionFunc = func() error { ended++; return nil }
	sessions := 0
	sup := &supervisor.SupervisorTest{RunSessionFunc: func(context.Context, *identity.Identity) error {
		sessions++
		if sessions == 1 {
			return nil
		}
		return errdefs.ErrChildExit
	}}

	err := NewLoop(testLogger(), gate, sup, nil, nil, 2).Run(context.Background())
	if !errors.Is(err, errdefs.ErrIO) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrIO, err)
	}
	if *calls != 3 || sessions != 2 || ended != 2 {
		t.Fatalf("expected 3 prompts, 2 sessions, 2 ended; got %d/%d/%d", *calls, sessions, ended)
	}
}

func TestLoop_FatalErrors(t *testing.T) {
	for _, fatal := range []error{errdefs.ErrInhibit, errdefs.ErrSession, errdefs.ErrIO, errdefs.ErrConfigLoad} {
		gate, calls := scriptedGate(fatal)
		err := NewLoop(testLogger(), gate, &supervisor.SupervisorTest{}, nil, nil, 2).Run(context.Background())
		if !errors.Is(err, fatal) {
			t.Fatalf("expected '%v'; got: '%v'", fatal, err)
		}
		if *calls != 1 {
			t.Fatalf("expected a single attempt for '%v'; got: '%d'", fatal, *calls)
		}
	}

	gate, _ := scriptedGate(nil)
	sup := &supervisor.SupervisorTest{RunSessionFunc: func(context.Context, *identity.Identity) error {
		return errdefs.ErrForkFailed
	}}
	if err := NewLoop(testLogger(), gate, sup, nil, nil, 2).Run(context.Background()); !errors.Is(err, errdefs.ErrForkFailed) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrForkFailed, err)
	}
}

func TestLoop_Throttle(t *testing.T) {
	gate, calls := scriptedGate(errdefs.ErrAuthentication, errdefs.ErrAuthentication, errdefs.ErrAuthentication, nil)
	err := NewLoop(testLogger(), gate, &supervisor.SupervisorTest{}, Throttle{Max: 3}, nil, 2).Run(context.Background())
	if !errors.Is(err, errdefs.ErrTooManyAttempts) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrTooManyAttempts, err)
	}
	if *calls != 3 {
		t.Fatalf("expected '3' attempts; got: '%d'", *calls)
	}
}

func TestLoop_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gate := &auth.GateTest{AuthenticateFunc: func(ctx context.Context, _ uint) (*identity.Identity, error) {
		cancel()
		return nil, errdefs.ErrAuthentication
	}}
	err := NewLoop(testLogger(), gate, &supervisor.SupervisorTest{}, nil, nil, 2).Run(ctx)
	if !errors.Is(err, errdefs.ErrContextDone) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrContextDone, err)
	}
}

func TestLoop_RecordsFailures(t *testing.T) {
	dir := t.TempDir()
	store := state.NewStore(dir, 2)
	gate, _ := scriptedGate(errdefs.ErrAuthentication, errdefs.ErrAuthentication)

	err := NewLoop(testLogger(), gate, &supervisor.SupervisorTest{}, nil, store, 2).Run(context.Background())
	if !errors.Is(err, errdefs.ErrIO) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrIO, err)
	}
	doc, err := state.Read(dir)
	if err != nil {
		t.Fatalf("state.Read: %v", err)
	}
	if doc.Phase != state.PhaseLogin || doc.Failures != 2 {
		t.Fatalf("unexpected state: %+v", doc)
	}
}

func TestThrottle(t *testing.T) {
	if err := (Throttle{Max: 2}).Allow(context.Background(), 1); err != nil {
		t.Fatalf("expected no error; got: %v", err)
	}
	if err := (Throttle{Max: 2}).Allow(context.Background(), 2); !errors.Is(err, errdefs.ErrTooManyAttempts) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrTooManyAttempts, err)
	}

	start := time.Now()
	if err := (Throttle{Delay: 50 * time.Millisecond}).Allow(context.Background(), 10); err != nil {
		t.Fatalf("expected no error; got: %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatalf("expected the delay to be applied")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (Throttle{Delay: time.Hour}).Allow(ctx, 1); !errors.Is(err, errdefs.ErrContextDone) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrContextDone, err)
	}
}

func TestPolicyFor(t *testing.T) {
	if _, ok := PolicyFor(0, 0).(Unlimited); !ok {
		t.Fatalf("expected Unlimited by default")
	}
	if p, ok := PolicyFor(5, time.Second).(Throttle); !ok || p.Max != 5 || p.Delay != time.Second {
		t.Fatalf("unexpected policy %#v", PolicyFor(5, time.Second))
	}
}
