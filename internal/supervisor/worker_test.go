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
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/cadmiumdm/cadmium/internal/dbuslaunch"
	"github.com/cadmiumdm/cadmium/internal/display"
	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/cadmiumdm/cadmium/internal/identity"
	"github.com/cadmiumdm/cadmium/internal/privdrop"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func aliceIn(home string) *identity.Identity {
	return &identity.Identity{Username: "alice", UID: 1000, GID: 1000, HomeDir: home, Shell: "/bin/bash"}
}

func newTestWorker(t *testing.T, backend display.Backend, ops privdrop.Ops, id *identity.Identity) *Worker {
	t.Helper()
	w := NewWorker(testLogger(), backend, ops, filepath.Join(t.TempDir(), "locale.conf"), 0)
	w.Lookup = func(name string) (*identity.Identity, error) {
		if id != nil && name == id.Username {
			return id, nil
		}
		return nil, errdefs.ErrUnknownUser
	}
	return w
}

func setenvAll(t *testing.T) {
	for _, k := range []string{"HOME", "USER", "LOGNAME", "PWD", "SHELL"} {
		t.Setenv(k, os.Getenv(k))
	}
}

func TestWorker_PreSUIDFailureSkipsPrivilegeDrop(t *testing.T) {
	ops := &privdrop.OpsTest{}
	backend := &display.BackendTest{
		PreSUIDFunc: func(context.Context) error { return errdefs.ErrNoFreeDisplay },
	}
	err := newTestWorker(t, backend, ops, aliceIn("/home/alice")).Run(context.Background(), "alice", "bspwm")
	if !errors.Is(err, errdefs.ErrNoFreeDisplay) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrNoFreeDisplay, err)
	}
	if len(ops.Calls) != 0 {
		t.Fatalf("expected no privilege operations; got: '%v'", ops.Calls)
	}
	if want := []string{"PreSUID", "Close"}; !reflect.DeepEqual(backend.Calls, want) {
		t.Fatalf("expected '%v'; got: '%v'", want, backend.Calls)
	}
}

func TestWorker_Run(t *testing.T) {
	setenvAll(t)
	home := t.TempDir()
	id := aliceIn(home)
	ops := &privdrop.OpsTest{}

	var gotSession string
	backend := &display.BackendTest{
		PreSUIDFunc: func(context.Context) error {
			if len(ops.Calls) != 0 {
				t.Errorf("PreSUID ran after %v", ops.Calls)
			}
			return nil
		},
		PostSUIDFunc: func(ctx context.Context, got *identity.Identity, session string) error {
			if want := []string{"initgroups", "setgid", "setuid", "chdir"}; !reflect.DeepEqual(ops.Calls, want) {
				t.Errorf("PostSUID ran before the drop finished: %v", ops.Calls)
			}
			if got != id {
				t.Errorf("expected '%v'; got: '%v'", id, got)
			}
			if _, ok := ctx.Deadline(); ok {
				t.Errorf("expected no deadline without a session timeout")
			}
			gotSession = session
			return nil
		},
	}

	if err := newTestWorker(t, backend, ops, id).Run(context.Background(), "alice", "bspwm"); err != nil {
		t.Fatalf("expected no error; got: %v", err)
	}
	if gotSession != "bspwm" {
		t.Fatalf("expected 'bspwm'; got: '%s'", gotSession)
	}
	if want := []string{"PreSUID", "PostSUID", "Close"}; !reflect.DeepEqual(backend.Calls, want) {
		t.Fatalf("expected '%v'; got: '%v'", want, backend.Calls)
	}
	if os.Getenv("USER") != "alice" || os.Getenv("HOME") != home || os.Getenv("SHELL") != "/bin/bash" {
		t.Fatalf("user environment not exported")
	}
}

func TestWorker_PrivDropFailure(t *testing.T) {
	ops := &privdrop.OpsTest{FailAt: "setgid", Err: errors.New("EPERM")}
	backend := &display.BackendTest{PreSUIDFunc: func(context.Context) error { return nil }}

	err := newTestWorker(t, backend, ops, aliceIn("/home/alice")).Run(context.Background(), "alice", "bspwm")
	if !errors.Is(err, errdefs.ErrPrivDrop) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrPrivDrop, err)
	}
	if want := []string{"PreSUID", "Close"}; !reflect.DeepEqual(backend.Calls, want) {
		t.Fatalf("expected '%v'; got: '%v'", want, backend.Calls)
	}
}

func TestWorker_UnknownUser(t *testing.T) {
	backend := &display.BackendTest{}
	err := newTestWorker(t, backend, &privdrop.OpsTest{}, nil).Run(context.Background(), "mallory", "bspwm")
	if !errors.Is(err, errdefs.ErrWorkerIdentity) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrWorkerIdentity, err)
	}
	if len(backend.Calls) != 0 {
		t.Fatalf("expected backend untouched; got: '%v'", backend.Calls)
	}
}

type busTest struct {
	launched, stopped int
}

func (b *busTest) Launch(context.Context) (*dbuslaunch.Bus, error) {
	b.launched++
	return &dbuslaunch.Bus{Address: "unix:path=/tmp/bus"}, nil
}

func (b *busTest) Stop(*dbuslaunch.Bus) { b.stopped++ }

func TestWorker_TimeoutAndBus(t *testing.T) {
	setenvAll(t)
	backend := &display.BackendTest{
		PreSUIDFunc: func(context.Context) error { return nil },
		PostSUIDFunc: func(ctx context.Context, _ *identity.Identity, _ string) error {
			if _, ok := ctx.Deadline(); !ok {
				t.Errorf("expected a session deadline")
			}
			return nil
		},
	}
	w := newTestWorker(t, backend, &privdrop.OpsTest{}, aliceIn(t.TempDir()))
	w.timeout = time.Minute
	bus := &busTest{}
	w.Bus = bus

	if err := w.Run(context.Background(), "alice", "i3"); err != nil {
		t.Fatalf("expected no error; got: %v", err)
	}
	if bus.launched != 1 || bus.stopped != 1 {
		t.Fatalf("expected bus launched and stopped once; got %d/%d", bus.launched, bus.stopped)
	}
}
