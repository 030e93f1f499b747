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
	"fmt"
	"os"
	"os/exec"

	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"golang.org/x/sys/unix"
)

const (
	SelfExe       = "/proc/self/exe"
	WorkerCommand = "session-worker"
)

// WorkerSpec is everything the worker needs; it crosses the process boundary
// as command line arguments.
type WorkerSpec struct {
	Username   string
	Session    string
	ConfigFile string
}

func (s WorkerSpec) Args() []string {
	args := []string{WorkerCommand, "--user", s.Username, "--session", s.Session}
	if s.ConfigFile != "" {
		args = append(args, "--config", s.ConfigFile)
	}
	return args
}

// Child is a running worker process.
type Child interface {
	Pid() int
	Wait() error
	Signal(sig os.Signal) error
}

// Forker starts the worker on the other side of the privilege boundary.
type Forker interface {
	Fork(ctx context.Context, spec WorkerSpec) (Child, error)
}

// ExecForker re-executes a binary (by default this one) into the worker
// subcommand. The worker inherits the environment and the console.
type ExecForker struct {
	Path string
	// Prefix goes before the worker arguments.
	Prefix []string
	Env    []string
}

func (f *ExecForker) Fork(_ context.Context, spec WorkerSpec) (Child, error) {
	path := f.Path
	if path == "" {
		path = SelfExe
	}
	args := append(append([]string{}, f.Prefix...), spec.Args()...)

	//nolint:gosec,noctx // the worker must not be killed by the parent's context; it is signalled instead
	cmd := exec.Command(path, args...)
	cmd.Env = append(os.Environ(), f.Env...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrForkFailed, err)
	}
	return &execChild{cmd: cmd}, nil
}

type execChild struct {
	cmd *exec.Cmd
}

func (c *execChild) Pid() int                   { return c.cmd.Process.Pid }
func (c *execChild) Signal(sig os.Signal) error { return c.cmd.Process.Signal(sig) }

// Wait returns when the worker exits or is stopped by job control. A
// stopped worker is left unreaped.
func (c *execChild) Wait() error {
	pid := c.cmd.Process.Pid
	for {
		var ws unix.WaitStatus
		_, err := unix.Wait4(pid, &ws, unix.WUNTRACED, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("wait pid %d: %w", pid, err)
		}

		switch {
		case ws.Stopped():
			return fmt.Errorf("%w: %v", errdefs.ErrChildStopped, ws.StopSignal())
		case ws.Exited(), ws.Signaled():
			_ = c.cmd.Process.Release()
			if ws.Exited() && ws.ExitStatus() == 0 {
				return nil
			}
			return &ExitError{Status: ws}
		}
	}
}

// ExitError is a worker that exited non-zero or was killed.
type ExitError struct {
	Status unix.WaitStatus
}

// ExitCode is -1 when the worker was killed by a signal.
func (e *ExitError) ExitCode() int {
	if e.Status.Exited() {
		return e.Status.ExitStatus()
	}
	return -1
}

func (e *ExitError) Error() string {
	if e.Status.Signaled() {
		return fmt.Sprintf("killed by %v", e.Status.Signal())
	}
	return fmt.Sprintf("exit status %d", e.Status.ExitStatus())
}
