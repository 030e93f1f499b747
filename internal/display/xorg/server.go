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

// Package xorg is the X11 display backend: it picks a free display, starts
// the X server on a VT, waits until it accepts connections, writes the
// user's authority file and runs the session command through the login
// shell.
package xorg

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/cadmiumdm/cadmium/internal/config"
	"github.com/cadmiumdm/cadmium/internal/display"
	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/cadmiumdm/cadmium/internal/identity"
)

//go:embed xsetup.sh
var bundledSetup string

const (
	setupArgv0  = "cadmium-xsetup"
	stopTimeout = 5 * time.Second
)

type Options struct {
	ServerPath    string
	XauthPath     string
	LockDir       string
	MaxDisplay    int
	VT            uint
	ReadyTimeout  time.Duration
	AuthorityFile string
	// SetupScript is a path; empty selects the bundled script.
	SetupScript string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ServerPath:    cfg.Display.Server,
		XauthPath:     cfg.Display.Xauth,
		LockDir:       cfg.Display.LockDir,
		MaxDisplay:    cfg.Display.MaxDisplay,
		VT:            cfg.DisplayTTY,
		ReadyTimeout:  cfg.Display.ReadyTimeout,
		AuthorityFile: cfg.Display.AuthorityFile,
		SetupScript:   cfg.Display.SetupScript,
	}
}

type Server struct {
	mu     sync.Mutex
	opts   Options
	logger *slog.Logger
	state  display.State

	display string
	server  *exec.Cmd
	exited  chan struct{}
	conn    io.Closer

	Dial  Dialer
	Alive LivenessCheck
}

func NewServer(logger *slog.Logger, opts Options) *Server {
	return &Server{
		opts:   opts,
		logger: logger,
		state:  display.Created,
		Dial:   XDialer(),
		Alive:  signalAlive,
	}
}

func (s *Server) State() display.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Display returns the allocated display name, "" before PreSUID.
func (s *Server) Display() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.display
}

func (s *Server) setState(st display.State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// PreSUID must run as root.
func (s *Server) PreSUID(ctx context.Context) error {
	if st := s.State(); st != display.Created {
		return fmt.Errorf("%w: PreSUID in state %s", errdefs.ErrInvalidArgument, st)
	}

	n, err := FreeDisplay(s.opts.LockDir, s.opts.MaxDisplay)
	if err != nil {
		return err
	}
	name := Name(n)

	// Inherited by the server, the readiness dial and the session command.
	if err := os.Setenv("DISPLAY", name); err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrBackendStart, err)
	}

	cmd := exec.Command(s.opts.ServerPath, name, fmt.Sprintf("vt%d", s.opts.VT))
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGTERM}
	s.logger.Info("starting display server", "path", s.opts.ServerPath, "display", name, "vt", s.opts.VT)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrBackendStart, err)
	}

	exited := make(chan struct{})
	go func() {
		err := cmd.Wait()
		s.logger.Debug("display server exited", "pid", cmd.Process.Pid, "error", err)
		close(exited)
	}()

	s.mu.Lock()
	s.display = name
	s.server = cmd
	s.exited = exited
	s.mu.Unlock()

	notify := func(err error, next time.Duration) {
		s.logger.Debug("waiting for display server", "display", name, "reason", err, "next", next)
	}
	conn, err := waitReady(ctx, cmd.Process.Pid, name, s.opts.ReadyTimeout, exited, s.Alive, s.Dial, notify)
	if err != nil {
		s.stopServer()
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.state = display.Spawned
	s.mu.Unlock()
	s.logger.Info("display server ready", "display", name, "pid", cmd.Process.Pid)
	return nil
}

// PostSUID must run as the session user.
func (s *Server) PostSUID(ctx context.Context, id *identity.Identity, session string) error {
	name := s.Display()
	if name == "" {
		return errdefs.ErrNoDisplay
	}

	cookie, err := NewCookie()
	if err != nil {
		return err
	}
	authFile := filepath.Join(id.HomeDir, s.opts.AuthorityFile)
	if err := Provision(ctx, s.opts.XauthPath, authFile, name, cookie); err != nil {
		return err
	}
	s.logger.Debug("authority file written", "file", authFile, "display", name)

	shell := id.ResolveShell()
	if shell == "" {
		return fmt.Errorf("%w: %s", errdefs.ErrNoShell, id.Username)
	}
	script, err := s.setupScript()
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, shell, "-l", "-c", script, setupArgv0, session)
	cmd.Dir = id.HomeDir
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	s.logger.Info("starting session", "user", id.Username, "session", session, "shell", shell)
	if err := cmd.Start(); err != nil {
		s.closeConn()
		return fmt.Errorf("%w: %w", errdefs.ErrSessionStart, err)
	}
	s.setState(display.Running)

	if err := cmd.Wait(); err != nil {
		s.logger.Info("session exited", "user", id.Username, "error", err)
	} else {
		s.logger.Info("session exited", "user", id.Username)
	}

	s.closeConn()
	return nil
}

func (s *Server) setupScript() (string, error) {
	if s.opts.SetupScript == "" {
		return bundledSetup, nil
	}
	b, err := os.ReadFile(s.opts.SetupScript)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errdefs.ErrSessionStart, err)
	}
	return string(b), nil
}

// Close drops the connection and stops the server if this process still
// may. After the privilege drop the server's parent-death signal does it.
func (s *Server) Close() error {
	s.closeConn()
	s.stopServer()
	s.setState(display.Closed)
	return nil
}

func (s *Server) closeConn() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		if err := conn.Close(); err != nil {
			s.logger.Debug("closing display connection failed", "error", err)
		}
	}
}

func (s *Server) stopServer() {
	s.mu.Lock()
	cmd, exited := s.server, s.exited
	s.server = nil
	s.mu.Unlock()
	if cmd == nil {
		return
	}

	select {
	case <-exited:
		return
	default:
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return
		}
		s.logger.Warn("could not stop display server", "pid", cmd.Process.Pid, "error", err)
		return
	}
	select {
	case <-exited:
	case <-time.After(stopTimeout):
		_ = cmd.Process.Kill()
		<-exited
	}
}
