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

package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/cadmiumdm/cadmium/internal/askpass"
	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/cadmiumdm/cadmium/internal/identity"
	"github.com/cadmiumdm/cadmium/internal/inhibit"
	"github.com/cadmiumdm/cadmium/internal/pamauth"
	"github.com/cadmiumdm/cadmium/internal/secret"
)

const (
	inhibitWho = "Cadmium"
	inhibitWhy = "login"

	msgDenied   = "Login incorrect"
	msgTryAgain = "Please try again"
)

// Backend is the system authentication service.
type Backend interface {
	// SetCredentials hands over the caller's buffer, which the caller
	// clears after Authenticate.
	SetCredentials(username string, buf *secret.Buffer)
	Authenticate() error
	OpenSession() error
	CloseSession() error
}

// Authenticator is what the login loop needs from a Gate.
type Authenticator interface {
	Authenticate(ctx context.Context, tty uint) (*identity.Identity, error)
	EndSession() error
}

type Gate struct {
	logger    *slog.Logger
	inhibitor inhibit.Inhibitor
	prompter  askpass.Prompter
	backend   Backend
	out       io.Writer

	Lookup func(username string) (*identity.Identity, error)
}

func NewGate(logger *slog.Logger, inhibitor inhibit.Inhibitor, prompter askpass.Prompter, backend Backend, out io.Writer) *Gate {
	return &Gate{
		logger:    logger,
		inhibitor: inhibitor,
		prompter:  prompter,
		backend:   backend,
		out:       out,
		Lookup:    identity.Lookup,
	}
}

// Authenticate runs one login attempt on tty. A rejected attempt of any kind
// returns errdefs.ErrAuthentication; anything else is fatal to the caller.
func (g *Gate) Authenticate(ctx context.Context, tty uint) (*identity.Identity, error) {
	lock, err := g.inhibitor.Inhibit(ctx, inhibitWho, inhibitWhy)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Close(); err != nil {
			g.logger.Warn("releasing inhibitor lock failed", "error", err)
		}
	}()

	cred, err := g.prompter.Prompt(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrIO, err)
	}
	defer cred.Clear()

	if err := SetSessionEnv(tty); err != nil {
		return nil, err
	}

	// Unknown users go through the backend too, so they are rejected after
	// the same failure delay as a wrong password.
	g.backend.SetCredentials(cred.Username, cred.Secret)
	authErr := g.backend.Authenticate()
	cred.Clear()

	if authErr != nil {
		code := pamauth.CodeOf(authErr)
		g.logger.Info("login rejected", "user", cred.Username, "code", code.String())
		if code.Transient() {
			fmt.Fprintln(g.out, msgTryAgain)
		} else {
			fmt.Fprintln(g.out, msgDenied)
		}
		return nil, fmt.Errorf("%w: %s", errdefs.ErrAuthentication, code)
	}

	id, err := g.Lookup(cred.Username)
	if err != nil {
		if !errors.Is(err, errdefs.ErrUnknownUser) {
			return nil, err
		}
		g.logger.Info("login rejected", "user", cred.Username, "reason", err)
		fmt.Fprintln(g.out, msgDenied)
		return nil, fmt.Errorf("%w: %w", errdefs.ErrAuthentication, err)
	}

	if err := g.backend.OpenSession(); err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrSession, err)
	}

	g.logger.Info("login accepted", "user", id.Username, "uid", id.UID)
	return id, nil
}

// EndSession closes the backend session opened by a successful Authenticate.
func (g *Gate) EndSession() error {
	if err := g.backend.CloseSession(); err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrSession, err)
	}
	return nil
}

// SetSessionEnv exports the session class context. The process environment
// is shared with every child spawned afterwards.
func SetSessionEnv(tty uint) error {
	vars := [][2]string{
		{"XDG_SESSION_CLASS", "greeter"},
		{"XDG_SEAT", "seat0"},
		{"XDG_VTNR", strconv.FormatUint(uint64(tty), 10)},
		{"XDG_SESSION_ID", "1"},
		{"XDG_SESSION_TYPE", "tty"},
	}
	if _, ok := os.LookupEnv("XDG_DATA_DIRS"); !ok {
		vars = append(vars, [2]string{"XDG_DATA_DIRS", "/usr/local/share/:/usr/share/"})
	}
	for _, kv := range vars {
		if err := os.Setenv(kv[0], kv[1]); err != nil {
			return fmt.Errorf("%w: setenv %s: %w", errdefs.ErrIO, kv[0], err)
		}
	}
	return nil
}
