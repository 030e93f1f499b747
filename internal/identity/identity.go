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

package identity

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"

	"github.com/cadmiumdm/cadmium/internal/errdefs"
)

const DefaultPasswdFile = "/etc/passwd"

// Identity is the resolved account of an authenticated user. It never holds
// the secret.
type Identity struct {
	Username string
	UID      uint32
	GID      uint32
	HomeDir  string
	Shell    string
}

// Resolver looks users up in the system database. The login shell is not
// exposed by os/user, so it is read from PasswdFile.
type Resolver struct {
	PasswdFile string
	LookupUser func(name string) (*user.User, error)
}

//nolint:gochecknoglobals // process-wide default
var DefaultResolver = &Resolver{PasswdFile: DefaultPasswdFile, LookupUser: user.Lookup}

func Lookup(username string) (*Identity, error) {
	return DefaultResolver.Lookup(username)
}

func (r *Resolver) Lookup(username string) (*Identity, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: empty username", errdefs.ErrUnknownUser)
	}
	lookup := r.LookupUser
	if lookup == nil {
		lookup = user.Lookup
	}

	u, err := lookup(username)
	if err != nil {
		var unknown user.UnknownUserError
		if errors.As(err, &unknown) {
			return nil, fmt.Errorf("%w: %q", errdefs.ErrUnknownUser, username)
		}
		return nil, fmt.Errorf("%w: lookup %q: %w", errdefs.ErrIO, username, err)
	}

	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: uid %q: %w", errdefs.ErrUnknownUser, u.Uid, err)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: gid %q: %w", errdefs.ErrUnknownUser, u.Gid, err)
	}

	shell, err := r.shell(username)
	if err != nil {
		return nil, err
	}

	return &Identity{
		Username: u.Username,
		UID:      uint32(uid),
		GID:      uint32(gid),
		HomeDir:  u.HomeDir,
		Shell:    shell,
	}, nil
}

// shell returns the seventh passwd field for username, or "" when the user
// is not listed locally (e.g. served by NSS).
func (r *Resolver) shell(username string) (string, error) {
	path := r.PasswdFile
	if path == "" {
		path = DefaultPasswdFile
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("%w: open passwd file: %w", errdefs.ErrIO, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ":")
		if len(parts) != 7 || parts[0] != username {
			continue
		}
		return parts[6], nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("%w: read passwd file: %w", errdefs.ErrIO, err)
	}
	return "", nil
}

// ResolveShell prefers the account's shell and falls back to $SHELL.
func (i *Identity) ResolveShell() string {
	if i.Shell != "" {
		return i.Shell
	}
	return os.Getenv("SHELL")
}
