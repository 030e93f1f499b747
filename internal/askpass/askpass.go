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

package askpass

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/cadmiumdm/cadmium/internal/secret"
	"golang.org/x/term"
)

const maxUsernameLen = 256

// Prompter obtains one credential from the user.
type Prompter interface {
	Prompt(ctx context.Context) (*secret.Credential, error)
}

// Terminal prompts on a console: the username echoed, the secret hidden.
type Terminal struct {
	In  *os.File
	Out io.Writer
}

func NewTerminal(in *os.File, out io.Writer) *Terminal {
	return &Terminal{In: in, Out: out}
}

func (t *Terminal) Prompt(ctx context.Context) (*secret.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrContextDone, err)
	}

	fmt.Fprint(t.Out, "Login:\nusername: ")
	username, err := t.readLine()
	if err != nil {
		return nil, fmt.Errorf("%w: read username: %w", errdefs.ErrCredentialPrompt, err)
	}

	fmt.Fprint(t.Out, "password (hidden): ")
	pw, err := term.ReadPassword(int(t.In.Fd()))
	fmt.Fprint(t.Out, "\n")
	if err != nil {
		return nil, fmt.Errorf("%w: read password: %w", errdefs.ErrCredentialPrompt, err)
	}

	cred := &secret.Credential{Username: username}
	if len(pw) > 0 {
		cred.Secret, err = secret.FromBytes(pw)
		if err != nil {
			clear(pw)
			return nil, fmt.Errorf("%w: %w", errdefs.ErrCredentialPrompt, err)
		}
	}
	return cred, nil
}

// readLine reads one byte at a time so nothing past the newline is consumed
// before the terminal is switched to no-echo mode.
func (t *Terminal) readLine() (string, error) {
	var line []byte
	var b [1]byte
	for {
		n, err := t.In.Read(b[:])
		if n == 1 {
			switch b[0] {
			case '\n':
				return string(line), nil
			case '\r':
				continue
			}
			if len(line) < maxUsernameLen {
				line = append(line, b[0])
			}
		}
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				return string(line), nil
			}
			return "", err
		}
	}
}
