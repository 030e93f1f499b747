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

package xorg

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/cadmiumdm/cadmium/internal/errdefs"
)

// NewCookie returns 128 random bits as 32 lowercase hex characters.
func NewCookie() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("%w: %w", errdefs.ErrAuthorityIO, err)
	}
	return hex.EncodeToString(b[:]), nil
}

// Provision points XAUTHORITY at file, truncates it and has the xauth tool
// add a single entry for display. Calling it again replaces the entry.
func Provision(ctx context.Context, xauth, file, display, cookie string) error {
	if err := os.Setenv("XAUTHORITY", file); err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrAuthorityIO, err)
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrAuthorityIO, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrAuthorityIO, err)
	}

	cmd := exec.CommandContext(ctx, xauth, "-f", file, "add", display, ".", cookie)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s: %w: %s", errdefs.ErrAuthorityTool, xauth, err, strings.TrimSpace(string(out)))
	}
	return nil
}
