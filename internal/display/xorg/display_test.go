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
	"errors"
	"os"
	"testing"

	"github.com/cadmiumdm/cadmium/internal/errdefs"
)

func lock(t *testing.T, dir string, n int) {
	t.Helper()
	if err := os.WriteFile(LockFile(dir, n), []byte("      1234\n"), 0o444); err != nil {
		t.Fatalf("write lock: %v", err)
	}
}

func TestFreeDisplay_Empty(t *testing.T) {
	n, err := FreeDisplay(t.TempDir(), 200)
	if err != nil || n != 0 {
		t.Fatalf("expected '0'; got: '%d' (%v)", n, err)
	}
}

func TestFreeDisplay_AllLocked(t *testing.T) {
	dir := t.TempDir()
	for n := 0; n < 200; n++ {
		lock(t, dir, n)
	}
	_, err := FreeDisplay(dir, 200)
	if !errors.Is(err, errdefs.ErrNoFreeDisplay) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrNoFreeDisplay, err)
	}
}

func TestFreeDisplay_SingleFree(t *testing.T) {
	dir := t.TempDir()
	for n := 0; n < 200; n++ {
		if n != 137 {
			lock(t, dir, n)
		}
	}
	n, err := FreeDisplay(dir, 200)
	if err != nil || n != 137 {
		t.Fatalf("expected '137'; got: '%d' (%v)", n, err)
	}
}

func TestFreeDisplay_LowestWins(t *testing.T) {
	dir := t.TempDir()
	lock(t, dir, 0)
	lock(t, dir, 1)
	lock(t, dir, 3)
	n, err := FreeDisplay(dir, 200)
	if err != nil || n != 2 {
		t.Fatalf("expected '2'; got: '%d' (%v)", n, err)
	}
}

func TestName(t *testing.T) {
	if got := Name(7); got != ":7" {
		t.Fatalf("expected ':7'; got: '%s'", got)
	}
}

func TestXDialer_MissingSocketIsRetryable(t *testing.T) {
	_, err := XDialer()(context.Background(), ":987654")
	if err == nil {
		t.Fatalf("expected an error dialing an absent display")
	}
	if !retryableDial(err) {
		t.Fatalf("expected a missing socket to be retryable; got: %v", err)
	}
}
