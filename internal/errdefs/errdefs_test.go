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

package errdefs

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		local     bool
		fatal     bool
	}{
		{name: "nil", err: nil},
		{name: "authentication", err: ErrAuthentication, retryable: true},
		{
			name:      "wrapped authentication",
			err:       fmt.Errorf("%w: %w", ErrAuthentication, errors.New("pam: auth error")),
			retryable: true,
		},
		{name: "child exit", err: fmt.Errorf("%w: exit status 1", ErrChildExit), local: true, fatal: false},
		{name: "no free display", err: ErrNoFreeDisplay, local: true},
		{name: "no shell", err: ErrNoShell, local: true},
		{name: "fork failed", err: ErrForkFailed, fatal: true},
		{name: "inhibit", err: ErrInhibit, fatal: true},
		{name: "session", err: ErrSession, fatal: true},
		{name: "io", err: ErrIO, fatal: true},
		{name: "config", err: ErrConfigLoad, fatal: true},
		{name: "too many attempts", err: ErrTooManyAttempts, fatal: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Fatalf("IsRetryable: expected '%v'; got: '%v'", tt.retryable, got)
			}
			if got := IsSessionLocal(tt.err); got != tt.local {
				t.Fatalf("IsSessionLocal: expected '%v'; got: '%v'", tt.local, got)
			}
			if got := IsFatal(tt.err); got != tt.fatal {
				t.Fatalf("IsFatal: expected '%v'; got: '%v'", tt.fatal, got)
			}
		})
	}
}
