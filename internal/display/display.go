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

// Package display defines the capability a display server backend offers to
// the session worker.
//
// A backend is driven in two phases split by the privilege drop. PreSUID runs
// as root: it allocates a display, spawns the server and waits until clients
// can connect. PostSUID runs as the user: it provisions client authority,
// starts the session command and blocks until it exits.
package display

import (
	"context"

	"github.com/cadmiumdm/cadmium/internal/identity"
)

type Backend interface {
	PreSUID(ctx context.Context) error
	PostSUID(ctx context.Context, id *identity.Identity, session string) error
	// Close releases whatever PreSUID acquired. Safe to call in any state.
	Close() error
	State() State
}

type State int

const (
	Created State = iota
	Spawned
	Running
	Closed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Spawned:
		return "spawned"
	case Running:
		return "running"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
