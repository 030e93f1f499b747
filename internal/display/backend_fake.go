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

package display

import (
	"context"

	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/cadmiumdm/cadmium/internal/identity"
)

type BackendTest struct {
	Calls []string

	PreSUIDFunc  func(ctx context.Context) error
	PostSUIDFunc func(ctx context.Context, id *identity.Identity, session string) error
	CloseFunc    func() error
	StateValue   State
}

func (f *BackendTest) PreSUID(ctx context.Context) error {
	f.Calls = append(f.Calls, "PreSUID")
	if f.PreSUIDFunc != nil {
		return f.PreSUIDFunc(ctx)
	}
	return errdefs.ErrFuncNotSet
}

func (f *BackendTest) PostSUID(ctx context.Context, id *identity.Identity, session string) error {
	f.Calls = append(f.Calls, "PostSUID")
	if f.PostSUIDFunc != nil {
		return f.PostSUIDFunc(ctx, id, session)
	}
	return errdefs.ErrFuncNotSet
}

func (f *BackendTest) Close() error {
	f.Calls = append(f.Calls, "Close")
	if f.CloseFunc != nil {
		return f.CloseFunc()
	}
	return nil
}

func (f *BackendTest) State() State {
	return f.StateValue
}
