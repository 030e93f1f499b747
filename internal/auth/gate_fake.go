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

	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/cadmiumdm/cadmium/internal/identity"
	"github.com/cadmiumdm/cadmium/internal/secret"
)

type GateTest struct {
	AuthenticateFunc func(ctx context.Context, tty uint) (*identity.Identity, error)
	EndSessionFunc   func() error
}

func (f *GateTest) Authenticate(ctx context.Context, tty uint) (*identity.Identity, error) {
	if f.AuthenticateFunc != nil {
		return f.AuthenticateFunc(ctx, tty)
	}
	return nil, errdefs.ErrFuncNotSet
}

func (f *GateTest) EndSession() error {
	if f.EndSessionFunc != nil {
		return f.EndSessionFunc()
	}
	return errdefs.ErrFuncNotSet
}

type BackendTest struct {
	Username string
	Secret   *secret.Buffer

	AuthenticateFunc func() error
	OpenSessionFunc  func() error
	CloseSessionFunc func() error
}

func (f *BackendTest) SetCredentials(username string, buf *secret.Buffer) {
	f.Username = username
	f.Secret = buf
}

func (f *BackendTest) Authenticate() error {
	if f.AuthenticateFunc != nil {
		return f.AuthenticateFunc()
	}
	return errdefs.ErrFuncNotSet
}

func (f *BackendTest) OpenSession() error {
	if f.OpenSessionFunc != nil {
		return f.OpenSessionFunc()
	}
	return errdefs.ErrFuncNotSet
}

func (f *BackendTest) CloseSession() error {
	if f.CloseSessionFunc != nil {
		return f.CloseSessionFunc()
	}
	return errdefs.ErrFuncNotSet
}
