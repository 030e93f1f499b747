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

package supervisor

import (
	"context"
	"os"

	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/cadmiumdm/cadmium/internal/identity"
)

type SupervisorTest struct {
	RunSessionFunc func(ctx context.Context, id *identity.Identity) error
}

func (f *SupervisorTest) RunSession(ctx context.Context, id *identity.Identity) error {
	if f.RunSessionFunc != nil {
		return f.RunSessionFunc(ctx, id)
	}
	return errdefs.ErrFuncNotSet
}

type ForkerTest struct {
	Spec     WorkerSpec
	ForkFunc func(ctx context.Context, spec WorkerSpec) (Child, error)
}

func (f *ForkerTest) Fork(ctx context.Context, spec WorkerSpec) (Child, error) {
	f.Spec = spec
	if f.ForkFunc != nil {
		return f.ForkFunc(ctx, spec)
	}
	return nil, errdefs.ErrFuncNotSet
}

type ChildTest struct {
	PID        int
	WaitFunc   func() error
	SignalFunc func(sig os.Signal) error
}

func (f *ChildTest) Pid() int { return f.PID }

func (f *ChildTest) Wait() error {
	if f.WaitFunc != nil {
		return f.WaitFunc()
	}
	return errdefs.ErrFuncNotSet
}

func (f *ChildTest) Signal(sig os.Signal) error {
	if f.SignalFunc != nil {
		return f.SignalFunc(sig)
	}
	return errdefs.ErrFuncNotSet
}
