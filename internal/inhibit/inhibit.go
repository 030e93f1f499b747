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

package inhibit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/godbus/dbus/v5"
)

const (
	logindDest   = "org.freedesktop.login1"
	logindPath   = dbus.ObjectPath("/org/freedesktop/login1")
	inhibitCall  = "org.freedesktop.login1.Manager.Inhibit"
	inhibitWhat  = "sleep"
	inhibitBlock = "block"
)

// Inhibitor holds off system suspend until the returned lock is closed.
type Inhibitor interface {
	Inhibit(ctx context.Context, who, why string) (io.Closer, error)
}

// Logind takes "sleep" block inhibitor locks from systemd-logind.
type Logind struct {
	Connect func(ctx context.Context) (*dbus.Conn, error)
}

func NewLogind() *Logind {
	return &Logind{Connect: func(ctx context.Context) (*dbus.Conn, error) {
		return dbus.ConnectSystemBus(dbus.WithContext(ctx))
	}}
}

func (l *Logind) Inhibit(ctx context.Context, who, why string) (io.Closer, error) {
	conn, err := l.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: connect system bus: %w", errdefs.ErrInhibit, err)
	}

	var fd dbus.UnixFD
	obj := conn.Object(logindDest, logindPath)
	if err := obj.CallWithContext(ctx, inhibitCall, 0, inhibitWhat, who, why, inhibitBlock).Store(&fd); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %w", errdefs.ErrInhibit, err)
	}

	return &Lock{file: os.NewFile(uintptr(fd), "logind-inhibit"), conn: conn}, nil
}

// Lock is released by closing the inhibitor fd logind handed out.
type Lock struct {
	once sync.Once
	file *os.File
	conn io.Closer
	err  error
}

func (l *Lock) Close() error {
	l.once.Do(func() {
		var errs []error
		if l.file != nil {
			errs = append(errs, l.file.Close())
		}
		if l.conn != nil {
			errs = append(errs, l.conn.Close())
		}
		l.err = errors.Join(errs...)
	})
	return l.err
}

// Nop is used when auth.inhibit is off, e.g. on systems without logind.
type Nop struct{}

func (Nop) Inhibit(context.Context, string, string) (io.Closer, error) {
	return io.NopCloser(nil), nil
}
