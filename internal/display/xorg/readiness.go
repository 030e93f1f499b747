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
	"fmt"
	"io"
	"net"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/cenkalti/backoff/v4"
	"github.com/jezek/xgb"
	"golang.org/x/sys/unix"
)

var errNotReady = errors.New("display server not ready")

// Dialer opens a protocol connection to display. Errors wrapping
// ECONNREFUSED or ENOENT mean the server is still starting.
type Dialer func(ctx context.Context, display string) (io.Closer, error)

// LivenessCheck reports whether pid is still alive. ESRCH means the process
// is not there (yet); any other error is fatal.
type LivenessCheck func(pid int) error

func signalAlive(pid int) error {
	return unix.Kill(pid, 0)
}

// SocketDir is where the X server listens and where xgb connects; it does
// not follow display.lock_dir.
const SocketDir = "/tmp/.X11-unix"

// XDialer checks the local socket before the X handshake so that a refused
// or missing socket is classified by errno.
func XDialer() Dialer {
	return func(ctx context.Context, display string) (io.Closer, error) {
		socket := filepath.Join(SocketDir, "X"+strings.TrimPrefix(display, ":"))
		var d net.Dialer
		c, err := d.DialContext(ctx, "unix", socket)
		if err != nil {
			return nil, err
		}
		_ = c.Close()

		xc, err := xgb.NewConnDisplay(display)
		if err != nil {
			return nil, err
		}
		return xConn{xc}, nil
	}
}

type xConn struct{ *xgb.Conn }

func (c xConn) Close() error {
	c.Conn.Close()
	return nil
}

func retryableDial(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENOENT)
}

func newReadyBackoff(timeout time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = timeout
	return b
}

// waitReady polls until display accepts a connection, the server exits, a
// fatal error occurs or timeout elapses.
func waitReady(ctx context.Context, pid int, display string, timeout time.Duration,
	exited <-chan struct{}, alive LivenessCheck, dial Dialer, notify func(error, time.Duration),
) (io.Closer, error) {
	var conn io.Closer

	op := func() error {
		select {
		case <-exited:
			return backoff.Permanent(fmt.Errorf("%w: server exited before %s was ready", errdefs.ErrConnection, display))
		default:
		}

		if err := alive(pid); err != nil {
			if errors.Is(err, unix.ESRCH) {
				return errNotReady
			}
			return backoff.Permanent(fmt.Errorf("%w: signal pid %d: %w", errdefs.ErrConnection, pid, err))
		}

		c, err := dial(ctx, display)
		if err != nil {
			if retryableDial(err) {
				return errNotReady
			}
			return backoff.Permanent(fmt.Errorf("%w: %w", errdefs.ErrConnection, err))
		}
		conn = c
		return nil
	}

	err := backoff.RetryNotify(op, backoff.WithContext(newReadyBackoff(timeout), ctx), notify)
	switch {
	case err == nil:
		return conn, nil
	case errors.Is(err, errdefs.ErrConnection):
		return nil, err
	case ctx.Err() != nil:
		return nil, fmt.Errorf("%w: %w", errdefs.ErrConnection, ctx.Err())
	default:
		return nil, fmt.Errorf("%w: %s not ready after %s", errdefs.ErrConnection, display, timeout)
	}
}
