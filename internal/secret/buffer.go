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

// Package secret keeps credential material outside the Go heap.
//
// A Buffer is an anonymous mmap region, locked into RAM when the process is
// allowed to (RLIMIT_MEMLOCK), excluded from core dumps and zeroed on Clear.
// The garbage collector never sees it, so no stray copies survive a login
// attempt.
package secret

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

var ErrClosed = errors.New("secret: buffer cleared")

type Buffer struct {
	mu     sync.Mutex
	data   []byte
	locked bool
	closed bool
}

// New allocates size bytes. mlock is best effort: an unlocked buffer is still
// off-heap and zeroed on Clear.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap failed: %w", err)
	}

	b := &Buffer{data: data}
	if err := unix.Mlock(data); err == nil {
		b.locked = true
	}
	_ = unix.Madvise(data, unix.MADV_DONTDUMP)

	return b, nil
}

// FromBytes copies source into a new Buffer and zeroes source.
func FromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, errors.New("secret: cannot create buffer from empty source")
	}
	b, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(b.data, source)
	clear(source)
	return b, nil
}

// Bytes points into the mmap region. Do not keep it past Clear.
func (b *Buffer) Bytes() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	return b.data, nil
}

// View returns a string that shares memory with the buffer, for APIs that
// insist on a string. It must not be used after Clear, which unmaps it.
func (b *Buffer) View() (string, error) {
	data, err := b.Bytes()
	if err != nil {
		return "", err
	}
	return unsafe.String(&data[0], len(data)), nil
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Locked reports whether mlock succeeded.
func (b *Buffer) Locked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// Clear zeroes and releases the region. It is idempotent.
func (b *Buffer) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	clear(b.data)

	var firstErr error
	if b.locked {
		if err := unix.Munlock(b.data); err != nil {
			firstErr = fmt.Errorf("secret: munlock failed: %w", err)
		}
	}
	if err := unix.Munmap(b.data); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("secret: munmap failed: %w", err)
	}
	b.data = nil
	return firstErr
}
