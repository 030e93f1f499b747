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

// Package vt switches the active virtual console.
package vt

import (
	"fmt"
	"os"

	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"golang.org/x/sys/unix"
)

const (
	DefaultConsole = "/dev/tty0"

	vtActivate   = 0x5606
	vtWaitActive = 0x5607
)

type Switcher struct {
	Console string
	Ioctl   func(fd int, req uint, arg int) error
}

func NewSwitcher() *Switcher {
	return &Switcher{Console: DefaultConsole, Ioctl: unix.IoctlSetInt}
}

// Switch activates tty and waits until the kernel reports it active.
func (s *Switcher) Switch(tty uint) error {
	if tty == 0 {
		return fmt.Errorf("%w: vt 0", errdefs.ErrConsoleSwitch)
	}
	f, err := os.OpenFile(s.Console, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrConsoleSwitch, err)
	}
	defer f.Close()

	fd := int(f.Fd())
	if err := s.Ioctl(fd, vtActivate, int(tty)); err != nil {
		return fmt.Errorf("%w: VT_ACTIVATE %d: %w", errdefs.ErrConsoleSwitch, tty, err)
	}
	if err := s.Ioctl(fd, vtWaitActive, int(tty)); err != nil {
		return fmt.Errorf("%w: VT_WAITACTIVE %d: %w", errdefs.ErrConsoleSwitch, tty, err)
	}
	return nil
}
