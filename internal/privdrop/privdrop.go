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

// Package privdrop switches the calling process to a user's identity.
package privdrop

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"syscall"

	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/cadmiumdm/cadmium/internal/identity"
	"golang.org/x/sys/unix"
)

// Ops are the four steps of a drop. SystemOps performs them for real.
type Ops interface {
	Initgroups(username string, gid uint32) error
	Setgid(gid uint32) error
	Setuid(uid uint32) error
	Chdir(dir string) error
}

// Drop sets supplementary groups, then the gid, then the uid and finally
// enters the home directory. Groups must be set while the process can still
// change them. The first failure stops the sequence; the caller must exit
// rather than carry on half dropped.
func Drop(ops Ops, id *identity.Identity) error {
	if err := ops.Initgroups(id.Username, id.GID); err != nil {
		return fmt.Errorf("%w: initgroups %s: %w", errdefs.ErrPrivDrop, id.Username, err)
	}
	if err := ops.Setgid(id.GID); err != nil {
		return fmt.Errorf("%w: setgid %d: %w", errdefs.ErrPrivDrop, id.GID, err)
	}
	if err := ops.Setuid(id.UID); err != nil {
		return fmt.Errorf("%w: setuid %d: %w", errdefs.ErrPrivDrop, id.UID, err)
	}
	if err := ops.Chdir(id.HomeDir); err != nil {
		return fmt.Errorf("%w: chdir %s: %w", errdefs.ErrPrivDrop, id.HomeDir, err)
	}
	return nil
}

type SystemOps struct{}

// Initgroups resolves the user's groups from the group database. The
// syscall package applies setgroups to every thread of the runtime.
func (SystemOps) Initgroups(username string, gid uint32) error {
	u, err := user.Lookup(username)
	if err != nil {
		return err
	}
	ids, err := u.GroupIds()
	if err != nil {
		return err
	}
	groups := []int{int(gid)}
	for _, s := range ids {
		g, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("group id %q: %w", s, err)
		}
		if g != int(gid) {
			groups = append(groups, g)
		}
	}
	return syscall.Setgroups(groups)
}

func (SystemOps) Setgid(gid uint32) error {
	if err := unix.Setgid(int(gid)); err != nil {
		return err
	}
	if got := unix.Getegid(); got != int(gid) {
		return fmt.Errorf("egid is %d after setgid", got)
	}
	return nil
}

// Setuid also checks that root cannot be regained.
func (SystemOps) Setuid(uid uint32) error {
	if err := unix.Setuid(int(uid)); err != nil {
		return err
	}
	if got := unix.Geteuid(); got != int(uid) {
		return fmt.Errorf("euid is %d after setuid", got)
	}
	if uid != 0 && unix.Setuid(0) == nil {
		return fmt.Errorf("uid 0 could be regained after setuid %d", uid)
	}
	return nil
}

func (SystemOps) Chdir(dir string) error {
	return os.Chdir(dir)
}
