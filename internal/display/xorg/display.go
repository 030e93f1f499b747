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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cadmiumdm/cadmium/internal/errdefs"
)

func LockFile(lockDir string, n int) string {
	return filepath.Join(lockDir, fmt.Sprintf(".X%d-lock", n))
}

// FreeDisplay returns the lowest display number in [0, maxDisplay) without a
// lock file. The server creates the lock itself, so a concurrent server can
// still claim the same number between this scan and the spawn.
func FreeDisplay(lockDir string, maxDisplay int) (int, error) {
	for n := 0; n < maxDisplay; n++ {
		_, err := os.Lstat(LockFile(lockDir, n))
		if errors.Is(err, os.ErrNotExist) {
			return n, nil
		}
	}
	return -1, fmt.Errorf("%w: all of :0 to :%d are locked in %s", errdefs.ErrNoFreeDisplay, maxDisplay-1, lockDir)
}

func Name(n int) string {
	return fmt.Sprintf(":%d", n)
}
