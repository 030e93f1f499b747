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

// Package locale imports LANG and friends from a locale.conf file.
package locale

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/joho/godotenv"
)

// Source exports every assignment in file and returns the names it set, in
// order. A missing file sets nothing.
func Source(file string) ([]string, error) {
	vars, err := godotenv.Read(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %w", errdefs.ErrIO, file, err)
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := os.Setenv(k, vars[k]); err != nil {
			return nil, fmt.Errorf("%w: setenv %s: %w", errdefs.ErrIO, k, err)
		}
	}
	return keys, nil
}
