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

package config

import (
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // read-only lookup table
var xsessionDirs = []string{"/usr/share/xsessions", "/usr/local/share/xsessions"}

func AutoCompleteLogLevels(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
}

// AutoCompleteSessions offers the names of installed X sessions
// (<name>.desktop files) for --de.
func AutoCompleteSessions(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return ListSessionNames(xsessionDirs, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func ListSessionNames(dirs []string, prefix string) []string {
	seen := make(map[string]struct{})
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name, ok := strings.CutSuffix(e.Name(), ".desktop")
			if !ok || e.IsDir() || !strings.HasPrefix(name, prefix) {
				continue
			}
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
