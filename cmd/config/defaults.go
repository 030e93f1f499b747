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

	"github.com/spf13/cobra"
)

const (
	DefaultConfigFile = "/etc/cadmium.toml"
	DefaultLogFile    = "/var/log/cadmium.log"
	DefaultRunPath    = "/run/cadmium"
)

// GetConfigFileFromEnvAndFlags resolves the config path: --config, then
// CADMIUM_CONFIG_FILE, then /etc/cadmium.toml.
func GetConfigFileFromEnvAndFlags(cmd *cobra.Command) string {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		if env := os.Getenv(CADMIUM_CONFIG_FILE.Key); env != "" {
			configFile = env
		} else {
			configFile = DefaultConfigFile
		}
	}
	return configFile
}
