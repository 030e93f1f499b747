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

	"github.com/spf13/viper"
)

const Prefix = "CADMIUM"

type Var struct {
	Key        string // e.g. "CADMIUM_LOG_LEVEL"
	ViperKey   string // optional, e.g. "log_level"
	Default    string // optional
	HasDefault bool
}

func DefineKV(envName, viperKey string, defaultVal ...string) Var {
	v := Var{Key: Prefix + "_" + envName, ViperKey: viperKey}
	if len(defaultVal) > 0 {
		v.Default = defaultVal[0]
		v.HasDefault = true
	}
	return v
}

func Define(envName string, defaultVal ...string) Var {
	return DefineKV(envName, "", defaultVal...)
}

// ValueOrDefault defines precedence: viper (if ViperKey set and value present) → OS env → default → "".
func (v *Var) ValueOrDefault() string {
	if v.ViperKey != "" && viper.IsSet(v.ViperKey) {
		return viper.GetString(v.ViperKey)
	}
	if val, ok := os.LookupEnv(v.Key); ok {
		return val
	}
	if v.HasDefault {
		return v.Default
	}
	return ""
}

// BindEnv is safe if ViperKey is empty: does nothing.
func (v *Var) BindEnv() error {
	if v.ViperKey == "" {
		return nil
	}
	return viper.BindEnv(v.ViperKey, v.Key)
}

func KV(v Var, value string) string { return v.Key + "=" + value }

// ---- Declare statically (Viper key optional per var) ----.
var (
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	CADMIUM_CONFIG_FILE = DefineKV("CONFIG_FILE", "configFile", DefaultConfigFile)
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	CADMIUM_LOG_LEVEL = DefineKV("LOG_LEVEL", "log_level", "info")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	CADMIUM_LOG_FILE = DefineKV("LOG_FILE", "log_file", DefaultLogFile)
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	CADMIUM_RUN_PATH = DefineKV("RUN_PATH", "run_path", DefaultRunPath)
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	CADMIUM_DE = DefineKV("DE", "de")
	// Set by the parent for the session worker; tags its log lines.
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	CADMIUM_RUN_ID = Define("RUN_ID")
)

//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
var CADMIUM_STATUS_OUTPUT = DefineKV("STATUS_OUTPUT", "status.output")
