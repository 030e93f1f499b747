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
	"context"
	"fmt"

	iconfig "github.com/cadmiumdm/cadmium/internal/config"
	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type ctxKey string

const ctxConfig ctxKey = "config"

// LoadConfig binds the CADMIUM_* variables, reads the config file named by
// --config / CADMIUM_CONFIG_FILE and stores the result in the command
// context.
func LoadConfig(cmd *cobra.Command) (*iconfig.Config, error) {
	v := viper.GetViper()
	for _, e := range []*Var{&CADMIUM_LOG_LEVEL, &CADMIUM_LOG_FILE, &CADMIUM_RUN_PATH, &CADMIUM_DE} {
		if err := e.BindEnv(); err != nil {
			return nil, fmt.Errorf("%w: bind %s: %w", errdefs.ErrConfigLoad, e.Key, err)
		}
	}

	file := GetConfigFileFromEnvAndFlags(cmd)
	cfg, err := iconfig.Load(v, file)
	if err != nil {
		return nil, err
	}
	v.Set(CADMIUM_CONFIG_FILE.ViperKey, file)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(WithConfig(ctx, cfg))
	return cfg, nil
}

func WithConfig(ctx context.Context, cfg *iconfig.Config) context.Context {
	return context.WithValue(ctx, ctxConfig, cfg)
}

func FromContext(ctx context.Context) (*iconfig.Config, error) {
	if ctx == nil {
		return nil, errdefs.ErrConfigNotFound
	}
	cfg, ok := ctx.Value(ctxConfig).(*iconfig.Config)
	if !ok || cfg == nil {
		return nil, errdefs.ErrConfigNotFound
	}
	return cfg, nil
}

// ConfigFile is the file LoadConfig read.
func ConfigFile() string {
	return viper.GetString(CADMIUM_CONFIG_FILE.ViperKey)
}
