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

package configcmd

import (
	"fmt"
	"io"
	"os"

	"github.com/cadmiumdm/cadmium/cmd/config"
	iconfig "github.com/cadmiumdm/cadmium/internal/config"
	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

func NewConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Prints the configuration cadmium would run with, after applying the
config file, CADMIUM_* environment variables and flags, as TOML. The output
is a valid config file.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromContext(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "# source: %s\n", config.ConfigFile())
			return writeConfig(os.Stdout, cfg)
		},
	}
}

func writeConfig(w io.Writer, cfg *iconfig.Config) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	if err := enc.Encode(cfg.Document()); err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrIO, err)
	}
	return nil
}
