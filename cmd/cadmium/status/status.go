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

package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/cadmiumdm/cadmium/cmd/config"
	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/cadmiumdm/cadmium/internal/logging"
	"github.com/cadmiumdm/cadmium/internal/state"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

// Report is the state document plus liveness checked at read time.
type Report struct {
	state.Document `yaml:",inline"`

	Running       bool `yaml:"running"       json:"running"`
	WorkerRunning bool `yaml:"workerRunning" json:"workerRunning"`
}

type pidChecker func(pid int32) (bool, error)

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "status",
		Short:        "Show the state of the running cadmium",
		Long:         "Reads the state file from the run path and reports whether cadmium and its session worker are alive.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.FromContext(cmd.Context())
			if err != nil {
				return err
			}
			cfg, err := config.FromContext(cmd.Context())
			if err != nil {
				return err
			}

			logger.Debug("status command invoked", "run_path", cfg.RunPath)

			doc, err := state.Read(cfg.RunPath)
			if err != nil {
				if errors.Is(err, errdefs.ErrNoStateFile) {
					fmt.Fprintln(os.Stderr, "cadmium is not running")
				}
				return err
			}

			report := newReport(doc, process.PidExists)
			return printReport(os.Stdout, report, viper.GetString(config.CADMIUM_STATUS_OUTPUT.ViperKey))
		},
	}

	setupStatusCmd(cmd)
	return cmd
}

func setupStatusCmd(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "Output format: json|yaml (default: human-readable)")
	_ = viper.BindPFlag(config.CADMIUM_STATUS_OUTPUT.ViperKey, cmd.Flags().Lookup("output"))

	_ = cmd.RegisterFlagCompletionFunc(
		"output",
		func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return []string{"json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
		},
	)
}

func newReport(doc *state.Document, exists pidChecker) *Report {
	r := &Report{Document: *doc}
	// A stopped run leaves its pid behind; it may belong to anything now.
	if doc.Phase == state.PhaseStopped {
		return r
	}
	if doc.PID > 0 {
		r.Running, _ = exists(int32(doc.PID)) //nolint:gosec // pids fit in int32 on linux
	}
	if doc.WorkerPID > 0 {
		r.WorkerRunning, _ = exists(int32(doc.WorkerPID)) //nolint:gosec // pids fit in int32 on linux
	}
	return r
}

func printReport(w io.Writer, r *Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(r)
	case "":
	default:
		return fmt.Errorf("%w: unknown output format %q", errdefs.ErrInvalidArgument, format)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "RUN ID\t%s\n", r.RunID)
	fmt.Fprintf(tw, "PID\t%d (%s)\n", r.PID, aliveWord(r.Running))
	fmt.Fprintf(tw, "PHASE\t%s\n", r.Phase)
	fmt.Fprintf(tw, "TTY\t%d\n", r.TTY)
	fmt.Fprintf(tw, "STARTED\t%s\n", r.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "UPDATED\t%s\n", r.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "SESSIONS\t%d\n", r.Sessions)
	fmt.Fprintf(tw, "FAILURES\t%d\n", r.Failures)
	if r.User != "" {
		fmt.Fprintf(tw, "USER\t%s\n", r.User)
	}
	if r.WorkerPID > 0 {
		fmt.Fprintf(tw, "WORKER\t%d (%s)\n", r.WorkerPID, aliveWord(r.WorkerRunning))
	}
	if r.LastError != "" {
		fmt.Fprintf(tw, "LAST ERROR\t%s\n", r.LastError)
	}
	return tw.Flush()
}

func aliveWord(ok bool) string {
	if ok {
		return "running"
	}
	return "gone"
}
