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

package worker

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/cadmiumdm/cadmium/cmd/config"
	iconfig "github.com/cadmiumdm/cadmium/internal/config"
	"github.com/cadmiumdm/cadmium/internal/dbuslaunch"
	"github.com/cadmiumdm/cadmium/internal/display/xorg"
	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/cadmiumdm/cadmium/internal/logging"
	"github.com/cadmiumdm/cadmium/internal/privdrop"
	"github.com/cadmiumdm/cadmium/internal/supervisor"
	"github.com/spf13/cobra"
)

func NewWorkerCmd() *cobra.Command {
	workerCmd := &cobra.Command{
		Use:    supervisor.WorkerCommand,
		Short:  "Run one user session (internal)",
		Hidden: true,
		Args:   cobra.NoArgs,
		Long: `Starts the display server, drops privileges to --user and runs the
session. It is started by cadmium itself after a successful login and is not
meant to be run by hand.`,
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromContext(cmd.Context())
			if err != nil {
				return err
			}
			return logging.SetupFileLogger(cmd, cfg.LogFile, cfg.LogLevel)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The display server gets PR_SET_PDEATHSIG, which fires when the
			// thread that started it exits, not the process.
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			logger, err := logging.FromContext(cmd.Context())
			if err != nil {
				return err
			}
			cfg, err := config.FromContext(cmd.Context())
			if err != nil {
				return err
			}

			username, _ := cmd.Flags().GetString("user")
			session, _ := cmd.Flags().GetString("session")
			if username == "" {
				return errdefs.ErrWorkerIdentity
			}
			if session == "" {
				session = cfg.DE
			}

			logger = logger.With("component", "worker", "run_id", config.CADMIUM_RUN_ID.ValueOrDefault())

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
			defer cancel()

			w := newWorker(cfg, logger)
			if err := w.Run(ctx, username, session); err != nil {
				logger.ErrorContext(ctx, "session worker failed", "user", username, "error", err)
				fmt.Fprintln(os.Stderr, "cadmium:", err)
				return err
			}
			logger.InfoContext(ctx, "session ended", "user", username)
			return nil
		},
		PostRunE: func(cmd *cobra.Command, _ []string) error {
			logging.CloseFromContext(cmd.Context())
			return nil
		},
	}

	setupWorkerCmd(workerCmd)
	return workerCmd
}

func setupWorkerCmd(workerCmd *cobra.Command) {
	workerCmd.Flags().String("user", "", "authenticated user to run the session as")
	workerCmd.Flags().String("session", "", "X session name")
	_ = workerCmd.RegisterFlagCompletionFunc("session", config.AutoCompleteSessions)
}

func newWorker(cfg *iconfig.Config, logger *slog.Logger) *supervisor.Worker {
	backend := xorg.NewServer(logger, xorg.OptionsFromConfig(cfg))
	w := supervisor.NewWorker(logger, backend, privdrop.SystemOps{}, cfg.Session.LocaleFile, cfg.Session.Timeout)
	if cfg.Session.DBusLaunch {
		w.Bus = dbuslaunch.New(logger, "")
	}
	return w
}
