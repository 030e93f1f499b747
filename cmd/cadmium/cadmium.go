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

package cadmium

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cadmiumdm/cadmium/cmd/cadmium/configcmd"
	"github.com/cadmiumdm/cadmium/cmd/cadmium/status"
	"github.com/cadmiumdm/cadmium/cmd/cadmium/worker"
	"github.com/cadmiumdm/cadmium/cmd/config"
	"github.com/cadmiumdm/cadmium/internal/askpass"
	"github.com/cadmiumdm/cadmium/internal/auth"
	iconfig "github.com/cadmiumdm/cadmium/internal/config"
	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/cadmiumdm/cadmium/internal/inhibit"
	"github.com/cadmiumdm/cadmium/internal/logging"
	"github.com/cadmiumdm/cadmium/internal/orchestrator"
	"github.com/cadmiumdm/cadmium/internal/pamauth"
	"github.com/cadmiumdm/cadmium/internal/state"
	"github.com/cadmiumdm/cadmium/internal/supervisor"
	"github.com/cadmiumdm/cadmium/internal/vt"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const msgConsole = "Could not change console"

func NewCadmiumRootCmd() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "cadmium",
		Short: "cadmium minimal display manager",
		Long: `cadmium switches to its login console, asks for a username and password,
authenticates them through PAM and starts an X session for the user.
When the session ends it returns to the login prompt.

It must run as root, usually from an init system on a dedicated tty.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := config.LoadConfig(cmd); err != nil {
				fmt.Fprintln(os.Stderr, "Config error:", err)
				return err
			}
			return nil
		},
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromContext(cmd.Context())
			if err != nil {
				return err
			}
			return logging.SetupFileLogger(cmd, cfg.LogFile, cfg.LogLevel)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.FromContext(cmd.Context())
			if err != nil {
				return err
			}
			cfg, err := config.FromContext(cmd.Context())
			if err != nil {
				return err
			}
			if os.Geteuid() != 0 {
				return fmt.Errorf("%w: cadmium must run as root", errdefs.ErrInvalidArgument)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			return runLoop(ctx, cancel, logger, cfg, newComponents(logger, cfg, config.ConfigFile()))
		},
		PostRunE: func(cmd *cobra.Command, _ []string) error {
			logging.CloseFromContext(cmd.Context())
			return nil
		},
	}

	setupRootCmd(rootCmd)

	return rootCmd, nil
}

func setupRootCmd(rootCmd *cobra.Command) {
	rootCmd.AddCommand(worker.NewWorkerCmd())
	rootCmd.AddCommand(status.NewStatusCmd())
	rootCmd.AddCommand(configcmd.NewConfigCmd())

	// Persistent flags
	rootCmd.PersistentFlags().String("config", "", "config file (default is "+config.DefaultConfigFile+")")
	bindFlag(config.CADMIUM_CONFIG_FILE.ViperKey, rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.PersistentFlags().String("run-path", "", "directory for the state file (default is "+config.DefaultRunPath+")")
	bindFlag(config.CADMIUM_RUN_PATH.ViperKey, rootCmd.PersistentFlags().Lookup("run-path"))

	rootCmd.PersistentFlags().String("log-file", "", "log file (default is "+config.DefaultLogFile+")")
	bindFlag(config.CADMIUM_LOG_FILE.ViperKey, rootCmd.PersistentFlags().Lookup("log-file"))

	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	bindFlag(config.CADMIUM_LOG_LEVEL.ViperKey, rootCmd.PersistentFlags().Lookup("log-level"))
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", config.AutoCompleteLogLevels)

	rootCmd.Flags().String("de", "", "X session started after login")
	bindFlag(config.CADMIUM_DE.ViperKey, rootCmd.Flags().Lookup("de"))
	_ = rootCmd.RegisterFlagCompletionFunc("de", config.AutoCompleteSessions)
}

// Viper only prefers a bound flag over the file once it has been Changed.
func bindFlag(key string, flag *pflag.Flag) {
	if flag == nil {
		return
	}
	_ = viper.BindPFlag(key, flag)
}

func newInhibitor(cfg *iconfig.Config) inhibit.Inhibitor {
	if !cfg.Auth.Inhibit {
		return inhibit.Nop{}
	}
	return inhibit.NewLogind()
}

// workerEnv carries the parent's effective settings that the worker reads
// from the environment; flags given to the parent are not re-parsed there.
func workerEnv(cfg *iconfig.Config, runID string) []string {
	return []string{
		config.KV(config.CADMIUM_RUN_ID, runID),
		config.KV(config.CADMIUM_LOG_FILE, cfg.LogFile),
		config.KV(config.CADMIUM_LOG_LEVEL, cfg.LogLevel),
		config.KV(config.CADMIUM_RUN_PATH, cfg.RunPath),
	}
}

type components struct {
	switcher *vt.Switcher
	store    *state.Store
	loop     *orchestrator.Loop
}

func newComponents(logger *slog.Logger, cfg *iconfig.Config, configFile string) *components {
	store := state.NewStore(cfg.RunPath, cfg.LogTTY)

	gate := auth.NewGate(
		logger,
		newInhibitor(cfg),
		askpass.NewTerminal(os.Stdin, os.Stdout),
		pamauth.New(cfg.Auth.Service, os.Stdout, logger),
		os.Stdout,
	)

	forker := &supervisor.ExecForker{Env: workerEnv(cfg, store.RunID())}
	sup := supervisor.NewSupervisor(logger, forker, store, cfg.DE, configFile)

	loop := orchestrator.NewLoop(
		logger,
		gate,
		sup,
		orchestrator.PolicyFor(cfg.Auth.MaxAttempts, cfg.Auth.RetryDelay),
		store,
		cfg.LogTTY,
	)

	return &components{switcher: vt.NewSwitcher(), store: store, loop: loop}
}

func runLoop(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *slog.Logger,
	cfg *iconfig.Config,
	c *components,
) error {
	defer cancel()

	return runLoopWith(ctx, logger, cfg.LogTTY, c.switcher, c.store, c.loop, os.Stderr)
}

type switcher interface {
	Switch(tty uint) error
}

type runner interface {
	Run(ctx context.Context) error
}

func runLoopWith(
	ctx context.Context,
	logger *slog.Logger,
	tty uint,
	sw switcher,
	store *state.Store,
	loop runner,
	stderr io.Writer,
) error {
	if err := sw.Switch(tty); err != nil {
		fmt.Fprintln(stderr, msgConsole)
		logger.WarnContext(ctx, "console switch failed", "tty", tty, "error", err)
	}

	if err := store.Update(ctx, func(d *state.Document) { d.Phase = state.PhaseStarting }); err != nil {
		logger.WarnContext(ctx, "could not write state", "error", err)
	}

	logger.InfoContext(ctx, "cadmium started", "tty", tty, "run_id", store.RunID())

	err := loop.Run(ctx)
	logger.DebugContext(ctx, "login loop exited", "error", err)

	// The signal context is gone by now; the final record must still land.
	final := context.WithoutCancel(ctx)
	_ = store.Update(final, func(d *state.Document) {
		d.Phase = state.PhaseStopped
		d.User = ""
		d.WorkerPID = 0
		if err != nil && !errors.Is(err, errdefs.ErrContextDone) {
			d.LastError = err.Error()
		}
	})

	if err == nil || errors.Is(err, errdefs.ErrContextDone) || errors.Is(err, context.Canceled) {
		logger.InfoContext(final, "cadmium stopped")
		return nil
	}

	logger.ErrorContext(final, "cadmium stopped", "error", err)
	fmt.Fprintln(stderr, "cadmium:", err)
	return err
}
