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

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/spf13/cobra"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"err":     slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q): expected '%v'; got: '%v'", in, want, got)
		}
	}
}

func TestReformatHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewReformatHandler(&buf, slog.LevelDebug)).With("user", "alice")

	logger.Info("session started", "display", ":7")

	line := buf.String()
	if !strings.Contains(line, `INFO "session started"`) {
		t.Fatalf("unexpected level/message in %q", line)
	}
	if !strings.Contains(line, "user=alice") || !strings.Contains(line, "display=:7") {
		t.Fatalf("missing attributes in %q", line)
	}
}

func TestReformatHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewReformatHandler(&buf, slog.LevelWarn))

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below level; got: %q", buf.String())
	}
}

func TestSetupFileLogger(t *testing.T) {
	logfile := filepath.Join(t.TempDir(), "log", "cadmium.log")

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	if err := SetupFileLogger(cmd, logfile, "debug"); err != nil {
		t.Fatalf("SetupFileLogger: %v", err)
	}

	logger, err := FromContext(cmd.Context())
	if err != nil {
		t.Fatalf("FromContext: %v", err)
	}
	logger.Debug("written to file")
	CloseFromContext(cmd.Context())

	data, err := os.ReadFile(logfile)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Fatalf("log file does not contain record: %q", string(data))
	}
}

func TestFromContext_Missing(t *testing.T) {
	if _, err := FromContext(context.Background()); !errors.Is(err, errdefs.ErrLoggerNotFound) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrLoggerNotFound, err)
	}
}
