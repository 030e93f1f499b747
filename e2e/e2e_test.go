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

package e2e_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cadmiumdm/cadmium/internal/state"
)

const cadmium = "cadmium"

func binPath(t *testing.T) string {
	t.Helper()

	dir := os.Getenv("E2E_BIN_DIR")
	if dir == "" {
		dir = ".."
	}
	bin := filepath.Join(dir, cadmium)

	if _, err := os.Stat(bin); os.IsNotExist(err) {
		t.Skipf("binary %s not found, skipping", bin)
	}
	return bin
}

// runBinary runs cadmium with a private config, log file and run path so
// that nothing under /etc, /var or /run is touched.
func runBinary(t *testing.T, env []string, args ...string) ([]byte, error) {
	t.Helper()
	bin := binPath(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	dir := t.TempDir()
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = append(os.Environ(),
		"CADMIUM_CONFIG_FILE="+filepath.Join(dir, "absent.toml"),
		"CADMIUM_LOG_FILE="+filepath.Join(dir, "cadmium.log"),
		"CADMIUM_RUN_PATH="+filepath.Join(dir, "run"),
	)
	cmd.Env = append(cmd.Env, env...)
	return cmd.CombinedOutput()
}

func runReturningBinary(t *testing.T, env []string, args ...string) []byte {
	t.Helper()

	out, err := runBinary(t, env, args...)
	if err != nil {
		t.Fatalf("running %s %v failed: %v\noutput:\n%s", cadmium, args, err, string(out))
	}
	if len(out) == 0 {
		t.Fatalf("no output from %s %v", cadmium, args)
	}
	return out
}

func TestCadmium_Help(t *testing.T) {
	t.Parallel()

	_ = runReturningBinary(t, nil, "-h")
	_ = runReturningBinary(t, nil, "--help")
}

func TestCadmium_Config(t *testing.T) {
	t.Parallel()

	out := string(runReturningBinary(t, []string{"CADMIUM_DE=i3"}, "config"))
	for _, want := range []string{"de = ", "i3", "[display]", "ready_timeout"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestCadmium_StatusNotRunning(t *testing.T) {
	t.Parallel()

	out, err := runBinary(t, nil, "status")
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected a non-zero exit; got: %v", err)
	}
	if !strings.Contains(string(out), "cadmium is not running") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestCadmium_Status(t *testing.T) {
	t.Parallel()

	runPath := t.TempDir()
	doc := &state.Document{
		RunID:     "e2e",
		PID:       os.Getpid(),
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
		Phase:     state.PhaseLogin,
		TTY:       2,
	}
	if err := state.Write(context.Background(), runPath, doc); err != nil {
		t.Fatalf("state.Write: %v", err)
	}

	out := string(runReturningBinary(t, []string{"CADMIUM_RUN_PATH=" + runPath}, "status"))
	if !strings.Contains(out, "login") || !strings.Contains(out, "(running)") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
