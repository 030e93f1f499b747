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

package errdefs

import "errors"

// Orchestrator level.
var (
	ErrFuncNotSet       = errors.New("function not set")
	ErrContextDone      = errors.New("context has been cancelled")
	ErrAuthentication   = errors.New("authentication failed")
	ErrTooManyAttempts  = errors.New("too many failed authentication attempts")
	ErrInhibit          = errors.New("could not acquire suspend inhibitor")
	ErrSession          = errors.New("could not open authentication session")
	ErrDBus             = errors.New("session bus error")
	ErrIO               = errors.New("i/o error")
	ErrConfigLoad       = errors.New("could not load config")
	ErrForkFailed       = errors.New("could not start session worker")
	ErrChildExit        = errors.New("session worker exited with error")
	ErrChildStopped     = errors.New("session worker stopped")
	ErrPrivDrop         = errors.New("could not drop privileges")
	ErrUnknownUser      = errors.New("unknown user")
	ErrLoggerNotFound   = errors.New("logger not found in context")
	ErrConfigNotFound   = errors.New("config not found in context")
	ErrWriteState       = errors.New("could not write state file")
	ErrNoStateFile      = errors.New("no state file found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrWorkerIdentity   = errors.New("session worker has no user")
	ErrConsoleSwitch    = errors.New("could not change console")
	ErrCredentialPrompt = errors.New("could not read credentials")
)

// Display backend level. These end the current session attempt only.
var (
	ErrNoFreeDisplay = errors.New("no free display")
	ErrBackendStart  = errors.New("could not start display server")
	ErrSessionStart  = errors.New("could not start session command")
	ErrConnection    = errors.New("could not connect to display server")
	ErrNoDisplay     = errors.New("display server has no display")
	ErrAuthorityIO   = errors.New("could not create authority file")
	ErrAuthorityTool = errors.New("could not run authority tool")
	ErrNoShell       = errors.New("user has no login shell")
)

// IsRetryable reports whether err is an expected credential mismatch that
// sends the user straight back to the prompt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

// IsSessionLocal reports whether err was confined to one session attempt.
// The orchestrator logs these and shows the login prompt again.
func IsSessionLocal(err error) bool {
	switch {
	case errors.Is(err, ErrChildExit),
		errors.Is(err, ErrNoFreeDisplay),
		errors.Is(err, ErrBackendStart),
		errors.Is(err, ErrSessionStart),
		errors.Is(err, ErrConnection),
		errors.Is(err, ErrNoDisplay),
		errors.Is(err, ErrAuthorityIO),
		errors.Is(err, ErrAuthorityTool),
		errors.Is(err, ErrNoShell):
		return true
	}
	return false
}

// IsFatal reports whether err must terminate the process.
func IsFatal(err error) bool {
	return err != nil && !IsRetryable(err) && !IsSessionLocal(err)
}
