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

package pamauth

import (
	"errors"
	"fmt"

	"github.com/msteinert/pam/v2"
)

// Code is the outcome of one backend call, independent of PAM's numbering.
type Code int

const (
	Success Code = iota
	PermissionDenied
	WrongCredentials
	UnknownUser
	MaxTries
	CredentialsUnavailable
	AccountExpired
	CredentialExpired
	TryAgain
	Aborted
	Incomplete
	Other
)

func (c Code) String() string {
	switch c {
	case Success:
		return "success"
	case PermissionDenied:
		return "permission denied"
	case WrongCredentials:
		return "authentication failure"
	case UnknownUser:
		return "unknown user"
	case MaxTries:
		return "maximum tries reached"
	case CredentialsUnavailable:
		return "credentials unavailable"
	case AccountExpired:
		return "account expired"
	case CredentialExpired:
		return "credentials expired"
	case TryAgain:
		return "try again"
	case Aborted:
		return "aborted"
	case Incomplete:
		return "incomplete"
	default:
		return "other"
	}
}

// Transient codes are worth an immediate second attempt with the same input.
func (c Code) Transient() bool {
	return c == TryAgain || c == Incomplete
}

// Error is returned by every Client operation that fails.
type Error struct {
	Op   string
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("pam %s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("pam %s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf extracts the Code of err, Other when err is not a backend error.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Other
}

func codeFromPAM(err error) Code {
	var pe pam.Error
	if !errors.As(err, &pe) {
		return Other
	}
	switch pe {
	case pam.ErrPermDenied:
		return PermissionDenied
	case pam.ErrAuth:
		return WrongCredentials
	case pam.ErrUserUnknown:
		return UnknownUser
	case pam.ErrMaxtries:
		return MaxTries
	case pam.ErrCredUnavail:
		return CredentialsUnavailable
	case pam.ErrAcctExpired:
		return AccountExpired
	case pam.ErrCredExpired:
		return CredentialExpired
	case pam.ErrTryAgain:
		return TryAgain
	case pam.ErrAbort:
		return Aborted
	case pam.ErrIncomplete:
		return Incomplete
	default:
		return Other
	}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Code: codeFromPAM(err), Err: err}
}
