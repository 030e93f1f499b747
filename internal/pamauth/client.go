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
	"io"
	"log/slog"

	"github.com/cadmiumdm/cadmium/internal/secret"
	"github.com/msteinert/pam/v2"
)

var errNoTransaction = errors.New("no transaction")

// Client drives one PAM transaction: credentials, authenticate, account
// check, open and close session.
type Client struct {
	service  string
	out      io.Writer
	logger   *slog.Logger
	username string
	secret   *secret.Buffer
	tx       *pam.Transaction
}

// New returns a client for service (e.g. "login"). PAM informational and
// error messages are written to out.
func New(service string, out io.Writer, logger *slog.Logger) *Client {
	return &Client{service: service, out: out, logger: logger}
}

// SetCredentials keeps a reference to buf; it is read only while PAM asks
// for it and wiping it stays with the caller.
func (c *Client) SetCredentials(username string, buf *secret.Buffer) {
	c.username = username
	c.secret = buf
}

// Authenticate validates the stored credentials and checks the account. The
// secret reference is dropped whatever the outcome.
func (c *Client) Authenticate() error {
	defer func() { c.secret = nil }()

	c.end()
	tx, err := pam.StartFunc(c.service, c.username, c.converse)
	if err != nil {
		return wrap("start", err)
	}
	c.tx = tx

	if err := tx.Authenticate(0); err != nil {
		return wrap("authenticate", err)
	}
	if err := tx.AcctMgmt(0); err != nil {
		return wrap("account", err)
	}
	if err := tx.SetCred(pam.EstablishCred); err != nil {
		c.logger.Warn("pam setcred failed", "user", c.username, "error", err)
	}
	return nil
}

func (c *Client) OpenSession() error {
	if c.tx == nil {
		return &Error{Op: "open session", Code: Other, Err: errNoTransaction}
	}
	return wrap("open session", c.tx.OpenSession(0))
}

// CloseSession closes the session opened by OpenSession and ends the
// transaction.
func (c *Client) CloseSession() error {
	if c.tx == nil {
		return nil
	}
	err := wrap("close session", c.tx.CloseSession(0))
	_ = c.tx.SetCred(pam.DeleteCred)
	c.end()
	return err
}

func (c *Client) end() {
	if c.tx == nil {
		return
	}
	if err := c.tx.End(); err != nil {
		c.logger.Debug("pam end failed", "error", err)
	}
	c.tx = nil
}

func (c *Client) converse(style pam.Style, msg string) (string, error) {
	switch style {
	case pam.PromptEchoOff:
		if c.secret == nil {
			return "", nil
		}
		// libpam copies the reply into its own memory before this returns.
		return c.secret.View()
	case pam.PromptEchoOn:
		return c.username, nil
	case pam.ErrorMsg, pam.TextInfo:
		if c.out != nil && msg != "" {
			fmt.Fprintln(c.out, msg)
		}
		return "", nil
	default:
		return "", fmt.Errorf("unsupported conversation style %d", style)
	}
}
