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
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	CtxLogger   = CtxLoggerType("logger")
	CtxLevelVar = CtxLoggerType("logLevel")
	CtxHandler  = CtxLoggerType("textHandler")
	CtxCloser   = CtxLoggerType("closer")
)

type CtxLoggerType string

// ReformatHandler prints one record per line as
// "<rfc3339> <LEVEL> "<message>" key=value...". Inner decides levels and
// carries attributes added through With.
type ReformatHandler struct {
	Inner  slog.Handler
	Writer io.Writer

	mu     *sync.Mutex
	attrs  []slog.Attr
	prefix string
}

func NewReformatHandler(w io.Writer, level slog.Leveler) *ReformatHandler {
	return &ReformatHandler{
		Inner:  slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}),
		Writer: w,
		mu:     &sync.Mutex{},
	}
}

func (h *ReformatHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.Inner.Enabled(ctx, lvl)
}

func (h *ReformatHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.Format("2006-01-02T15:04:05Z07:00")
	level := strings.ToUpper(r.Level.String())
	msg := fmt.Sprintf("%q", r.Message) // quoted message

	var b strings.Builder
	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s%s=%v", h.prefix, a.Key, a.Value)
		return true
	})

	if h.mu != nil {
		h.mu.Lock()
		defer h.mu.Unlock()
	}
	_, err := fmt.Fprintf(h.Writer, "%s %s %s%s\n", ts, level, msg, b.String())
	return err
}

func (h *ReformatHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	next.Inner = h.Inner.WithAttrs(attrs)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		next.attrs = append(next.attrs, a)
	}
	return next
}

func (h *ReformatHandler) WithGroup(name string) slog.Handler {
	next := h.clone()
	next.Inner = h.Inner.WithGroup(name)
	next.prefix = h.prefix + name + "."
	return next
}

func (h *ReformatHandler) clone() *ReformatHandler {
	return &ReformatHandler{
		Inner:  h.Inner,
		Writer: h.Writer,
		mu:     h.mu,
		attrs:  append([]slog.Attr(nil), h.attrs...),
		prefix: h.prefix,
	}
}
