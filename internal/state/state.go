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

// Package state persists what the running cadmium instance is doing so that
// "cadmium status" can report it.
package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cadmiumdm/cadmium/internal/errdefs"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const FileName = "state.yaml"

type Phase string

const (
	PhaseStarting Phase = "starting"
	PhaseLogin    Phase = "login"
	PhaseSession  Phase = "session"
	PhaseStopped  Phase = "stopped"
)

type Document struct {
	RunID     string    `yaml:"runId" json:"runId"`
	PID       int       `yaml:"pid" json:"pid"`
	StartedAt time.Time `yaml:"startedAt" json:"startedAt"`
	UpdatedAt time.Time `yaml:"updatedAt" json:"updatedAt"`
	Phase     Phase     `yaml:"phase" json:"phase"`
	TTY       uint      `yaml:"tty" json:"tty"`

	Failures  int    `yaml:"failures" json:"failures"`
	Sessions  int    `yaml:"sessions" json:"sessions"`
	User      string `yaml:"user,omitempty" json:"user,omitempty"`
	WorkerPID int    `yaml:"workerPid,omitempty" json:"workerPid,omitempty"`
	LastError string `yaml:"lastError,omitempty" json:"lastError,omitempty"`
}

// Store owns the document of this process. A nil *Store discards updates.
type Store struct {
	mu  sync.Mutex
	dir string
	doc Document
	now func() time.Time
}

func NewStore(dir string, tty uint) *Store {
	now := time.Now()
	return &Store{
		dir: dir,
		now: time.Now,
		doc: Document{
			RunID:     uuid.NewString(),
			PID:       os.Getpid(),
			StartedAt: now,
			UpdatedAt: now,
			Phase:     PhaseStarting,
			TTY:       tty,
		},
	}
}

func (s *Store) RunID() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.RunID
}

// Update applies fn to the document and writes it out.
func (s *Store) Update(ctx context.Context, fn func(*Document)) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	fn(&s.doc)
	s.doc.UpdatedAt = s.now()
	doc := s.doc
	s.mu.Unlock()

	return Write(ctx, s.dir, &doc)
}

func Write(ctx context.Context, dir string, doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: marshal: %w", errdefs.ErrWriteState, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrWriteState, err)
	}
	dst := filepath.Join(dir, FileName)
	if err := atomicWriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("%w: %s: %w", errdefs.ErrWriteState, dst, err)
	}
	return nil
}

func Read(dir string) (*Document, error) {
	p := filepath.Join(dir, FileName)
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errdefs.ErrNoStateFile, p)
		}
		return nil, fmt.Errorf("%w: %w", errdefs.ErrIO, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errdefs.ErrIO, p, err)
	}
	return &doc, nil
}

// atomicWriteFile writes to a temp file in the same dir, fsyncs, then renames.
func atomicWriteFile(dst string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(dst)

	f, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		_ = f.Close()
		_ = os.Remove(tmp) // safe if already renamed
	}()

	if err := f.Chmod(mode); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
