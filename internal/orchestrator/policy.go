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

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/cadmiumdm/cadmium/internal/errdefs"
)

// RetryPolicy decides whether another login attempt may follow failures
// consecutive rejected ones. It may block to slow the caller down.
type RetryPolicy interface {
	Allow(ctx context.Context, failures int) error
}

// Unlimited retries immediately and forever.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, int) error { return nil }

// Throttle waits Delay after every rejection and gives up after Max
// consecutive rejections. Zero Max means no cap.
type Throttle struct {
	Max   int
	Delay time.Duration
}

func (t Throttle) Allow(ctx context.Context, failures int) error {
	if t.Max > 0 && failures >= t.Max {
		return fmt.Errorf("%w: %d", errdefs.ErrTooManyAttempts, failures)
	}
	if t.Delay <= 0 {
		return nil
	}
	timer := time.NewTimer(t.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", errdefs.ErrContextDone, ctx.Err())
	}
}

// PolicyFor returns Unlimited unless a cap or a delay is configured.
func PolicyFor(maxAttempts int, delay time.Duration) RetryPolicy {
	if maxAttempts <= 0 && delay <= 0 {
		return Unlimited{}
	}
	return Throttle{Max: maxAttempts, Delay: delay}
}
