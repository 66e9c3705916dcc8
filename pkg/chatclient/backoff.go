// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package chatclient

import (
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// newBackoff returns a capped backoff that grows by 1.5x per attempt.
// go-retry's built-in exponential backoff doubles; the stream reconnect
// contract wants a gentler curve, so the growth function is custom and
// only the cap comes from the library.
func newBackoff(base, ceiling time.Duration) retry.Backoff {
	var mu sync.Mutex
	next := base
	b := retry.BackoffFunc(func() (time.Duration, bool) {
		mu.Lock()
		defer mu.Unlock()
		d := next
		next = next + next/2
		return d, false
	})
	return retry.WithCappedDuration(ceiling, b)
}
