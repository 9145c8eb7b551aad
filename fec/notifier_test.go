// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fec

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNotifier(t *testing.T) {
	n := newNotifier()
	if n.Poll() {
		t.Fatalf("new notifier is set")
	}
	select {
	case <-n.Cleared():
	default:
		t.Fatalf("cleared channel of new notifier not closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := n.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, context.DeadlineExceeded)
	}

	const nwaiters = 4
	var wg sync.WaitGroup
	errs := make(chan error, nwaiters)
	for i := 0; i < nwaiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- n.Wait(context.Background())
		}()
	}

	n.signal()
	n.signal() // signaling twice is a no-op.
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("could not wait: %+v", err)
		}
	}

	if !n.Poll() {
		t.Fatalf("notifier not set")
	}
	select {
	case <-n.Done():
	default:
		t.Fatalf("done channel not closed")
	}
	cleared := n.Cleared()
	select {
	case <-cleared:
		t.Fatalf("cleared channel closed while set")
	default:
	}

	n.clear()
	n.clear()
	if n.Poll() {
		t.Fatalf("notifier still set")
	}
	select {
	case <-n.Done():
		t.Fatalf("done channel closed after clear")
	default:
	}
	select {
	case <-cleared:
	default:
		t.Fatalf("cleared channel not closed after clear")
	}

	n.signal()
	if !n.Poll() {
		t.Fatalf("notifier not set again")
	}
}
