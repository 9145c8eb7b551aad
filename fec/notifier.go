// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fec

import (
	"context"
	"sync"
)

// Notifier is a level-triggered condition.
//
// Once signaled, all current and future waiters are released until the
// condition is cleared.
type Notifier struct {
	mu  sync.Mutex
	set bool
	ch  chan struct{} // closed while set
	clr chan struct{} // closed while cleared
}

func newNotifier() *Notifier {
	clr := make(chan struct{})
	close(clr)
	return &Notifier{ch: make(chan struct{}), clr: clr}
}

func (n *Notifier) signal() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.set {
		return
	}
	n.set = true
	close(n.ch)
	n.clr = make(chan struct{})
}

func (n *Notifier) clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.set {
		return
	}
	n.set = false
	n.ch = make(chan struct{})
	close(n.clr)
}

// Poll reports whether the condition is currently set.
func (n *Notifier) Poll() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.set
}

// Done returns a channel that is closed when the condition is set.
func (n *Notifier) Done() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch
}

// Cleared returns a channel that is closed when the condition is cleared.
func (n *Notifier) Cleared() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.clr
}

// Wait blocks until the condition is set or ctx is done.
func (n *Notifier) Wait(ctx context.Context) error {
	select {
	case <-n.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
