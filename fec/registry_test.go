// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fec

import (
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/go-lpc/sdfec/internal/fakehw"
)

type closingBank struct {
	*fakehw.Bank
	n   *atomic.Int32
	err error
}

func (b closingBank) Close() error {
	b.n.Add(1)
	return b.err
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	var nclose atomic.Int32
	errClose := errors.New("could not unmap")

	for i, tc := range []struct {
		win  Window
		code Code
	}{
		{closingBank{fakehw.New(), &nclose, nil}, LDPC},
		{fakehw.New(), Turbo},
		{closingBank{fakehw.New(), &nclose, errClose}, InvalidCode},
	} {
		cfg := newTestConfig(tc.code)
		cfg.ID = 42
		dev, err := reg.New(tc.win, cfg, WithLogWriter(io.Discard))
		if err != nil {
			t.Fatalf("could not create device %d: %+v", i, err)
		}
		if got, want := dev.ID(), uint32(i); got != want {
			t.Fatalf("invalid device id: got=%d, want=%d", got, want)
		}
	}

	_, err := reg.New(fakehw.New(), newTestConfig(Code(4)), WithLogWriter(io.Discard))
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrInvalid)
	}

	if got, want := reg.Len(), 3; got != want {
		t.Fatalf("invalid number of devices: got=%d, want=%d", got, want)
	}

	dev, err := reg.Device(1)
	if err != nil {
		t.Fatalf("could not get device: %+v", err)
	}
	h, err := dev.Open()
	if err != nil {
		t.Fatalf("could not open device: %+v", err)
	}
	cfg, err := h.Config()
	if err != nil {
		t.Fatalf("could not get config: %+v", err)
	}
	if got, want := cfg.Code, Turbo; got != want {
		t.Fatalf("invalid code: got=%v, want=%v", got, want)
	}
	_ = h.Release()

	_, err = reg.Device(3)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrInvalid)
	}

	for i, dev := range reg.Devices() {
		if got, want := dev.ID(), uint32(i); got != want {
			t.Fatalf("invalid device order: got=%d, want=%d", got, want)
		}
	}

	err = reg.Close()
	if !errors.Is(err, errClose) {
		t.Fatalf("invalid close error: got=%+v, want=%+v", err, errClose)
	}
	if got, want := nclose.Load(), int32(2); got != want {
		t.Fatalf("invalid number of closed windows: got=%d, want=%d", got, want)
	}
	if got, want := reg.Len(), 0; got != want {
		t.Fatalf("invalid number of devices after close: got=%d, want=%d", got, want)
	}
}
