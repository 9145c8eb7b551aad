// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fec

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/sdfec/internal/fakehw"
)

func TestRunControl(t *testing.T) {
	reg := NewRegistry()
	banks := make([]*fakehw.Bank, 2)
	for i := range banks {
		banks[i] = fakehw.New()
		_, err := reg.New(banks[i], newTestConfig(LDPC), WithLogWriter(io.Discard))
		if err != nil {
			t.Fatalf("could not create device: %+v", err)
		}
	}

	nsetup := 0
	rc := NewRunControl(reg, func(h *Handle) error {
		nsetup++
		err := h.SetOrder(MaintainOrder)
		if err != nil {
			return err
		}
		return h.SetIRQ(true, true)
	})

	ctx := tdaq.Context{
		Ctx: context.Background(),
		Msg: log.NewMsgStream("fec-tdaq", log.LvlError, io.Discard),
	}

	var (
		req  tdaq.Frame
		resp tdaq.Frame
	)

	for _, tc := range []struct {
		name string
		f    func(tdaq.Context, *tdaq.Frame, tdaq.Frame) error
	}{
		{"/config", rc.OnConfig},
		{"/init", rc.OnInit},
		{"/start", rc.OnStart},
	} {
		err := tc.f(ctx, &resp, req)
		if err != nil {
			t.Fatalf("could not run %s: %+v", tc.name, err)
		}
	}

	if got, want := nsetup, 2; got != want {
		t.Fatalf("invalid number of setups: got=%d, want=%d", got, want)
	}

	dev, err := reg.Device(1)
	if err != nil {
		t.Fatalf("could not get device: %+v", err)
	}
	_, err = dev.Open()
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrBusy)
	}
	if got, want := dev.State(), Started; got != want {
		t.Fatalf("invalid state: got=%v, want=%v", got, want)
	}

	var (
		buf  = new(syncBuffer)
		rctx = tdaq.Context{
			Msg: log.NewMsgStream("fec-tdaq", log.LvlInfo, buf),
		}
		cancel context.CancelFunc
		done   = make(chan error, 1)
	)
	rctx.Ctx, cancel = context.WithCancel(context.Background())
	go func() {
		done <- rc.Run(rctx)
	}()

	banks[1].InjectISR(0x4)
	if !dev.HandleIRQ() {
		t.Fatalf("fault not handled")
	}

	tctx, tcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer tcancel()
	err = dev.Fatal().Wait(tctx)
	if err != nil {
		t.Fatalf("could not wait for fatal condition: %+v", err)
	}

	err = rc.OnStatus(ctx, &resp, req)
	if err != nil {
		t.Fatalf("could not get status: %+v", err)
	}

	dec := tdaq.NewDecoder(bytes.NewReader(resp.Body))
	if got, want := dec.ReadU32(), uint32(2); got != want {
		t.Fatalf("invalid number of devices: got=%d, want=%d", got, want)
	}
	for i, want := range []struct {
		state string
		isr   uint32
	}{
		{"started", 0},
		{"needs-reset", 1},
	} {
		var (
			id     = dec.ReadU32()
			state  = dec.ReadStr()
			active = dec.ReadU32()
			isr    = dec.ReadU32()
			cecc   = dec.ReadU32()
			uecc   = dec.ReadU32()
		)
		if id != uint32(i) || state != want.state || active != 0 ||
			isr != want.isr || cecc != 0 || uecc != 0 {
			t.Fatalf("invalid status for sdfec%d: id=%d, state=%q, active=%d, isr=%d, cecc=%d, uecc=%d",
				i, id, state, active, isr, cecc, uecc,
			)
		}
	}

	waitReports(t, buf, 1)

	err = rc.OnReset(ctx, &resp, req)
	if err != nil {
		t.Fatalf("could not reset: %+v", err)
	}
	if got, want := nsetup, 4; got != want {
		t.Fatalf("invalid number of setups: got=%d, want=%d", got, want)
	}
	if got, want := dev.State(), Init; got != want {
		t.Fatalf("invalid state: got=%v, want=%v", got, want)
	}

	// a device faulting again during the same run is reported again.
	banks[1].InjectISR(0x4)
	if !dev.HandleIRQ() {
		t.Fatalf("fault not handled")
	}

	waitReports(t, buf, 2)

	cancel()
	err = <-done
	if err != nil {
		t.Fatalf("could not run: %+v", err)
	}

	err = rc.OnStop(ctx, &resp, req)
	if !errors.Is(err, ErrPermission) {
		t.Fatalf("invalid /stop error: got=%+v, want=%+v", err, ErrPermission)
	}

	err = rc.OnQuit(ctx, &resp, req)
	if err != nil {
		t.Fatalf("could not quit: %+v", err)
	}

	h, err := dev.Open()
	if err != nil {
		t.Fatalf("could not open device after /quit: %+v", err)
	}
	_ = h.Release()
}

func waitReports(t *testing.T, buf *syncBuffer, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for strings.Count(buf.String(), "sdfec1 needs a reset") != n {
		if time.Now().After(deadline) {
			t.Fatalf("missing fault reports (want=%d):\n%s", n, buf.String())
		}
		time.Sleep(time.Millisecond)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
