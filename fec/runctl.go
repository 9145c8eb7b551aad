// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fec

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/go-daq/tdaq"
)

// RunControl drives the devices of a registry from a TDAQ run control.
//
// /config acquires a handle on every device, /init configures them with
// the setup function, /start and /stop start and stop the cores, /reset
// restores their default configuration and /quit releases the handles.
type RunControl struct {
	reg   *Registry
	setup func(h *Handle) error

	mu sync.Mutex
	hs []*Handle
}

// NewRunControl returns a run control for the devices of reg.
// setup, if not nil, is applied to each device on /init and after
// a /reset.
func NewRunControl(reg *Registry, setup func(h *Handle) error) *RunControl {
	return &RunControl{reg: reg, setup: setup}
}

func (rc *RunControl) handles() []*Handle {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]*Handle(nil), rc.hs...)
}

func (rc *RunControl) release() {
	for _, h := range rc.hs {
		_ = h.Release()
	}
	rc.hs = nil
}

func (rc *RunControl) each(f func(h *Handle) error) error {
	for _, h := range rc.handles() {
		err := f(h)
		if err != nil {
			return fmt.Errorf("sdfec%d: %w", h.Device().ID(), err)
		}
	}
	return nil
}

func (rc *RunControl) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")

	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.release()
	for _, dev := range rc.reg.Devices() {
		h, err := dev.Open()
		if err != nil {
			ctx.Msg.Errorf("could not open sdfec%d: %+v", dev.ID(), err)
			rc.release()
			return fmt.Errorf("could not open sdfec%d: %w", dev.ID(), err)
		}
		rc.hs = append(rc.hs, h)
	}
	ctx.Msg.Infof("configured %d device(s)", len(rc.hs))
	return nil
}

func (rc *RunControl) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	if rc.setup == nil {
		return nil
	}
	err := rc.each(rc.setup)
	if err != nil {
		ctx.Msg.Errorf("could not initialize devices: %+v", err)
		return fmt.Errorf("could not initialize devices: %w", err)
	}
	return nil
}

func (rc *RunControl) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	err := rc.each(func(h *Handle) error {
		err := h.SetDefaultConfig()
		if err != nil {
			return err
		}
		if rc.setup == nil {
			return nil
		}
		return rc.setup(h)
	})
	if err != nil {
		ctx.Msg.Errorf("could not reset devices: %+v", err)
		return fmt.Errorf("could not reset devices: %w", err)
	}
	return nil
}

func (rc *RunControl) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	err := rc.each((*Handle).Start)
	if err != nil {
		ctx.Msg.Errorf("could not start devices: %+v", err)
		return fmt.Errorf("could not start devices: %w", err)
	}
	return nil
}

func (rc *RunControl) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command...")
	err := rc.each((*Handle).Stop)
	if err != nil {
		ctx.Msg.Errorf("could not stop devices: %+v", err)
		return fmt.Errorf("could not stop devices: %w", err)
	}
	return nil
}

func (rc *RunControl) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.release()
	return nil
}

// OnStatus encodes the status and error counters of all devices in resp.
//
// The body holds the number of devices followed, for each device, by its
// identifier, state, activity flag and the ISR, correctable and
// uncorrectable ECC error counts.
func (rc *RunControl) OnStatus(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /status command...")

	var (
		hs  = rc.handles()
		buf = new(bytes.Buffer)
		enc = tdaq.NewEncoder(buf)
	)
	enc.WriteU32(uint32(len(hs)))
	for _, h := range hs {
		st, err := h.Status()
		if err != nil {
			return fmt.Errorf("could not get status of sdfec%d: %w", h.Device().ID(), err)
		}
		stats, err := h.Stats()
		if err != nil {
			return fmt.Errorf("could not get stats of sdfec%d: %w", h.Device().ID(), err)
		}
		active := uint32(0)
		if st.Activity {
			active = 1
		}
		enc.WriteU32(st.ID)
		enc.WriteStr(st.State.String())
		enc.WriteU32(active)
		enc.WriteU32(stats.ISRErrCount)
		enc.WriteU32(stats.CECCCount)
		enc.WriteU32(stats.UECCCount)
	}
	if err := enc.Err(); err != nil {
		return fmt.Errorf("could not encode status: %w", err)
	}

	resp.Body = buf.Bytes()
	return nil
}

// Run watches the devices during a run and reports, each time, those
// needing a reset.
func (rc *RunControl) Run(ctx tdaq.Context) error {
	hs := rc.handles()
	fatal := make(chan *Handle, len(hs))
	for _, h := range hs {
		go watch(ctx.Ctx, h, fatal)
	}

	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		case h := <-fatal:
			stats := h.Device().Stats()
			ctx.Msg.Errorf(
				"sdfec%d needs a reset (isr=%d, cecc=%d, uecc=%d)",
				h.Device().ID(), stats.ISRErrCount, stats.CECCCount, stats.UECCCount,
			)
		}
	}
}

// watch sends h on fatal each time its device enters the needs-reset
// state, until ctx is done.
func watch(ctx context.Context, h *Handle, fatal chan<- *Handle) {
	n := h.Device().Fatal()
	for {
		done := n.Done()
		select {
		case <-ctx.Done():
			return
		case <-done:
		}

		select {
		case <-ctx.Done():
			return
		case fatal <- h:
		}

		cleared := n.Cleared()
		if n.Done() != done {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-cleared:
		}
	}
}
