// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fec

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/sdfec/internal/regs"
)

// Window is the register window of a SD-FEC core.
type Window interface {
	io.ReaderAt
	io.WriterAt
}

// WindowSize is the minimal size of the register window of a core.
const WindowSize = regs.SIZE

// Device is a SD-FEC core.
type Device struct {
	msg log.MsgStream
	pk  packer

	mu    sync.Mutex // guards rf, regs, cfg, state and armed
	rf    regFile
	regs  pins
	cfg   Config
	state State
	armed struct {
		isr bool
		ecc bool
	} // interrupt sources enabled through SetIRQ

	open  atomic.Int32 // number of outstanding handles
	stats struct {
		isr  atomic.Uint32
		cecc atomic.Uint32
		uecc atomic.Uint32
	}
	fatal *Notifier
}

// New creates a new device from the register window win and the
// initial configuration cfg.
// The stream configuration and code variant are written to the core.
func New(win Window, cfg Config, opts ...Option) (*Device, error) {
	err := cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("fec: invalid configuration for sdfec%d: %w", cfg.ID, err)
	}

	oc := newConfig()
	for _, opt := range opts {
		opt(&oc)
	}

	msg := oc.msg
	if msg == nil {
		msg = log.NewMsgStream(fmt.Sprintf("sdfec%d", cfg.ID), oc.lvl, oc.w)
	}

	dev := &Device{
		msg:   msg,
		pk:    packer{msg: msg, truncate: oc.truncate},
		rf:    newRegFile(win, msg),
		cfg:   cfg,
		state: Init,
		fatal: newNotifier(),
	}
	dev.regs = dev.rf.bind()

	if cfg.Code != InvalidCode {
		dev.regs.fecCode.w(uint32(cfg.Code) - 1)
	}
	dev.regs.axisWidth.w(encodeAxisWidth(cfg))
	if cfg.Order != InvalidOrder {
		dev.regs.order.w(uint32(cfg.Order) - 1)
	}
	if cfg.Bypass {
		dev.regs.bypass.w(1)
	}

	err = dev.rf.flush()
	if err != nil {
		return nil, fmt.Errorf("fec: could not configure sdfec%d: %w", cfg.ID, err)
	}

	return dev, nil
}

// ID returns the identifier of the device.
func (dev *Device) ID() uint32 {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.cfg.ID
}

// State returns the current lifecycle state of the device.
func (dev *Device) State() State {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.state
}

// Fatal returns the notifier signaled when the device needs a reset.
func (dev *Device) Fatal() *Notifier {
	return dev.fatal
}

// Stats returns a snapshot of the error counters.
func (dev *Device) Stats() Stats {
	return Stats{
		ISRErrCount: dev.stats.isr.Load(),
		CECCCount:   dev.stats.cecc.Load(),
		UECCCount:   dev.stats.uecc.Load(),
	}
}

func (dev *Device) clearStats() {
	dev.stats.isr.Store(0)
	dev.stats.uecc.Store(0)
	dev.stats.cecc.Store(0)
}

// DumpRegisters writes the control and status registers to w.
func (dev *Device) DumpRegisters(w io.Writer) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	for _, reg := range []struct {
		name string
		r    reg32
	}{
		{"active", dev.regs.active},
		{"axis-width", dev.regs.axisWidth},
		{"axis-enable", dev.regs.axisEnable},
		{"fec-code", dev.regs.fecCode},
		{"order", dev.regs.order},
		{"bypass", dev.regs.bypass},
		{"turbo", dev.regs.turbo},
		{"isr", dev.regs.isr},
		{"imr", dev.regs.imr},
		{"ecc-isr", dev.regs.eccISR},
		{"ecc-imr", dev.regs.eccIMR},
	} {
		fmt.Fprintf(w, "%-12s 0x%08x\n", reg.name+":", reg.r.r())
	}
	fmt.Fprintf(w, "%-12s %v\n", "wr-protect:", dev.rf.protected)
	fmt.Fprintf(w, "%-12s %v\n", "state:", dev.state)

	return dev.rf.flush()
}
