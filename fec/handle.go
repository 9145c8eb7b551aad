// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fec

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Handle is an exclusive lease on a Device.
// At most one handle may be outstanding per device.
type Handle struct {
	dev  *Device
	done atomic.Bool
}

// Open acquires the exclusive handle on the device.
// Open fails with ErrBusy if a handle is already outstanding.
func (dev *Device) Open() (*Handle, error) {
	if !dev.open.CompareAndSwap(0, 1) {
		return nil, fmt.Errorf("fec: could not open sdfec%d: %w", dev.ID(), ErrBusy)
	}
	return &Handle{dev: dev}, nil
}

// Release releases the handle.
// Releasing an already released handle is a no-op.
func (h *Handle) Release() error {
	if h == nil || h.dev == nil {
		return fmt.Errorf("fec: invalid handle: %w", ErrFault)
	}
	if !h.done.CompareAndSwap(false, true) {
		return nil
	}
	h.dev.open.Add(-1)
	return nil
}

// Device returns the device the handle was acquired from.
func (h *Handle) Device() *Device { return h.dev }

// check reports whether the handle may issue cmd.
func (h *Handle) check(cmd string) error {
	if h == nil || h.dev == nil {
		return fmt.Errorf("fec: invalid handle: %w", ErrFault)
	}
	if h.done.Load() {
		return fmt.Errorf("fec: %s on released handle: %w", cmd, ErrFault)
	}
	return nil
}

// do runs f with the device locked, after checking cmd is permitted.
func (h *Handle) do(cmd Command, f func(dev *Device) error) error {
	if err := h.check(cmd.String()); err != nil {
		return err
	}

	dev := h.dev
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if !cmd.Allowed(dev.state) {
		dev.msg.Errorf("sdfec%d in failed state, reset required (cmd=%s)", dev.cfg.ID, cmd)
		return fmt.Errorf("fec: %s not permitted on sdfec%d in state %v: %w",
			cmd, dev.cfg.ID, dev.state, ErrPermission,
		)
	}

	return f(dev)
}

// Start starts the core.
func (h *Handle) Start() error {
	return h.do(CmdStart, func(dev *Device) error {
		return dev.start()
	})
}

// Stop stops the core.
func (h *Handle) Stop() error {
	return h.do(CmdStop, func(dev *Device) error {
		return dev.stop()
	})
}

// ClearStats resets the error counters.
func (h *Handle) ClearStats() error {
	return h.do(CmdClearStats, func(dev *Device) error {
		dev.clearStats()
		return nil
	})
}

// Stats returns the error counters.
func (h *Handle) Stats() (Stats, error) {
	var stats Stats
	err := h.do(CmdGetStats, func(dev *Device) error {
		stats = dev.Stats()
		return nil
	})
	return stats, err
}

// Status returns the status of the device.
func (h *Handle) Status() (Status, error) {
	var st Status
	err := h.do(CmdGetStatus, func(dev *Device) error {
		var err error
		st, err = dev.status()
		return err
	})
	return st, err
}

// Config returns the current configuration of the device.
func (h *Handle) Config() (Config, error) {
	var cfg Config
	err := h.do(CmdGetConfig, func(dev *Device) error {
		cfg = dev.cfg
		return nil
	})
	return cfg, err
}

// SetDefaultConfig resets the device to its initial configuration.
// It is the only way out of the NeedsReset state.
func (h *Handle) SetDefaultConfig() error {
	return h.do(CmdSetDefaultConfig, func(dev *Device) error {
		return dev.setDefaultConfig()
	})
}

// SetIRQ enables the primary and ECC fault interrupts.
// A false flag leaves the corresponding source untouched.
func (h *Handle) SetIRQ(isr, ecc bool) error {
	return h.do(CmdSetIRQ, func(dev *Device) error {
		if isr {
			err := dev.enableISR(true)
			if err != nil {
				return err
			}
			dev.armed.isr = true
		}
		if ecc {
			err := dev.enableECC(true)
			if err != nil {
				return err
			}
			dev.armed.ecc = true
		}
		return nil
	})
}

// SetTurbo sets the Turbo decoder parameters.
func (h *Handle) SetTurbo(turbo TurboParams) error {
	return h.do(CmdSetTurbo, func(dev *Device) error {
		return dev.setTurbo(turbo)
	})
}

// Turbo returns the Turbo decoder parameters.
func (h *Handle) Turbo() (TurboParams, error) {
	var turbo TurboParams
	err := h.do(CmdGetTurbo, func(dev *Device) error {
		var err error
		turbo, err = dev.turbo()
		return err
	})
	return turbo, err
}

// AddLDPCCode loads the LDPC code into the slot code.CodeID.
//
// The code slot registers are written first, then the SC, LA and QC
// tables. On failure, the core may be left partially programmed.
func (h *Handle) AddLDPCCode(code LDPCParams) error {
	return h.do(CmdAddLDPCCode, func(dev *Device) error {
		return dev.addLDPCCode(&code)
	})
}

// LDPCCode reads back the LDPC code held in slot id.
// nqc is the number of QC table entries to read back.
func (h *Handle) LDPCCode(id, nqc uint32) (LDPCParams, error) {
	code := LDPCParams{CodeID: id, NQC: nqc}
	err := h.do(CmdGetLDPCCodeParams, func(dev *Device) error {
		if dev.cfg.Code == Turbo {
			dev.msg.Errorf("no LDPC parameters on turbo sdfec%d", dev.cfg.ID)
			return fmt.Errorf("fec: LDPC operation on turbo sdfec%d: %w: %w",
				dev.cfg.ID, ErrPermission, ErrIO,
			)
		}
		return dev.ldpcCode(&code)
	})
	return code, err
}

// SetOrder sets whether output blocks may be reordered.
func (h *Handle) SetOrder(order Order) error {
	return h.do(CmdSetOrder, func(dev *Device) error {
		return dev.setOrder(order)
	})
}

// SetBypass sets the bypass mode (0 or 1).
func (h *Handle) SetBypass(v uint32) error {
	return h.do(CmdSetBypass, func(dev *Device) error {
		return dev.setBypass(v)
	})
}

// IsActive reports whether the core is processing data.
func (h *Handle) IsActive() (bool, error) {
	var active bool
	err := h.do(CmdIsActive, func(dev *Device) error {
		var err error
		active, err = dev.isActive()
		return err
	})
	return active, err
}

// Poll reports whether the device needs a reset.
func (h *Handle) Poll() (bool, error) {
	if err := h.check("poll"); err != nil {
		return false, err
	}
	return h.dev.fatal.Poll(), nil
}

// Wait blocks until the device needs a reset or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	if err := h.check("wait"); err != nil {
		return err
	}
	return h.dev.fatal.Wait(ctx)
}
