// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fec

import (
	"fmt"

	"github.com/go-lpc/sdfec/internal/regs"
)

// The methods below expect dev.mu to be held.

func (dev *Device) setDefaultConfig() error {
	dev.state = Init
	dev.cfg.Order = InvalidOrder
	dev.rf.setWriteProtect(false)

	if dev.cfg.Code != InvalidCode {
		dev.regs.fecCode.w(uint32(dev.cfg.Code) - 1)
	}
	dev.regs.axisWidth.w(encodeAxisWidth(dev.cfg))
	dev.fatal.clear()

	err := dev.rf.flush()
	if err != nil {
		return fmt.Errorf("fec: could not restore default configuration: %w", err)
	}
	return nil
}

func (dev *Device) start() error {
	if dev.cfg.Code == InvalidCode {
		dev.msg.Errorf("set code before start for sdfec%d", dev.cfg.ID)
		return fmt.Errorf("fec: no code set for sdfec%d: %w", dev.cfg.ID, ErrInvalid)
	}

	code := dev.regs.fecCode.r() & regs.FEC_CODE_MASK
	err := dev.rf.flush()
	if err != nil {
		return fmt.Errorf("fec: could not read code register: %w", err)
	}
	if want := uint32(dev.cfg.Code) - 1; code != want {
		dev.msg.Errorf("hardware code does not match driver code, reg=%d, code=%d", code, want)
		return fmt.Errorf(
			"fec: code mismatch for sdfec%d (reg=%d, code=%d): %w",
			dev.cfg.ID, code, want, ErrInvalid,
		)
	}

	if dev.cfg.Order == InvalidOrder {
		dev.msg.Errorf("set order before starting sdfec%d", dev.cfg.ID)
		return fmt.Errorf("fec: no order set for sdfec%d: %w", dev.cfg.ID, ErrInvalid)
	}

	dev.regs.axisEnable.w(regs.AXIS_ENABLE_MASK)
	dev.rf.setWriteProtect(true)

	err = dev.rf.flush()
	if err != nil {
		return fmt.Errorf("fec: could not start sdfec%d: %w", dev.cfg.ID, err)
	}
	dev.state = Started
	return nil
}

func (dev *Device) stop() error {
	if dev.state != Started {
		dev.msg.Errorf("sdfec%d not started correctly (state=%v)", dev.cfg.ID, dev.state)
	}

	dev.rf.setWriteProtect(false)
	v := dev.regs.axisEnable.r()
	dev.regs.axisEnable.w(v &^ regs.AXIS_ENABLE_MASK)
	dev.state = Stopped

	err := dev.rf.flush()
	if err != nil {
		return fmt.Errorf("fec: could not stop sdfec%d: %w", dev.cfg.ID, err)
	}
	return nil
}

func (dev *Device) setOrder(order Order) error {
	switch order {
	case MaintainOrder, OutOfOrder:
	default:
		dev.msg.Errorf("invalid order value %d for sdfec%d", order, dev.cfg.ID)
		return fmt.Errorf("fec: invalid order %d: %w", order, ErrInvalid)
	}

	if dev.state == Started {
		dev.msg.Errorf("attempting to set order while started for sdfec%d", dev.cfg.ID)
		return fmt.Errorf("fec: could not set order of started sdfec%d: %w: %w",
			dev.cfg.ID, ErrPermission, ErrIO,
		)
	}

	dev.regs.order.w(uint32(order) - 1)
	err := dev.rf.flush()
	if err != nil {
		return fmt.Errorf("fec: could not set order: %w", err)
	}
	dev.cfg.Order = order
	return nil
}

func (dev *Device) setBypass(v uint32) error {
	if v > regs.BYPASS_MASK {
		dev.msg.Errorf("invalid bypass value %d for sdfec%d", v, dev.cfg.ID)
		return fmt.Errorf("fec: invalid bypass %d: %w", v, ErrInvalid)
	}

	if dev.state == Started {
		dev.msg.Errorf("attempting to set bypass while started for sdfec%d", dev.cfg.ID)
		return fmt.Errorf("fec: could not set bypass of started sdfec%d: %w: %w",
			dev.cfg.ID, ErrPermission, ErrIO,
		)
	}

	dev.regs.bypass.w(v)
	err := dev.rf.flush()
	if err != nil {
		return fmt.Errorf("fec: could not set bypass: %w", err)
	}
	dev.cfg.Bypass = v == 1
	return nil
}

func (dev *Device) isActive() (bool, error) {
	v := dev.regs.active.r()
	err := dev.rf.flush()
	if err != nil {
		return false, fmt.Errorf("fec: could not read activity: %w", err)
	}
	return v&regs.ACTIVE_MASK != 0, nil
}

func (dev *Device) status() (Status, error) {
	active, err := dev.isActive()
	if err != nil {
		return Status{}, err
	}
	return Status{
		ID:       dev.cfg.ID,
		State:    dev.state,
		Activity: active,
	}, nil
}

// adoptCode sets the code variant of a device configured without one.
// The code variant cannot change once set.
func (dev *Device) adoptCode(code Code) error {
	switch dev.cfg.Code {
	case code:
		return nil
	case InvalidCode:
		if dev.rf.protected {
			dev.rf.setWriteProtect(false)
		}
		dev.regs.fecCode.w(uint32(code) - 1)
		err := dev.rf.flush()
		if err != nil {
			return fmt.Errorf("fec: could not set code: %w", err)
		}
		dev.cfg.Code = code
		return nil
	default:
		dev.msg.Errorf("unable to write %v parameters to %v sdfec%d", code, dev.cfg.Code, dev.cfg.ID)
		return fmt.Errorf("fec: %v operation on %v sdfec%d: %w: %w",
			code, dev.cfg.Code, dev.cfg.ID, ErrPermission, ErrIO,
		)
	}
}

func (dev *Device) setTurbo(turbo TurboParams) error {
	word, err := dev.pk.encodeTurbo(turbo)
	if err != nil {
		return err
	}

	err = dev.adoptCode(Turbo)
	if err != nil {
		return err
	}

	if dev.rf.protected {
		dev.rf.setWriteProtect(false)
	}
	dev.regs.turbo.w(word)

	err = dev.rf.flush()
	if err != nil {
		return fmt.Errorf("fec: could not set turbo parameters: %w", err)
	}
	return nil
}

func (dev *Device) turbo() (TurboParams, error) {
	if dev.cfg.Code == LDPC {
		dev.msg.Errorf("no turbo parameters on LDPC sdfec%d", dev.cfg.ID)
		return TurboParams{}, fmt.Errorf("fec: turbo operation on LDPC sdfec%d: %w: %w",
			dev.cfg.ID, ErrPermission, ErrIO,
		)
	}

	word := dev.regs.turbo.r()
	err := dev.rf.flush()
	if err != nil {
		return TurboParams{}, fmt.Errorf("fec: could not read turbo parameters: %w", err)
	}
	return decodeTurbo(word), nil
}
