// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fec

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/go-lpc/sdfec/internal/regs"
)

// errMaxThreshold bounds the number of fault diagnostics emitted per counter.
const errMaxThreshold = 100

func inLogWindow(n uint32) bool {
	return 0 < n && n <= errMaxThreshold
}

// enableISR enables or masks the primary fault interrupts,
// and verifies the interrupt mask register acknowledged it.
func (dev *Device) enableISR(enable bool) error {
	return dev.enableIRQ("isr", enable, regs.ISR_MASK, dev.regs.ier, dev.regs.idr, dev.regs.imr)
}

// enableECC enables or masks the ECC fault interrupts,
// and verifies the interrupt mask register acknowledged it.
func (dev *Device) enableECC(enable bool) error {
	return dev.enableIRQ("ecc", enable, regs.ECC_MASK, dev.regs.eccIER, dev.regs.eccIDR, dev.regs.eccIMR)
}

func (dev *Device) enableIRQ(name string, enable bool, mask uint32, ier, idr, imr reg32) error {
	var imv uint32
	switch {
	case enable:
		ier.w(mask)
		imv = imr.r()
		if err := dev.rf.flush(); err != nil {
			return fmt.Errorf("fec: could not enable %s irq: %w", name, err)
		}
		if imv&mask != 0 {
			dev.msg.Errorf("enabling %s irq failed (imr=0x%x)", name, imv)
			return fmt.Errorf("fec: could not enable %s irq (imr=0x%x): %w", name, imv, ErrIO)
		}
	default:
		idr.w(mask)
		imv = imr.r()
		if err := dev.rf.flush(); err != nil {
			return fmt.Errorf("fec: could not disable %s irq: %w", name, err)
		}
		if imv&mask != mask {
			dev.msg.Errorf("disabling %s irq failed (imr=0x%x)", name, imv)
			return fmt.Errorf("fec: could not disable %s irq (imr=0x%x): %w", name, imv, ErrIO)
		}
	}
	return nil
}

// maskIRQs masks the armed fault sources and returns a function
// unmasking them.
// Sources never enabled through SetIRQ stay masked.
func (dev *Device) maskIRQs() (unmask func()) {
	var (
		isr = dev.armed.isr
		ecc = dev.armed.ecc
	)
	if isr {
		if err := dev.enableISR(false); err != nil {
			dev.msg.Errorf("could not mask isr: %+v", err)
		}
	}
	if ecc {
		if err := dev.enableECC(false); err != nil {
			dev.msg.Errorf("could not mask ecc: %+v", err)
		}
	}
	return func() {
		if isr {
			if err := dev.enableISR(true); err != nil {
				dev.msg.Errorf("could not unmask isr: %+v", err)
			}
		}
		if ecc {
			if err := dev.enableECC(true); err != nil {
				dev.msg.Errorf("could not unmask ecc: %+v", err)
			}
		}
	}
}

// HandleIRQ services a fault interrupt of the core.
// It reports whether a fault source was asserted.
//
// Multi-bit ECC errors and primary interrupt errors are fatal: the device
// transitions to NeedsReset and the Fatal notifier is signaled.
// Single-bit ECC errors are only accounted for.
func (dev *Device) HandleIRQ() bool {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	unmask := dev.maskIRQs()
	defer unmask()

	var (
		ecc = dev.regs.eccISR.r()
		isr = dev.regs.isr.r()
	)
	if err := dev.rf.flush(); err != nil {
		dev.msg.Errorf("could not read interrupt status: %+v", err)
		return false
	}

	var (
		sbe = ecc & regs.ECC_SBE_MASK
		mbe = ecc & regs.ECC_MBE_MASK
		ise = isr & regs.ISR_MASK
	)

	switch {
	case mbe != 0:
		dev.logECC(sbe, mbe)
		dev.needsReset()
	case ise != 0:
		dev.logISR(ise)
		dev.needsReset()
	case sbe != 0:
		dev.logECC(sbe, mbe)
	default:
		return false
	}

	if err := dev.rf.flush(); err != nil {
		dev.msg.Errorf("could not clear interrupt status: %+v", err)
	}
	return true
}

func (dev *Device) logECC(sbe, mbe uint32) {
	uecc := dev.stats.uecc.Add(uint32(bits.OnesCount32(mbe)))
	dev.stats.cecc.Add(uint32(bits.OnesCount32(sbe)))

	if mbe != 0 && inLogWindow(uecc) {
		dev.msg.Errorf("multi-bit error on sdfec%d, needs reset (uecc=%d)", dev.cfg.ID, uecc)
	}

	dev.regs.eccISR.w(0)
}

func (dev *Device) logISR(ise uint32) {
	n := dev.stats.isr.Add(uint32(bits.OnesCount32(ise)))
	if inLogWindow(n) {
		dev.msg.Errorf("tlast, din-words or dout-words not correct on sdfec%d (isr=0x%x)", dev.cfg.ID, ise)
	}

	// primary interrupt errors are cleared through the ECC status register.
	dev.regs.eccISR.w(0)
}

func (dev *Device) needsReset() {
	dev.state = NeedsReset
	dev.fatal.signal()
}

// Monitor services fault interrupts received on events until ctx is done
// or events is closed.
// Each received value is an interrupt notification.
func (dev *Device) Monitor(ctx context.Context, events <-chan uint32) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-events:
			if !ok {
				return nil
			}
			if !dev.HandleIRQ() {
				dev.msg.Debugf("spurious interrupt")
			}
		}
	}
}
