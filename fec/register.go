// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fec

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/sdfec/internal/regs"
)

type rwer interface {
	io.ReaderAt
	io.WriterAt
}

// regFile gives access to the register window of a core.
//
// I/O errors are sticky: once an access failed, subsequent accesses are
// no-ops until the error is collected with flush.
type regFile struct {
	rw  rwer
	msg log.MsgStream

	protected bool // write-protect interlock engaged

	err  error
	xbuf [4]byte
}

func newRegFile(rw rwer, msg log.MsgStream) regFile {
	return regFile{rw: rw, msg: msg}
}

func (rf *regFile) readU32(off int64) uint32 {
	if rf.err != nil {
		return 0
	}
	_, rf.err = rf.rw.ReadAt(rf.xbuf[:4], off)
	if rf.err != nil {
		rf.err = fmt.Errorf("fec: could not read register 0x%x: %w", off, rf.err)
		return 0
	}
	v := binary.LittleEndian.Uint32(rf.xbuf[:4])
	rf.msg.Debugf("read 0x%08x from addr=0x%x", v, off)
	return v
}

func (rf *regFile) writeU32(off int64, v uint32) {
	if rf.err != nil {
		return
	}
	rf.msg.Debugf("write 0x%08x to addr=0x%x", v, off)
	binary.LittleEndian.PutUint32(rf.xbuf[:4], v)
	_, rf.err = rf.rw.WriteAt(rf.xbuf[:4], off)
	if rf.err != nil {
		rf.err = fmt.Errorf("fec: could not write register 0x%x: %w", off, rf.err)
		return
	}
}

// write writes v at off, unless the write-protect interlock is engaged.
func (rf *regFile) write(off int64, v uint32) {
	if rf.protected {
		rf.msg.Errorf("write to 0x%x while write-protect is engaged", off)
		return
	}
	rf.writeU32(off, v)
}

func (rf *regFile) read(off int64) uint32 {
	return rf.readU32(off)
}

func (rf *regFile) setWriteProtect(on bool) {
	if on {
		rf.writeU32(regs.CODE_WR_PROTECT, regs.WR_PROTECT_ENABLE)
		rf.writeU32(regs.AXI_WR_PROTECT, regs.WR_PROTECT_ENABLE)
		rf.protected = true
		return
	}
	rf.protected = false
	rf.writeU32(regs.AXI_WR_PROTECT, regs.WR_PROTECT_OFF)
	rf.writeU32(regs.CODE_WR_PROTECT, regs.WR_PROTECT_OFF)
}

// flush returns and clears the sticky I/O error.
func (rf *regFile) flush() error {
	err := rf.err
	rf.err = nil
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

type reg32 struct {
	r func() uint32
	w func(v uint32)
}

func newReg32(rf *regFile, off int64) reg32 {
	return reg32{
		r: func() uint32 {
			return rf.read(off)
		},
		w: func(v uint32) {
			rf.write(off, v)
		},
	}
}

// newIRQReg32 binds an interrupt control register.
// Interrupt control registers are not gated by the write-protect interlock.
func newIRQReg32(rf *regFile, off int64) reg32 {
	return reg32{
		r: func() uint32 {
			return rf.readU32(off)
		},
		w: func(v uint32) {
			rf.writeU32(off, v)
		},
	}
}

type pins struct {
	active     reg32
	axisWidth  reg32
	axisEnable reg32
	fecCode    reg32
	order      reg32
	bypass     reg32
	turbo      reg32

	isr reg32
	ier reg32
	idr reg32
	imr reg32

	eccISR reg32
	eccIER reg32
	eccIDR reg32
	eccIMR reg32
}

func (rf *regFile) bind() pins {
	return pins{
		active:     newReg32(rf, regs.ACTIVE),
		axisWidth:  newReg32(rf, regs.AXIS_WIDTH),
		axisEnable: newReg32(rf, regs.AXIS_ENABLE),
		fecCode:    newReg32(rf, regs.FEC_CODE),
		order:      newReg32(rf, regs.ORDER),
		bypass:     newReg32(rf, regs.BYPASS),
		turbo:      newReg32(rf, regs.TURBO),

		isr: newIRQReg32(rf, regs.ISR),
		ier: newIRQReg32(rf, regs.IER),
		idr: newIRQReg32(rf, regs.IDR),
		imr: newIRQReg32(rf, regs.IMR),

		eccISR: newIRQReg32(rf, regs.ECC_ISR),
		eccIER: newIRQReg32(rf, regs.ECC_IER),
		eccIDR: newIRQReg32(rf, regs.ECC_IDR),
		eccIMR: newIRQReg32(rf, regs.ECC_IMR),
	}
}
