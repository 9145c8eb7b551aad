// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fakehw provides an in-memory SD-FEC register bank.
package fakehw // import "github.com/go-lpc/sdfec/internal/fakehw"

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/go-lpc/sdfec/internal/regs"
)

// Access is a register write recorded by a Bank.
type Access struct {
	Addr  int64
	Value uint32
}

// Bank is a fake SD-FEC register window.
//
// Writes to the interrupt enable and disable registers update the
// corresponding interrupt mask registers, as the hardware does.
type Bank struct {
	mu    sync.Mutex
	mem   []byte
	log   []Access
	fails map[int64]error
}

// New returns a new register bank, with all interrupts masked.
func New() *Bank {
	b := &Bank{
		mem:   make([]byte, regs.SIZE),
		fails: make(map[int64]error),
	}
	b.store(regs.IMR, regs.ISR_MASK)
	b.store(regs.ECC_IMR, regs.ECC_MASK)
	return b
}

func (b *Bank) load(addr int64) uint32 {
	return binary.LittleEndian.Uint32(b.mem[addr : addr+4])
}

func (b *Bank) store(addr int64, v uint32) {
	binary.LittleEndian.PutUint32(b.mem[addr:addr+4], v)
}

// Load returns the value of the register at addr.
func (b *Bank) Load(addr int64) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load(addr)
}

// Store sets the value of the register at addr, without recording it.
func (b *Bank) Store(addr int64, v uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.store(addr, v)
}

// Fail makes any subsequent access to addr fail with err.
// A nil error removes the failure.
func (b *Bank) Fail(addr int64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.fails, addr)
		return
	}
	b.fails[addr] = err
}

// Writes returns the recorded register writes.
func (b *Bank) Writes() []Access {
	b.mu.Lock()
	defer b.mu.Unlock()
	o := make([]Access, len(b.log))
	copy(o, b.log)
	return o
}

// WritesTo returns the recorded values written to addr.
func (b *Bank) WritesTo(addr int64) []uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var o []uint32
	for _, w := range b.log {
		if w.Addr == addr {
			o = append(o, w.Value)
		}
	}
	return o
}

// ResetLog clears the recorded register writes.
func (b *Bank) ResetLog() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log = b.log[:0]
}

// InjectECC raises single-bit (sbe) and multi-bit (mbe) ECC errors.
// mbe is the multi-bit error mask, before shifting into the status register.
func (b *Bank) InjectECC(sbe, mbe uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := sbe&regs.ECC_SBE_MASK | (mbe<<regs.ECC_MBE_SHFT)&regs.ECC_MBE_MASK
	b.store(regs.ECC_ISR, b.load(regs.ECC_ISR)|v)
}

// InjectISR raises primary interrupt errors.
func (b *Bank) InjectISR(v uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.store(regs.ISR, b.load(regs.ISR)|v&regs.ISR_MASK)
}

func (b *Bank) check(p []byte, off int64) error {
	if off < 0 || off+int64(len(p)) > int64(len(b.mem)) {
		return fmt.Errorf("fakehw: invalid offset 0x%x", off)
	}
	if err, ok := b.fails[off]; ok {
		return err
	}
	return nil
}

// ReadAt implements io.ReaderAt.
func (b *Bank) ReadAt(p []byte, off int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.check(p, off)
	if err != nil {
		return 0, err
	}
	return copy(p, b.mem[off:]), nil
}

// WriteAt implements io.WriterAt.
func (b *Bank) WriteAt(p []byte, off int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.check(p, off)
	if err != nil {
		return 0, err
	}

	if len(p) != 4 {
		return copy(b.mem[off:], p), nil
	}

	v := binary.LittleEndian.Uint32(p)
	b.log = append(b.log, Access{Addr: off, Value: v})

	switch off {
	case regs.IER:
		b.store(regs.IMR, b.load(regs.IMR)&^v)
	case regs.IDR:
		b.store(regs.IMR, b.load(regs.IMR)|v)
	case regs.ECC_IER:
		b.store(regs.ECC_IMR, b.load(regs.ECC_IMR)&^v)
	case regs.ECC_IDR:
		b.store(regs.ECC_IMR, b.load(regs.ECC_IMR)|v)
	case regs.IMR, regs.ECC_IMR:
		// read-only
	default:
		b.store(off, v)
	}
	return 4, nil
}

var (
	_ io.ReaderAt = (*Bank)(nil)
	_ io.WriterAt = (*Bank)(nil)
)
