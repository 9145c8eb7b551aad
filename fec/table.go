// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fec

import (
	"fmt"

	"github.com/go-lpc/sdfec/internal/regs"
)

// table is a shared LDPC coefficient table.
type table struct {
	name  string
	base  int64
	depth uint32 // in bytes
}

var (
	scTable = table{name: "SC", base: regs.SC_TABLE_ADDR_BASE, depth: regs.SC_TABLE_DEPTH}
	laTable = table{name: "LA", base: regs.LA_TABLE_ADDR_BASE, depth: regs.LA_TABLE_DEPTH}
	qcTable = table{name: "QC", base: regs.QC_TABLE_ADDR_BASE, depth: regs.QC_TABLE_DEPTH}
)

// words returns the number of words the table can hold.
func (tbl table) words() uint32 { return tbl.depth / regs.WORD_SIZE }

func (tbl table) check(off uint32, n int) error {
	reach := regs.WORD_SIZE * (uint64(off) + uint64(n))
	if reach > uint64(tbl.depth) {
		return fmt.Errorf(
			"fec: access [%d, %d) exceeds %s table depth (%d words): %w",
			off, uint64(off)+uint64(n), tbl.name, tbl.words(), ErrInvalid,
		)
	}
	return nil
}

func (tbl table) addr(off uint32, i int) int64 {
	return tbl.base + (int64(off)+int64(i))*regs.WORD_SIZE
}

func (dev *Device) writeTable(tbl table, off uint32, data []uint32) error {
	err := tbl.check(off, len(data))
	if err != nil {
		dev.msg.Errorf("write exceeds %s table length", tbl.name)
		return err
	}

	for i, v := range data {
		dev.rf.write(tbl.addr(off, i), v)
	}

	err = dev.rf.flush()
	if err != nil {
		return fmt.Errorf("fec: could not write %s table: %w", tbl.name, err)
	}
	return nil
}

func (dev *Device) readTable(tbl table, off uint32, data []uint32) error {
	err := tbl.check(off, len(data))
	if err != nil {
		dev.msg.Errorf("access exceeds %s table length", tbl.name)
		return err
	}

	for i := range data {
		data[i] = dev.rf.read(tbl.addr(off, i))
	}

	err = dev.rf.flush()
	if err != nil {
		return fmt.Errorf("fec: could not read %s table: %w", tbl.name, err)
	}
	return nil
}

func (dev *Device) checkLDPCTables(code *LDPCParams) error {
	switch {
	case uint32(len(code.SCTable)) < code.NLayers:
		return fmt.Errorf(
			"fec: SC table too short (len=%d, nlayers=%d): %w",
			len(code.SCTable), code.NLayers, ErrInvalid,
		)
	case uint32(len(code.LATable)) < code.NLayers:
		return fmt.Errorf(
			"fec: LA table too short (len=%d, nlayers=%d): %w",
			len(code.LATable), code.NLayers, ErrInvalid,
		)
	case uint32(len(code.QCTable)) < code.NQC:
		return fmt.Errorf(
			"fec: QC table too short (len=%d, nqc=%d): %w",
			len(code.QCTable), code.NQC, ErrInvalid,
		)
	}
	return nil
}

func (dev *Device) slotAddrs(id uint32) ([4]int64, error) {
	var addrs [4]int64
	for i := range addrs {
		addr, err := slotAddr(slotRegs[i].base, slotRegs[i].high, id)
		if err != nil {
			dev.msg.Errorf("accessing outside of LDPC reg%d space 0x%x", i, addr)
			return addrs, err
		}
		addrs[i] = addr
	}
	return addrs, nil
}

// addLDPCCode programs the code slot registers and coefficient tables.
//
// Steps are performed in order and the first failure aborts the sequence.
// Writes already performed are not rolled back.
func (dev *Device) addLDPCCode(code *LDPCParams) error {
	ws, err := dev.pk.encodeLDPC(code)
	if err != nil {
		return err
	}

	err = dev.checkLDPCTables(code)
	if err != nil {
		return err
	}

	addrs, err := dev.slotAddrs(code.CodeID)
	if err != nil {
		return err
	}

	err = dev.adoptCode(LDPC)
	if err != nil {
		return err
	}

	if dev.rf.protected {
		dev.rf.setWriteProtect(false)
	}

	for i, w := range ws {
		dev.rf.write(addrs[i], w)
		err = dev.rf.flush()
		if err != nil {
			return fmt.Errorf("fec: could not write LDPC reg%d: %w", i, err)
		}
	}

	err = dev.writeTable(scTable, code.SCOff, code.SCTable[:code.NLayers])
	if err != nil {
		return err
	}

	err = dev.writeTable(laTable, 4*code.LAOff, code.LATable[:code.NLayers])
	if err != nil {
		return err
	}

	err = dev.writeTable(qcTable, 4*code.QCOff, code.QCTable[:code.NQC])
	if err != nil {
		return err
	}

	return nil
}

// ldpcCode reads back the code held in the slot code.CodeID.
// code.NQC is used as the number of QC table entries to read.
func (dev *Device) ldpcCode(code *LDPCParams) error {
	addrs, err := dev.slotAddrs(code.CodeID)
	if err != nil {
		return err
	}

	var ws ldpcRegs
	for i, addr := range addrs {
		ws[i] = dev.rf.read(addr)
	}
	err = dev.rf.flush()
	if err != nil {
		return fmt.Errorf("fec: could not read LDPC registers: %w", err)
	}
	decodeLDPC(ws, code)

	code.SCTable = make([]uint32, code.NLayers)
	err = dev.readTable(scTable, code.SCOff, code.SCTable)
	if err != nil {
		return err
	}

	code.LATable = make([]uint32, code.NLayers)
	err = dev.readTable(laTable, 4*code.LAOff, code.LATable)
	if err != nil {
		return err
	}

	code.QCTable = make([]uint32, code.NQC)
	err = dev.readTable(qcTable, 4*code.QCOff, code.QCTable)
	if err != nil {
		return err
	}

	return nil
}
