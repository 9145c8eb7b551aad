// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fec

import (
	"fmt"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/sdfec/internal/regs"
)

// field is a bit field of a 32b register.
type field struct {
	name string
	v    uint32
	mask uint32
	shft uint32
}

func (f field) max() uint32 { return f.mask >> f.shft }

// packer packs bit fields into register words.
type packer struct {
	msg      log.MsgStream
	truncate bool
}

func (p packer) pack(reg string, fields ...field) (uint32, error) {
	var word uint32
	for _, f := range fields {
		v := f.v
		if v > f.max() {
			if !p.truncate {
				return 0, fmt.Errorf(
					"fec: %s.%s=%d exceeds field maximum %d: %w",
					reg, f.name, v, f.max(), ErrInvalid,
				)
			}
			p.msg.Errorf("%s.%s=%d exceeds field maximum %d, truncating", reg, f.name, v, f.max())
			v &= f.max()
		}
		word |= (v << f.shft) & f.mask
	}
	return word, nil
}

func unpack(word, mask, shft uint32) uint32 {
	return (word & mask) >> shft
}

type ldpcRegs [4]uint32

func (p packer) encodeLDPC(code *LDPCParams) (ldpcRegs, error) {
	var (
		ws  ldpcRegs
		err error
	)

	ws[0], err = p.pack("reg0",
		field{"n", code.N, regs.REG0_N_MASK, regs.REG0_N_SHFT},
		field{"k", code.K, regs.REG0_K_MASK, regs.REG0_K_SHFT},
	)
	if err != nil {
		return ws, err
	}

	ws[1], err = p.pack("reg1",
		field{"psize", code.PSize, regs.REG1_PSIZE_MASK, regs.REG1_PSIZE_SHFT},
		field{"no_packing", code.NoPacking, regs.REG1_NO_PACKING_MASK, regs.REG1_NO_PACKING_SHFT},
		field{"nm", code.NM, regs.REG1_NM_MASK, regs.REG1_NM_SHFT},
	)
	if err != nil {
		return ws, err
	}

	ws[2], err = p.pack("reg2",
		field{"nlayers", code.NLayers, regs.REG2_NLAYERS_MASK, regs.REG2_NLAYERS_SHFT},
		field{"nmqc", code.NMQC, regs.REG2_NMQC_MASK, regs.REG2_NMQC_SHFT},
		field{"norm_type", code.NormType, regs.REG2_NORM_TYPE_MASK, regs.REG2_NORM_TYPE_SHFT},
		field{"special_qc", code.SpecialQC, regs.REG2_SPECIAL_QC_MASK, regs.REG2_SPECIAL_QC_SHFT},
		field{"no_final_parity", code.NoFinalParity, regs.REG2_NO_FINAL_PARITY_MASK, regs.REG2_NO_FINAL_PARITY_SHFT},
		field{"max_schedule", code.MaxSchedule, regs.REG2_MAX_SCHEDULE_MASK, regs.REG2_MAX_SCHEDULE_SHFT},
	)
	if err != nil {
		return ws, err
	}

	ws[3], err = p.pack("reg3",
		field{"sc_off", code.SCOff, regs.REG3_SC_OFF_MASK, regs.REG3_SC_OFF_SHFT},
		field{"la_off", code.LAOff, regs.REG3_LA_OFF_MASK, regs.REG3_LA_OFF_SHFT},
		field{"qc_off", code.QCOff, regs.REG3_QC_OFF_MASK, regs.REG3_QC_OFF_SHFT},
	)
	if err != nil {
		return ws, err
	}

	return ws, nil
}

func decodeLDPC(ws ldpcRegs, code *LDPCParams) {
	code.N = unpack(ws[0], regs.REG0_N_MASK, regs.REG0_N_SHFT)
	code.K = unpack(ws[0], regs.REG0_K_MASK, regs.REG0_K_SHFT)

	code.PSize = unpack(ws[1], regs.REG1_PSIZE_MASK, regs.REG1_PSIZE_SHFT)
	code.NoPacking = unpack(ws[1], regs.REG1_NO_PACKING_MASK, regs.REG1_NO_PACKING_SHFT)
	code.NM = unpack(ws[1], regs.REG1_NM_MASK, regs.REG1_NM_SHFT)

	code.NLayers = unpack(ws[2], regs.REG2_NLAYERS_MASK, regs.REG2_NLAYERS_SHFT)
	code.NMQC = unpack(ws[2], regs.REG2_NMQC_MASK, regs.REG2_NMQC_SHFT)
	code.NormType = unpack(ws[2], regs.REG2_NORM_TYPE_MASK, regs.REG2_NORM_TYPE_SHFT)
	code.SpecialQC = unpack(ws[2], regs.REG2_SPECIAL_QC_MASK, regs.REG2_SPECIAL_QC_SHFT)
	code.NoFinalParity = unpack(ws[2], regs.REG2_NO_FINAL_PARITY_MASK, regs.REG2_NO_FINAL_PARITY_SHFT)
	code.MaxSchedule = unpack(ws[2], regs.REG2_MAX_SCHEDULE_MASK, regs.REG2_MAX_SCHEDULE_SHFT)

	code.SCOff = unpack(ws[3], regs.REG3_SC_OFF_MASK, regs.REG3_SC_OFF_SHFT)
	code.LAOff = unpack(ws[3], regs.REG3_LA_OFF_MASK, regs.REG3_LA_OFF_SHFT)
	code.QCOff = unpack(ws[3], regs.REG3_QC_OFF_MASK, regs.REG3_QC_OFF_SHFT)
}

func (p packer) encodeTurbo(turbo TurboParams) (uint32, error) {
	return p.pack("turbo",
		field{"alg", turbo.Alg, regs.TURBO_ALG_MASK, 0},
		field{"scale", turbo.Scale, regs.TURBO_SCALE_MASK, regs.TURBO_SCALE_SHFT},
	)
}

func decodeTurbo(word uint32) TurboParams {
	return TurboParams{
		Alg:   unpack(word, regs.TURBO_ALG_MASK, 0),
		Scale: unpack(word, regs.TURBO_SCALE_MASK, regs.TURBO_SCALE_SHFT),
	}
}

// encodeAxisWidth returns the AXIS_WIDTH register value for cfg.
// cfg is expected to have been validated.
func encodeAxisWidth(cfg Config) uint32 {
	var (
		dinWidth, _  = cfg.DinWidth.field()
		dinWords, _  = cfg.DinWords.field()
		doutWidth, _ = cfg.DoutWidth.field()
		doutWords, _ = cfg.DoutWords.field()
	)
	return doutWords<<regs.AXIS_DOUT_WORDS_SHFT |
		doutWidth<<regs.AXIS_DOUT_WIDTH_SHFT |
		dinWords<<regs.AXIS_DIN_WORDS_SHFT |
		dinWidth<<regs.AXIS_DIN_WIDTH_SHFT
}

// slotAddr returns the address of the code slot register for the given code id.
func slotAddr(base, high int64, id uint32) (int64, error) {
	addr := base + int64(id)*regs.SLOT_JUMP
	if addr > high {
		return addr, fmt.Errorf(
			"fec: code id %d out of range (register 0x%x > 0x%x): %w",
			id, addr, high, ErrInvalid,
		)
	}
	return addr, nil
}

var slotRegs = [4]struct{ base, high int64 }{
	{regs.REG0_ADDR_BASE, regs.REG0_ADDR_HIGH},
	{regs.REG1_ADDR_BASE, regs.REG1_ADDR_HIGH},
	{regs.REG2_ADDR_BASE, regs.REG2_ADDR_HIGH},
	{regs.REG3_ADDR_BASE, regs.REG3_ADDR_HIGH},
}
