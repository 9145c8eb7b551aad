// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regs holds the register map of the SD-FEC core.
package regs // import "github.com/go-lpc/sdfec/internal/regs"

// Control and status registers.
const (
	AXI_WR_PROTECT  = 0x00000
	CODE_WR_PROTECT = 0x00004
	ACTIVE          = 0x00008
	AXIS_WIDTH      = 0x0000c
	AXIS_ENABLE     = 0x00010
	FEC_CODE        = 0x00014
	ORDER           = 0x00018
	ISR             = 0x0001c
	IER             = 0x00020
	IDR             = 0x00024
	IMR             = 0x00028
	ECC_ISR         = 0x0002c
	ECC_IER         = 0x00030
	ECC_IDR         = 0x00034
	ECC_IMR         = 0x00038
	BYPASS          = 0x0003c
	TURBO           = 0x00100
)

const (
	ACTIVE_MASK       = 0x1
	AXIS_ENABLE_MASK  = 0x3f
	FEC_CODE_MASK     = 0x1
	ORDER_MASK        = 0x1
	BYPASS_MASK       = 0x1
	WR_PROTECT_ENABLE = 0x1
	WR_PROTECT_OFF    = 0x0

	ISR_MASK     = 0x3f
	ECC_SBE_MASK = 0x7ff
	ECC_MBE_MASK = 0x3ff800
	ECC_MBE_SHFT = 11
	ECC_MASK     = ECC_SBE_MASK | ECC_MBE_MASK
)

// AXIS_WIDTH fields.
const (
	AXIS_DIN_WIDTH_SHFT  = 0
	AXIS_DIN_WORDS_SHFT  = 2
	AXIS_DOUT_WIDTH_SHFT = 3
	AXIS_DOUT_WORDS_SHFT = 5
)

// TURBO fields.
const (
	TURBO_ALG_MASK   = 0x1
	TURBO_SCALE_MASK = 0xf00
	TURBO_SCALE_SHFT = 8
)

// LDPC code parameter registers.
// Each code slot spans SLOT_JUMP bytes, starting at REGx_ADDR_BASE.
const (
	SLOT_JUMP = 0x10

	REG0_ADDR_BASE = 0x02000
	REG0_ADDR_HIGH = 0x021fc
	REG1_ADDR_BASE = 0x02004
	REG1_ADDR_HIGH = 0x02200
	REG2_ADDR_BASE = 0x02008
	REG2_ADDR_HIGH = 0x02204
	REG3_ADDR_BASE = 0x0200c
	REG3_ADDR_HIGH = 0x02208
)

// REG0 fields.
const (
	REG0_N_MASK = 0x0000ffff
	REG0_N_SHFT = 0
	REG0_K_MASK = 0x7fff0000
	REG0_K_SHFT = 16
)

// REG1 fields.
const (
	REG1_PSIZE_MASK      = 0x000001ff
	REG1_PSIZE_SHFT      = 0
	REG1_NO_PACKING_MASK = 0x00000400
	REG1_NO_PACKING_SHFT = 10
	REG1_NM_MASK         = 0x001ff800
	REG1_NM_SHFT         = 11
)

// REG2 fields.
const (
	REG2_NLAYERS_MASK         = 0x000001ff
	REG2_NLAYERS_SHFT         = 0
	REG2_NMQC_MASK            = 0x000ffe00
	REG2_NMQC_SHFT            = 9
	REG2_NORM_TYPE_MASK       = 0x00100000
	REG2_NORM_TYPE_SHFT       = 20
	REG2_SPECIAL_QC_MASK      = 0x00200000
	REG2_SPECIAL_QC_SHFT      = 21
	REG2_NO_FINAL_PARITY_MASK = 0x00400000
	REG2_NO_FINAL_PARITY_SHFT = 22
	REG2_MAX_SCHEDULE_MASK    = 0x01800000
	REG2_MAX_SCHEDULE_SHFT    = 23
)

// REG3 fields.
const (
	REG3_SC_OFF_MASK = 0x000000ff
	REG3_SC_OFF_SHFT = 0
	REG3_LA_OFF_MASK = 0x0000ff00
	REG3_LA_OFF_SHFT = 8
	REG3_QC_OFF_MASK = 0xffff0000
	REG3_QC_OFF_SHFT = 16
)

// Coefficient tables.
const (
	SC_TABLE_ADDR_BASE = 0x10000
	SC_TABLE_ADDR_HIGH = 0x10400
	SC_TABLE_DEPTH     = 0x3fc

	LA_TABLE_ADDR_BASE = 0x18000
	LA_TABLE_ADDR_HIGH = 0x19000
	LA_TABLE_DEPTH     = 0xffc

	QC_TABLE_ADDR_BASE = 0x20000
	QC_TABLE_ADDR_HIGH = 0x28000
	QC_TABLE_DEPTH     = 0x7ffc

	WORD_SIZE = 4
)

// SIZE is the size of the register window.
const SIZE = QC_TABLE_ADDR_HIGH
