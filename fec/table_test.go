// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fec

import (
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/go-lpc/sdfec/internal/regs"
)

func seq(n int, v0 uint32) []uint32 {
	o := make([]uint32, n)
	for i := range o {
		o[i] = v0 + uint32(i)
	}
	return o
}

func TestLDPCCodeRoundTrip(t *testing.T) {
	for _, code := range []LDPCParams{
		{
			CodeID: 0,
			N:      64800, K: 32400, PSize: 360, NM: 90,
			NLayers: 4, NMQC: 12, NormType: 1, MaxSchedule: 0,
			SCOff: 0, LAOff: 0, QCOff: 0,
			NQC:     6,
			SCTable: seq(4, 0x10),
			LATable: seq(4, 0x20),
			QCTable: seq(6, 0x30),
		},
		{
			CodeID: 31,
			N:      0xffff, K: 0x7fff, PSize: 0x1ff, NoPacking: 1, NM: 0x3ff,
			NLayers: 3, NMQC: 0x7ff, NormType: 1, SpecialQC: 1, NoFinalParity: 1, MaxSchedule: 3,
			SCOff: 252, LAOff: 200, QCOff: 2040,
			NQC:     31,
			SCTable: seq(3, 0xa0),
			LATable: seq(3, 0xb0),
			QCTable: seq(31, 0xc0),
		},
	} {
		t.Run("", func(t *testing.T) {
			_, _, h := newTestDevice(t, newTestConfig(LDPC))

			err := h.AddLDPCCode(code)
			if err != nil {
				t.Fatalf("could not add code: %+v", err)
			}

			got, err := h.LDPCCode(code.CodeID, code.NQC)
			if err != nil {
				t.Fatalf("could not read back code: %+v", err)
			}

			if want := code; !reflect.DeepEqual(got, want) {
				t.Fatalf("invalid round-trip:\ngot= %+v\nwant=%+v", got, want)
			}
		})
	}
}

func TestLDPCCodeLayout(t *testing.T) {
	_, bank, h := newTestDevice(t, newTestConfig(LDPC))

	code := LDPCParams{
		CodeID:  2,
		N:       8, K: 4,
		NLayers: 2, SCOff: 5, LAOff: 3, QCOff: 1, NQC: 2,
		SCTable: []uint32{0xa, 0xb},
		LATable: []uint32{0xc, 0xd},
		QCTable: []uint32{0xe, 0xf},
	}
	err := h.AddLDPCCode(code)
	if err != nil {
		t.Fatalf("could not add code: %+v", err)
	}

	for _, tc := range []struct {
		addr int64
		want uint32
	}{
		{regs.REG0_ADDR_BASE + 2*regs.SLOT_JUMP, 4<<16 | 8},
		{regs.REG2_ADDR_BASE + 2*regs.SLOT_JUMP, 2},
		{regs.REG3_ADDR_BASE + 2*regs.SLOT_JUMP, 1<<16 | 3<<8 | 5},
		{regs.SC_TABLE_ADDR_BASE + 5*4, 0xa},
		{regs.SC_TABLE_ADDR_BASE + 6*4, 0xb},
		{regs.LA_TABLE_ADDR_BASE + 12*4, 0xc},
		{regs.LA_TABLE_ADDR_BASE + 13*4, 0xd},
		{regs.QC_TABLE_ADDR_BASE + 4*4, 0xe},
		{regs.QC_TABLE_ADDR_BASE + 5*4, 0xf},
	} {
		if got := bank.Load(tc.addr); got != tc.want {
			t.Fatalf("invalid value at 0x%x: got=0x%x, want=0x%x", tc.addr, got, tc.want)
		}
	}
}

func TestLDPCCodeOutOfRange(t *testing.T) {
	t.Run("slot", func(t *testing.T) {
		_, bank, h := newTestDevice(t, newTestConfig(LDPC))
		bank.ResetLog()

		err := h.AddLDPCCode(LDPCParams{CodeID: 32, N: 1})
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrInvalid)
		}
		if got := bank.Writes(); len(got) != 0 {
			t.Fatalf("invalid writes: %+v", got)
		}

		_, err = h.LDPCCode(32, 0)
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrInvalid)
		}
	})

	t.Run("sc-table", func(t *testing.T) {
		_, bank, h := newTestDevice(t, newTestConfig(LDPC))

		prev := LDPCParams{
			NLayers: 5, SCOff: 250,
			SCTable: seq(5, 1), LATable: seq(5, 1),
		}
		err := h.AddLDPCCode(prev)
		if err != nil {
			t.Fatalf("could not add code: %+v", err)
		}

		err = h.AddLDPCCode(LDPCParams{
			CodeID:  1,
			NLayers: 10, SCOff: 250,
			SCTable: seq(10, 100), LATable: seq(10, 100),
		})
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrInvalid)
		}

		for i := 0; i < 5; i++ {
			addr := int64(regs.SC_TABLE_ADDR_BASE + (250+i)*4)
			if got, want := bank.Load(addr), uint32(1+i); got != want {
				t.Fatalf("SC table modified at %d: got=%d, want=%d", 250+i, got, want)
			}
		}

		// code registers were written before the table overflow was detected.
		if got, want := bank.Load(regs.REG2_ADDR_BASE+1*regs.SLOT_JUMP), uint32(10); got != want {
			t.Fatalf("invalid reg2: got=%d, want=%d", got, want)
		}
	})

	t.Run("qc-table", func(t *testing.T) {
		_, _, h := newTestDevice(t, newTestConfig(LDPC))

		err := h.AddLDPCCode(LDPCParams{
			QCOff: 2047, NQC: 4,
			QCTable: seq(4, 0),
		})
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrInvalid)
		}
	})

	t.Run("short-table", func(t *testing.T) {
		_, bank, h := newTestDevice(t, newTestConfig(LDPC))
		bank.ResetLog()

		err := h.AddLDPCCode(LDPCParams{
			NLayers: 4,
			SCTable: seq(3, 0), LATable: seq(4, 0),
		})
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrInvalid)
		}
		if got := bank.Writes(); len(got) != 0 {
			t.Fatalf("invalid writes: %+v", got)
		}
	})
}

func TestLDPCCodeIOFailure(t *testing.T) {
	_, bank, h := newTestDevice(t, newTestConfig(LDPC))

	bank.Fail(regs.QC_TABLE_ADDR_BASE+4, io.ErrUnexpectedEOF)

	err := h.AddLDPCCode(LDPCParams{
		NQC:     4,
		QCTable: seq(4, 1),
	})
	if !errors.Is(err, ErrIO) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrIO)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, io.ErrUnexpectedEOF)
	}

	// no rollback: the first QC entry was written.
	if got, want := bank.Load(regs.QC_TABLE_ADDR_BASE), uint32(1); got != want {
		t.Fatalf("invalid QC[0]: got=%d, want=%d", got, want)
	}

	// sticky error was flushed: device is usable again.
	bank.Fail(regs.QC_TABLE_ADDR_BASE+4, nil)
	err = h.SetOrder(OutOfOrder)
	if err != nil {
		t.Fatalf("could not set order: %+v", err)
	}
}

func TestLDPCCodeVariant(t *testing.T) {
	t.Run("turbo-device", func(t *testing.T) {
		_, bank, h := newTestDevice(t, newTestConfig(Turbo))
		bank.ResetLog()

		err := h.AddLDPCCode(LDPCParams{N: 1})
		if !errors.Is(err, ErrIO) || !errors.Is(err, ErrPermission) {
			t.Fatalf("invalid error: got=%+v", err)
		}
		if got := bank.Writes(); len(got) != 0 {
			t.Fatalf("invalid writes: %+v", got)
		}

		_, err = h.LDPCCode(0, 0)
		if !errors.Is(err, ErrIO) {
			t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrIO)
		}
	})

	t.Run("adopt", func(t *testing.T) {
		_, bank, h := newTestDevice(t, newTestConfig(InvalidCode))

		err := h.AddLDPCCode(LDPCParams{N: 1})
		if err != nil {
			t.Fatalf("could not add code: %+v", err)
		}

		cfg, err := h.Config()
		if err != nil {
			t.Fatalf("could not get config: %+v", err)
		}
		if got, want := cfg.Code, LDPC; got != want {
			t.Fatalf("invalid code: got=%v, want=%v", got, want)
		}
		if got, want := bank.Load(regs.FEC_CODE), uint32(1); got != want {
			t.Fatalf("invalid fec-code register: got=%d, want=%d", got, want)
		}

		err = h.SetTurbo(TurboParams{Scale: 1})
		if !errors.Is(err, ErrIO) {
			t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrIO)
		}
	})
}
