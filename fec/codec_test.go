// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fec

import (
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/sdfec/internal/regs"
)

func TestLDPCCodec(t *testing.T) {
	p := packer{msg: log.NewMsgStream("test", log.LvlError, io.Discard)}

	for _, tc := range []struct {
		name string
		code LDPCParams
		want ldpcRegs
	}{
		{
			name: "zero",
		},
		{
			name: "dvb-s2",
			code: LDPCParams{N: 64800, K: 32400, PSize: 360, NM: 90, NLayers: 90, NMQC: 1000},
			want: ldpcRegs{
				32400<<16 | 64800,
				90<<11 | 360,
				1000<<9 | 90,
				0,
			},
		},
		{
			name: "max",
			code: LDPCParams{
				N: 0xffff, K: 0x7fff,
				PSize: 0x1ff, NoPacking: 1, NM: 0x3ff,
				NLayers: 0x1ff, NMQC: 0x7ff, NormType: 1, SpecialQC: 1, NoFinalParity: 1, MaxSchedule: 3,
				SCOff: 0xff, LAOff: 0xff, QCOff: 0xffff,
			},
			want: ldpcRegs{
				0x7fffffff,
				0x001ffdff,
				0x01ffffff,
				0xffffffff,
			},
		},
		{
			name: "flags",
			code: LDPCParams{NoPacking: 1, NormType: 1, MaxSchedule: 2, LAOff: 3},
			want: ldpcRegs{
				0,
				1 << 10,
				1<<20 | 2<<23,
				3 << 8,
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ws, err := p.encodeLDPC(&tc.code)
			if err != nil {
				t.Fatalf("could not encode: %+v", err)
			}
			if got, want := ws, tc.want; got != want {
				t.Fatalf("invalid registers:\ngot= %#x\nwant=%#x", got, want)
			}

			var got LDPCParams
			decodeLDPC(ws, &got)
			if want := tc.code; !reflect.DeepEqual(got, want) {
				t.Fatalf("invalid round-trip:\ngot= %+v\nwant=%+v", got, want)
			}
		})
	}
}

func TestLDPCCodecRange(t *testing.T) {
	strict := packer{msg: log.NewMsgStream("test", log.LvlError, io.Discard)}
	trunc := packer{msg: strict.msg, truncate: true}

	for _, tc := range []struct {
		name string
		code LDPCParams
		want ldpcRegs // truncated encoding
	}{
		{"n", LDPCParams{N: 0x10000}, ldpcRegs{0, 0, 0, 0}},
		{"k", LDPCParams{K: 0x8001}, ldpcRegs{1 << 16, 0, 0, 0}},
		{"psize", LDPCParams{PSize: 0x200}, ldpcRegs{0, 0, 0, 0}},
		{"no_packing", LDPCParams{NoPacking: 2}, ldpcRegs{0, 0, 0, 0}},
		{"nm", LDPCParams{NM: 0x401}, ldpcRegs{0, 1 << 11, 0, 0}},
		{"nlayers", LDPCParams{NLayers: 0x201}, ldpcRegs{0, 0, 1, 0}},
		{"nmqc", LDPCParams{NMQC: 0x800}, ldpcRegs{0, 0, 0, 0}},
		{"norm_type", LDPCParams{NormType: 3}, ldpcRegs{0, 0, 1 << 20, 0}},
		{"special_qc", LDPCParams{SpecialQC: 2}, ldpcRegs{0, 0, 0, 0}},
		{"no_final_parity", LDPCParams{NoFinalParity: 2}, ldpcRegs{0, 0, 0, 0}},
		{"max_schedule", LDPCParams{MaxSchedule: 4}, ldpcRegs{0, 0, 0, 0}},
		{"sc_off", LDPCParams{SCOff: 0x100}, ldpcRegs{0, 0, 0, 0}},
		{"la_off", LDPCParams{LAOff: 0x101}, ldpcRegs{0, 0, 0, 1 << 8}},
		{"qc_off", LDPCParams{QCOff: 0x10000}, ldpcRegs{0, 0, 0, 0}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := strict.encodeLDPC(&tc.code)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrInvalid)
			}

			ws, err := trunc.encodeLDPC(&tc.code)
			if err != nil {
				t.Fatalf("could not encode with truncation: %+v", err)
			}
			if got, want := ws, tc.want; got != want {
				t.Fatalf("invalid truncated registers:\ngot= %#x\nwant=%#x", got, want)
			}
		})
	}
}

func TestTurboCodec(t *testing.T) {
	p := packer{msg: log.NewMsgStream("test", log.LvlError, io.Discard)}

	for _, tc := range []struct {
		turbo TurboParams
		word  uint32
		err   error
	}{
		{TurboParams{}, 0, nil},
		{TurboParams{Alg: 1}, 0x1, nil},
		{TurboParams{Scale: 0xf}, 0xf00, nil},
		{TurboParams{Scale: 0xa, Alg: 1}, 0xa01, nil},
		{TurboParams{Scale: 0x10}, 0, ErrInvalid},
		{TurboParams{Alg: 2}, 0, ErrInvalid},
	} {
		t.Run("", func(t *testing.T) {
			word, err := p.encodeTurbo(tc.turbo)
			if !errors.Is(err, tc.err) {
				t.Fatalf("invalid error: got=%+v, want=%+v", err, tc.err)
			}
			if tc.err != nil {
				return
			}
			if got, want := word, tc.word; got != want {
				t.Fatalf("invalid turbo word: got=0x%x, want=0x%x", got, want)
			}
			if got, want := decodeTurbo(word), tc.turbo; got != want {
				t.Fatalf("invalid round-trip: got=%+v, want=%+v", got, want)
			}
		})
	}
}

func TestSlotAddr(t *testing.T) {
	for i, reg := range slotRegs {
		addr, err := slotAddr(reg.base, reg.high, 0)
		if err != nil {
			t.Fatalf("reg%d: could not get slot 0: %+v", i, err)
		}
		if got, want := addr, reg.base; got != want {
			t.Fatalf("reg%d: invalid slot 0 addr: got=0x%x, want=0x%x", i, got, want)
		}

		addr, err = slotAddr(reg.base, reg.high, 31)
		if err != nil {
			t.Fatalf("reg%d: could not get slot 31: %+v", i, err)
		}
		if got, want := addr, reg.base+31*regs.SLOT_JUMP; got != want {
			t.Fatalf("reg%d: invalid slot 31 addr: got=0x%x, want=0x%x", i, got, want)
		}

		_, err = slotAddr(reg.base, reg.high, 32)
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("reg%d: invalid slot 32 error: got=%+v, want=%+v", i, err, ErrInvalid)
		}
	}
}

func TestTableCheck(t *testing.T) {
	for _, tc := range []struct {
		tbl table
		off uint32
		n   int
		ok  bool
	}{
		{scTable, 0, 255, true},
		{scTable, 0, 256, false},
		{scTable, 250, 5, true},
		{scTable, 250, 10, false},
		{laTable, 0, 1023, true},
		{laTable, 1020, 4, false},
		{qcTable, 0, 8191, true},
		{qcTable, 8190, 2, false},
		{qcTable, 4 * 0xffff, 1, false},
	} {
		t.Run(tc.tbl.name, func(t *testing.T) {
			err := tc.tbl.check(tc.off, tc.n)
			switch {
			case tc.ok && err != nil:
				t.Fatalf("unexpected error: %+v", err)
			case !tc.ok && !errors.Is(err, ErrInvalid):
				t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrInvalid)
			}
		})
	}
}
