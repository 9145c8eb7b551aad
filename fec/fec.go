// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fec holds types and functions to control a SD-FEC core:
// a forward error correction accelerator for LDPC and Turbo codes.
//
// A Device wraps the memory-mapped register window of one core.
// Commands are issued through an exclusive Handle obtained with
// Device.Open, while hardware faults are handled asynchronously by
// Device.Monitor.
package fec // import "github.com/go-lpc/sdfec/fec"

import (
	"fmt"
	"strings"
)

// Code is the FEC code family a core is configured for.
type Code uint32

const (
	InvalidCode Code = iota
	Turbo
	LDPC
)

func (c Code) String() string {
	switch c {
	case InvalidCode:
		return "invalid"
	case Turbo:
		return "turbo"
	case LDPC:
		return "ldpc"
	}
	return fmt.Sprintf("Code(%d)", uint32(c))
}

func (c Code) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Code) UnmarshalText(p []byte) error {
	switch strings.ToLower(string(p)) {
	case "", "invalid":
		*c = InvalidCode
	case "turbo":
		*c = Turbo
	case "ldpc":
		*c = LDPC
	default:
		return fmt.Errorf("fec: invalid code %q: %w", p, ErrInvalid)
	}
	return nil
}

// Order controls whether output blocks may be reordered by the core.
type Order uint32

const (
	InvalidOrder Order = iota
	MaintainOrder
	OutOfOrder
)

func (o Order) String() string {
	switch o {
	case InvalidOrder:
		return "invalid"
	case MaintainOrder:
		return "maintain"
	case OutOfOrder:
		return "out-of-order"
	}
	return fmt.Sprintf("Order(%d)", uint32(o))
}

func (o Order) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Order) UnmarshalText(p []byte) error {
	switch strings.ToLower(string(p)) {
	case "", "invalid":
		*o = InvalidOrder
	case "maintain", "in-order":
		*o = MaintainOrder
	case "out-of-order", "ooo":
		*o = OutOfOrder
	default:
		return fmt.Errorf("fec: invalid order %q: %w", p, ErrInvalid)
	}
	return nil
}

// AxisWidth is the width of an AXI4-Stream data bus, in units of 128b.
type AxisWidth uint32

const (
	Width1x128b AxisWidth = 1
	Width2x128b AxisWidth = 2
	Width4x128b AxisWidth = 4
)

func (w AxisWidth) String() string {
	switch w {
	case Width1x128b, Width2x128b, Width4x128b:
		return fmt.Sprintf("%dx128b", uint32(w))
	}
	return fmt.Sprintf("AxisWidth(%d)", uint32(w))
}

func (w AxisWidth) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

func (w *AxisWidth) UnmarshalText(p []byte) error {
	switch strings.ToLower(string(p)) {
	case "1", "1x128", "1x128b":
		*w = Width1x128b
	case "2", "2x128", "2x128b":
		*w = Width2x128b
	case "4", "4x128", "4x128b":
		*w = Width4x128b
	default:
		return fmt.Errorf("fec: invalid axis width %q: %w", p, ErrInvalid)
	}
	return nil
}

// field returns the AXIS_WIDTH register encoding of the width.
func (w AxisWidth) field() (uint32, bool) {
	switch w {
	case Width1x128b:
		return 0, true
	case Width2x128b:
		return 1, true
	case Width4x128b:
		return 2, true
	}
	return 0, false
}

// WordInclude describes how the number of words per block is conveyed.
type WordInclude uint32

const (
	FixedValue WordInclude = iota
	InBlock
	PerTransaction
)

func (w WordInclude) String() string {
	switch w {
	case FixedValue:
		return "fixed"
	case InBlock:
		return "in-block"
	case PerTransaction:
		return "per-transaction"
	}
	return fmt.Sprintf("WordInclude(%d)", uint32(w))
}

func (w WordInclude) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

func (w *WordInclude) UnmarshalText(p []byte) error {
	switch strings.ToLower(string(p)) {
	case "", "fixed":
		*w = FixedValue
	case "in-block":
		*w = InBlock
	case "per-transaction":
		*w = PerTransaction
	default:
		return fmt.Errorf("fec: invalid word-include %q: %w", p, ErrInvalid)
	}
	return nil
}

func (w WordInclude) field() (uint32, bool) {
	switch w {
	case FixedValue, InBlock:
		return 0, true
	case PerTransaction:
		return 1, true
	}
	return 0, false
}

// State is the lifecycle state of a core.
type State uint32

const (
	Init State = iota
	Started
	Stopped
	NeedsReset
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case Started:
		return "started"
	case Stopped:
		return "stopped"
	case NeedsReset:
		return "needs-reset"
	}
	return fmt.Sprintf("State(%d)", uint32(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(p []byte) error {
	switch strings.ToLower(string(p)) {
	case "init":
		*s = Init
	case "started":
		*s = Started
	case "stopped":
		*s = Stopped
	case "needs-reset":
		*s = NeedsReset
	default:
		return fmt.Errorf("fec: invalid state %q: %w", p, ErrInvalid)
	}
	return nil
}

// Config is the static configuration of a core.
type Config struct {
	ID        uint32      `json:"id"`
	Code      Code        `json:"code"`
	Order     Order       `json:"order"`
	Bypass    bool        `json:"bypass"`
	DinWidth  AxisWidth   `json:"din_width"`
	DinWords  WordInclude `json:"din_words"`
	DoutWidth AxisWidth   `json:"dout_width"`
	DoutWords WordInclude `json:"dout_words"`
}

func (cfg Config) validate() error {
	switch cfg.Code {
	case InvalidCode, Turbo, LDPC:
	default:
		return fmt.Errorf("fec: invalid code %d: %w", cfg.Code, ErrInvalid)
	}
	switch cfg.Order {
	case InvalidOrder, MaintainOrder, OutOfOrder:
	default:
		return fmt.Errorf("fec: invalid order %d: %w", cfg.Order, ErrInvalid)
	}
	if _, ok := cfg.DinWidth.field(); !ok {
		return fmt.Errorf("fec: invalid din width %d: %w", cfg.DinWidth, ErrInvalid)
	}
	if _, ok := cfg.DoutWidth.field(); !ok {
		return fmt.Errorf("fec: invalid dout width %d: %w", cfg.DoutWidth, ErrInvalid)
	}
	if _, ok := cfg.DinWords.field(); !ok {
		return fmt.Errorf("fec: invalid din words %d: %w", cfg.DinWords, ErrInvalid)
	}
	if _, ok := cfg.DoutWords.field(); !ok {
		return fmt.Errorf("fec: invalid dout words %d: %w", cfg.DoutWords, ErrInvalid)
	}
	return nil
}

// LDPCParams describes one LDPC code loaded in a code slot.
type LDPCParams struct {
	CodeID uint32 `json:"code_id" yaml:"code_id"`

	N             uint32 `json:"n" yaml:"n"`
	K             uint32 `json:"k" yaml:"k"`
	PSize         uint32 `json:"psize" yaml:"psize"`
	NoPacking     uint32 `json:"no_packing" yaml:"no_packing"`
	NM            uint32 `json:"nm" yaml:"nm"`
	NLayers       uint32 `json:"nlayers" yaml:"nlayers"`
	NMQC          uint32 `json:"nmqc" yaml:"nmqc"`
	NormType      uint32 `json:"norm_type" yaml:"norm_type"`
	SpecialQC     uint32 `json:"special_qc" yaml:"special_qc"`
	NoFinalParity uint32 `json:"no_final_parity" yaml:"no_final_parity"`
	MaxSchedule   uint32 `json:"max_schedule" yaml:"max_schedule"`
	SCOff         uint32 `json:"sc_off" yaml:"sc_off"`
	LAOff         uint32 `json:"la_off" yaml:"la_off"`
	QCOff         uint32 `json:"qc_off" yaml:"qc_off"`
	NQC           uint32 `json:"nqc" yaml:"nqc"`

	SCTable []uint32 `json:"sc_table,omitempty" yaml:"sc_table"`
	LATable []uint32 `json:"la_table,omitempty" yaml:"la_table"`
	QCTable []uint32 `json:"qc_table,omitempty" yaml:"qc_table"`
}

// TurboParams holds the Turbo decoder parameters.
type TurboParams struct {
	Scale uint32 `json:"scale" yaml:"scale"`
	Alg   uint32 `json:"alg" yaml:"alg"`
}

// Stats holds the error counters of a core.
type Stats struct {
	ISRErrCount uint32 `json:"isr_err_count"`
	CECCCount   uint32 `json:"cecc_count"`
	UECCCount   uint32 `json:"uecc_count"`
}

// Status describes the current status of a core.
type Status struct {
	ID       uint32 `json:"id"`
	State    State  `json:"state"`
	Activity bool   `json:"activity"`
}
