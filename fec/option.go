// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fec

import (
	"io"
	"os"

	"github.com/go-daq/tdaq/log"
)

type config struct {
	lvl      log.Level
	w        io.Writer
	msg      log.MsgStream
	truncate bool
}

func newConfig() config {
	return config{
		lvl: log.LvlInfo,
		w:   os.Stdout,
	}
}

// Option configures a Device.
type Option func(*config)

// WithLogLevel sets the verbosity of the device message stream.
func WithLogLevel(lvl log.Level) Option {
	return func(cfg *config) {
		cfg.lvl = lvl
	}
}

// WithLogWriter sets where the device message stream is written to.
func WithLogWriter(w io.Writer) Option {
	return func(cfg *config) {
		cfg.w = w
	}
}

// WithMsgStream sets the message stream of the device.
// It takes precedence over WithLogLevel and WithLogWriter.
func WithMsgStream(msg log.MsgStream) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithFieldTruncation configures how LDPC code parameters that do not fit
// in their register field are handled.
// By default, such parameters are rejected.
// With truncation enabled, the offending value is logged and masked to
// the field width.
func WithFieldTruncation(v bool) Option {
	return func(cfg *config) {
		cfg.truncate = v
	}
}
