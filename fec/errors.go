// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fec

import "errors"

// Error kinds reported by commands.
// Returned errors wrap one (or more) of these and can be tested with errors.Is.
var (
	ErrInvalid    = errors.New("fec: invalid argument")
	ErrPermission = errors.New("fec: permission denied")
	ErrIO         = errors.New("fec: i/o failure")
	ErrBusy       = errors.New("fec: device busy")
	ErrFault      = errors.New("fec: bad address")
)
