// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sdfec holds code to control SD-FEC forward error correction
// accelerators.
//
// The fec package drives the cores through their register window.
// Commands fec-srv, fec-tdaq and fec-ctl expose them over TCP, to a TDAQ
// run control and to an operator shell.
package sdfec // import "github.com/go-lpc/sdfec"

import (
	"runtime/debug"
)

const modPath = "github.com/go-lpc/sdfec"

// Version returns the version of sdfec and its checksum.
// The returned values are only valid in binaries built with module support.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	return versionOf(b)
}

// VersionString returns the version of sdfec in a human readable form.
func VersionString() string {
	return versionString(Version())
}

func versionString(version, sum string) string {
	if version == "" || version == "(devel)" {
		return "(devel)"
	}
	if sum == "" {
		return version
	}
	return version + " (" + sum + ")"
}

func versionOf(b *debug.BuildInfo) (version, sum string) {
	if b == nil {
		return "", ""
	}

	if b.Main.Path == modPath {
		return b.Main.Version, b.Main.Sum
	}

	for _, m := range b.Deps {
		if m.Path != modPath {
			continue
		}
		if r := m.Replace; r != nil {
			switch {
			case r.Version != "" && r.Path != "":
				return r.Path + " " + r.Version, r.Sum
			case r.Version != "":
				return r.Version, r.Sum
			case r.Path != "":
				return r.Path, r.Sum
			}
			return m.Version + "*", ""
		}
		return m.Version, m.Sum
	}
	return "", ""
}
