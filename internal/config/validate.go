// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"

	"github.com/go-lpc/sdfec/fec"
)

// Validate checks the configuration is consistent.
// It does not modify the configuration.
func Validate(cfg *Config) error {
	switch cfg.Server.LogLevel {
	case "debug", "info", "warning", "error":
	default:
		return fmt.Errorf("config: invalid log level %q", cfg.Server.LogLevel)
	}

	if cfg.Alert.Enabled() {
		if cfg.Alert.From == "" {
			return fmt.Errorf("config: alert host %q without sender", cfg.Alert.Host)
		}
		if len(cfg.Alert.To) == 0 {
			return fmt.Errorf("config: alert host %q without recipients", cfg.Alert.Host)
		}
		if cfg.Alert.Max < 0 {
			return fmt.Errorf("config: invalid maximum number of alerts %d", cfg.Alert.Max)
		}
	}

	if len(cfg.Devices) == 0 {
		return fmt.Errorf("config: no device")
	}

	owner := make(map[string]int)
	for i, dev := range cfg.Devices {
		key := dev.UIO
		if key == "" {
			key = dev.Name
		}
		if key == "" {
			return fmt.Errorf("config: device #%d: no uio device nor name", i)
		}
		if prev, dup := owner[key]; dup {
			return fmt.Errorf("config: device #%d: %q already used by device #%d", i, key, prev)
		}
		owner[key] = i

		err := validateDevice(cfg, dev)
		if err != nil {
			return fmt.Errorf("config: device #%d (%s): %w", i, key, err)
		}
	}

	return nil
}

func validateDevice(cfg *Config, dev Device) error {
	if dev.Size < fec.WindowSize {
		return fmt.Errorf("register window too small (size=0x%x, min=0x%x)", dev.Size, fec.WindowSize)
	}

	switch {
	case dev.Code == fec.Turbo && len(dev.LDPC) != 0:
		return fmt.Errorf("LDPC codes on a turbo device")
	case dev.Code == fec.LDPC && dev.Turbo != nil:
		return fmt.Errorf("turbo parameters on a LDPC device")
	case dev.Turbo != nil && len(dev.LDPC) != 0:
		return fmt.Errorf("both turbo parameters and LDPC codes")
	}

	if dev.Turbo != nil {
		if dev.Turbo.Scale > 0xf || dev.Turbo.Alg > 1 {
			return fmt.Errorf("invalid turbo parameters (scale=%d, alg=%d)", dev.Turbo.Scale, dev.Turbo.Alg)
		}
	}

	slots := make(map[uint32]int)
	for i, code := range dev.LDPC {
		if code.CodeID >= 32 {
			return fmt.Errorf("LDPC code #%d: invalid code slot %d", i, code.CodeID)
		}
		if prev, dup := slots[code.CodeID]; dup {
			return fmt.Errorf("LDPC code #%d: code slot %d already used by code #%d", i, code.CodeID, prev)
		}
		slots[code.CodeID] = i
		if code.Name != "" && cfg.DB.DSN == "" {
			return fmt.Errorf("LDPC code #%d: code %q requires a code database", i, code.Name)
		}
	}

	return nil
}
