// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config describes the configuration of a SD-FEC server process.
package config // import "github.com/go-lpc/sdfec/internal/config"

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/sdfec/fec"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr      = ":8877"
	DefaultMaxAlerts = 5
)

// Config is the configuration of a SD-FEC server.
type Config struct {
	Server  Server   `yaml:"server"`
	DB      DB       `yaml:"db"`
	Alert   Alert    `yaml:"alert"`
	Devices []Device `yaml:"devices"`
}

// Server configures the command server.
type Server struct {
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"` // debug, info, warning or error
}

// Level returns the message stream level of the server.
func (srv Server) Level() log.Level {
	switch srv.LogLevel {
	case "debug":
		return log.LvlDebug
	case "warning":
		return log.LvlWarning
	case "error":
		return log.LvlError
	default:
		return log.LvlInfo
	}
}

// MsgStream returns a message stream named name, writing to w at the
// server log level.
func (srv Server) MsgStream(name string, w io.Writer) log.MsgStream {
	return log.NewMsgStream(name, srv.Level(), w)
}

// DB configures the LDPC code database.
type DB struct {
	DSN string `yaml:"dsn"` // MySQL data source name
}

// Alert configures mail alerts sent when a device needs a reset.
type Alert struct {
	Host string   `yaml:"host"`
	Port int      `yaml:"port"`
	User string   `yaml:"user"`
	Pass string   `yaml:"pass"`
	From string   `yaml:"from"`
	To   []string `yaml:"to"`
	Max  int      `yaml:"max"` // maximum number of alerts per device
}

// Enabled reports whether mail alerts are configured.
func (a Alert) Enabled() bool { return a.Host != "" }

// Device configures one SD-FEC core.
type Device struct {
	Name string `yaml:"name"` // UIO device name, resolved through sysfs
	UIO  string `yaml:"uio"`  // UIO device file, takes precedence over Name
	Size int    `yaml:"size"` // size of the register window

	Code      fec.Code        `yaml:"code"`
	Order     fec.Order       `yaml:"order"`
	Bypass    bool            `yaml:"bypass"`
	DinWidth  fec.AxisWidth   `yaml:"din_width"`
	DinWords  fec.WordInclude `yaml:"din_words"`
	DoutWidth fec.AxisWidth   `yaml:"dout_width"`
	DoutWords fec.WordInclude `yaml:"dout_words"`
	Truncate  bool            `yaml:"truncate"` // truncate out-of-range LDPC fields

	IRQ struct {
		ISR bool `yaml:"isr"`
		ECC bool `yaml:"ecc"`
	} `yaml:"irq"`

	Turbo *fec.TurboParams `yaml:"turbo"`
	LDPC  []LDPCCode       `yaml:"ldpc"`
}

// LDPCCode is a LDPC code to load in a code slot.
// Codes with a name are retrieved from the code database and
// loaded in the slot CodeID.
type LDPCCode struct {
	Name           string `yaml:"name"`
	fec.LDPCParams `yaml:",inline"`
}

// FEC returns the core configuration of the device.
func (dev Device) FEC() fec.Config {
	return fec.Config{
		Code:      dev.Code,
		Order:     dev.Order,
		Bypass:    dev.Bypass,
		DinWidth:  dev.DinWidth,
		DinWords:  dev.DinWords,
		DoutWidth: dev.DoutWidth,
		DoutWords: dev.DoutWords,
	}
}

// Apply configures the device held by h with the interrupt enables,
// turbo parameters and the provided LDPC codes.
func (dev Device) Apply(h *fec.Handle, codes []fec.LDPCParams) error {
	if dev.Order != fec.InvalidOrder {
		err := h.SetOrder(dev.Order)
		if err != nil {
			return fmt.Errorf("config: could not set order: %w", err)
		}
	}

	if dev.Turbo != nil {
		err := h.SetTurbo(*dev.Turbo)
		if err != nil {
			return fmt.Errorf("config: could not set turbo parameters: %w", err)
		}
	}

	for _, code := range codes {
		err := h.AddLDPCCode(code)
		if err != nil {
			return fmt.Errorf("config: could not add LDPC code %d: %w", code.CodeID, err)
		}
	}

	err := h.SetIRQ(dev.IRQ.ISR, dev.IRQ.ECC)
	if err != nil {
		return fmt.Errorf("config: could not set interrupts: %w", err)
	}

	return nil
}

// Load reads, normalizes and validates the configuration file fname.
func Load(fname string) (*Config, error) {
	raw, err := os.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("config: could not read %q: %w", fname, err)
	}

	cfg, err := Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("config: could not load %q: %w", fname, err)
	}
	return cfg, nil
}

// Decode reads, normalizes and validates a configuration from r.
func Decode(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err := dec.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: could not decode configuration: %w", err)
	}

	Normalize(&cfg)

	err = Validate(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize fills in default values.
func Normalize(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Alert.Enabled() {
		if cfg.Alert.Port == 0 {
			cfg.Alert.Port = 587
		}
		if cfg.Alert.Max == 0 {
			cfg.Alert.Max = DefaultMaxAlerts
		}
	}
	for i := range cfg.Devices {
		dev := &cfg.Devices[i]
		if dev.Size == 0 {
			dev.Size = fec.WindowSize
		}
		if dev.DinWidth == 0 {
			dev.DinWidth = fec.Width1x128b
		}
		if dev.DoutWidth == 0 {
			dev.DoutWidth = fec.Width1x128b
		}
	}
}
