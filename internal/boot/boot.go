// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package boot brings up the SD-FEC cores described by a configuration.
package boot // import "github.com/go-lpc/sdfec/internal/boot"

import (
	"context"
	"fmt"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/sdfec/codedb"
	"github.com/go-lpc/sdfec/fec"
	"github.com/go-lpc/sdfec/internal/config"
	"github.com/go-lpc/sdfec/internal/mmap"
	"github.com/go-lpc/sdfec/internal/uio"
	"golang.org/x/sync/errgroup"
)

// CodeStore retrieves named LDPC codes.
type CodeStore interface {
	LDPCCode(ctx context.Context, name string) (fec.LDPCParams, error)
}

// Node holds the cores of a configuration, registered in Reg.
type Node struct {
	Reg *fec.Registry

	msg   log.MsgStream
	uios  map[uint32]*uio.Device
	devs  map[uint32]config.Device
	codes map[uint32][]fec.LDPCParams
}

// Open opens the UIO device and maps the register window of every core
// described by cfg.
// Named LDPC codes are retrieved from the code database.
func Open(ctx context.Context, cfg *config.Config, msg log.MsgStream) (*Node, error) {
	var store CodeStore
	if cfg.DB.DSN != "" {
		db, err := codedb.Open(cfg.DB.DSN)
		if err != nil {
			return nil, fmt.Errorf("boot: could not open code db: %w", err)
		}
		defer db.Close()
		store = db
	}

	node := newNode(msg)
	for i, dev := range cfg.Devices {
		err := node.open(ctx, dev, store)
		if err != nil {
			_ = node.Close()
			return nil, fmt.Errorf("boot: could not open device #%d: %w", i, err)
		}
	}
	return node, nil
}

func newNode(msg log.MsgStream) *Node {
	return &Node{
		Reg:   fec.NewRegistry(),
		msg:   msg,
		uios:  make(map[uint32]*uio.Device),
		devs:  make(map[uint32]config.Device),
		codes: make(map[uint32][]fec.LDPCParams),
	}
}

func (node *Node) open(ctx context.Context, cfg config.Device, store CodeStore) error {
	fname := cfg.UIO
	if fname == "" {
		info, err := uio.Lookup(cfg.Name)
		if err != nil {
			return err
		}
		fname = info.Path
	}

	codes, err := Codes(ctx, cfg, store)
	if err != nil {
		return err
	}

	irq, err := uio.Open(fname)
	if err != nil {
		return err
	}

	win, err := mmap.Open(fname, 0, cfg.Size)
	if err != nil {
		_ = irq.Close()
		return err
	}

	dev, err := node.Reg.New(
		win, cfg.FEC(),
		fec.WithMsgStream(node.msg),
		fec.WithFieldTruncation(cfg.Truncate),
	)
	if err != nil {
		_ = win.Close()
		_ = irq.Close()
		return err
	}
	node.msg.Infof("sdfec%d: mapped %q (code=%v)", dev.ID(), fname, cfg.Code)

	node.uios[dev.ID()] = irq
	node.devs[dev.ID()] = cfg
	node.codes[dev.ID()] = codes
	return nil
}

// Codes returns the LDPC codes to load in the core described by cfg.
// Named codes are retrieved from store and loaded in their configured slot.
func Codes(ctx context.Context, cfg config.Device, store CodeStore) ([]fec.LDPCParams, error) {
	codes := make([]fec.LDPCParams, 0, len(cfg.LDPC))
	for _, code := range cfg.LDPC {
		if code.Name == "" {
			codes = append(codes, code.LDPCParams)
			continue
		}
		if store == nil {
			return nil, fmt.Errorf("boot: no code db to retrieve LDPC code %q", code.Name)
		}
		params, err := store.LDPCCode(ctx, code.Name)
		if err != nil {
			return nil, err
		}
		params.CodeID = code.CodeID
		codes = append(codes, params)
	}
	return codes, nil
}

// Setup applies the configured interrupts, turbo parameters and LDPC
// codes to the core held by h.
func (node *Node) Setup(h *fec.Handle) error {
	id := h.Device().ID()
	cfg, ok := node.devs[id]
	if !ok {
		return fmt.Errorf("boot: no configuration for sdfec%d: %w", id, fec.ErrInvalid)
	}
	return cfg.Apply(h, node.codes[id])
}

// Init acquires every core, applies its configuration and releases it.
func (node *Node) Init() error {
	for _, dev := range node.Reg.Devices() {
		err := func() error {
			h, err := dev.Open()
			if err != nil {
				return err
			}
			defer h.Release()
			return node.Setup(h)
		}()
		if err != nil {
			return fmt.Errorf("boot: could not initialize sdfec%d: %w", dev.ID(), err)
		}
	}
	return nil
}

// Monitor forwards the interrupts of every core to its handler until
// ctx is done.
func (node *Node) Monitor(ctx context.Context) error {
	grp, ctx := errgroup.WithContext(ctx)
	for _, dev := range node.Reg.Devices() {
		var (
			dev    = dev
			irq    = node.uios[dev.ID()]
			events = make(chan uint32)
		)
		if irq == nil {
			continue
		}
		grp.Go(func() error {
			err := irq.Listen(ctx, events)
			if err != nil {
				return fmt.Errorf("boot: could not listen to interrupts of sdfec%d: %w", dev.ID(), err)
			}
			return nil
		})
		grp.Go(func() error {
			return dev.Monitor(ctx, events)
		})
	}
	return grp.Wait()
}

// Close closes the UIO devices and the register windows.
func (node *Node) Close() error {
	var err error
	for id, irq := range node.uios {
		e := irq.Close()
		if e != nil && err == nil {
			err = fmt.Errorf("boot: could not close uio of sdfec%d: %w", id, e)
		}
	}
	e := node.Reg.Close()
	if e != nil && err == nil {
		err = e
	}
	return err
}
