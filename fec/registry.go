// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fec

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Registry keeps track of the SD-FEC cores managed by a process and
// assigns their identifiers.
type Registry struct {
	mu   sync.RWMutex
	next uint32
	devs map[uint32]*Device
	wins map[uint32]Window
}

// NewRegistry returns a new, empty registry.
func NewRegistry() *Registry {
	return &Registry{
		devs: make(map[uint32]*Device),
		wins: make(map[uint32]Window),
	}
}

// New creates a new device from the register window win and registers it.
// The device identifier in cfg is overridden by the one assigned by the
// registry.
// If win implements io.Closer, it is closed when the registry is closed.
func (reg *Registry) New(win Window, cfg Config, opts ...Option) (*Device, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	cfg.ID = reg.next
	dev, err := New(win, cfg, opts...)
	if err != nil {
		return nil, err
	}
	reg.next++
	reg.devs[cfg.ID] = dev
	reg.wins[cfg.ID] = win

	return dev, nil
}

// Device returns the device with the provided identifier.
func (reg *Registry) Device(id uint32) (*Device, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	dev, ok := reg.devs[id]
	if !ok {
		return nil, fmt.Errorf("fec: no sdfec%d: %w", id, ErrInvalid)
	}
	return dev, nil
}

// Devices returns all registered devices, sorted by identifier.
func (reg *Registry) Devices() []*Device {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	devs := make([]*Device, 0, len(reg.devs))
	for _, dev := range reg.devs {
		devs = append(devs, dev)
	}
	sort.Slice(devs, func(i, j int) bool {
		return devs[i].cfg.ID < devs[j].cfg.ID
	})
	return devs
}

// Len returns the number of registered devices.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.devs)
}

// Close unregisters all devices and closes their register windows.
func (reg *Registry) Close() error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	var grp errgroup.Group
	for id, win := range reg.wins {
		id := id
		c, ok := win.(io.Closer)
		if !ok {
			continue
		}
		grp.Go(func() error {
			err := c.Close()
			if err != nil {
				return fmt.Errorf("fec: could not close register window of sdfec%d: %w", id, err)
			}
			return nil
		})
	}
	err := grp.Wait()

	reg.devs = make(map[uint32]*Device)
	reg.wins = make(map[uint32]Window)
	return err
}
