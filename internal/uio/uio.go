// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package uio provides access to Linux userspace I/O devices:
// interrupt notifications and device discovery through sysfs.
package uio // import "github.com/go-lpc/sdfec/internal/uio"

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

var (
	sysfs = "/sys/class/uio"
	devfs = "/dev"

	// pollPeriod bounds how long Listen waits for an interrupt before
	// checking for cancellation.
	pollPeriod = 100 * time.Millisecond
)

// Device is an open UIO device.
type Device struct {
	f *os.File
}

// Open opens the UIO device fname (/dev/uioN).
func Open(fname string) (*Device, error) {
	f, err := os.OpenFile(fname, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("uio: could not open %q: %w", fname, err)
	}
	return &Device{f: f}, nil
}

// Close closes the device.
func (dev *Device) Close() error {
	return dev.f.Close()
}

// Enable unmasks the interrupt line of the device.
func (dev *Device) Enable() error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], 1)
	_, err := dev.f.Write(buf[:])
	if err != nil {
		return fmt.Errorf("uio: could not enable interrupt of %q: %w", dev.f.Name(), err)
	}
	return nil
}

// Wait waits at most timeout for an interrupt.
// It returns the total interrupt count and whether an interrupt was received.
func (dev *Device) Wait(timeout time.Duration) (uint32, bool, error) {
	fds := []unix.PollFd{{Fd: int32(dev.f.Fd()), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	switch {
	case errors.Is(err, unix.EINTR):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("uio: could not poll %q: %w", dev.f.Name(), err)
	case n == 0:
		return 0, false, nil
	}

	var buf [4]byte
	_, err = dev.f.Read(buf[:])
	if err != nil {
		return 0, false, fmt.Errorf("uio: could not read interrupt count of %q: %w", dev.f.Name(), err)
	}
	return binary.LittleEndian.Uint32(buf[:]), true, nil
}

// Listen forwards interrupt counts to events until ctx is done.
// The interrupt is re-enabled before each wait.
// events is closed when Listen returns.
func (dev *Device) Listen(ctx context.Context, events chan<- uint32) error {
	defer close(events)

	for {
		err := dev.Enable()
		if err != nil {
			return err
		}

	wait:
		for {
			if ctx.Err() != nil {
				return nil
			}
			cnt, ok, err := dev.Wait(pollPeriod)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			select {
			case events <- cnt:
			case <-ctx.Done():
				return nil
			}
			break wait
		}
	}
}

// Info describes a UIO device registered in sysfs.
type Info struct {
	Path string // device file, /dev/uioN
	Name string // name of the device (from the device tree)
	Size int    // size of the first memory map
}

// Lookup returns the UIO device whose name is name.
func Lookup(name string) (Info, error) {
	devs, err := List()
	if err != nil {
		return Info{}, err
	}
	for _, dev := range devs {
		if dev.Name == name {
			return dev, nil
		}
	}
	return Info{}, fmt.Errorf("uio: no device named %q: %w", name, os.ErrNotExist)
}

// List returns all the UIO devices registered in sysfs.
func List() ([]Info, error) {
	dirs, err := os.ReadDir(sysfs)
	if err != nil {
		return nil, fmt.Errorf("uio: could not list devices: %w", err)
	}

	var devs []Info
	for _, dir := range dirs {
		if !strings.HasPrefix(dir.Name(), "uio") {
			continue
		}
		info, err := stat(dir.Name())
		if err != nil {
			return nil, err
		}
		devs = append(devs, info)
	}
	return devs, nil
}

func stat(uio string) (Info, error) {
	info := Info{Path: filepath.Join(devfs, uio)}

	raw, err := os.ReadFile(filepath.Join(sysfs, uio, "name"))
	if err != nil {
		return info, fmt.Errorf("uio: could not read name of %s: %w", uio, err)
	}
	info.Name = strings.TrimSpace(string(raw))

	raw, err = os.ReadFile(filepath.Join(sysfs, uio, "maps", "map0", "size"))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return info, nil
	case err != nil:
		return info, fmt.Errorf("uio: could not read map size of %s: %w", uio, err)
	}
	size, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 0, 64)
	if err != nil {
		return info, fmt.Errorf("uio: could not parse map size of %s: %w", uio, err)
	}
	info.Size = int(size)

	return info, nil
}
