// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmap provides memory-mapped register windows.
package mmap // import "github.com/go-lpc/sdfec/internal/mmap"

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

var (
	errClosed = errors.New("mmap: closed")
)

// Handle is a memory-mapped register window.
//
// Aligned 4-byte accesses are performed as single 32-bit loads and stores,
// as required by device registers.
type Handle struct {
	data []byte
}

// Open maps size bytes of the file fname, starting at offset off.
// fname is typically a UIO device (/dev/uioN) or /dev/mem.
func Open(fname string, off int64, size int) (*Handle, error) {
	f, err := os.OpenFile(fname, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not open %q: %w", fname, err)
	}
	defer f.Close()

	data, err := unix.Mmap(
		int(f.Fd()), off, size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED,
	)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not map %q (off=0x%x, size=0x%x): %w", fname, off, size, err)
	}

	return HandleFrom(data), nil
}

// HandleFrom returns a handle over an already mapped region.
// Closing the handle unmaps data.
func HandleFrom(data []byte) *Handle {
	h := &Handle{data: data}
	runtime.SetFinalizer(h, (*Handle).Close)
	return h
}

// Close unmaps the register window.
func (h *Handle) Close() error {
	if h == nil {
		return os.ErrInvalid
	}

	if h.data == nil {
		return nil
	}
	data := h.data
	h.data = nil
	runtime.SetFinalizer(h, nil)

	return unix.Munmap(data)
}

// Len returns the size of the register window.
func (h *Handle) Len() int {
	return len(h.data)
}

func (h *Handle) check(p []byte, off int64, op string) error {
	if h == nil {
		return os.ErrInvalid
	}
	if h.data == nil {
		return errClosed
	}
	if off < 0 || int64(len(h.data)) < off {
		return fmt.Errorf("mmap: invalid %s offset %d", op, off)
	}
	return nil
}

func (h *Handle) word(off int64) *uint32 {
	return (*uint32)(unsafe.Pointer(&h.data[off]))
}

func isWord(p []byte, off int64, n int) bool {
	return len(p) == 4 && off%4 == 0 && off+4 <= int64(n)
}

// ReadAt implements the io.ReaderAt interface.
func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	err := h.check(p, off, "ReadAt")
	if err != nil {
		return 0, err
	}

	if isWord(p, off, len(h.data)) {
		binary.LittleEndian.PutUint32(p, atomic.LoadUint32(h.word(off)))
		return 4, nil
	}

	n := copy(p, h.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements the io.WriterAt interface.
func (h *Handle) WriteAt(p []byte, off int64) (int, error) {
	err := h.check(p, off, "WriteAt")
	if err != nil {
		return 0, err
	}

	if isWord(p, off, len(h.data)) {
		atomic.StoreUint32(h.word(off), binary.LittleEndian.Uint32(p))
		return 4, nil
	}

	n := copy(h.data[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

var (
	_ io.ReaderAt = (*Handle)(nil)
	_ io.WriterAt = (*Handle)(nil)
	_ io.Closer   = (*Handle)(nil)
)
