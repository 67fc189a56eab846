// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package rpi

import (
	"bytes"
	"errors"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Chipset identifies the GPIO controller.
type Chipset int

const (
	// BCM2835 covers the BCM2835, BCM2836 and BCM2837 (Pi 1 to Pi 3).
	BCM2835 Chipset = iota
	// BCM2711 is the Pi 4.
	BCM2711
)

const memLength = 4096

// Arrays for 8 / 32 bit access to memory and a semaphore for write locking
var (
	// The memlock covers read/modify/write access to the mem block.
	// Individual reads and writes can skip the lock on the assumption that
	// concurrent register writes are atomic. e.g. Read, Write and Mode.
	memlock sync.Mutex
	mem     []uint32
	mem8    []uint8
	chipset Chipset
)

// Open and memory map GPIO memory range from /dev/gpiomem .
func Open() error {
	memlock.Lock()
	defer memlock.Unlock()
	if len(mem) != 0 {
		return ErrAlreadyOpen
	}
	file, err := os.OpenFile("/dev/gpiomem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return err
	}
	defer file.Close()

	mem8, err = unix.Mmap(
		int(file.Fd()),
		0,
		memLength,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED)
	if err != nil {
		return err
	}
	// 32 bit view of the mapped registers
	mem = unsafe.Slice((*uint32)(unsafe.Pointer(&mem8[0])), len(mem8)/4)
	chipset = detectChip()
	return nil
}

// Close removes the edge watches and unmaps GPIO memory.
func Close() error {
	closeWatcher()
	memlock.Lock()
	defer memlock.Unlock()
	if len(mem) == 0 {
		return nil
	}
	mem = nil
	err := unix.Munmap(mem8)
	mem8 = nil
	return err
}

// Chip returns the chipset detected by Open.
func Chip() Chipset {
	return chipset
}

func detectChip() Chipset {
	c, err := os.ReadFile("/proc/device-tree/compatible")
	if err == nil && bytes.Contains(c, []byte("bcm2711")) {
		return BCM2711
	}
	return BCM2835
}

var (
	// ErrAlreadyOpen indicates the mem is already open.
	ErrAlreadyOpen = errors.New("already open")
	// ErrNotOpen indicates the mem has not been opened.
	ErrNotOpen = errors.New("not open")
	// ErrInvalidPin indicates a pin number is out of range.
	ErrInvalidPin = errors.New("invalid pin")
)
