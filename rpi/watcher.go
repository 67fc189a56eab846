// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package rpi

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Edge selects the transitions reported by the Watcher.
type Edge string

const (
	EdgeNone    Edge = "none"
	EdgeRising  Edge = "rising"
	EdgeFalling Edge = "falling"
	EdgeBoth    Edge = "both"
)

// EdgeHandler is called with the pin and the time the edge was seen.
type EdgeHandler func(pin *Pin, t time.Time)

type watch struct {
	pin       *Pin
	handler   EdgeHandler
	valueFile *os.File
}

// Watcher reports edges on pins exported through sysfs.
type Watcher struct {
	fd int
	mu sync.Mutex // Guards the following, and sysfs interactions.
	// Map from pin to value fd.
	fds map[int]int
	// Map from value fd to watch.
	watches map[int]*watch
}

var (
	watcherMu      sync.Mutex
	defaultWatcher *Watcher
)

// DefaultWatcher returns the watcher shared by the package, creating it if
// necessary.  It is closed by Close.
func DefaultWatcher() (*Watcher, error) {
	watcherMu.Lock()
	defer watcherMu.Unlock()
	if defaultWatcher == nil {
		w, err := NewWatcher()
		if err != nil {
			return nil, err
		}
		defaultWatcher = w
	}
	return defaultWatcher, nil
}

func closeWatcher() {
	watcherMu.Lock()
	w := defaultWatcher
	defaultWatcher = nil
	watcherMu.Unlock()
	if w != nil {
		w.Close()
	}
}

// NewWatcher creates a Watcher and starts its event loop.
func NewWatcher() (*Watcher, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("unable to create epoll: %w", err)
	}
	w := &Watcher{
		fd:      fd,
		fds:     make(map[int]int),
		watches: make(map[int]*watch),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	var events [MaxGPIOPin]unix.EpollEvent
	for {
		n, err := unix.EpollWait(w.fd, events[:], -1)
		if err != nil {
			if err == unix.EBADF || err == unix.EINVAL {
				// fd closed so exit
				return
			}
			if err == unix.EINTR {
				continue
			}
			panic(fmt.Sprintf("EpollWait error: %v", err))
		}
		now := time.Now()
		ww := make([]*watch, 0, n)
		w.mu.Lock()
		for _, event := range events[:n] {
			if wt, ok := w.watches[int(event.Fd)]; ok {
				ww = append(ww, wt)
			}
		}
		w.mu.Unlock()
		for _, wt := range ww {
			// rearm the sysfs notification
			wt.valueFile.Seek(0, 0)
			var buf [2]byte
			wt.valueFile.Read(buf[:])
			wt.handler(wt.pin, now)
		}
	}
}

// Close stops the watcher and releases all watched pins.
func (w *Watcher) Close() {
	unix.Close(w.fd)
	w.mu.Lock()
	defer w.mu.Unlock()
	for fd, wt := range w.watches {
		wt.valueFile.Close()
		unexport(wt.pin)
		delete(w.watches, fd)
	}
	w.fds = map[int]int{}
}

// RegisterPin watches the pin for the edge.
// The pin can only be registered once.  Subsequent registers,
// without an Unregister, will return an error.
func (w *Watcher) RegisterPin(pin *Pin, edge Edge, handler EdgeHandler) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.fds[pin.pin]; ok {
		return ErrAlreadyWatched
	}
	if err := export(pin); err != nil {
		return err
	}
	if err := setEdge(pin, edge); err != nil {
		return err
	}
	valueFile, err := openValue(pin)
	if err != nil {
		return err
	}
	fd := int(valueFile.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		valueFile.Close()
		return err
	}
	event := unix.EpollEvent{Events: unix.EPOLLPRI | unix.EPOLLET&0xffffffff, Fd: int32(fd)}
	if err := unix.EpollCtl(w.fd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
		valueFile.Close()
		return err
	}
	w.fds[pin.pin] = fd
	w.watches[fd] = &watch{pin: pin, handler: handler, valueFile: valueFile}
	return nil
}

// UnregisterPin removes any watch on the pin.
func (w *Watcher) UnregisterPin(pin *Pin) {
	w.mu.Lock()
	defer w.mu.Unlock()

	fd, ok := w.fds[pin.pin]
	if !ok {
		return
	}
	delete(w.fds, pin.pin)
	unix.EpollCtl(w.fd, unix.EPOLL_CTL_DEL, fd, nil)
	if wt, ok := w.watches[fd]; ok {
		delete(w.watches, fd)
		wt.valueFile.Close()
	}
	unexport(pin)
}

// Wait for the sysfs GPIO files to become writable.
func waitExported(pin *Pin) error {
	path := fmt.Sprintf("/sys/class/gpio/gpio%v/value", pin.pin)
	if err := waitWriteable(path); err != nil {
		return err
	}
	path = fmt.Sprintf("/sys/class/gpio/gpio%v/edge", pin.pin)
	return waitWriteable(path)
}

func waitWriteable(path string) error {
	for try := 0; try <= 10; try++ {
		if unix.Access(path, unix.W_OK) == nil {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", path, ErrExportTimeout)
}

func export(pin *Pin) error {
	file, err := os.OpenFile("/sys/class/gpio/export", os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.WriteString(strconv.Itoa(pin.pin))
	var perr *os.PathError
	if errors.As(err, &perr) && perr.Err == unix.EBUSY {
		return nil // EBUSY -> the pin has already been exported
	}
	if err != nil {
		return err
	}
	// wait for pin to be exported on sysfs - can take > 100ms on older Pis
	return waitExported(pin)
}

func unexport(pin *Pin) error {
	file, err := os.OpenFile("/sys/class/gpio/unexport", os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.WriteString(strconv.Itoa(pin.pin))
	return err
}

func openValue(pin *Pin) (*os.File, error) {
	path := fmt.Sprintf("/sys/class/gpio/gpio%v/value", pin.pin)
	return os.OpenFile(path, os.O_RDONLY, 0)
}

func setEdge(pin *Pin, edge Edge) error {
	path := fmt.Sprintf("/sys/class/gpio/gpio%v/edge", pin.pin)
	file, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.WriteString(string(edge))
	return err
}

var (
	// ErrAlreadyWatched indicates the pin already has a watch.
	ErrAlreadyWatched = errors.New("watch already exists")
	// ErrExportTimeout indicates sysfs did not export the pin in time.
	ErrExportTimeout = errors.New("timeout waiting for export")
)
