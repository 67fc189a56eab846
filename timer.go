// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package capscan

import (
	"sync"
	"time"
)

// SoftTimer is a CycleTimer driven by a goroutine, for hosts without a
// hardware pace timer.
//
// Events are scheduled against absolute deadlines so the scan rate does not
// drift, though individual events are subject to scheduler latency.
// If the goroutine falls more than a period behind, the missed periods
// are skipped rather than replayed.
type SoftTimer struct {
	mu   sync.Mutex // Guards the following.
	stop chan struct{}
	done chan struct{}
}

// NewSoftTimer creates a SoftTimer.
func NewSoftTimer() *SoftTimer {
	return &SoftTimer{}
}

// Start starts calling the handler.
func (t *SoftTimer) Start(tm Timing, h CycleHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return ErrAlreadyStarted
	}
	period := tm.Duration(uint32(tm.Period))
	window := tm.Duration(uint32(tm.Window))
	if period <= 0 {
		return ErrPeriod
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(period, window, h, t.stop, t.done)
	return nil
}

// Stop stops the timer and waits for any handler call in progress to return.
func (t *SoftTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop == nil {
		return
	}
	close(t.stop)
	<-t.done
	t.stop = nil
	t.done = nil
}

func (t *SoftTimer) run(period, window time.Duration, h CycleHandler, stop, done chan struct{}) {
	defer close(done)
	tmr := time.NewTimer(time.Hour)
	defer tmr.Stop()
	wait := func(deadline time.Time) bool {
		if !tmr.Stop() {
			select {
			case <-tmr.C:
			default:
			}
		}
		tmr.Reset(time.Until(deadline))
		select {
		case <-tmr.C:
			return true
		case <-stop:
			return false
		}
	}
	base := time.Now()
	h.Wrap()
	for {
		if !wait(base.Add(window)) {
			return
		}
		h.Window()
		if !wait(base.Add(period)) {
			return
		}
		h.Wrap()
		base = base.Add(period)
		if lag := time.Since(base); lag > period {
			base = base.Add(lag - lag%period)
		}
	}
}
