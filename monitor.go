// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package capscan

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"
)

const (
	defaultDiagPeriod = 250 * time.Millisecond
	defaultHistBins   = 24
	// log2(max_value/bins), where a good max_value is 2*threshold.
	defaultHistShift = 7
)

// Accumulator tracks the extremes of the raw values over a reporting period.
//
// The pressed reference is the set of dead keys that are not cal keys,
// and the unpressed reference is the set of cal keys.
type Accumulator struct {
	PressedMin   uint16
	PressedMax   uint16
	UnpressedMin uint16
	UnpressedMax uint16
	Min          uint16
	Max          uint16
	// number of values folded into each reference
	Pressed   uint32
	Unpressed uint32
}

// Reset returns the accumulator to its no data state.
func (a *Accumulator) Reset() {
	*a = Accumulator{
		PressedMin:   NoEdgeHigh,
		UnpressedMin: NoEdgeHigh,
		Min:          NoEdgeHigh,
	}
}

func (a *Accumulator) fold(v uint16, dead, cal bool) {
	if dead {
		if cal {
			a.Unpressed++
			if v < a.UnpressedMin {
				a.UnpressedMin = v
			}
			if v > a.UnpressedMax {
				a.UnpressedMax = v
			}
		} else {
			a.Pressed++
			if v < a.PressedMin {
				a.PressedMin = v
			}
			if v > a.PressedMax {
				a.PressedMax = v
			}
		}
	}
	if v < a.Min {
		a.Min = v
	}
	if v > a.Max {
		a.Max = v
	}
}

// Monitor checks that the threshold separates the pressed and unpressed
// references and periodically writes a histogram and summary of the raw
// values to its sink.
type Monitor struct {
	out       io.Writer
	period    time.Duration
	now       func() time.Time
	last      time.Time
	polarity  Polarity
	threshold uint16
	timing    Timing
	shift     uint
	bins      []uint16
	acc       Accumulator
	timeouts  int
	line      bytes.Buffer
}

func newMonitor(cfg Config, t Timing, o *options) *Monitor {
	m := &Monitor{
		out:       o.diag,
		period:    o.diagPeriod,
		now:       o.now,
		polarity:  cfg.Polarity,
		threshold: cfg.Threshold,
		timing:    t,
		shift:     o.histShift,
		bins:      make([]uint16, o.histBins),
	}
	m.last = m.now()
	m.acc.Reset()
	return m
}

// Accumulator returns the extremes collected since the last report.
func (m *Monitor) Accumulator() Accumulator {
	return m.acc
}

// Margin returns the gap between the pressed and unpressed references on
// their expected sides of the threshold.
// A margin of zero or less indicates the threshold no longer separates them.
// Returns false if either reference has no values in the current period.
func (m *Monitor) Margin() (int, bool) {
	return margin(&m.acc, m.polarity)
}

func margin(a *Accumulator, p Polarity) (int, bool) {
	if a.Pressed == 0 || a.Unpressed == 0 {
		return 0, false
	}
	if p == ActiveHigh {
		return int(a.PressedMin) - int(a.UnpressedMax), true
	}
	return int(a.UnpressedMin) - int(a.PressedMax), true
}

func (m *Monitor) timeout() {
	m.timeouts++
}

// sweep closes the reporting period, reporting the sweep if there is a
// sink, once the period has elapsed.
func (m *Monitor) sweep(grid []uint16) {
	now := m.now()
	if now.Sub(m.last) < m.period {
		return
	}
	m.last = now
	if m.out != nil {
		m.report(grid)
	}
	m.acc.Reset()
	m.timeouts = 0
}

// report writes the histogram of the grid and the summary of the
// accumulator to the sink.
func (m *Monitor) report(grid []uint16) {
	for i := range m.bins {
		m.bins[i] = 0
	}
	last := len(m.bins) - 1
	for _, v := range grid {
		b := int(v >> m.shift)
		if b > last {
			b = last
		}
		if m.bins[b] < 0xffff {
			m.bins[b]++
		}
	}
	tb := int(m.threshold >> m.shift)
	l := &m.line
	l.Reset()
	l.WriteByte('[')
	for i, count := range m.bins {
		var c byte
		switch {
		case i == tb && count == 0:
			c = '|'
		case i == tb:
			c = 'X'
		case count == 0:
			c = ' '
		case count < 5:
			c = '.'
		case count < 20:
			c = 'o'
		default:
			c = 'O'
		}
		l.WriteByte(c)
	}
	l.WriteString("]\n")

	a := &m.acc
	lowName, lowEdge, highEdge, highName := "P", a.PressedMax, a.UnpressedMin, "U"
	if m.polarity == ActiveHigh {
		lowName, lowEdge, highEdge, highName = "U", a.UnpressedMax, a.PressedMin, "P"
	}
	mtext := "n/a"
	if mg, ok := margin(a, m.polarity); ok {
		mtext = strconv.Itoa(mg)
		if mg <= 0 {
			mtext += " FAIL"
		}
	}
	fmt.Fprintf(l, " %d < %s < %d < %d < %s < %d << %d  m=%s %d",
		a.Min, lowName, lowEdge, highEdge, highName, a.Max, m.timing.Window, mtext, m.timing.Frequency)
	if m.timeouts > 0 {
		fmt.Fprintf(l, " t=%d", m.timeouts)
	}
	l.WriteByte('\n')
	m.out.Write(l.Bytes())
}
