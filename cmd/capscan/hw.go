// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"errors"
	"fmt"
	"math/bits"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/warthog618/capscan"
	"github.com/warthog618/capscan/cdev"
	"github.com/warthog618/capscan/rpi"
	"github.com/warthog618/capscan/shiftreg"
	"github.com/warthog618/capscan/sim"
	"github.com/warthog618/config"
)

// rig is the hardware a Scanner runs on, and how to release it.
type rig struct {
	hw      capscan.Hardware
	board   *sim.Board
	closers []func()
}

func (r *rig) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// driveLines returns the number of physical lines needed to drive the
// columns.
func driveLines(c capscan.Config) int {
	switch {
	case c.Columns.Mask == 0:
		return c.Cols
	case c.Columns.Reverse:
		return c.Columns.Width
	default:
		return bits.Len64(c.Columns.Mask)
	}
}

func newRig(cfg *config.Config, c capscan.Config) (*rig, error) {
	r := &rig{}
	var err error
	switch hw := cfg.MustGet("hw").String(); hw {
	case "sim":
		err = r.sim(cfg, c)
	case "rpi":
		err = r.rpi(cfg, c)
	case "cdev":
		err = r.cdev(cfg, c)
	default:
		err = fmt.Errorf("unknown hardware '%s'", hw)
	}
	if err != nil {
		r.close()
		return nil, err
	}
	r.hw.Timer = capscan.NewSoftTimer()
	return r, nil
}

// sim builds a simulated board with all the keys released, apart from any
// dead keys that are not cal keys, which are held pressed.
func (r *rig) sim(cfg *config.Config, c capscan.Config) error {
	t, err := c.Timing()
	if err != nil {
		return err
	}
	pressed, released := simLevels(c)
	b := sim.NewBoard(driveLines(c), c.Rows, t.Window, released)
	for row := 0; row < c.Rows && row < len(c.DeadKeys); row++ {
		dead := c.DeadKeys[row]
		if row < len(c.CalKeys) {
			dead &^= c.CalKeys[row]
		}
		for col := 0; col < c.Cols; col++ {
			if dead&(1<<uint(col)) == 0 {
				continue
			}
			if line, ok := c.Columns.Line(col); ok {
				b.Set(line, row, pressed)
			}
		}
	}
	if v, err := cfg.Get("press"); err == nil {
		keys, err := parseKeys(v.String())
		if err != nil {
			return err
		}
		for _, k := range keys {
			if k.row >= c.Rows || k.col >= c.Cols {
				return fmt.Errorf("key %d:%d outside the matrix", k.row, k.col)
			}
			if line, ok := c.Columns.Line(k.col); ok {
				b.Set(line, k.row, pressed)
			}
		}
	}
	r.board = b
	r.hw.Drive = b
	r.hw.Groups = b.Groups()
	return nil
}

// simLevels returns the ticks simulating pressed and released pads, a
// factor of two either side of the threshold.
func simLevels(c capscan.Config) (pressed, released uint16) {
	lo, hi := c.Threshold/2, c.Threshold*2
	if c.Polarity == capscan.ActiveHigh {
		return hi, lo
	}
	return lo, hi
}

func (r *rig) rpi(cfg *config.Config, c capscan.Config) error {
	cols, rows, err := pins(cfg, c)
	if err != nil {
		return err
	}
	if err = rpi.Open(); err != nil {
		return err
	}
	r.closers = append(r.closers, func() { rpi.Close() })
	if sr, err := cfg.Get("shiftreg.pins"); err == nil {
		pp, err := parseInts(sr.String())
		if err != nil {
			return err
		}
		if len(pp) != 3 {
			return errors.New("shift register needs sclk, mosi and latch pins")
		}
		out := make([]shiftreg.OutputPin, 3)
		for i, p := range pp {
			pin, err := rpi.NewPin(p)
			if err != nil {
				return err
			}
			pin.Output()
			out[i] = pin
		}
		r.hw.Drive = shiftreg.New(
			shiftreg.NewBitBang(cfg.MustGet("shiftreg.tclk").Duration(), out[0], out[1], out[2]),
			driveLines(c), true)
	} else {
		d, err := rpi.NewDrive(cols...)
		if err != nil {
			return err
		}
		r.closers = append(r.closers, d.Close)
		r.hw.Drive = d
	}
	w, err := rpi.DefaultWatcher()
	if err != nil {
		return err
	}
	for _, g := range groups(rows) {
		cg, err := rpi.NewCaptureGroup(w, c.CaptureFrequency, g...)
		if err != nil {
			return err
		}
		r.closers = append(r.closers, cg.Close)
		r.hw.Groups = append(r.hw.Groups, cg)
	}
	return nil
}

func (r *rig) cdev(cfg *config.Config, c capscan.Config) error {
	cols, rows, err := pins(cfg, c)
	if err != nil {
		return err
	}
	chip := cfg.MustGet("chip").String()
	if sr, err := cfg.Get("shiftreg.pins"); err == nil {
		pp, err := parseInts(sr.String())
		if err != nil {
			return err
		}
		if len(pp) != 3 {
			return errors.New("shift register needs sclk, mosi and latch lines")
		}
		out := make([]shiftreg.OutputPin, 3)
		for i, p := range pp {
			pin, err := cdev.NewOutputPin(chip, p)
			if err != nil {
				return err
			}
			r.closers = append(r.closers, pin.Close)
			out[i] = pin
		}
		r.hw.Drive = shiftreg.New(
			shiftreg.NewBitBang(cfg.MustGet("shiftreg.tclk").Duration(), out[0], out[1], out[2]),
			driveLines(c), true)
	} else {
		d, err := cdev.NewDrive(chip, cols...)
		if err != nil {
			return err
		}
		r.closers = append(r.closers, d.Close)
		r.hw.Drive = d
	}
	for _, g := range groups(rows) {
		cg, err := cdev.NewCaptureGroup(chip, c.CaptureFrequency, g...)
		if err != nil {
			return err
		}
		r.closers = append(r.closers, cg.Close)
		r.hw.Groups = append(r.hw.Groups, cg)
	}
	return nil
}

// pins returns the column and row pins, or line offsets, from the config.
// The column pins are optional if a shift register drives the columns,
// else they must cover every line the column map can select.
func pins(cfg *config.Config, c capscan.Config) (cols, rows []int, err error) {
	if v, err := cfg.Get("column.pins"); err == nil {
		if cols, err = parseInts(v.String()); err != nil {
			return nil, nil, fmt.Errorf("column pins: %w", err)
		}
	}
	v, err := cfg.Get("row.pins")
	if err != nil {
		return nil, nil, errors.New("no row pins specified")
	}
	if rows, err = parseInts(v.String()); err != nil {
		return nil, nil, fmt.Errorf("row pins: %w", err)
	}
	if len(rows) < c.Rows {
		return nil, nil, fmt.Errorf("%d row pins for %d rows", len(rows), c.Rows)
	}
	if _, err := cfg.Get("shiftreg.pins"); err != nil && len(cols) < driveLines(c) {
		return nil, nil, fmt.Errorf("%d column pins for %d drive lines", len(cols), driveLines(c))
	}
	return cols, rows, nil
}

// groups splits the rows into capture groups.
func groups(rows []int) [][]int {
	gg := [][]int(nil)
	for len(rows) > capscan.GroupChannels {
		gg = append(gg, rows[:capscan.GroupChannels])
		rows = rows[capscan.GroupChannels:]
	}
	if len(rows) > 0 {
		gg = append(gg, rows)
	}
	return gg
}

type key struct {
	row int
	col int
}

// parseKeys parses a comma separated list of row:col pairs.
func parseKeys(s string) ([]key, error) {
	kk := []key(nil)
	for _, f := range splitList(s) {
		var k key
		if _, err := fmt.Sscanf(f, "%d:%d", &k.row, &k.col); err != nil || k.row < 0 || k.col < 0 {
			return nil, fmt.Errorf("can't parse key '%s'", f)
		}
		kk = append(kk, k)
	}
	return kk, nil
}

func logTiming(c capscan.Config, t capscan.Timing) {
	log.WithFields(log.Fields{
		"period": t.Duration(uint32(t.Period)),
		"window": t.Duration(uint32(t.Window)),
		"sweep":  time.Duration(c.Cols) * t.Duration(uint32(t.Period)),
	}).Info("column timing")
}
