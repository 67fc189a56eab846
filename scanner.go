// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package capscan

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultSweepTimeout = 100 * time.Millisecond

// Scanner converts the sweeps collected by its Sequencer into a key matrix.
type Scanner struct {
	rows      int
	cols      int
	polarity  Polarity
	threshold uint16
	dead      []Row
	cal       []Row
	timing    Timing
	timeout   time.Duration
	log       logrus.FieldLogger

	samples  *Samples
	seq      *Sequencer
	monitor  *Monitor
	timer    CycleTimer
	restarts uint32
	timeouts uint32

	mu      sync.Mutex // Guards started.
	started bool
}

// Option modifies the behaviour of a Scanner.
type Option func(*options)

type options struct {
	sweepTimeout time.Duration
	diag         io.Writer
	diagPeriod   time.Duration
	histBins     int
	histShift    uint
	log          logrus.FieldLogger
	now          func() time.Time
}

// WithSweepTimeout sets how long Scan waits for a sweep to complete.
// The default is 100ms.
func WithSweepTimeout(d time.Duration) Option {
	return func(o *options) {
		o.sweepTimeout = d
	}
}

// WithDiagnostics sets the sink for the calibration histogram and summary.
// Without a sink no report is generated.
func WithDiagnostics(w io.Writer) Option {
	return func(o *options) {
		o.diag = w
	}
}

// WithDiagPeriod sets the minimum interval between diagnostic reports.
// The default is 250ms.
func WithDiagPeriod(d time.Duration) Option {
	return func(o *options) {
		o.diagPeriod = d
	}
}

// WithHistogram sets the number of histogram bins and the right shift
// applied to raw values to select a bin.
func WithHistogram(bins int, shift uint) Option {
	return func(o *options) {
		if bins > 0 {
			o.histBins = bins
		}
		o.histShift = shift
	}
}

// WithLogger sets the logger for anomalies detected while scanning.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithClock sets the source of wall clock time used to pace diagnostics.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New creates a Scanner for the configuration running on the hardware.
//
// The configuration is validated and the cal keys are added to the dead
// keys so a cal key can never be reported pressed.
// The timer is not started until Start is called.
func New(cfg Config, hw Hardware, opts ...Option) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if hw.Drive == nil || hw.Timer == nil {
		return nil, fmt.Errorf("%w: missing drive or timer", ErrGeometry)
	}
	if len(hw.Groups)*GroupChannels < cfg.Rows {
		return nil, fmt.Errorf("%w: %d capture groups for %d rows", ErrGeometry, len(hw.Groups), cfg.Rows)
	}
	for i, g := range hw.Groups[:(cfg.Rows+GroupChannels-1)/GroupChannels] {
		if g == nil {
			return nil, fmt.Errorf("%w: capture group %d missing", ErrGeometry, i)
		}
	}
	t, _ := cfg.Timing()
	o := options{
		sweepTimeout: defaultSweepTimeout,
		diagPeriod:   defaultDiagPeriod,
		histBins:     defaultHistBins,
		histShift:    defaultHistShift,
		log:          logrus.StandardLogger(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	dead, cal := cfg.normalizedKeys()
	// start from the unpressed state
	fill := NoEdgeHigh
	if cfg.Polarity == ActiveHigh {
		fill = NoEdgeLow
	}
	samples := newSamples(cfg.Rows, cfg.Cols, fill)
	s := &Scanner{
		rows:      cfg.Rows,
		cols:      cfg.Cols,
		polarity:  cfg.Polarity,
		threshold: cfg.Threshold,
		dead:      dead,
		cal:       cal,
		timing:    t,
		timeout:   o.sweepTimeout,
		log:       o.log,
		samples:   samples,
		seq:       newSequencer(cfg.Rows, cfg.Cols, cfg.Columns, hw.Drive, hw.Groups, samples),
		monitor:   newMonitor(cfg, t, &o),
		timer:     hw.Timer,
	}
	return s, nil
}

// Start starts the cycle timer driving the Sequencer.
func (s *Scanner) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	if err := s.timer.Start(s.timing, s.seq); err != nil {
		return err
	}
	s.started = true
	s.log.WithFields(logrus.Fields{
		"period": s.timing.Period,
		"window": s.timing.Window,
		"rows":   s.rows,
		"cols":   s.cols,
	}).Debug("scan started")
	return nil
}

// Close stops the cycle timer and releases the selected column.
// A subsequent Start begins a new sweep from the first column.
func (s *Scanner) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.timer.Stop()
		s.seq.stop()
		s.started = false
	}
}

// Scan waits for the next sweep and updates the matrix from it.
//
// The matrix must contain one Row per matrix row.  Rows that differ from
// the sweep are overwritten and the others are left untouched.
// Returns true if any row changed, and false if nothing changed or no sweep
// completed within the sweep timeout.
func (s *Scanner) Scan(matrix []Row) bool {
	grid, ok := s.samples.wait(s.timeout)
	if !ok {
		s.timeouts++
		s.monitor.timeout()
		s.log.WithField("timeout", s.timeout).Debug("no sweep")
		return false
	}
	if r := s.seq.Restarts(); r != s.restarts {
		s.log.WithFields(logrus.Fields{
			"restarts": r - s.restarts,
			"cols":     s.cols,
		}).Warn("column sequencer ran out of drive lines")
		s.restarts = r
	}
	acc := &s.monitor.acc
	changed := false
	for row := 0; row < s.rows; row++ {
		var next Row
		dead := s.dead[row]
		cal := s.cal[row]
		for col, mask := 0, Row(1); col < s.cols; col, mask = col+1, mask<<1 {
			v := grid[col*s.rows+row]
			if s.pressed(v) {
				next |= mask
			}
			acc.fold(v, dead&mask != 0, cal&mask != 0)
		}
		next &^= dead
		if next != matrix[row] {
			matrix[row] = next
			changed = true
		}
	}
	s.monitor.sweep(grid)
	return changed
}

func (s *Scanner) pressed(v uint16) bool {
	if s.polarity == ActiveHigh {
		return v > s.threshold
	}
	return v < s.threshold
}

// Timing returns the column timing.
func (s *Scanner) Timing() Timing {
	return s.timing
}

// DeadKeys returns the normalised dead keys, which include the cal keys.
func (s *Scanner) DeadKeys() []Row {
	return append([]Row(nil), s.dead...)
}

// CalKeys returns the cal keys.
func (s *Scanner) CalKeys() []Row {
	return append([]Row(nil), s.cal...)
}

// Monitor returns the calibration monitor.
// It must only be accessed from the goroutine calling Scan.
func (s *Scanner) Monitor() *Monitor {
	return s.monitor
}

// Samples returns the sample buffer.
func (s *Scanner) Samples() *Samples {
	return s.samples
}

// Sequencer returns the cycle handler collecting the samples.
func (s *Scanner) Sequencer() *Sequencer {
	return s.seq
}

// Timeouts returns the number of calls to Scan that found no sweep.
func (s *Scanner) Timeouts() uint32 {
	return s.timeouts
}

// Sweeps returns the number of sweeps completed by the Sequencer.
func (s *Scanner) Sweeps() uint32 {
	return s.seq.Sweeps()
}
