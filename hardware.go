// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package capscan

// GroupChannels is the number of rows served by each CaptureGroup.
// Row r is captured by group r/GroupChannels, channel r%GroupChannels.
const GroupChannels = 4

// Drive drives the physical column lines.
type Drive interface {
	// Select drives the line to its active state, exciting the column.
	Select(line int)
	// Deselect returns the line to its inactive state.
	Deselect(line int)
}

// CaptureGroup captures the rising edges on up to GroupChannels rows.
//
// Methods are called from the cycle handler and must not block.
type CaptureGroup interface {
	// Arm resets the capture counter and clears the channels ready to catch
	// the next rising edge on each.
	Arm()
	// Capture returns the counter value latched by the first rising edge
	// since the group was armed, or false if no edge has been seen.
	Capture(ch int) (ticks uint16, ok bool)
	// Level returns the current level of the line, true for high.
	Level(ch int) bool
	// Drain discards any capture pending in the channels.
	Drain()
}

// CycleHandler receives the two events of each column period.
type CycleHandler interface {
	// Window is called when the counter reaches the read window.
	Window()
	// Wrap is called when the counter reaches the period and restarts.
	Wrap()
}

// CycleTimer paces the column period.
//
// Once started the timer calls Wrap immediately, then Window and Wrap in
// turn every period. Calls to the handler are never concurrent.
type CycleTimer interface {
	Start(t Timing, h CycleHandler) error
	Stop()
}

// Hardware collects the hardware a Scanner runs on.
type Hardware struct {
	Drive Drive
	// Groups capture the rows, GroupChannels rows per group.
	Groups []CaptureGroup
	Timer  CycleTimer
}
