// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

// Package board provides the configurations of known keyboards.
//
// The timing of each preset is checked when the package is compiled: a
// column period that does not fit the 16 bit capture counter, or a threshold
// too large to measure within the window, is a constant overflow.
package board

import (
	"fmt"
	"sort"
	"strings"

	"github.com/warthog618/capscan"
)

// CaptureFrequency is the timer clock of the STM32F4 based controllers.
const CaptureFrequency = 168000000

// IBM 327x 75 key, 4 rows by 20 columns.
const (
	ibm327xRows      = 4
	ibm327xCols      = 20
	ibm327xScanRate  = 500
	ibm327xPeriod    = CaptureFrequency / ibm327xScanRate / ibm327xCols
	ibm327xWindow    = ibm327xPeriod / 2
	ibm327xThreshold = CaptureFrequency / 10000 * 3 / 16
)

// IBM Model F/XT, 8 rows by 12 columns.
// Capacitance increases when a key is pressed.
const (
	ibmFXTRows      = 8
	ibmFXTCols      = 12
	ibmFXTScanRate  = 1000
	ibmFXTPeriod    = CaptureFrequency / ibmFXTScanRate / ibmFXTCols
	ibmFXTWindow    = ibmFXTPeriod / 2
	ibmFXTThreshold = CaptureFrequency / 10000 * 3 / 32
)

// Bench board, a 4x4 test pad with a single calibration pad.
const (
	benchRows             = 4
	benchCols             = 4
	benchScanRate         = 50
	benchCaptureFrequency = 1000000
	benchPeriod           = benchCaptureFrequency / benchScanRate / benchCols
	benchWindow           = benchPeriod / 2
	benchThreshold        = 100
)

// Fail to compile if the period overflows the counter or the threshold
// cannot be measured within the window.
const (
	_ uint16 = ibm327xPeriod
	_ uint   = ibm327xWindow - 2*ibm327xThreshold
	_ uint16 = ibmFXTPeriod
	_ uint   = ibmFXTWindow - 2*ibmFXTThreshold
	_ uint16 = benchPeriod
	_ uint   = benchWindow - 2*benchThreshold
)

// IBM327x returns the configuration of the IBM 327x 75 key keyboard.
func IBM327x() capscan.Config {
	return capscan.Config{
		Rows:             ibm327xRows,
		Cols:             ibm327xCols,
		ScanRate:         ibm327xScanRate,
		CaptureFrequency: CaptureFrequency,
		Threshold:        ibm327xThreshold,
		Polarity:         capscan.ActiveLow,
		DeadKeys:         []capscan.Row{0x20004, 0x20000, 0, 0x10008},
		CalKeys:          []capscan.Row{0, 0, 0, 0x10008},
	}
}

// IBMFXT returns the configuration of the IBM Model F/XT keyboard.
func IBMFXT() capscan.Config {
	return capscan.Config{
		Rows:             ibmFXTRows,
		Cols:             ibmFXTCols,
		ScanRate:         ibmFXTScanRate,
		CaptureFrequency: CaptureFrequency,
		Threshold:        ibmFXTThreshold,
		Polarity:         capscan.ActiveHigh,
		DeadKeys:         []capscan.Row{0x0, 0xb03, 0x200, 0x83, 0x100, 0x0, 0x0, 0x881},
		CalKeys:          []capscan.Row{0, 0, 0, 0, 0, 0, 0, 0},
	}
}

// Bench returns the configuration of the 4x4 bench board.
// Row 0 column 3 is a calibration pad.
func Bench() capscan.Config {
	return capscan.Config{
		Rows:             benchRows,
		Cols:             benchCols,
		ScanRate:         benchScanRate,
		CaptureFrequency: benchCaptureFrequency,
		Threshold:        benchThreshold,
		Polarity:         capscan.ActiveLow,
		DeadKeys:         []capscan.Row{0x8},
		CalKeys:          []capscan.Row{0x8},
	}
}

var presets = map[string]func() capscan.Config{
	"ibm327x-75key": IBM327x,
	"ibm-f-xt":      IBMFXT,
	"bench":         Bench,
}

// Names returns the names of the presets, sorted.
func Names() []string {
	nn := make([]string, 0, len(presets))
	for n := range presets {
		nn = append(nn, n)
	}
	sort.Strings(nn)
	return nn
}

// ByName returns the configuration of the named preset.
func ByName(name string) (capscan.Config, error) {
	if f, ok := presets[strings.ToLower(name)]; ok {
		return f(), nil
	}
	return capscan.Config{}, fmt.Errorf("unknown board '%s'", name)
}
