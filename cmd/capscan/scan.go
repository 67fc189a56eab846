// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tarm/serial"
	"github.com/warthog618/capscan"
	"github.com/warthog618/config"
)

func init() {
	scanCmd.Flags().String("hw", "", "hardware driving the matrix [sim|rpi|cdev]")
	scanCmd.Flags().String("chip", "", "GPIO chip, for cdev")
	scanCmd.Flags().String("column-pins", "", "pins, or line offsets, driving the columns, comma separated")
	scanCmd.Flags().String("row-pins", "", "pins, or line offsets, of the rows, comma separated")
	scanCmd.Flags().String("shiftreg-pins", "", "sclk,mosi,latch pins of a shift register column drive")
	scanCmd.Flags().String("shiftreg-tclk", "", "shift register clock half period")
	scanCmd.Flags().String("press", "", "keys pressed on the sim board, as row:col, comma separated")
	scanCmd.Flags().BoolP("diag", "d", false, "write the calibration histogram to standard output")
	scanCmd.Flags().String("diag-port", "", "write the calibration histogram to a serial port instead")
	scanCmd.Flags().Int("diag-baud", 0, "baud rate of the diag port")
	scanCmd.Flags().String("diag-period", "", "minimum interval between calibration reports")
	scanCmd.Flags().String("sweep-timeout", "", "time to wait for a sweep")
	scanCmd.Flags().UintP("num-sweeps", "n", 0, "exit after n sweeps")
	scanCmd.Flags().BoolP("quiet", "q", false, "don't display matrix changes")
	scanCmd.SetHelpTemplate(scanCmd.HelpTemplate() + extendedScanHelp)
	rootCmd.AddCommand(scanCmd)
}

var extendedScanHelp = `
Each change to the matrix is printed as one line per row, with the row
bitmap in hex followed by the state of each column, 'X' for pressed and
'.' for released, column 0 on the left.

The sim hardware needs no pins.  The rpi hardware uses BCM pin numbers,
and cdev uses line offsets on the chip.
`

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the matrix and report key changes",
	Long:  `Scan the matrix and print the key matrix each time it changes.`,
	Args:  cobra.NoArgs,
	RunE:  scan,
}

func scan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	c, err := matrixConfig(cfg)
	if err != nil {
		return err
	}
	if err = c.Validate(); err != nil {
		return err
	}
	t, _ := c.Timing()
	logTiming(c, t)
	r, err := newRig(cfg, c)
	if err != nil {
		return err
	}
	defer r.close()
	opts := []capscan.Option{
		capscan.WithSweepTimeout(cfg.MustGet("sweep.timeout").Duration()),
		capscan.WithDiagPeriod(cfg.MustGet("diag.period").Duration()),
	}
	diag, err := diagSink(cmd, cfg)
	if err != nil {
		return err
	}
	if diag != nil {
		defer diag.Close()
		opts = append(opts, capscan.WithDiagnostics(diag))
	}
	s, err := capscan.New(c, r.hw, opts...)
	if err != nil {
		return err
	}
	if err = s.Start(); err != nil {
		return err
	}
	defer s.Close()
	n, _ := cmd.Flags().GetUint("num-sweeps")
	quiet, _ := cmd.Flags().GetBool("quiet")
	scanLoop(s, c.Rows, c.Cols, n, quiet)
	log.WithFields(log.Fields{
		"sweeps":   s.Sweeps(),
		"timeouts": s.Timeouts(),
	}).Info("scan stopped")
	return nil
}

func scanLoop(s *capscan.Scanner, rows, cols int, n uint, quiet bool) {
	sigdone := make(chan os.Signal, 1)
	signal.Notify(sigdone, os.Interrupt)
	defer signal.Stop(sigdone)
	matrix := make([]capscan.Row, rows)
	count := uint(0)
	for {
		select {
		case <-sigdone:
			return
		default:
		}
		if s.Scan(matrix) && !quiet {
			fmt.Printf("%s\n%s", time.Now().Format(time.RFC3339Nano), formatMatrix(matrix, cols))
		}
		count++
		if n > 0 && count >= n {
			return
		}
	}
}

func formatMatrix(matrix []capscan.Row, cols int) string {
	var sb strings.Builder
	for row, r := range matrix {
		fmt.Fprintf(&sb, "%2d %08x ", row, uint32(r))
		for col := 0; col < cols; col++ {
			if r&(1<<uint(col)) != 0 {
				sb.WriteByte('X')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}

// diagSink returns the sink for the calibration report, if any.
func diagSink(cmd *cobra.Command, cfg *config.Config) (io.WriteCloser, error) {
	if v, err := cfg.Get("diag.port"); err == nil {
		port, err := serial.OpenPort(&serial.Config{
			Name: v.String(),
			Baud: int(cfg.MustGet("diag.baud").Int()),
		})
		if err != nil {
			return nil, fmt.Errorf("diag port: %w", err)
		}
		return port, nil
	}
	if d, _ := cmd.Flags().GetBool("diag"); d {
		return nopCloser{os.Stdout}, nil
	}
	return nil, nil
}
