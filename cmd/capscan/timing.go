// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(timingCmd)
}

var timingCmd = &cobra.Command{
	Use:   "timing",
	Short: "Display the column timing of the board",
	Long:  `Display the column period, sample window and threshold of the board in ticks and in time.`,
	Args:  cobra.NoArgs,
	RunE:  timing,
}

func timing(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	c, err := matrixConfig(cfg)
	if err != nil {
		return err
	}
	t, err := c.Timing()
	if err != nil {
		return err
	}
	fmt.Printf("matrix:    %d x %d, %s\n", c.Rows, c.Cols, c.Polarity)
	fmt.Printf("clock:     %d Hz\n", t.Frequency)
	fmt.Printf("period:    %5d ticks %v\n", t.Period, t.Duration(uint32(t.Period)))
	fmt.Printf("window:    %5d ticks %v\n", t.Window, t.Duration(uint32(t.Window)))
	fmt.Printf("threshold: %5d ticks %v\n", c.Threshold, t.Duration(uint32(c.Threshold)))
	fmt.Printf("sweep:     %v\n", time.Duration(c.Cols)*t.Duration(uint32(t.Period)))
	return c.Validate()
}
