// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warthog618/capscan/board"
)

func init() {
	boardsCmd.Flags().BoolVarP(&boardsOpts.Verbose, "verbose", "v", false, "display the dead and cal keys of each board")
	rootCmd.AddCommand(boardsCmd)
}

var (
	boardsCmd = &cobra.Command{
		Use:   "boards",
		Short: "List the board presets",
		Args:  cobra.NoArgs,
		RunE:  boards,
	}
	boardsOpts = struct {
		Verbose bool
	}{}
)

func boards(cmd *cobra.Command, args []string) error {
	for _, name := range board.Names() {
		c, err := board.ByName(name)
		if err != nil {
			return err
		}
		fmt.Printf("%-14s %2d x %-2d %5d Hz  threshold %-5d %s\n",
			name, c.Rows, c.Cols, c.ScanRate, c.Threshold, c.Polarity)
		if boardsOpts.Verbose {
			fmt.Printf("%14s dead: %s\n", "", formatRows(c.DeadKeys))
			fmt.Printf("%14s cal:  %s\n", "", formatRows(c.CalKeys))
		}
	}
	return nil
}
