// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/warthog618/capscan/board"
)

var extendedDeadkeysHelp = `
The matrix positions not used by the first layout in the file are reported
as dead keys, in the form accepted by --dead-keys.
`

var deadkeysCmd = &cobra.Command{
	Use:   "deadkeys <info.json>",
	Short: "Derive the dead keys from a QMK keyboard definition",
	Args:  cobra.ExactArgs(1),
	RunE:  deadkeys,
}

func init() {
	deadkeysCmd.SetHelpTemplate(deadkeysCmd.HelpTemplate() + extendedDeadkeysHelp)
	rootCmd.AddCommand(deadkeysCmd)
}

func deadkeys(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	dd, err := board.DeadKeys(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	fmt.Println(formatRows(dd))
	return nil
}
