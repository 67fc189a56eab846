// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "undefined"

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("config-file", "c", "", "JSON configuration file")
	pf.StringP("board", "b", "", "board preset (see boards)")
	pf.String("log-level", "", "log level [panic|fatal|error|warn|info|debug|trace]")
	pf.Int("rows", 0, "override the number of rows")
	pf.Int("cols", 0, "override the number of columns")
	pf.Uint32("scan-rate", 0, "override the matrix scan rate (Hz)")
	pf.Uint32("capture-frequency", 0, "override the capture clock frequency (Hz)")
	pf.Uint16("threshold", 0, "override the press threshold (ticks)")
	pf.String("polarity", "", "override the polarity [low|high]")
	pf.String("dead-keys", "", "override the dead keys, one bitmap per row, comma separated")
	pf.String("cal-keys", "", "override the cal keys, one bitmap per row, comma separated")
	pf.String("column-mask", "", "bitmap of the physical lines driving the columns")
	pf.Int("column-width", 0, "number of physical column lines, for reversed maps")
	pf.Bool("column-reverse", false, "mirror the physical column lines")
}

var rootCmd = &cobra.Command{
	Use:   "capscan",
	Short: "capscan scans a capacitive key matrix",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	PersistentPreRunE: setupLogging,
	SilenceUsage:      true,
	Version:           version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	lvl, err := log.ParseLevel(cfg.MustGet("log.level").String())
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	return nil
}
