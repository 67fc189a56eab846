// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/warthog618/capscan"
	"github.com/warthog618/capscan/board"
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/cfgconv"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
)

// loadConfig builds the configuration from, in order of priority, the
// command line flags, the environment, the config file and the defaults.
// Flag names map to keys by replacing '-' with '.', so --scan-rate
// is scan.rate, as is CAPSCAN_SCAN_RATE in the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	defaultConfig := map[string]interface{}{
		"board":         "bench",
		"log.level":     "info",
		"config.file":   "capscan.json",
		"hw":            "sim",
		"chip":          "gpiochip0",
		"diag.period":   "250ms",
		"diag.baud":     115200,
		"sweep.timeout": "100ms",
		"shiftreg.tclk": "1us",
	}
	def := dict.New(dict.WithMap(defaultConfig))
	flags := map[string]interface{}{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		flags[strings.ReplaceAll(f.Name, "-", ".")] = f.Value.String()
	})
	cfg := config.New(
		dict.New(dict.WithMap(flags)),
		env.New(env.WithEnvPrefix("CAPSCAN_")),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "capscan.json", json.NewDecoder()))
	return cfg, nil
}

// matrixConfig returns the board preset with any overrides applied.
func matrixConfig(cfg *config.Config) (capscan.Config, error) {
	c, err := board.ByName(cfg.MustGet("board").String())
	if err != nil {
		return c, err
	}
	var u uint64
	var ok bool
	if u, ok, err = uintValue(cfg, "rows", math.MaxInt32); err != nil {
		return c, err
	} else if ok {
		c.Rows = int(u)
	}
	if u, ok, err = uintValue(cfg, "cols", math.MaxInt32); err != nil {
		return c, err
	} else if ok {
		c.Cols = int(u)
	}
	if u, ok, err = uintValue(cfg, "scan.rate", math.MaxUint32); err != nil {
		return c, err
	} else if ok {
		c.ScanRate = uint32(u)
	}
	if u, ok, err = uintValue(cfg, "capture.frequency", math.MaxUint32); err != nil {
		return c, err
	} else if ok {
		c.CaptureFrequency = uint32(u)
	}
	if u, ok, err = uintValue(cfg, "threshold", math.MaxUint16); err != nil {
		return c, err
	} else if ok {
		c.Threshold = uint16(u)
	}
	if v, err := cfg.Get("polarity"); err == nil {
		switch strings.ToLower(v.String()) {
		case "low", "active-low":
			c.Polarity = capscan.ActiveLow
		case "high", "active-high":
			c.Polarity = capscan.ActiveHigh
		default:
			return c, fmt.Errorf("unknown polarity '%s'", v.String())
		}
	}
	if v, err := cfg.Get("dead.keys"); err == nil {
		if c.DeadKeys, err = parseRows(v.String()); err != nil {
			return c, fmt.Errorf("dead keys: %w", err)
		}
	}
	if v, err := cfg.Get("cal.keys"); err == nil {
		if c.CalKeys, err = parseRows(v.String()); err != nil {
			return c, fmt.Errorf("cal keys: %w", err)
		}
	}
	if v, err := cfg.Get("column.mask"); err == nil {
		m, err := strconv.ParseUint(v.String(), 0, 64)
		if err != nil {
			return c, fmt.Errorf("can't parse column mask '%s'", v.String())
		}
		c.Columns.Mask = m
	}
	if u, ok, err = uintValue(cfg, "column.width", 64); err != nil {
		return c, err
	} else if ok {
		c.Columns.Width = int(u)
	}
	if v, err := cfg.Get("column.reverse"); err == nil {
		c.Columns.Reverse = v.Bool()
	}
	return c, nil
}

// uintValue returns the value of key, if set, range checked against limit.
func uintValue(cfg *config.Config, key string, limit uint64) (uint64, bool, error) {
	v, err := cfg.Get(key)
	if err != nil {
		return 0, false, nil
	}
	u, err := cfgconv.Uint(v.Value())
	if err != nil {
		return 0, false, fmt.Errorf("can't parse %s '%v'", key, v.Value())
	}
	if u > limit {
		return 0, false, fmt.Errorf("%s %d out of range, max %d", key, u, limit)
	}
	return u, true, nil
}

// parseRows parses a comma separated list of row bitmaps, such as
// "0x20004, 0x20000, 0, 0x10008".
func parseRows(s string) ([]capscan.Row, error) {
	s = strings.Trim(strings.TrimSpace(s), "{}")
	rr := []capscan.Row(nil)
	for _, f := range splitList(s) {
		r, err := strconv.ParseUint(f, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("can't parse row '%s'", f)
		}
		rr = append(rr, capscan.Row(r))
	}
	return rr, nil
}

// parseInts parses a comma separated list of integers, such as pin numbers.
func parseInts(s string) ([]int, error) {
	ii := []int(nil)
	for _, f := range splitList(s) {
		i, err := strconv.ParseInt(f, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("can't parse '%s'", f)
		}
		ii = append(ii, int(i))
	}
	return ii, nil
}

func formatRows(rr []capscan.Row) string {
	ss := make([]string, len(rr))
	for i, r := range rr {
		ss[i] = fmt.Sprintf("0x%x", uint32(r))
	}
	return strings.Join(ss, ", ")
}

// splitList splits a comma separated list, dropping empty fields.
func splitList(s string) []string {
	ff := []string(nil)
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			ff = append(ff, f)
		}
	}
	return ff
}
