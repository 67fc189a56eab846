// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package board

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/warthog618/capscan"
)

type qmkInfo struct {
	MatrixPins struct {
		Cols []json.RawMessage `json:"cols"`
		Rows []json.RawMessage `json:"rows"`
	} `json:"matrix_pins"`
	Layouts map[string]struct {
		Layout []struct {
			Matrix []int `json:"matrix"`
		} `json:"layout"`
	} `json:"layouts"`
}

// ErrNoLayout indicates the info.json contains no layouts.
var ErrNoLayout = errors.New("no layouts")

// DeadKeys derives the dead keys from a QMK info.json.
//
// Every matrix position not used by the first layout, by name, is dead.
func DeadKeys(r io.Reader) ([]capscan.Row, error) {
	var info qmkInfo
	if err := json.NewDecoder(r).Decode(&info); err != nil {
		return nil, err
	}
	cols := len(info.MatrixPins.Cols)
	rows := len(info.MatrixPins.Rows)
	if cols > capscan.MaxCols {
		return nil, fmt.Errorf("%w: %d cols", capscan.ErrGeometry, cols)
	}
	if len(info.Layouts) == 0 {
		return nil, ErrNoLayout
	}
	names := make([]string, 0, len(info.Layouts))
	for n := range info.Layouts {
		names = append(names, n)
	}
	sort.Strings(names)
	dead := make([]capscan.Row, rows)
	for row := range dead {
		if cols == capscan.MaxCols {
			dead[row] = ^capscan.Row(0)
		} else {
			dead[row] = capscan.Row(1)<<uint(cols) - 1
		}
	}
	for _, k := range info.Layouts[names[0]].Layout {
		if len(k.Matrix) != 2 {
			return nil, fmt.Errorf("invalid matrix position %v", k.Matrix)
		}
		row, col := k.Matrix[0], k.Matrix[1]
		if row < 0 || row >= rows || col < 0 || col >= cols {
			continue
		}
		dead[row] &^= capscan.Row(1) << uint(col)
	}
	return dead, nil
}
