package bip

import "fmt"

// Symmetry relates the logical image to the stored one. Transpose swaps the
// logical axes; FlipRows and FlipCols then reverse the stored row and column axes.
type Symmetry struct {
	FlipRows  bool
	FlipCols  bool
	Transpose bool
}

func (s Symmetry) String() string {
	return fmt.Sprintf("(flip_rows=%t, flip_cols=%t, transpose=%t)", s.FlipRows, s.FlipCols, s.Transpose)
}

// physicalShape is the stored (rows, cols) of a logical (rows, cols) image.
func (s Symmetry) physicalShape(rows, cols int) (int, int) {
	if s.Transpose {
		return cols, rows
	}
	return rows, cols
}

// physical maps logical row and column selections onto the stored axes of a
// segment whose stored shape is (prows, pcols).
func (s Symmetry) physical(rows, cols span, prows, pcols int) (span, span) {
	if s.Transpose {
		rows, cols = cols, rows
	}
	if s.FlipRows {
		rows = rows.reversed(prows)
	}
	if s.FlipCols {
		cols = cols.reversed(pcols)
	}
	return rows, cols
}
