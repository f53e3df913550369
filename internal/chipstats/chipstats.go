// Package chipstats summarises the sample magnitudes of a chip.
package chipstats

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/samcharles93/sarchip/pkg/bip"
)

type Stats struct {
	Rows   int     `json:"rows"`
	Cols   int     `json:"cols"`
	Bands  int     `json:"bands"`
	Kind   string  `json:"kind"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summarize computes magnitude statistics over every sample of a. The
// standard deviation is the sample estimate, zero for a single sample.
func Summarize(a *bip.Array) Stats {
	s := Stats{Rows: a.Rows, Cols: a.Cols, Bands: a.Bands, Kind: a.Kind.String()}
	mag := a.Abs()
	if len(mag) == 0 {
		return s
	}
	s.Mean = stat.Mean(mag, nil)
	if len(mag) > 1 {
		s.StdDev = stat.StdDev(mag, nil)
	}
	s.Min = floats.Min(mag)
	s.Max = floats.Max(mag)
	return s
}

func (s Stats) Print(w io.Writer) {
	fmt.Fprintf(w, "shape: %d x %d x %d (%s)\n", s.Rows, s.Cols, s.Bands, s.Kind)
	fmt.Fprintf(w, "|x|:   mean=%g std=%g min=%g max=%g\n", s.Mean, s.StdDev, s.Min, s.Max)
}
