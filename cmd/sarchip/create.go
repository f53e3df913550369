package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/sarchip/internal/imagestore"
	"github.com/samcharles93/sarchip/internal/logger"
	"github.com/samcharles93/sarchip/internal/version"
	"github.com/samcharles93/sarchip/pkg/bip"
)

// fillBlockBytes bounds the size of one block handed to the writer.
const fillBlockBytes = 64 << 20

func createCmd() *cli.Command {
	var (
		outPath         string
		name            string
		rows            int
		cols            int
		bands           int
		dtype           string
		complexMode     string
		maxSegmentBytes int64
		maxCols         int
		pattern         string
		value           float64
		noMmap          bool
	)

	return &cli.Command{
		Name:  "create",
		Usage: "Create an .rcf container and fill it with a test pattern",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output .rcf path", Destination: &outPath, Required: true},
			&cli.StringFlag{Name: "name", Usage: "image name stored in the container", Destination: &name},
			&cli.IntFlag{Name: "rows", Usage: "image rows", Destination: &rows, Required: true},
			&cli.IntFlag{Name: "cols", Usage: "image columns", Destination: &cols, Required: true},
			&cli.IntFlag{Name: "bands", Usage: "logical bands per pixel", Value: 1, Destination: &bands},
			&cli.StringFlag{Name: "dtype", Usage: "sample type, e.g. <f4, >i2, float64", Value: "<f4", Destination: &dtype},
			&cli.StringFlag{Name: "complex", Usage: "complex storage (none, paired)", Value: "none", Destination: &complexMode},
			&cli.Int64Flag{Name: "max-segment-bytes", Usage: "largest segment in bytes (0 = one row band)", Destination: &maxSegmentBytes},
			&cli.IntFlag{Name: "max-cols", Usage: "widest segment in columns (0 = full width)", Destination: &maxCols},
			&cli.StringFlag{Name: "pattern", Usage: "fill pattern (ramp, constant)", Value: "ramp", Destination: &pattern},
			&cli.FloatFlag{Name: "value", Usage: "constant value, or ramp offset", Destination: &value},
			&cli.BoolFlag{Name: "no-mmap", Usage: "write with file I/O instead of memory mapping", Destination: &noMmap},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			applyCreateConfig(c, settings, &dtype, &maxSegmentBytes, &maxCols, &noMmap)

			dt, err := bip.ParseDataType(dtype)
			if err != nil {
				return err
			}
			paired, err := parseComplexMode(complexMode)
			if err != nil {
				return err
			}
			fill, err := patternFunc(pattern, value)
			if err != nil {
				return err
			}

			img, err := imagestore.Create(outPath, imagestore.CreateOptions{
				Name:            name,
				DataType:        dt,
				Rows:            rows,
				Cols:            cols,
				Bands:           bands,
				Paired:          paired,
				CreatedBy:       "sarchip " + version.String(),
				MaxSegmentBytes: maxSegmentBytes,
				MaxCols:         maxCols,
			})
			if err != nil {
				return err
			}
			log.Info("created container", "path", outPath, "dtype", dt, "rows", rows, "cols", cols,
				"segments", len(img.Segments()))

			kind := dt.Kind
			if paired {
				kind = bip.Complex64
			}
			if err := fillImage(img, kind, fill, imagestore.AccessOptions{NoMmap: noMmap, Logger: log}); err != nil {
				log.Error("fill failed; the container may be only partially written", "path", outPath, "error", err)
				return err
			}
			log.Info("filled container", "path", outPath, "pattern", pattern)
			return nil
		},
	}
}

func parseComplexMode(mode string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "none":
		return false, nil
	case "paired":
		return true, nil
	default:
		return false, fmt.Errorf("unknown complex mode %q (want none or paired)", mode)
	}
}

// sampleFunc gives the value of band b of pixel (row, col).
type sampleFunc func(row, col, band int) float64

func patternFunc(pattern string, value float64) (sampleFunc, error) {
	switch strings.ToLower(pattern) {
	case "ramp":
		return func(row, col, band int) float64 { return float64((row+col+band)%100) + value }, nil
	case "constant":
		return func(int, int, int) float64 { return value }, nil
	default:
		return nil, fmt.Errorf("unknown pattern %q (want ramp or constant)", pattern)
	}
}

// fillImage writes the pattern over the whole image in full-width row blocks.
func fillImage(img *imagestore.Image, kind bip.Kind, fill sampleFunc, ao imagestore.AccessOptions) (err error) {
	w, err := img.Writer(ao)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()

	info := img.Info()
	blockRows := max(1, fillBlockBytes/max(1, info.Cols*info.Bands*kind.Size()))
	for r0 := 0; r0 < info.Rows; r0 += blockRows {
		n := min(blockRows, info.Rows-r0)
		block, err := patternBlock(kind, n, info.Cols, info.Bands, r0, fill)
		if err != nil {
			return err
		}
		if err := w.Write(block, r0, 0); err != nil {
			return err
		}
	}
	return w.Flush()
}

// patternBlock builds rows [rowOffset, rowOffset+rows) of the pattern.
func patternBlock(kind bip.Kind, rows, cols, bands, rowOffset int, fill sampleFunc) (*bip.Array, error) {
	a, err := bip.NewArray(kind, rows, cols, bands)
	if err != nil {
		return nil, err
	}
	at := func(i int) float64 {
		return fill(rowOffset+i/(cols*bands), (i/bands)%cols, i%bands)
	}
	switch kind {
	case bip.Int8:
		err = fillReal[int8](a, at)
	case bip.Uint8:
		err = fillReal[uint8](a, at)
	case bip.Int16:
		err = fillReal[int16](a, at)
	case bip.Uint16:
		err = fillReal[uint16](a, at)
	case bip.Int32:
		err = fillReal[int32](a, at)
	case bip.Uint32:
		err = fillReal[uint32](a, at)
	case bip.Int64:
		err = fillReal[int64](a, at)
	case bip.Uint64:
		err = fillReal[uint64](a, at)
	case bip.Float32:
		err = fillReal[float32](a, at)
	case bip.Float64:
		err = fillReal[float64](a, at)
	case bip.Complex64:
		err = fillComplex[complex64](a, at)
	case bip.Complex128:
		err = fillComplex[complex128](a, at)
	default:
		err = fmt.Errorf("%w: %v", bip.ErrDataType, kind)
	}
	return a, err
}

type realSample interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64
}

func fillReal[T realSample](a *bip.Array, at func(int) float64) error {
	vals, err := bip.Values[T](a)
	if err != nil {
		return err
	}
	for i := range vals {
		vals[i] = T(at(i))
	}
	return nil
}

// fillComplex stores v - iv so both components carry the pattern.
func fillComplex[T complex64 | complex128](a *bip.Array, at func(int) float64) error {
	vals, err := bip.Values[T](a)
	if err != nil {
		return err
	}
	for i := range vals {
		v := at(i)
		vals[i] = T(complex(v, -v))
	}
	return nil
}
