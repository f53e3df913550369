package bip

import (
	"fmt"

	"github.com/samcharles93/sarchip/internal/logger"
)

// Logger receives the diagnostics emitted by accessors. logger.Logger and
// *slog.Logger both satisfy it.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a segment accessor.
type Options struct {
	// DataType is the on-disk sample type and byte order. Required.
	DataType DataType
	// Rows and Cols give the logical image size (after Symmetry) for readers
	// and the stored size for writers. Required, strictly positive.
	Rows int
	Cols int
	// Symmetry maps logical coordinates onto stored ones. Readers only.
	Symmetry Symmetry
	// Complex selects complex sample handling; the zero value stores samples as is.
	Complex Complex
	// Offset is the byte offset of the segment within the file.
	Offset int64
	// Bands is the number of logical bands per pixel; zero means one. Complex
	// modes store twice as many raw bands.
	Bands int
	// NoMmap forces manual seek and read/write I/O.
	NoMmap bool
	// Logger defaults to logger.Default().
	Logger Logger
}

func (o Options) withDefaults() Options {
	if o.Bands == 0 {
		o.Bands = 1
	}
	if o.Logger == nil {
		o.Logger = logger.Default()
	}
	return o
}

// validate checks everything that does not depend on the access direction.
func (o Options) validate() error {
	if !o.DataType.Kind.Valid() {
		return fmt.Errorf("%w: data type is required", ErrInvalidConfig)
	}
	if o.Rows <= 0 || o.Cols <= 0 {
		return fmt.Errorf("%w: data size (%d, %d) must be strictly positive", ErrInvalidConfig, o.Rows, o.Cols)
	}
	if o.Bands <= 0 {
		return fmt.Errorf("%w: bands in pixel is %d, must be strictly positive", ErrInvalidConfig, o.Bands)
	}
	if o.Offset < 0 {
		return fmt.Errorf("%w: data offset %d is negative", ErrInvalidConfig, o.Offset)
	}
	if o.Complex.IsComplex() && o.DataType.Kind.IsComplex() {
		return fmt.Errorf("%w: complex type %v cannot be combined with complex data type %v",
			ErrInvalidConfig, o.Complex, o.DataType)
	}
	return nil
}
