package bip

import (
	"errors"
	"fmt"
	"io"
	"runtime"
)

// Writer writes blocks into one BIP segment. A Writer performs no locking;
// callers must serialise calls on one instance.
type Writer struct {
	path     string
	dtype    DataType
	swap     bool
	complex  Complex
	rows     int
	cols     int
	bands    int // logical
	rawBands int
	geom     geometry
	log      Logger

	raw     backing
	cleanup runtime.Cleanup
}

// NewWriter opens the segment described by opts for writing. The file must
// exist; it is extended when shorter than the segment. opts.Symmetry must be
// the zero value: blocks are written in stored orientation.
func NewWriter(path string, opts Options) (*Writer, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Symmetry != (Symmetry{}) {
		return nil, fmt.Errorf("%w: writers store blocks as given, symmetry %v is not supported",
			ErrInvalidConfig, opts.Symmetry)
	}
	switch opts.Complex.mode {
	case complexPaired:
		if opts.DataType.Kind != Float32 {
			return nil, fmt.Errorf("%w: paired complex data is written as float32, data type is %v",
				ErrInvalidConfig, opts.DataType)
		}
	case complexCustom:
		if opts.Complex.write == nil {
			return nil, fmt.Errorf("%w: custom complex type has no write transform", ErrInvalidConfig)
		}
	}

	w := &Writer{
		path:     path,
		dtype:    opts.DataType,
		swap:     opts.DataType.needsSwap(),
		complex:  opts.Complex,
		rows:     opts.Rows,
		cols:     opts.Cols,
		bands:    opts.Bands,
		rawBands: opts.Complex.RawBands(opts.Bands),
		log:      opts.Logger,
	}
	w.geom = geometry{offset: opts.Offset, rows: opts.Rows, cols: opts.Cols, pixel: w.rawBands * opts.DataType.Size()}

	raw, err := openBacking(path, w.geom, true, opts.NoMmap, opts.Logger)
	if err != nil {
		return nil, err
	}
	w.raw = raw
	w.cleanup = runtime.AddCleanup(w, releaseBacking, raw)
	return w, nil
}

// WithWriter opens a Writer, passes it to fn and closes it however fn exits.
// When fn fails or panics the file may be only partially written; this is
// logged and fn's error is returned joined with any close error.
func WithWriter(path string, opts Options, fn func(*Writer) error) (err error) {
	w, err := NewWriter(path, opts)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			w.reportCorrupt(fmt.Errorf("panic: %v", r))
			_ = w.Close()
			panic(r)
		}
		if err != nil {
			w.reportCorrupt(err)
		}
		err = errors.Join(err, w.Close())
	}()
	return fn(w)
}

func (w *Writer) reportCorrupt(cause error) {
	w.log.Error("writer failed; the file may be only partially written and corrupt",
		"path", w.path, "offset", w.geom.offset, "error", cause)
}

// Shape returns the stored (rows, cols, bands) of the segment, in logical bands.
func (w *Writer) Shape() (int, int, int) { return w.rows, w.cols, w.bands }

// Mapped reports whether writes go through a memory mapping.
func (w *Writer) Mapped() bool { return w.raw != nil && w.raw.mapped() }

// Write stores data with its top-left pixel at (startRow, startCol).
//
// Without complex handling data must already be in the on-disk kind. Paired
// complex mode takes complex64 or complex128 samples (narrowed to complex64)
// and stores them as float32 real/imaginary pairs. Custom mode stores the
// output of the write transform, which must be in the on-disk kind.
func (w *Writer) Write(data *Array, startRow, startCol int) error {
	if w.raw == nil {
		return ErrClosed
	}
	if err := data.validate(); err != nil {
		return err
	}
	raw, err := w.toRaw(data)
	if err != nil {
		return err
	}
	if startRow < 0 || startCol < 0 || startRow+raw.Rows > w.rows || startCol+raw.Cols > w.cols {
		return fmt.Errorf("%w: block [%d, %d) x [%d, %d) outside segment of %d x %d",
			ErrOutOfRange, startRow, startRow+raw.Rows, startCol, startCol+raw.Cols, w.rows, w.cols)
	}

	enc := raw.buf
	if w.swap {
		enc = append([]byte(nil), raw.buf...)
		swapBytes(enc, w.dtype.Kind.componentSize())
	}
	if err := w.put(enc, startRow, startCol, raw.Rows, raw.Cols); err != nil {
		return fmt.Errorf("%s: %w", w.path, err)
	}
	return nil
}

// toRaw converts data into stored samples.
func (w *Writer) toRaw(data *Array) (*Array, error) {
	var raw *Array
	switch w.complex.mode {
	case complexPaired:
		if !data.Kind.IsComplex() {
			return nil, fmt.Errorf("%w: paired complex writer expects complex64 or complex128, got %v",
				ErrDataType, data.Kind)
		}
		if data.Kind == Complex128 {
			data = narrowComplex(data)
		}
		raw = &Array{Rows: data.Rows, Cols: data.Cols, Bands: 2 * data.Bands, Kind: Float32, buf: data.buf}
	case complexCustom:
		out, err := w.complex.write(data)
		if err != nil {
			return nil, fmt.Errorf("complex transform: %w", err)
		}
		if err := out.validate(); err != nil {
			return nil, fmt.Errorf("complex transform: %w", err)
		}
		if out.Kind != w.dtype.Kind {
			return nil, fmt.Errorf("%w: writer expects %v, complex transform produced %v",
				ErrDataType, w.dtype.Kind, out.Kind)
		}
		if out.Rows != data.Rows || out.Cols != data.Cols {
			return nil, fmt.Errorf("%w: complex transform returned %d x %d pixels for %d x %d input",
				ErrShape, out.Rows, out.Cols, data.Rows, data.Cols)
		}
		raw = out
	default:
		if data.Kind != w.dtype.Kind {
			return nil, fmt.Errorf("%w: writer expects %v, got %v", ErrDataType, w.dtype.Kind, data.Kind)
		}
		raw = data
	}
	if raw.Bands != w.rawBands {
		return nil, fmt.Errorf("%w: data has %d stored bands per pixel, segment has %d",
			ErrShape, raw.Bands, w.rawBands)
	}
	return raw, nil
}

func (w *Writer) put(enc []byte, row, col, rows, cols int) error {
	rowBytes := cols * w.geom.pixel
	switch b := w.raw.(type) {
	case *mappedRegion:
		if col == 0 && cols == w.cols {
			b.put(row, 0, enc)
			return nil
		}
		for i := 0; i < rows; i++ {
			b.put(row+i, col, enc[i*rowBytes:(i+1)*rowBytes])
		}
		return nil
	case *seekableFile:
		if b.f == nil {
			return ErrClosed
		}
		if _, err := b.f.Seek(w.geom.at(row, col), io.SeekStart); err != nil {
			return err
		}
		if col == 0 && cols == w.cols {
			// Whole rows are contiguous on disk.
			return writeFull(b.f, enc)
		}
		skip := int64(w.cols-cols) * int64(w.geom.pixel)
		for i := 0; i < rows; i++ {
			if err := writeFull(b.f, enc[i*rowBytes:(i+1)*rowBytes]); err != nil {
				return fmt.Errorf("write row %d: %w", row+i, err)
			}
			if i < rows-1 {
				if _, err := b.f.Seek(skip, io.SeekCurrent); err != nil {
					return err
				}
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown backing %T", ErrInvalidConfig, w.raw)
	}
}

// Flush pushes written data to the file.
func (w *Writer) Flush() error {
	switch b := w.raw.(type) {
	case *mappedRegion:
		return b.flush()
	case *seekableFile:
		return b.flush()
	}
	return nil
}

// Close flushes and releases the mapping or file handle. It is safe to call
// more than once.
func (w *Writer) Close() error {
	if w == nil || w.raw == nil {
		return nil
	}
	w.cleanup.Stop()
	err := w.raw.close()
	w.raw = nil
	return err
}

func writeFull(f io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := f.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}
