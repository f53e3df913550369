package bip

import (
	"fmt"
	"runtime"
)

// Reader serves rectangular sub-arrays of a logical image.
type Reader interface {
	Read(rows, cols Range) (*Array, error)
	Shape() (rows, cols, bands int)
	Close() error
}

// Chipper reads one BIP segment.
type Chipper struct {
	path     string
	dtype    DataType
	swap     bool
	sym      Symmetry
	complex  Complex
	rows     int // logical
	cols     int // logical
	bands    int // logical
	rawBands int
	geom     geometry

	raw     backing
	cleanup runtime.Cleanup
}

var _ Reader = (*Chipper)(nil)

// NewChipper opens the segment described by opts in the file at path.
func NewChipper(path string, opts Options) (*Chipper, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Complex.mode == complexCustom && opts.Complex.read == nil {
		return nil, fmt.Errorf("%w: custom complex type has no read transform", ErrInvalidConfig)
	}

	c := &Chipper{
		path:     path,
		dtype:    opts.DataType,
		swap:     opts.DataType.needsSwap(),
		sym:      opts.Symmetry,
		complex:  opts.Complex,
		rows:     opts.Rows,
		cols:     opts.Cols,
		bands:    opts.Bands,
		rawBands: opts.Complex.RawBands(opts.Bands),
	}
	prows, pcols := opts.Symmetry.physicalShape(opts.Rows, opts.Cols)
	c.geom = geometry{offset: opts.Offset, rows: prows, cols: pcols, pixel: c.rawBands * opts.DataType.Size()}

	raw, err := openBacking(path, c.geom, false, opts.NoMmap, opts.Logger)
	if err != nil {
		return nil, err
	}
	c.raw = raw
	c.cleanup = runtime.AddCleanup(c, releaseBacking, raw)
	return c, nil
}

// Shape returns the logical (rows, cols, bands) served by Read.
func (c *Chipper) Shape() (int, int, int) { return c.rows, c.cols, c.bands }

// Mapped reports whether the segment is served from a memory mapping.
func (c *Chipper) Mapped() bool { return c.raw != nil && c.raw.mapped() }

// Read returns the logical sub-array selected by rows and cols.
func (c *Chipper) Read(rows, cols Range) (*Array, error) {
	if c.raw == nil {
		return nil, ErrClosed
	}
	rs, err := rows.normalize(c.rows)
	if err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	cs, err := cols.normalize(c.cols)
	if err != nil {
		return nil, fmt.Errorf("cols: %w", err)
	}
	return c.read(rs, cs)
}

// ReadAll returns the whole logical image.
func (c *Chipper) ReadAll() (*Array, error) { return c.Read(All(), All()) }

func (c *Chipper) read(rows, cols span) (*Array, error) {
	if c.raw == nil {
		return nil, ErrClosed
	}
	prs, pcs := c.sym.physical(rows, cols, c.geom.rows, c.geom.cols)
	raw, err := c.readStored(prs, pcs)
	if err != nil {
		return nil, err
	}
	out, err := c.fromRaw(raw)
	if err != nil {
		return nil, err
	}
	if c.sym.Transpose {
		out = out.transposed()
	}
	return out, nil
}

// readStored reads the stored block selected by rows × cols. Each stored row
// is fetched as one contiguous run covering the selected columns; stepping and
// reversal are applied in memory.
func (c *Chipper) readStored(rows, cols span) (*Array, error) {
	out := &Array{Rows: rows.count, Cols: cols.count, Bands: c.rawBands, Kind: c.dtype.Kind}
	out.buf = alloc(out.Kind, out.Len())

	pix := c.geom.pixel
	lo := cols.lo()
	width := cols.hi() - lo + 1
	rowBytes := cols.count * pix
	for i := 0; i < rows.count; i++ {
		row := rows.at(i)
		run, err := c.raw.run(row, lo, width)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.path, err)
		}
		dst := out.buf[i*rowBytes : (i+1)*rowBytes]
		if cols.step == 1 {
			copy(dst, run)
			continue
		}
		for j := 0; j < cols.count; j++ {
			k := (cols.at(j) - lo) * pix
			copy(dst[j*pix:(j+1)*pix], run[k:k+pix])
		}
	}
	if c.swap {
		swapBytes(out.buf, c.dtype.Kind.componentSize())
	}
	return out, nil
}

func (c *Chipper) fromRaw(raw *Array) (*Array, error) {
	switch c.complex.mode {
	case complexPaired:
		return pairedToComplex(raw)
	case complexCustom:
		out, err := c.complex.read(raw)
		if err != nil {
			return nil, fmt.Errorf("complex transform: %w", err)
		}
		if err := out.validate(); err != nil {
			return nil, fmt.Errorf("complex transform: %w", err)
		}
		if out.Rows != raw.Rows || out.Cols != raw.Cols || out.Bands != c.bands {
			return nil, fmt.Errorf("%w: complex transform returned shape (%d, %d, %d), want (%d, %d, %d)",
				ErrShape, out.Rows, out.Cols, out.Bands, raw.Rows, raw.Cols, c.bands)
		}
		return out, nil
	default:
		return raw, nil
	}
}

// Close releases the mapping or file handle. It is safe to call more than once.
func (c *Chipper) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	c.cleanup.Stop()
	err := c.raw.close()
	c.raw = nil
	return err
}
