package bip

import (
	"errors"
	"fmt"
)

// Bounds is the half-open logical rectangle [RowStart, RowEnd) × [ColStart, ColEnd)
// covered by one segment.
type Bounds struct {
	RowStart int
	RowEnd   int
	ColStart int
	ColEnd   int
}

func (b Bounds) Rows() int { return b.RowEnd - b.RowStart }
func (b Bounds) Cols() int { return b.ColEnd - b.ColStart }

func (b Bounds) String() string {
	return fmt.Sprintf("[%d, %d, %d, %d]", b.RowStart, b.RowEnd, b.ColStart, b.ColEnd)
}

func (b Bounds) valid() bool {
	return 0 <= b.RowStart && b.RowStart < b.RowEnd && 0 <= b.ColStart && b.ColStart < b.ColEnd
}

type tileState uint8

const (
	// expectContinueRow: the current row band has not reached the image width.
	expectContinueRow tileState = iota
	// expectNewRow: the current row band spans the image width.
	expectNewRow
)

// validateLayout checks that bounds tile a rows × cols image row band by row
// band, left to right, and that there is one non-negative offset per segment.
// The image width is fixed by the first row band.
func validateLayout(bounds []Bounds, offsets []int64) (rows, cols int, err error) {
	if len(bounds) == 0 {
		return 0, 0, fmt.Errorf("%w: no segments", ErrInvalidLayout)
	}
	if len(offsets) != len(bounds) {
		return 0, 0, fmt.Errorf("%w: %d data offsets for %d segments", ErrInvalidLayout, len(offsets), len(bounds))
	}
	for i, off := range offsets {
		if off < 0 {
			return 0, 0, fmt.Errorf("%w: data offset %d is %d, must be non-negative", ErrInvalidLayout, i, off)
		}
	}

	width := 0 // unknown until the first row band is closed
	state := expectContinueRow
	for i, b := range bounds {
		if !b.valid() {
			return 0, 0, fmt.Errorf("%w: entry %d of bounds is %v, and cannot be of the form "+
				"[row start, row end, column start, column end]", ErrInvalidLayout, i, b)
		}
		if i == 0 {
			if b.RowStart != 0 || b.ColStart != 0 {
				return 0, 0, fmt.Errorf("%w: entry 0 of bounds is %v, must start at row 0, column 0", ErrInvalidLayout, b)
			}
			continue
		}

		prev := bounds[i-1]
		continues := b.RowStart == prev.RowStart && b.RowEnd == prev.RowEnd && b.ColStart == prev.ColEnd
		newRow := b.RowStart == prev.RowEnd && b.ColStart == 0
		switch state {
		case expectContinueRow:
			switch {
			case continues:
			case newRow && width == 0:
				width = prev.ColEnd
			case newRow:
				return 0, 0, fmt.Errorf("%w: row band ending at entry %d covers columns [0, %d), "+
					"entry %d cannot start a new row band before reaching column %d",
					ErrInvalidLayout, i-1, prev.ColEnd, i, width)
			default:
				return 0, 0, fmt.Errorf("%w: entry %d %v neither continues the row band of entry %d %v "+
					"nor starts a new row band beneath it", ErrInvalidLayout, i, b, i-1, prev)
			}
		case expectNewRow:
			if !newRow {
				return 0, 0, fmt.Errorf("%w: row band is complete at entry %d %v, entry %d %v must start "+
					"at row %d, column 0", ErrInvalidLayout, i-1, prev, i, b, prev.RowEnd)
			}
		}

		switch {
		case width == 0:
			state = expectContinueRow
		case b.ColEnd > width:
			return 0, 0, fmt.Errorf("%w: entry %d %v extends past the image width %d", ErrInvalidLayout, i, b, width)
		case b.ColEnd == width:
			state = expectNewRow
		default:
			state = expectContinueRow
		}
	}

	last := bounds[len(bounds)-1]
	if width == 0 {
		width = last.ColEnd
	} else if last.ColEnd != width {
		return 0, 0, fmt.Errorf("%w: final row band ends at column %d, short of the image width %d",
			ErrInvalidLayout, last.ColEnd, width)
	}
	return last.RowEnd, width, nil
}

// MultiSegmentChipper stitches BIP segments that tile one logical image.
type MultiSegmentChipper struct {
	bounds   []Bounds
	children []*Chipper
	rows     int
	cols     int
	bands    int
}

var _ Reader = (*MultiSegmentChipper)(nil)

// NewMultiSegmentChipper opens one Chipper per segment. bounds are in logical
// coordinates; opts.Rows, opts.Cols and opts.Offset are taken from bounds and
// offsets. The layout is validated before any file is opened. opts.Symmetry
// is applied by each child within its own segment.
func NewMultiSegmentChipper(path string, bounds []Bounds, offsets []int64, opts Options) (*MultiSegmentChipper, error) {
	rows, cols, err := validateLayout(bounds, offsets)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	m := &MultiSegmentChipper{
		bounds:   append([]Bounds(nil), bounds...),
		children: make([]*Chipper, 0, len(bounds)),
		rows:     rows,
		cols:     cols,
		bands:    opts.Bands,
	}
	for i, b := range bounds {
		o := opts
		o.Rows, o.Cols, o.Offset = b.Rows(), b.Cols(), offsets[i]
		child, err := NewChipper(path, o)
		if err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		m.children = append(m.children, child)
	}
	return m, nil
}

func (m *MultiSegmentChipper) Shape() (int, int, int) { return m.rows, m.cols, m.bands }

// Children returns the number of stitched segments.
func (m *MultiSegmentChipper) Children() int { return len(m.bounds) }

// Read decomposes the selection over the segments it touches and assembles
// the pieces into one array.
func (m *MultiSegmentChipper) Read(rows, cols Range) (*Array, error) {
	if m.children == nil {
		return nil, ErrClosed
	}
	rs, err := rows.normalize(m.rows)
	if err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	cs, err := cols.normalize(m.cols)
	if err != nil {
		return nil, fmt.Errorf("cols: %w", err)
	}

	var out *Array
	for i, b := range m.bounds {
		i0, i1 := rs.within(b.RowStart, b.RowEnd)
		if i0 == i1 {
			continue
		}
		j0, j1 := cs.within(b.ColStart, b.ColEnd)
		if j0 == j1 {
			continue
		}
		part, err := m.children[i].read(rs.local(i0, i1, b.RowStart), cs.local(j0, j1, b.ColStart))
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		if out == nil {
			if out, err = NewArray(part.Kind, rs.count, cs.count, part.Bands); err != nil {
				return nil, err
			}
		} else if part.Kind != out.Kind || part.Bands != out.Bands {
			return nil, fmt.Errorf("%w: segment %d returned %v x %d bands, earlier segments %v x %d bands",
				ErrDataType, i, part.Kind, part.Bands, out.Kind, out.Bands)
		}
		out.paste(part, i0, j0)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: selection touches no segment", ErrOutOfRange)
	}
	return out, nil
}

func (m *MultiSegmentChipper) ReadAll() (*Array, error) { return m.Read(All(), All()) }

// Close closes every segment. It is safe to call more than once.
func (m *MultiSegmentChipper) Close() error {
	if m == nil || m.children == nil {
		return nil
	}
	var errs []error
	for i, c := range m.children {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("segment %d: %w", i, err))
		}
	}
	m.children = nil
	return errors.Join(errs...)
}

// MultiSegmentWriter writes a logical image split over segments that tile it,
// with one Writer per segment.
type MultiSegmentWriter struct {
	bounds   []Bounds
	children []*Writer
	rows     int
	cols     int
}

// NewMultiSegmentWriter opens one Writer per segment after validating the layout.
func NewMultiSegmentWriter(path string, bounds []Bounds, offsets []int64, opts Options) (*MultiSegmentWriter, error) {
	rows, cols, err := validateLayout(bounds, offsets)
	if err != nil {
		return nil, err
	}
	m := &MultiSegmentWriter{
		bounds:   append([]Bounds(nil), bounds...),
		children: make([]*Writer, 0, len(bounds)),
		rows:     rows,
		cols:     cols,
	}
	for i, b := range bounds {
		o := opts
		o.Rows, o.Cols, o.Offset = b.Rows(), b.Cols(), offsets[i]
		child, err := NewWriter(path, o)
		if err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		m.children = append(m.children, child)
	}
	return m, nil
}

func (m *MultiSegmentWriter) Shape() (int, int) { return m.rows, m.cols }

// Write stores data with its top-left pixel at (startRow, startCol), splitting
// it over the segments it overlaps.
func (m *MultiSegmentWriter) Write(data *Array, startRow, startCol int) error {
	if m.children == nil {
		return ErrClosed
	}
	if err := data.validate(); err != nil {
		return err
	}
	endRow, endCol := startRow+data.Rows, startCol+data.Cols
	if startRow < 0 || startCol < 0 || endRow > m.rows || endCol > m.cols {
		return fmt.Errorf("%w: block [%d, %d) x [%d, %d) outside image of %d x %d",
			ErrOutOfRange, startRow, endRow, startCol, endCol, m.rows, m.cols)
	}
	for i, b := range m.bounds {
		r0, r1 := max(startRow, b.RowStart), min(endRow, b.RowEnd)
		c0, c1 := max(startCol, b.ColStart), min(endCol, b.ColEnd)
		if r0 >= r1 || c0 >= c1 {
			continue
		}
		part := data
		if r0 != startRow || r1 != endRow || c0 != startCol || c1 != endCol {
			part = data.sub(r0-startRow, r1-startRow, c0-startCol, c1-startCol)
		}
		if err := m.children[i].Write(part, r0-b.RowStart, c0-b.ColStart); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
	}
	return nil
}

// Flush flushes every segment writer.
func (m *MultiSegmentWriter) Flush() error {
	var errs []error
	for i, w := range m.children {
		if err := w.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("segment %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every segment writer. It is safe to call more than once.
func (m *MultiSegmentWriter) Close() error {
	if m == nil || m.children == nil {
		return nil
	}
	var errs []error
	for i, w := range m.children {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("segment %d: %w", i, err))
		}
	}
	m.children = nil
	return errors.Join(errs...)
}
