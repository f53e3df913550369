package bip

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samcharles93/sarchip/internal/logger"
)

func TestValidateLayout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		bounds     []Bounds
		offsets    []int64
		rows, cols int
		wantErr    bool
	}{
		{name: "column tiles", bounds: []Bounds{{0, 10, 0, 5}, {0, 10, 5, 8}}, offsets: []int64{0, 200}, rows: 10, cols: 8},
		{name: "row bands", bounds: []Bounds{{0, 5, 0, 5}, {5, 10, 0, 5}}, offsets: []int64{0, 100}, rows: 10, cols: 5},
		{name: "single", bounds: []Bounds{{0, 3, 0, 4}}, offsets: []int64{0}, rows: 3, cols: 4},
		{
			name:    "grid",
			bounds:  []Bounds{{0, 2, 0, 3}, {0, 2, 3, 5}, {2, 4, 0, 1}, {2, 4, 1, 5}},
			offsets: []int64{0, 0, 0, 0}, rows: 4, cols: 5,
		},
		{name: "misaligned row band", bounds: []Bounds{{0, 10, 0, 5}, {3, 10, 5, 8}}, offsets: []int64{0, 0}, wantErr: true},
		{name: "empty", wantErr: true},
		{name: "offset count", bounds: []Bounds{{0, 1, 0, 1}}, offsets: []int64{0, 1}, wantErr: true},
		{name: "negative offset", bounds: []Bounds{{0, 1, 0, 1}}, offsets: []int64{-1}, wantErr: true},
		{name: "empty bounds", bounds: []Bounds{{0, 0, 0, 1}}, offsets: []int64{0}, wantErr: true},
		{name: "not at origin", bounds: []Bounds{{1, 2, 0, 1}}, offsets: []int64{0}, wantErr: true},
		{name: "gap between tiles", bounds: []Bounds{{0, 2, 0, 2}, {0, 2, 3, 5}}, offsets: []int64{0, 0}, wantErr: true},
		{name: "overlapping bands", bounds: []Bounds{{0, 2, 0, 2}, {1, 3, 0, 2}}, offsets: []int64{0, 0}, wantErr: true},
		{
			name:    "short second band",
			bounds:  []Bounds{{0, 2, 0, 4}, {2, 4, 0, 3}},
			offsets: []int64{0, 0}, wantErr: true,
		},
		{
			name:    "new band before width",
			bounds:  []Bounds{{0, 2, 0, 4}, {2, 4, 0, 2}, {4, 6, 0, 4}},
			offsets: []int64{0, 0, 0}, wantErr: true,
		},
		{
			name:    "past width",
			bounds:  []Bounds{{0, 2, 0, 4}, {2, 4, 0, 2}, {2, 4, 2, 6}},
			offsets: []int64{0, 0, 0}, wantErr: true,
		},
	}
	for _, tc := range tests {
		rows, cols, err := validateLayout(tc.bounds, tc.offsets)
		if tc.wantErr {
			require.ErrorIs(t, err, ErrInvalidLayout, tc.name)
			continue
		}
		require.NoError(t, err, tc.name)
		require.Equal(t, [2]int{tc.rows, tc.cols}, [2]int{rows, cols}, tc.name)
	}
}

func TestMultiSegmentRejectsLayoutBeforeOpening(t *testing.T) {
	t.Parallel()

	// The path does not exist: a layout error proves nothing was opened.
	_, err := NewMultiSegmentChipper("/nonexistent/segment.bin",
		[]Bounds{{0, 10, 0, 5}, {3, 10, 5, 8}}, []int64{0, 0}, Options{DataType: le4})
	require.ErrorIs(t, err, ErrInvalidLayout)
}

func TestMultiSegmentDispatch(t *testing.T) {
	t.Parallel()

	// Two 5x5 row bands filled with 1 and 2, back to back.
	fill := make([]float32, 50)
	for i := 25; i < 50; i++ {
		fill[i] = 1
	}
	for i := range fill {
		fill[i]++
	}
	path := writeFloats(t, 0, fill)

	for _, noMmap := range []bool{false, true} {
		m, err := NewMultiSegmentChipper(path, []Bounds{{0, 5, 0, 5}, {5, 10, 0, 5}}, []int64{0, 100},
			Options{DataType: le4, NoMmap: noMmap, Logger: logger.Discard()})
		require.NoError(t, err)
		require.Equal(t, 2, m.Children())

		rows, cols, bands := m.Shape()
		require.Equal(t, [3]int{10, 5, 1}, [3]int{rows, cols, bands})

		top, err := m.Read(Span(0, 5), All())
		require.NoError(t, err)
		for _, v := range floats(t, top) {
			require.Equal(t, float32(1), v)
		}
		bottom, err := m.Read(Span(5, 10), All())
		require.NoError(t, err)
		for _, v := range floats(t, bottom) {
			require.Equal(t, float32(2), v)
		}

		across, err := m.Read(Range{Start: 8, Stop: 1, Step: -2}, Span(1, 2))
		require.NoError(t, err)
		require.Equal(t, []float32{2, 2, 1, 1}, floats(t, across))

		require.NoError(t, m.Close())
		require.NoError(t, m.Close())
		_, err = m.ReadAll()
		require.ErrorIs(t, err, ErrClosed)
	}
}

func TestMultiSegmentMatchesSingleSegment(t *testing.T) {
	t.Parallel()

	// A 6x8 image with two bands stored as a 4+2 column split in each of two
	// row bands. The reference is the same image as one segment.
	const rows, cols, bands = 6, 8, 2
	img := ramp(rows * cols * bands)
	bounds := []Bounds{{0, 3, 0, 4}, {0, 3, 4, 8}, {3, 6, 0, 6}, {3, 6, 6, 8}}

	var seg []float32
	var offsets []int64
	for _, b := range bounds {
		offsets = append(offsets, int64(4*len(seg)))
		for r := b.RowStart; r < b.RowEnd; r++ {
			for c := b.ColStart; c < b.ColEnd; c++ {
				i := (r*cols + c) * bands
				seg = append(seg, img[i:i+bands]...)
			}
		}
	}
	segPath := writeFloats(t, 0, seg)
	refPath := writeFloats(t, 0, img)

	ref := openChipper(t, refPath, Options{DataType: le4, Rows: rows, Cols: cols, Bands: bands})
	ranges := []Range{All(), Reversed(), {Start: 1, Stop: ToEnd, Step: 3}, {Start: 5, Stop: 2, Step: -1}, Span(2, 5)}
	for _, noMmap := range []bool{false, true} {
		m, err := NewMultiSegmentChipper(segPath, bounds, offsets,
			Options{DataType: le4, Bands: bands, NoMmap: noMmap, Logger: logger.Discard()})
		require.NoError(t, err)
		for _, rr := range ranges {
			for _, cr := range ranges {
				want, err := ref.Read(rr, cr)
				require.NoError(t, err)
				got, err := m.Read(rr, cr)
				require.NoError(t, err, "rows %v cols %v", rr, cr)
				require.Equal(t, floats(t, want), floats(t, got), "rows %v cols %v noMmap=%v", rr, cr, noMmap)
			}
		}
		require.NoError(t, m.Close())
	}
}

func TestMultiSegmentWriterSplitsBlocks(t *testing.T) {
	t.Parallel()

	path := emptyFile(t)
	bounds := []Bounds{{0, 2, 0, 3}, {0, 2, 3, 4}, {2, 4, 0, 4}}
	offsets := []int64{0, 64, 128}
	opts := Options{DataType: MustParseDataType(">f4"), Logger: logger.Discard()}

	w, err := NewMultiSegmentWriter(path, bounds, offsets, opts)
	require.NoError(t, err)
	rows, cols := w.Shape()
	require.Equal(t, [2]int{4, 4}, [2]int{rows, cols})

	full, err := FromSlice(ramp(16), 4, 4, 1)
	require.NoError(t, err)
	require.NoError(t, w.Write(full, 0, 0))
	patch, err := FromSlice([]float32{-1, -2, -3, -4}, 2, 2, 1)
	require.NoError(t, err)
	require.NoError(t, w.Write(patch, 1, 2))
	require.ErrorIs(t, w.Write(patch, 3, 0), ErrOutOfRange)
	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())

	m, err := NewMultiSegmentChipper(path, bounds, offsets, opts)
	require.NoError(t, err)
	defer func() { require.NoError(t, m.Close()) }()
	got, err := m.ReadAll()
	require.NoError(t, err)
	require.Equal(t, []float32{
		0, 1, 2, 3,
		4, 5, -1, -2,
		8, 9, -3, -4,
		12, 13, 14, 15,
	}, floats(t, got))
}
