package layoutfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samcharles93/sarchip/internal/logger"
	"github.com/samcharles93/sarchip/pkg/bip"
)

const twoSegments = `
data_type: "<i2"
rows: 4
cols: 3
symmetry: {flip_rows: true}
segments:
  - {bounds: [0, 2, 0, 3], offset: 16}
  - {bounds: [2, 4, 0, 3], offset: 64}
`

func TestParse(t *testing.T) {
	t.Parallel()

	m, err := Parse([]byte(twoSegments))
	require.NoError(t, err)

	opts := m.Options()
	require.Equal(t, bip.Int16, opts.DataType.Kind)
	require.True(t, opts.Symmetry.FlipRows)
	require.False(t, opts.Complex.IsComplex())

	bounds, offsets := m.Layout()
	require.Equal(t, []bip.Bounds{{RowStart: 0, RowEnd: 2, ColStart: 0, ColEnd: 3}, {RowStart: 2, RowEnd: 4, ColStart: 0, ColEnd: 3}}, bounds)
	require.Equal(t, []int64{16, 64}, offsets)
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unknown key":     "data_type: u1\nrows: 1\ncols: 1\nstride: 4\n",
		"bad data type":   "data_type: f3\nrows: 1\ncols: 1\n",
		"empty size":      "data_type: u1\nrows: 0\ncols: 1\n",
		"complex mode":    "data_type: <f4\nrows: 1\ncols: 1\ncomplex: polar\n",
		"short bounds":    "data_type: u1\nrows: 1\ncols: 1\nsegments: [{bounds: [0, 1, 0], offset: 0}]\n",
		"negative offset": "data_type: u1\nrows: 1\ncols: 1\noffset: -8\n",
	}
	for name, doc := range cases {
		_, err := Parse([]byte(doc))
		require.ErrorIs(t, err, ErrInvalidManifest, name)
	}
}

func TestOpenMultiSegment(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	raw := filepath.Join(dir, "image.bin")
	require.NoError(t, os.WriteFile(raw, make([]byte, 64+2*3*2), 0o644))

	m, err := Parse([]byte(twoSegments))
	require.NoError(t, err)

	// Fill in stored orientation: stored row r holds values 10*r + c.
	opts := m.Options()
	opts.Symmetry = bip.Symmetry{}
	bounds, offsets := m.Layout()
	w, err := bip.NewMultiSegmentWriter(raw, bounds, offsets, opts)
	require.NoError(t, err)
	vals := make([]int16, 12)
	for r := 0; r < 4; r++ {
		for c := 0; c < 3; c++ {
			vals[r*3+c] = int16(10*r + c)
		}
	}
	data, err := bip.FromSlice(vals, 4, 3, 1)
	require.NoError(t, err)
	require.NoError(t, w.Write(data, 0, 0))
	require.NoError(t, w.Close())

	manifest := filepath.Join(dir, "image.yaml")
	require.NoError(t, Save(manifest, m))
	loaded, err := Load(manifest)
	require.NoError(t, err)

	r, err := Open(raw, loaded, false, logger.Discard())
	require.NoError(t, err)
	defer func() { require.NoError(t, r.Close()) }()

	got, err := r.Read(bip.All(), bip.Span(1, 2))
	require.NoError(t, err)
	gotVals, err := bip.Values[int16](got)
	require.NoError(t, err)
	// Each segment is flipped within its own rows.
	require.Equal(t, []int16{11, 1, 31, 21}, gotVals)
}

func TestOpenShapeMismatch(t *testing.T) {
	t.Parallel()

	raw := filepath.Join(t.TempDir(), "image.bin")
	require.NoError(t, os.WriteFile(raw, make([]byte, 128), 0o644))

	m, err := Parse([]byte(twoSegments))
	require.NoError(t, err)
	m.Rows = 5

	_, err = Open(raw, m, true, logger.Discard())
	require.ErrorIs(t, err, ErrInvalidManifest)
}
