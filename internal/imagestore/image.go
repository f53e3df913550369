package imagestore

import (
	"errors"
	"fmt"
	"math"

	"github.com/samcharles93/sarchip/pkg/bip"
	"github.com/samcharles93/sarchip/pkg/rcf"
)

var (
	ErrNotWritable = errors.New("imagestore: image cannot be written in place")
	ErrBadSegment  = errors.New("imagestore: segment does not match image info")
)

// Image is the metadata of an RCF container. Pixels are not held here: Reader
// and Writer open the segments of the file by offset.
type Image struct {
	path     string
	header   rcf.Header
	sections []rcf.Section
	info     rcf.ImageInfo
	segments []rcf.SegmentRecord

	dtype   bip.DataType
	complex bip.Complex
	sym     bip.Symmetry
}

// AccessOptions tune how segments are opened.
type AccessOptions struct {
	NoMmap bool
	Logger bip.Logger
}

// Open reads and validates the container metadata at path.
func Open(path string) (*Image, error) {
	rf, err := rcf.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rf.Close() }()

	info, err := rf.ImageInfo()
	if err != nil {
		return nil, err
	}
	segments, err := rf.Segments()
	if err != nil {
		return nil, err
	}
	img := &Image{
		path:     path,
		header:   *rf.Header,
		sections: append([]rcf.Section(nil), rf.Sections...),
		info:     *info,
		segments: segments,
	}
	if err := img.bind(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// bind resolves the image info into accessor options and checks every
// segment record against it.
func (img *Image) bind() error {
	dt, err := bip.ParseDataType(img.info.DataType)
	if err != nil {
		return err
	}
	img.dtype = dt
	switch img.info.Complex {
	case rcf.ComplexPaired:
		img.complex = bip.PairedComplex()
	default:
		img.complex = bip.Complex{}
	}
	img.sym = bip.Symmetry{
		FlipRows:  img.info.Symmetry.FlipRows,
		FlipCols:  img.info.Symmetry.FlipCols,
		Transpose: img.info.Symmetry.Transpose,
	}

	pixel := uint64(img.PixelBytes())
	for i, s := range img.segments {
		if s.RowEnd > math.MaxInt32 || s.ColEnd > math.MaxInt32 {
			return fmt.Errorf("%w: segment %d bounds too large", ErrBadSegment, i)
		}
		if want := s.Rows() * s.Cols() * pixel; s.DataSize != want {
			return fmt.Errorf("%w: segment %d holds %d bytes, %d x %d pixels need %d",
				ErrBadSegment, i, s.DataSize, s.Rows(), s.Cols(), want)
		}
	}
	rows, cols := 0, 0
	for _, s := range img.segments {
		rows, cols = max(rows, int(s.RowEnd)), max(cols, int(s.ColEnd))
	}
	if rows != img.info.Rows || cols != img.info.Cols {
		return fmt.Errorf("%w: segments cover %d x %d pixels, image info says %d x %d",
			ErrBadSegment, rows, cols, img.info.Rows, img.info.Cols)
	}
	return nil
}

func (img *Image) Path() string                  { return img.path }
func (img *Image) Header() rcf.Header            { return img.header }
func (img *Image) Sections() []rcf.Section       { return img.sections }
func (img *Image) Info() rcf.ImageInfo           { return img.info }
func (img *Image) Segments() []rcf.SegmentRecord { return img.segments }
func (img *Image) DataType() bip.DataType        { return img.dtype }

// PixelBytes is the stored size of one pixel over all raw bands.
func (img *Image) PixelBytes() int {
	return img.complex.RawBands(img.info.Bands) * img.dtype.Size()
}

// Layout returns the segment bounds and data offsets in index order.
func (img *Image) Layout() ([]bip.Bounds, []int64) {
	bounds := make([]bip.Bounds, len(img.segments))
	offsets := make([]int64, len(img.segments))
	for i, s := range img.segments {
		bounds[i] = bip.Bounds{
			RowStart: int(s.RowStart),
			RowEnd:   int(s.RowEnd),
			ColStart: int(s.ColStart),
			ColEnd:   int(s.ColEnd),
		}
		offsets[i] = int64(s.DataOff)
	}
	return bounds, offsets
}

// Options returns accessor options for the whole image. Rows, Cols and
// Offset describe a single-segment image; multi-segment accessors derive
// them per segment.
func (img *Image) Options(ao AccessOptions) bip.Options {
	opts := bip.Options{
		DataType: img.dtype,
		Rows:     img.info.Rows,
		Cols:     img.info.Cols,
		Symmetry: img.sym,
		Complex:  img.complex,
		Bands:    img.info.Bands,
		NoMmap:   ao.NoMmap,
		Logger:   ao.Logger,
	}
	if len(img.segments) == 1 {
		opts.Offset = int64(img.segments[0].DataOff)
	}
	return opts
}

// Reader opens the image for reading. Single-segment images are served by a
// bip.Chipper, others by a bip.MultiSegmentChipper.
func (img *Image) Reader(ao AccessOptions) (bip.Reader, error) {
	opts := img.Options(ao)
	if len(img.segments) == 1 {
		return bip.NewChipper(img.path, opts)
	}
	bounds, offsets := img.Layout()
	return bip.NewMultiSegmentChipper(img.path, bounds, offsets, opts)
}

// Writer opens every segment of the image for writing in stored orientation.
func (img *Image) Writer(ao AccessOptions) (*bip.MultiSegmentWriter, error) {
	if img.sym != (bip.Symmetry{}) {
		return nil, fmt.Errorf("%w: symmetry %v", ErrNotWritable, img.sym)
	}
	opts := img.Options(ao)
	bounds, offsets := img.Layout()
	return bip.NewMultiSegmentWriter(img.path, bounds, offsets, opts)
}
