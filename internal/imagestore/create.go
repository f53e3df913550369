package imagestore

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/samcharles93/sarchip/pkg/bip"
	"github.com/samcharles93/sarchip/pkg/rcf"
)

// CreateOptions describes a new container. Pixel storage is reserved, not
// written: every segment reads as zeros until filled through Image.Writer.
type CreateOptions struct {
	Name      string
	DataType  bip.DataType
	Rows      int
	Cols      int
	Bands     int // logical bands; zero means one
	Paired    bool
	CreatedBy string

	// MaxSegmentBytes caps the size of one segment; zero means a single row band.
	MaxSegmentBytes int64
	// MaxCols caps the width of one segment; zero means full width.
	MaxCols int
}

// Create writes the container skeleton at path, replacing any existing file.
func Create(path string, opts CreateOptions) (*Image, error) {
	if opts.Bands == 0 {
		opts.Bands = 1
	}
	if !opts.DataType.Kind.Valid() {
		return nil, fmt.Errorf("%w: data type is required", bip.ErrInvalidConfig)
	}
	cplx := bip.Complex{}
	info := rcf.ImageInfo{
		ID:        uuid.NewString(),
		Name:      opts.Name,
		DataType:  opts.DataType.Explicit().String(),
		Rows:      opts.Rows,
		Cols:      opts.Cols,
		Bands:     opts.Bands,
		Complex:   rcf.ComplexNone,
		CreatedBy: opts.CreatedBy,
	}
	if opts.Paired {
		if opts.DataType.Kind != bip.Float32 {
			return nil, fmt.Errorf("%w: paired complex images are stored as float32, got %v",
				bip.ErrInvalidConfig, opts.DataType)
		}
		cplx = bip.PairedComplex()
		info.Complex = rcf.ComplexPaired
	}
	infoData, err := rcf.EncodeImageInfoSection(info)
	if err != nil {
		return nil, err
	}

	pixel := cplx.RawBands(opts.Bands) * opts.DataType.Size()
	segments, err := rcf.PlanSegments(opts.Rows, opts.Cols, pixel, opts.MaxSegmentBytes, opts.MaxCols)
	if err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := writeContainer(f, infoData, segments); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return Open(path)
}

// writeContainer lays out segment data first so segment offsets are known
// before the index is written; Finalise orders the directory by type.
func writeContainer(f *os.File, infoData []byte, segments []rcf.SegmentRecord) error {
	w, err := rcf.NewWriter(f)
	if err != nil {
		return err
	}

	sw, err := w.BeginSection(rcf.SectionSegmentData, 1)
	if err != nil {
		return err
	}
	for i := range segments {
		if err := sw.Align(rcf.SegmentAlign); err != nil {
			return err
		}
		off, err := sw.CurrentAbsOffset()
		if err != nil {
			return err
		}
		segments[i].DataOff = off
		if err := sw.Reserve(segments[i].DataSize); err != nil {
			return err
		}
	}
	if err := sw.End(); err != nil {
		return err
	}

	index, err := rcf.EncodeSegmentIndexSection(segments)
	if err != nil {
		return err
	}
	if err := w.WriteSection(rcf.SectionSegmentIndex, rcf.SegmentIndexVersion, index); err != nil {
		return err
	}
	if err := w.WriteSection(rcf.SectionImageInfo, rcf.ImageInfoVersion, infoData); err != nil {
		return err
	}
	if err := w.AddFlags(rcf.FlagSegmentsAligned); err != nil {
		return err
	}
	return w.Finalise()
}
