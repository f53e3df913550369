package rcf

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// SegmentIndexVersion is the on-disk version of the segment index section payload.
const SegmentIndexVersion uint32 = 1

const (
	segmentIndexHeaderSize = 16
	segmentRecordSize      = 48
)

// SegmentRecord is the fixed-size on-disk record for one segment.
// Bounds are half-open logical pixel ranges.
type SegmentRecord struct {
	RowStart uint64
	RowEnd   uint64
	ColStart uint64
	ColEnd   uint64

	// DataOff is an absolute file offset (from start of file), not section-relative.
	DataOff  uint64
	DataSize uint64
}

func (r SegmentRecord) Rows() uint64 { return r.RowEnd - r.RowStart }
func (r SegmentRecord) Cols() uint64 { return r.ColEnd - r.ColStart }

// EncodeSegmentIndexSection builds a segment index section payload (v1).
// Records keep their order: it is the traversal order of the tiling.
func EncodeSegmentIndexSection(records []SegmentRecord) ([]byte, error) {
	if len(records) == 0 {
		return nil, errors.New("rcf: segment index requires at least one record")
	}
	if uint64(len(records)) > uint64(^uint32(0)) {
		return nil, errors.New("rcf: too many segments")
	}

	out := make([]byte, segmentIndexHeaderSize+len(records)*segmentRecordSize)
	binary.LittleEndian.PutUint32(out[0:4], SegmentIndexVersion)
	binary.LittleEndian.PutUint32(out[4:8], 0) // flags
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(records)))
	// out[12:16] reserved

	for i, r := range records {
		if r.RowEnd <= r.RowStart || r.ColEnd <= r.ColStart {
			return nil, fmt.Errorf("rcf: segment %d has empty bounds", i)
		}
		p := out[segmentIndexHeaderSize+i*segmentRecordSize:]
		binary.LittleEndian.PutUint64(p[0:8], r.RowStart)
		binary.LittleEndian.PutUint64(p[8:16], r.RowEnd)
		binary.LittleEndian.PutUint64(p[16:24], r.ColStart)
		binary.LittleEndian.PutUint64(p[24:32], r.ColEnd)
		binary.LittleEndian.PutUint64(p[32:40], r.DataOff)
		binary.LittleEndian.PutUint64(p[40:48], r.DataSize)
	}
	return out, nil
}

// ParseSegmentIndexSection decodes a segment index section payload.
// Pass it File.SectionData(File.Section(SectionSegmentIndex)).
func ParseSegmentIndexSection(sec []byte) ([]SegmentRecord, error) {
	if len(sec) < segmentIndexHeaderSize {
		return nil, fmt.Errorf("%w: segment index of %d bytes", ErrCorruptFile, len(sec))
	}
	if v := binary.LittleEndian.Uint32(sec[0:4]); v != SegmentIndexVersion {
		return nil, fmt.Errorf("%w: segment index version %d", ErrUnsupportedMinor, v)
	}
	count := uint64(binary.LittleEndian.Uint32(sec[8:12]))
	if count == 0 {
		return nil, fmt.Errorf("%w: segment index has no records", ErrCorruptFile)
	}
	if want := segmentIndexHeaderSize + count*segmentRecordSize; uint64(len(sec)) < want {
		return nil, fmt.Errorf("%w: segment index holds %d bytes, %d records need %d",
			ErrCorruptFile, len(sec), count, want)
	}

	recs := make([]SegmentRecord, count)
	for i := range recs {
		p := sec[segmentIndexHeaderSize+i*segmentRecordSize:]
		r := SegmentRecord{
			RowStart: binary.LittleEndian.Uint64(p[0:8]),
			RowEnd:   binary.LittleEndian.Uint64(p[8:16]),
			ColStart: binary.LittleEndian.Uint64(p[16:24]),
			ColEnd:   binary.LittleEndian.Uint64(p[24:32]),
			DataOff:  binary.LittleEndian.Uint64(p[32:40]),
			DataSize: binary.LittleEndian.Uint64(p[40:48]),
		}
		if r.RowEnd <= r.RowStart || r.ColEnd <= r.ColStart {
			return nil, fmt.Errorf("%w: segment %d has empty bounds", ErrCorruptFile, i)
		}
		recs[i] = r
	}
	return recs, nil
}
