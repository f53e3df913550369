// Package rcf implements the Raster Container File format.
//
// RCF is a single-file, memory-mappable container for band-interleaved raster
// images stored as one or more rectangular segments. It records where each
// segment's pixels live and what they mean; it never stores pixels in any
// layout other than raw BIP.
//
// Layout:
//
//	header (40 bytes) | sections (8-byte aligned) | section directory
//
// All integers are little-endian.
package rcf

// RCF global constants must never change.
const (
	// MagicRCF is the file magic, encoded as "RCF\0".
	MagicRCF = "RCF\x00"

	// CurrentMajor changes only with breaking format changes.
	CurrentMajor uint16 = 1

	// CurrentMinor changes when optional sections or fields are added.
	CurrentMinor uint16 = 0

	// FlagSegmentsAligned means every segment starts on a SegmentAlign boundary.
	FlagSegmentsAligned uint64 = 1 << 0

	// SegmentAlign is the alignment of segment payloads within SectionSegmentData.
	SegmentAlign = 64
)

type SectionType uint32

const (
	SectionImageInfo    SectionType = 0x0001
	SectionSegmentIndex SectionType = 0x0002
	SectionSegmentData  SectionType = 0x0003
)

func (t SectionType) String() string {
	switch t {
	case SectionImageInfo:
		return "image-info"
	case SectionSegmentIndex:
		return "segment-index"
	case SectionSegmentData:
		return "segment-data"
	default:
		return "unknown"
	}
}
