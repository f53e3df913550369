package rcf

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"golang.org/x/sys/unix"
)

// File is an opened container. Metadata sections are always available
// through SectionData; segment pixels are accessed by offset from the file
// itself, so they are only addressable here when the file is memory mapped.
type File struct {
	Header   *Header
	Sections []Section

	data    []byte                 // whole file, when mapped
	loaded  map[SectionType][]byte // metadata sections, when not mapped
	size    int64
	mmapped bool
}

// Open maps an RCF file read-only and validates its structure.
// If mmap is unavailable, it falls back to loading the header, the section
// directory and the metadata sections with ReadAt.
// The returned file must be closed to release any mapping.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := stat.Size()
	if size < rcfHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is smaller than the header", ErrCorruptFile, size)
	}

	if size <= math.MaxInt {
		data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
		if err == nil {
			rf, parseErr := parseMapped(data)
			if parseErr != nil {
				_ = unix.Munmap(data)
				return nil, parseErr
			}
			return rf, nil
		}
	}
	return OpenReaderAt(f, size)
}

// OpenReaderAt loads and validates an RCF from a random-access reader without mmap.
func OpenReaderAt(r io.ReaderAt, size int64) (*File, error) {
	if size < rcfHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is smaller than the header", ErrCorruptFile, size)
	}
	var hdrBuf [rcfHeaderSize]byte
	if err := readFullAt(r, hdrBuf[:], 0); err != nil {
		return nil, err
	}
	hdr, err := checkHeader(hdrBuf[:], size)
	if err != nil {
		return nil, err
	}
	dir := make([]byte, int(hdr.SectionCount)*rcfSectionSize)
	if err := readFullAt(r, dir, int64(hdr.SectionDirOffset)); err != nil {
		return nil, err
	}
	sections, err := decodeDirectory(&hdr, dir, size)
	if err != nil {
		return nil, err
	}

	rf := &File{Header: &hdr, Sections: sections, size: size, loaded: make(map[SectionType][]byte)}
	for _, typ := range []SectionType{SectionImageInfo, SectionSegmentIndex} {
		s := rf.Section(typ)
		if s == nil {
			continue
		}
		if s.Size > maxMetadataSection {
			return nil, fmt.Errorf("%w: %v section of %d bytes", ErrCorruptFile, typ, s.Size)
		}
		buf := make([]byte, int(s.Size))
		if err := readFullAt(r, buf, int64(s.Offset)); err != nil {
			return nil, err
		}
		rf.loaded[typ] = buf
	}
	return rf, nil
}

// maxMetadataSection bounds what OpenReaderAt loads into memory.
const maxMetadataSection = 64 << 20

func readFullAt(r io.ReaderAt, p []byte, off int64) error {
	n, err := r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return err
}

func parseMapped(data []byte) (*File, error) {
	size := int64(len(data))
	hdr, err := checkHeader(data, size)
	if err != nil {
		return nil, err
	}
	dirStart := hdr.SectionDirOffset
	sections, err := decodeDirectory(&hdr, data[dirStart:dirStart+uint64(hdr.SectionCount)*rcfSectionSize], size)
	if err != nil {
		return nil, err
	}
	return &File{Header: &hdr, Sections: sections, data: data, size: size, mmapped: true}, nil
}

// checkHeader decodes and validates the header, including the position of
// the section directory.
func checkHeader(src []byte, size int64) (Header, error) {
	hdr, ok := decodeHeader(src)
	if !ok {
		return Header{}, ErrCorruptFile
	}
	if string(hdr.Magic[:]) != MagicRCF {
		return Header{}, ErrInvalidMagic
	}
	if !hdr.Valid() {
		return Header{}, fmt.Errorf("%w: invalid header", ErrCorruptFile)
	}
	if !hdr.Compatible() {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedMajor, hdr.Major)
	}
	if hdr.FileSize != uint64(size) {
		return Header{}, fmt.Errorf("%w: header records %d bytes, file has %d", ErrCorruptFile, hdr.FileSize, size)
	}
	if uint64(hdr.HeaderSize) > uint64(size) {
		return Header{}, ErrCorruptFile
	}
	dirStart := hdr.SectionDirOffset
	dirEnd := dirStart + uint64(hdr.SectionCount)*rcfSectionSize
	if dirStart < uint64(hdr.HeaderSize) || dirEnd < dirStart || dirEnd > uint64(size) {
		return Header{}, fmt.Errorf("%w: section directory out of bounds", ErrCorruptFile)
	}
	return hdr, nil
}

// decodeDirectory decodes the section directory and checks every section
// lies inside the file without touching the header or the directory.
func decodeDirectory(hdr *Header, dir []byte, size int64) ([]Section, error) {
	dirStart := hdr.SectionDirOffset
	dirEnd := dirStart + uint64(len(dir))

	sections := make([]Section, hdr.SectionCount)
	seen := make(map[uint32]struct{}, len(sections))
	for i := range sections {
		s, ok := decodeSection(dir[i*rcfSectionSize : (i+1)*rcfSectionSize])
		if !ok {
			return nil, ErrCorruptFile
		}
		end := s.Offset + s.Size
		switch {
		case end < s.Offset:
			return nil, fmt.Errorf("%w: section %d offset overflow", ErrCorruptFile, i)
		case end > uint64(size):
			return nil, fmt.Errorf("%w: section %d out of bounds", ErrCorruptFile, i)
		case s.Offset < uint64(hdr.HeaderSize):
			return nil, fmt.Errorf("%w: section %d overlaps header", ErrCorruptFile, i)
		case rangesOverlap(s.Offset, end, dirStart, dirEnd):
			return nil, fmt.Errorf("%w: section %d overlaps section directory", ErrCorruptFile, i)
		case s.Offset%rcfAlign != 0:
			return nil, fmt.Errorf("%w: section %d offset not %d-byte aligned", ErrCorruptFile, i, rcfAlign)
		}
		if _, dup := seen[s.Type]; dup {
			return nil, fmt.Errorf("%w: duplicate %v section", ErrCorruptFile, SectionType(s.Type))
		}
		seen[s.Type] = struct{}{}
		sections[i] = s
	}
	return sections, nil
}

// Mapped reports whether the whole file is memory mapped.
func (f *File) Mapped() bool { return f != nil && f.mmapped }

// Size returns the file size in bytes.
func (f *File) Size() int64 { return f.size }

// Close releases file resources and any mmap backing.
func (f *File) Close() error {
	if f == nil {
		return nil
	}
	var err error
	if f.mmapped && f.data != nil {
		err = unix.Munmap(f.data)
	}
	f.data = nil
	f.loaded = nil
	f.Header = nil
	f.Sections = nil
	f.mmapped = false
	return err
}

// Section returns the section of the given type, or nil if it does not exist.
func (f *File) Section(t SectionType) *Section {
	for i := range f.Sections {
		if SectionType(f.Sections[i].Type) == t {
			return &f.Sections[i]
		}
	}
	return nil
}

// SectionData returns the payload of s. For mapped files the slice aliases
// the mapping and must not be retained after Close. For files opened without
// a mapping only metadata sections are available; other sections return nil.
func (f *File) SectionData(s *Section) []byte {
	if f == nil || s == nil {
		return nil
	}
	if !f.mmapped {
		return f.loaded[SectionType(s.Type)]
	}
	if f.data == nil || s.End() > uint64(len(f.data)) {
		return nil
	}
	return f.data[int(s.Offset):int(s.End())]
}

// ImageInfo decodes the image description.
func (f *File) ImageInfo() (*ImageInfo, error) {
	s := f.Section(SectionImageInfo)
	if s == nil {
		return nil, fmt.Errorf("%w: %v", ErrSectionNotFound, SectionImageInfo)
	}
	return ParseImageInfoSection(f.SectionData(s))
}

// Segments decodes the segment index and checks every segment lies inside
// the segment data section.
func (f *File) Segments() ([]SegmentRecord, error) {
	s := f.Section(SectionSegmentIndex)
	if s == nil {
		return nil, fmt.Errorf("%w: %v", ErrSectionNotFound, SectionSegmentIndex)
	}
	data := f.Section(SectionSegmentData)
	if data == nil {
		return nil, fmt.Errorf("%w: %v", ErrSectionNotFound, SectionSegmentData)
	}
	recs, err := ParseSegmentIndexSection(f.SectionData(s))
	if err != nil {
		return nil, err
	}
	aligned := f.Header.Flags&FlagSegmentsAligned != 0
	for i, r := range recs {
		end := r.DataOff + r.DataSize
		if end < r.DataOff || r.DataOff < data.Offset || end > data.End() {
			return nil, fmt.Errorf("%w: segment %d bytes [%d, %d) outside segment data [%d, %d)",
				ErrCorruptFile, i, r.DataOff, end, data.Offset, data.End())
		}
		if aligned && r.DataOff%SegmentAlign != 0 {
			return nil, fmt.Errorf("%w: segment %d offset %d not %d-byte aligned", ErrCorruptFile, i, r.DataOff, SegmentAlign)
		}
	}
	return recs, nil
}
