package rcf

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeTestContainer writes image info, a two-segment index and reserved
// segment data, returning the path and the segment records.
func writeTestContainer(t *testing.T) (string, []SegmentRecord) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "image.rcf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	defer func() { _ = f.Close() }()

	w, err := NewWriter(f)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	recs, err := PlanSegments(10, 8, 4, 5*8*4, 0)
	if err != nil {
		t.Fatalf("plan segments: %v", err)
	}
	sw, err := w.BeginSection(SectionSegmentData, 1)
	if err != nil {
		t.Fatalf("begin segment data: %v", err)
	}
	for i := range recs {
		if err := sw.Align(SegmentAlign); err != nil {
			t.Fatalf("align: %v", err)
		}
		off, err := sw.CurrentAbsOffset()
		if err != nil {
			t.Fatalf("offset: %v", err)
		}
		recs[i].DataOff = off
		if err := sw.Reserve(recs[i].DataSize); err != nil {
			t.Fatalf("reserve: %v", err)
		}
	}
	if err := sw.End(); err != nil {
		t.Fatalf("end segment data: %v", err)
	}

	index, err := EncodeSegmentIndexSection(recs)
	if err != nil {
		t.Fatalf("encode index: %v", err)
	}
	if err := w.WriteSection(SectionSegmentIndex, SegmentIndexVersion, index); err != nil {
		t.Fatalf("write index: %v", err)
	}
	info, err := EncodeImageInfoSection(ImageInfo{Name: "test", DataType: "<f4", Rows: 10, Cols: 8, Bands: 1})
	if err != nil {
		t.Fatalf("encode info: %v", err)
	}
	if err := w.WriteSection(SectionImageInfo, ImageInfoVersion, info); err != nil {
		t.Fatalf("write info: %v", err)
	}
	if err := w.AddFlags(FlagSegmentsAligned); err != nil {
		t.Fatalf("add flags: %v", err)
	}
	if err := w.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	return path, recs
}

func TestOpenRoundTrip(t *testing.T) {
	t.Parallel()

	path, recs := writeTestContainer(t)
	rf, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() {
		if cerr := rf.Close(); cerr != nil {
			t.Fatalf("close: %v", cerr)
		}
	}()

	if !rf.Mapped() {
		t.Fatalf("expected a mapped file")
	}
	if rf.Header.HeaderSize != rcfHeaderSize {
		t.Fatalf("header size mismatch: got %d want %d", rf.Header.HeaderSize, rcfHeaderSize)
	}
	if len(rf.Sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(rf.Sections))
	}
	for i := 1; i < len(rf.Sections); i++ {
		if rf.Sections[i-1].Type >= rf.Sections[i].Type {
			t.Fatalf("section directory not sorted: %+v", rf.Sections)
		}
	}

	info, err := rf.ImageInfo()
	if err != nil {
		t.Fatalf("image info: %v", err)
	}
	if info.Rows != 10 || info.Cols != 8 || info.DataType != "<f4" || info.Complex != ComplexNone {
		t.Fatalf("unexpected image info: %+v", info)
	}

	got, err := rf.Segments()
	if err != nil {
		t.Fatalf("segments: %v", err)
	}
	if len(got) != len(recs) {
		t.Fatalf("segment count: got %d want %d", len(got), len(recs))
	}
	for i := range recs {
		if got[i] != recs[i] {
			t.Fatalf("segment %d: got %+v want %+v", i, got[i], recs[i])
		}
		if got[i].DataOff%SegmentAlign != 0 {
			t.Fatalf("segment %d not aligned: %d", i, got[i].DataOff)
		}
	}

	data := rf.SectionData(rf.Section(SectionSegmentData))
	if !bytes.Equal(data, make([]byte, len(data))) {
		t.Fatalf("reserved segment data should read as zeros")
	}
}

func TestOpenReaderAtLoadsMetadataOnly(t *testing.T) {
	t.Parallel()

	path, _ := writeTestContainer(t)
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	defer func() { _ = f.Close() }()
	st, err := f.Stat()
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	rf, err := OpenReaderAt(f, st.Size())
	if err != nil {
		t.Fatalf("open readerat: %v", err)
	}
	defer func() { _ = rf.Close() }()

	if rf.Mapped() {
		t.Fatalf("OpenReaderAt should not mmap")
	}
	if _, err := rf.ImageInfo(); err != nil {
		t.Fatalf("image info: %v", err)
	}
	if _, err := rf.Segments(); err != nil {
		t.Fatalf("segments: %v", err)
	}
	if rf.SectionData(rf.Section(SectionSegmentData)) != nil {
		t.Fatalf("segment data should not be loaded without a mapping")
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	t.Parallel()

	path, _ := writeTestContainer(t)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	raw[0] = 'X'
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(path); !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestOpenRejectsTruncatedFile(t *testing.T) {
	t.Parallel()

	path, _ := writeTestContainer(t)
	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if err := os.Truncate(path, st.Size()-8); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if _, err := Open(path); !errors.Is(err, ErrCorruptFile) {
		t.Fatalf("expected ErrCorruptFile, got %v", err)
	}
}

func TestWriterRejectsDuplicateSection(t *testing.T) {
	t.Parallel()

	f, err := os.Create(filepath.Join(t.TempDir(), "dup.rcf"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer func() { _ = f.Close() }()

	w, err := NewWriter(f)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.WriteSection(SectionImageInfo, 1, []byte("{}")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := w.WriteSection(SectionImageInfo, 1, []byte("{}")); err == nil {
		t.Fatalf("expected duplicate section error")
	}

	sw, err := w.BeginSection(SectionSegmentData, 1)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := w.WriteSection(SectionSegmentIndex, 1, nil); !errors.Is(err, errSectionOpen) {
		t.Fatalf("expected errSectionOpen, got %v", err)
	}
	if err := sw.Close(); err != nil {
		t.Fatalf("close section: %v", err)
	}
	if _, err := sw.Write([]byte{1}); !errors.Is(err, errSectionEnded) {
		t.Fatalf("expected errSectionEnded, got %v", err)
	}
	if err := w.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	if err := w.Finalise(); !errors.Is(err, errFinalised) {
		t.Fatalf("expected errFinalised, got %v", err)
	}
}

func TestHeaderAndSectionEncodingLittleEndian(t *testing.T) {
	t.Parallel()

	h := Header{
		Magic:            [4]byte{'R', 'C', 'F', 0},
		Major:            0x1122,
		Minor:            0x3344,
		HeaderSize:       rcfHeaderSize,
		SectionCount:     7,
		SectionDirOffset: 0x0102030405060708,
		FileSize:         0x1112131415161718,
		Flags:            0x2122232425262728,
	}
	var hdrRaw [rcfHeaderSize]byte
	if !encodeHeader(hdrRaw[:], h) {
		t.Fatalf("encode header failed")
	}
	if hdrRaw[4] != 0x22 || hdrRaw[5] != 0x11 {
		t.Fatalf("major is not little-endian: %x", hdrRaw[4:6])
	}
	if hdrRaw[16] != 0x08 || hdrRaw[23] != 0x01 {
		t.Fatalf("section dir offset is not little-endian: %x", hdrRaw[16:24])
	}
	decodedH, ok := decodeHeader(hdrRaw[:])
	if !ok || decodedH != h {
		t.Fatalf("header round-trip mismatch: got %+v want %+v", decodedH, h)
	}

	s := Section{Type: 0x11223344, Version: 0x55667788, Offset: 0x0102030405060708, Size: 0x1112131415161718}
	var secRaw [rcfSectionSize]byte
	if !encodeSection(secRaw[:], s) {
		t.Fatalf("encode section failed")
	}
	if secRaw[0] != 0x44 || secRaw[3] != 0x11 {
		t.Fatalf("section type is not little-endian: %x", secRaw[0:4])
	}
	decodedS, ok := decodeSection(secRaw[:])
	if !ok || decodedS != s {
		t.Fatalf("section round-trip mismatch: got %+v want %+v", decodedS, s)
	}
}
