package bip

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"golang.org/x/sys/unix"
)

// geometry locates a stored segment inside its file.
type geometry struct {
	offset int64
	rows   int // stored rows
	cols   int // stored cols
	pixel  int // bytes per pixel, all bands
}

func (g geometry) stride() int64 { return int64(g.cols) * int64(g.pixel) }

func (g geometry) extent() (int64, error) {
	s := g.stride()
	if s <= 0 || int64(g.rows) > (math.MaxInt64-g.offset)/s {
		return 0, fmt.Errorf("%w: segment of %d x %d pixels at offset %d overflows int64",
			ErrInvalidConfig, g.rows, g.cols, g.offset)
	}
	return int64(g.rows) * s, nil
}

// at is the absolute file offset of pixel (row, col).
func (g geometry) at(row, col int) int64 {
	return g.offset + int64(row)*g.stride() + int64(col)*int64(g.pixel)
}

// backing is the storage behind one segment: either a mappedRegion or a
// seekableFile, chosen once when the segment is opened.
type backing interface {
	// run returns n pixels of stored row starting at col. The slice is only
	// valid until the next call and must not be modified.
	run(row, col, n int) ([]byte, error)
	mapped() bool
	close() error
}

type mappedRegion struct {
	geom     geometry
	data     []byte
	base     int // segment start within data
	writable bool
}

type seekableFile struct {
	geom geometry
	f    *os.File
	buf  []byte
}

var errShortFile = errors.New("file is shorter than the segment extent")

// openBacking opens path for a segment and maps it unless mapping is disabled
// or fails, in which case the open file handle is kept for manual I/O.
func openBacking(path string, g geometry, writable, noMmap bool, log Logger) (backing, error) {
	extent, err := g.extent()
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrInvalidConfig, path)
	}

	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, err
	}

	size := st.Size()
	end := g.offset + extent
	if writable && size < end {
		if err := f.Truncate(end); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("grow %s to %d bytes: %w", path, end, err)
		}
		size = end
	}

	if noMmap {
		return &seekableFile{geom: g, f: f}, nil
	}
	region, err := mapRegion(f, g, extent, size, writable)
	if err != nil {
		log.Warn("falling back to manual file I/O instead of memory mapping",
			"path", path, "offset", g.offset, "bytes", extent, "error", err)
		return &seekableFile{geom: g, f: f}, nil
	}
	// The mapping stays valid after the descriptor is closed.
	if err := f.Close(); err != nil {
		_ = region.close()
		return nil, err
	}
	return region, nil
}

func mapRegion(f *os.File, g geometry, extent, size int64, writable bool) (*mappedRegion, error) {
	if size < g.offset+extent {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", errShortFile, g.offset+extent, size)
	}
	page := int64(os.Getpagesize())
	start := g.offset - g.offset%page
	length := g.offset - start + extent
	if length > int64(math.MaxInt) {
		return nil, fmt.Errorf("mapping of %d bytes exceeds the address space", length)
	}
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}
	data, err := unix.Mmap(int(f.Fd()), start, int(length), prot, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &mappedRegion{geom: g, data: data, base: int(g.offset - start), writable: writable}, nil
}

func (m *mappedRegion) run(row, col, n int) ([]byte, error) {
	if m.data == nil {
		return nil, ErrClosed
	}
	start := m.base + int(int64(row)*m.geom.stride()) + col*m.geom.pixel
	return m.data[start : start+n*m.geom.pixel], nil
}

// put copies one stored row fragment into the mapping.
func (m *mappedRegion) put(row, col int, p []byte) {
	start := m.base + int(int64(row)*m.geom.stride()) + col*m.geom.pixel
	copy(m.data[start:start+len(p)], p)
}

func (m *mappedRegion) mapped() bool { return true }

func (m *mappedRegion) flush() error {
	if m.data == nil || !m.writable {
		return nil
	}
	return unix.Msync(m.data, unix.MS_SYNC)
}

func (m *mappedRegion) close() error {
	if m.data == nil {
		return nil
	}
	err := m.flush()
	if uerr := unix.Munmap(m.data); uerr != nil {
		err = errors.Join(err, uerr)
	}
	m.data = nil
	return err
}

// run seeks once to the first pixel and reads the whole run.
func (s *seekableFile) run(row, col, n int) ([]byte, error) {
	if s.f == nil {
		return nil, ErrClosed
	}
	want := n * s.geom.pixel
	if cap(s.buf) < want {
		s.buf = make([]byte, want)
	}
	buf := s.buf[:want]
	if _, err := s.f.Seek(s.geom.at(row, col), io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(s.f, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read row %d: %w", row, err)
	}
	return buf, nil
}

func (s *seekableFile) mapped() bool { return false }

func (s *seekableFile) flush() error {
	if s.f == nil {
		return nil
	}
	return s.f.Sync()
}

func (s *seekableFile) close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	s.buf = nil
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}

// releaseBacking is the safety net registered with runtime.AddCleanup for
// accessors that are never closed.
func releaseBacking(b backing) { _ = b.close() }
