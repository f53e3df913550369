// Package layoutfile describes headerless raw BIP files with a YAML manifest:
//
//	data_type: ">f4"
//	rows: 100
//	cols: 80
//	bands: 1
//	complex: paired
//	symmetry: {flip_rows: false, flip_cols: false, transpose: false}
//	offset: 0
//	segments:
//	  - {bounds: [0, 50, 0, 80], offset: 1024}
//	  - {bounds: [50, 100, 0, 80], offset: 33024}
//
// Without segments the file holds one segment at offset.
package layoutfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/samcharles93/sarchip/pkg/bip"
)

var ErrInvalidManifest = errors.New("layoutfile: invalid manifest")

type Manifest struct {
	DataType string    `yaml:"data_type"`
	Rows     int       `yaml:"rows"`
	Cols     int       `yaml:"cols"`
	Bands    int       `yaml:"bands,omitempty"`
	Complex  string    `yaml:"complex,omitempty"`
	Symmetry Symmetry  `yaml:"symmetry,omitempty"`
	Offset   int64     `yaml:"offset,omitempty"`
	Segments []Segment `yaml:"segments,omitempty"`
}

type Symmetry struct {
	FlipRows  bool `yaml:"flip_rows"`
	FlipCols  bool `yaml:"flip_cols"`
	Transpose bool `yaml:"transpose"`
}

type Segment struct {
	// Bounds is [row start, row end, column start, column end].
	Bounds []int `yaml:"bounds,flow"`
	Offset int64 `yaml:"offset"`
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates a manifest. Unknown keys are rejected.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks what can be checked without the raw file. The segment
// tiling itself is validated when the reader is opened.
func (m *Manifest) Validate() error {
	if _, err := bip.ParseDataType(m.DataType); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if m.Rows <= 0 || m.Cols <= 0 {
		return fmt.Errorf("%w: size (%d, %d) must be strictly positive", ErrInvalidManifest, m.Rows, m.Cols)
	}
	if m.Bands < 0 {
		return fmt.Errorf("%w: bands %d is negative", ErrInvalidManifest, m.Bands)
	}
	if m.Offset < 0 {
		return fmt.Errorf("%w: offset %d is negative", ErrInvalidManifest, m.Offset)
	}
	switch m.Complex {
	case "", "none", "paired":
	default:
		return fmt.Errorf("%w: complex %q (want none or paired)", ErrInvalidManifest, m.Complex)
	}
	for i, s := range m.Segments {
		if len(s.Bounds) != 4 {
			return fmt.Errorf("%w: segment %d has %d bounds, want 4", ErrInvalidManifest, i, len(s.Bounds))
		}
	}
	return nil
}

// Options converts the manifest into accessor options for the whole image.
func (m *Manifest) Options() bip.Options {
	dt, _ := bip.ParseDataType(m.DataType) // checked by Validate
	opts := bip.Options{
		DataType: dt,
		Rows:     m.Rows,
		Cols:     m.Cols,
		Bands:    m.Bands,
		Offset:   m.Offset,
		Symmetry: bip.Symmetry{
			FlipRows:  m.Symmetry.FlipRows,
			FlipCols:  m.Symmetry.FlipCols,
			Transpose: m.Symmetry.Transpose,
		},
	}
	if m.Complex == "paired" {
		opts.Complex = bip.PairedComplex()
	}
	return opts
}

// Layout returns segment bounds and offsets, or nil for a single-segment file.
func (m *Manifest) Layout() ([]bip.Bounds, []int64) {
	if len(m.Segments) == 0 {
		return nil, nil
	}
	bounds := make([]bip.Bounds, len(m.Segments))
	offsets := make([]int64, len(m.Segments))
	for i, s := range m.Segments {
		bounds[i] = bip.Bounds{RowStart: s.Bounds[0], RowEnd: s.Bounds[1], ColStart: s.Bounds[2], ColEnd: s.Bounds[3]}
		offsets[i] = s.Offset
	}
	return bounds, offsets
}

// Open opens the raw file described by m. noMmap and log are passed through
// to the accessor options.
func Open(path string, m *Manifest, noMmap bool, log bip.Logger) (bip.Reader, error) {
	opts := m.Options()
	opts.NoMmap = noMmap
	opts.Logger = log
	bounds, offsets := m.Layout()
	if bounds == nil {
		return bip.NewChipper(path, opts)
	}
	r, err := bip.NewMultiSegmentChipper(path, bounds, offsets, opts)
	if err != nil {
		return nil, err
	}
	if rows, cols, _ := r.Shape(); rows != m.Rows || cols != m.Cols {
		_ = r.Close()
		return nil, fmt.Errorf("%w: segments cover %d x %d pixels, manifest says %d x %d",
			ErrInvalidManifest, rows, cols, m.Rows, m.Cols)
	}
	return r, nil
}

// Save writes m to path as YAML.
func Save(path string, m *Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
