package rcf

import (
	"fmt"

	"github.com/goccy/go-json"
)

// ImageInfoVersion is the on-disk version of the image info section payload.
const ImageInfoVersion uint32 = 1

// Complex storage modes recorded in ImageInfo.
const (
	ComplexNone   = "none"
	ComplexPaired = "paired"
)

// ImageInfo describes the logical image held by a container. It is stored as
// JSON in SectionImageInfo.
type ImageInfo struct {
	// ID identifies the image across copies and renames.
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	// DataType is the on-disk sample type in numpy notation, e.g. "<f4".
	DataType  string   `json:"data_type"`
	Rows      int      `json:"rows"`
	Cols      int      `json:"cols"`
	Bands     int      `json:"bands"`
	Complex   string   `json:"complex"`
	Symmetry  Symmetry `json:"symmetry"`
	CreatedBy string   `json:"created_by,omitempty"`
}

// Symmetry mirrors bip.Symmetry for serialisation.
type Symmetry struct {
	FlipRows  bool `json:"flip_rows"`
	FlipCols  bool `json:"flip_cols"`
	Transpose bool `json:"transpose"`
}

func (i *ImageInfo) Validate() error {
	if i.DataType == "" {
		return fmt.Errorf("%w: image info has no data type", ErrCorruptFile)
	}
	if i.Rows <= 0 || i.Cols <= 0 || i.Bands <= 0 {
		return fmt.Errorf("%w: image info shape (%d, %d, %d) must be strictly positive",
			ErrCorruptFile, i.Rows, i.Cols, i.Bands)
	}
	switch i.Complex {
	case "", ComplexNone, ComplexPaired:
	default:
		return fmt.Errorf("%w: image info complex mode %q", ErrCorruptFile, i.Complex)
	}
	return nil
}

// EncodeImageInfoSection marshals info after validating it.
func EncodeImageInfoSection(info ImageInfo) ([]byte, error) {
	if info.Complex == "" {
		info.Complex = ComplexNone
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(info)
}

// ParseImageInfoSection decodes and validates an image info section payload.
func ParseImageInfoSection(sec []byte) (*ImageInfo, error) {
	if len(sec) == 0 {
		return nil, fmt.Errorf("%w: empty image info section", ErrCorruptFile)
	}
	var info ImageInfo
	if err := json.Unmarshal(sec, &info); err != nil {
		return nil, fmt.Errorf("%w: image info: %v", ErrCorruptFile, err)
	}
	if info.Complex == "" {
		info.Complex = ComplexNone
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return &info, nil
}
