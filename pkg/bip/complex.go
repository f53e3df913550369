package bip

// ReadTransform converts raw samples, with real/imaginary parts in adjacent
// bands, into logical samples of the same rows and columns.
type ReadTransform func(raw *Array) (*Array, error)

// WriteTransform converts logical samples into raw samples in the on-disk kind.
type WriteTransform func(data *Array) (*Array, error)

type complexMode uint8

const (
	complexNone complexMode = iota
	complexPaired
	complexCustom
)

// Complex selects how complex samples are stored. The zero value stores samples
// as they are; PairedComplex and CustomComplex store each logical band as two raw
// bands.
type Complex struct {
	mode  complexMode
	read  ReadTransform
	write WriteTransform
}

// PairedComplex stores real and imaginary parts in adjacent bands; reads
// return complex64 samples.
func PairedComplex() Complex { return Complex{mode: complexPaired} }

// CustomComplex converts between raw band pairs and logical samples with
// caller-supplied functions. Readers need read, writers need write.
func CustomComplex(read ReadTransform, write WriteTransform) Complex {
	return Complex{mode: complexCustom, read: read, write: write}
}

func (c Complex) IsComplex() bool { return c.mode != complexNone }

// RawBands is the number of stored bands for bands logical bands.
func (c Complex) RawBands(bands int) int {
	if c.mode == complexNone {
		return bands
	}
	return 2 * bands
}

func (c Complex) String() string {
	switch c.mode {
	case complexPaired:
		return "paired"
	case complexCustom:
		return "custom"
	default:
		return "none"
	}
}
