package bip

import (
	"fmt"
	"math"
	"math/cmplx"
	"unsafe"
)

// Element is the set of Go types an Array can hold.
type Element interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 |
		float32 | float64 | complex64 | complex128
}

type realElement interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64
}

// Array is a rows × cols × bands block of samples stored row-major with bands
// varying fastest, in host byte order.
type Array struct {
	Rows  int
	Cols  int
	Bands int
	Kind  Kind

	buf []byte
}

// NewArray allocates a zeroed array.
func NewArray(kind Kind, rows, cols, bands int) (*Array, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: invalid kind %v", ErrDataType, kind)
	}
	n, err := elementCount(rows, cols, bands)
	if err != nil {
		return nil, err
	}
	return &Array{Rows: rows, Cols: cols, Bands: bands, Kind: kind, buf: alloc(kind, n)}, nil
}

// FromSlice wraps vals as an array without copying; vals must hold exactly
// rows*cols*bands elements.
func FromSlice[T Element](vals []T, rows, cols, bands int) (*Array, error) {
	n, err := elementCount(rows, cols, bands)
	if err != nil {
		return nil, err
	}
	if len(vals) != n {
		return nil, fmt.Errorf("%w: %d values for shape (%d, %d, %d)", ErrShape, len(vals), rows, cols, bands)
	}
	kind := kindOf[T]()
	buf := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(vals))), n*kind.Size())
	return &Array{Rows: rows, Cols: cols, Bands: bands, Kind: kind, buf: buf}, nil
}

// Values returns the array contents as a typed slice sharing the array's memory.
func Values[T Element](a *Array) ([]T, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil array", ErrShape)
	}
	if want := kindOf[T](); want != a.Kind {
		return nil, fmt.Errorf("%w: array holds %v, asked for %v", ErrDataType, a.Kind, want)
	}
	return view[T](a.buf), nil
}

// Len returns the number of samples.
func (a *Array) Len() int { return a.Rows * a.Cols * a.Bands }

// Bytes returns the host-order sample bytes. The slice aliases the array.
func (a *Array) Bytes() []byte { return a.buf }

// At returns sample (r, c, b) widened to complex128.
func (a *Array) At(r, c, b int) complex128 {
	i := (r*a.Cols+c)*a.Bands + b
	switch a.Kind {
	case Int8:
		return complex(float64(view[int8](a.buf)[i]), 0)
	case Uint8:
		return complex(float64(a.buf[i]), 0)
	case Int16:
		return complex(float64(view[int16](a.buf)[i]), 0)
	case Uint16:
		return complex(float64(view[uint16](a.buf)[i]), 0)
	case Int32:
		return complex(float64(view[int32](a.buf)[i]), 0)
	case Uint32:
		return complex(float64(view[uint32](a.buf)[i]), 0)
	case Int64:
		return complex(float64(view[int64](a.buf)[i]), 0)
	case Uint64:
		return complex(float64(view[uint64](a.buf)[i]), 0)
	case Float32:
		return complex(float64(view[float32](a.buf)[i]), 0)
	case Float64:
		return complex(view[float64](a.buf)[i], 0)
	case Complex64:
		return complex128(view[complex64](a.buf)[i])
	case Complex128:
		return view[complex128](a.buf)[i]
	}
	return cmplx.NaN()
}

// Abs returns the magnitude of every sample in storage order.
func (a *Array) Abs() []float64 {
	out := make([]float64, a.Len())
	for i := range out {
		r := i / (a.Cols * a.Bands)
		c := (i / a.Bands) % a.Cols
		v := a.At(r, c, i%a.Bands)
		if imag(v) == 0 {
			out[i] = math.Abs(real(v))
		} else {
			out[i] = cmplx.Abs(v)
		}
	}
	return out
}

func (a *Array) pixelBytes() int { return a.Bands * a.Kind.Size() }

func (a *Array) validate() error {
	if a == nil {
		return fmt.Errorf("%w: nil array", ErrShape)
	}
	if !a.Kind.Valid() {
		return fmt.Errorf("%w: invalid kind %v", ErrDataType, a.Kind)
	}
	n, err := elementCount(a.Rows, a.Cols, a.Bands)
	if err != nil {
		return err
	}
	if len(a.buf) != n*a.Kind.Size() {
		return fmt.Errorf("%w: array of shape (%d, %d, %d) holds %d bytes, want %d",
			ErrShape, a.Rows, a.Cols, a.Bands, len(a.buf), n*a.Kind.Size())
	}
	return nil
}

// paste copies src into a with its top-left pixel at (row, col).
func (a *Array) paste(src *Array, row, col int) {
	pix := a.pixelBytes()
	width := src.Cols * pix
	for i := 0; i < src.Rows; i++ {
		dst := ((row+i)*a.Cols + col) * pix
		copy(a.buf[dst:dst+width], src.buf[i*width:(i+1)*width])
	}
}

// sub copies the half-open rectangle [r0, r1) × [c0, c1) into a new array.
func (a *Array) sub(r0, r1, c0, c1 int) *Array {
	out := &Array{Rows: r1 - r0, Cols: c1 - c0, Bands: a.Bands, Kind: a.Kind}
	out.buf = alloc(a.Kind, out.Len())
	pix := a.pixelBytes()
	width := out.Cols * pix
	for i := 0; i < out.Rows; i++ {
		src := ((r0+i)*a.Cols + c0) * pix
		copy(out.buf[i*width:(i+1)*width], a.buf[src:src+width])
	}
	return out
}

func (a *Array) transposed() *Array {
	out := &Array{Rows: a.Cols, Cols: a.Rows, Bands: a.Bands, Kind: a.Kind}
	out.buf = alloc(a.Kind, out.Len())
	pix := a.pixelBytes()
	for r := 0; r < a.Rows; r++ {
		for c := 0; c < a.Cols; c++ {
			src := (r*a.Cols + c) * pix
			dst := (c*out.Cols + r) * pix
			copy(out.buf[dst:dst+pix], a.buf[src:src+pix])
		}
	}
	return out
}

// pairedToComplex combines adjacent (real, imaginary) bands into complex64 samples.
func pairedToComplex(raw *Array) (*Array, error) {
	out := &Array{Rows: raw.Rows, Cols: raw.Cols, Bands: raw.Bands / 2, Kind: Complex64}
	out.buf = alloc(Complex64, out.Len())
	dst := view[complex64](out.buf)
	switch raw.Kind {
	case Int8:
		combinePairs(view[int8](raw.buf), dst)
	case Uint8:
		combinePairs(raw.buf, dst)
	case Int16:
		combinePairs(view[int16](raw.buf), dst)
	case Uint16:
		combinePairs(view[uint16](raw.buf), dst)
	case Int32:
		combinePairs(view[int32](raw.buf), dst)
	case Uint32:
		combinePairs(view[uint32](raw.buf), dst)
	case Int64:
		combinePairs(view[int64](raw.buf), dst)
	case Uint64:
		combinePairs(view[uint64](raw.buf), dst)
	case Float32:
		combinePairs(view[float32](raw.buf), dst)
	case Float64:
		combinePairs(view[float64](raw.buf), dst)
	default:
		return nil, fmt.Errorf("%w: paired complex data cannot be stored as %v", ErrDataType, raw.Kind)
	}
	return out, nil
}

func combinePairs[T realElement](src []T, dst []complex64) {
	for k := range dst {
		dst[k] = complex(float32(src[2*k]), float32(src[2*k+1]))
	}
}

// narrowComplex converts complex128 samples to complex64.
func narrowComplex(a *Array) *Array {
	out := &Array{Rows: a.Rows, Cols: a.Cols, Bands: a.Bands, Kind: Complex64}
	out.buf = alloc(Complex64, a.Len())
	dst := view[complex64](out.buf)
	for i, v := range view[complex128](a.buf) {
		dst[i] = complex64(v)
	}
	return out
}

func elementCount(rows, cols, bands int) (int, error) {
	if rows <= 0 || cols <= 0 || bands <= 0 {
		return 0, fmt.Errorf("%w: shape (%d, %d, %d) must be strictly positive", ErrShape, rows, cols, bands)
	}
	if rows > math.MaxInt/cols || rows*cols > math.MaxInt/bands/16 {
		return 0, fmt.Errorf("%w: shape (%d, %d, %d) too large", ErrShape, rows, cols, bands)
	}
	return rows * cols * bands, nil
}

// alloc returns a zeroed byte buffer for n samples, aligned for the kind.
func alloc(k Kind, n int) []byte {
	size := n * k.Size()
	switch k.componentSize() {
	case 8:
		w := make([]uint64, size/8)
		return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(w))), size)
	case 4:
		w := make([]uint32, size/4)
		return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(w))), size)
	case 2:
		w := make([]uint16, size/2)
		return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(w))), size)
	default:
		return make([]byte, size)
	}
}

func view[T Element](b []byte) []T {
	if len(b) == 0 {
		return nil
	}
	var z T
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), len(b)/int(unsafe.Sizeof(z)))
}

func kindOf[T Element]() Kind {
	var z T
	switch any(z).(type) {
	case int8:
		return Int8
	case uint8:
		return Uint8
	case int16:
		return Int16
	case uint16:
		return Uint16
	case int32:
		return Int32
	case uint32:
		return Uint32
	case int64:
		return Int64
	case uint64:
		return Uint64
	case float32:
		return Float32
	case float64:
		return Float64
	case complex64:
		return Complex64
	case complex128:
		return Complex128
	}
	return Invalid
}
