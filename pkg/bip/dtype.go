package bip

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Kind identifies a primitive sample type.
type Kind uint8

const (
	Invalid Kind = iota
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
	Complex64
	Complex128
)

var kindNames = [...]string{
	Invalid:    "invalid",
	Int8:       "int8",
	Uint8:      "uint8",
	Int16:      "int16",
	Uint16:     "uint16",
	Int32:      "int32",
	Uint32:     "uint32",
	Int64:      "int64",
	Uint64:     "uint64",
	Float32:    "float32",
	Float64:    "float64",
	Complex64:  "complex64",
	Complex128: "complex128",
}

// numpy-style type codes, without the byte order prefix.
var kindCodes = map[string]Kind{
	"i1": Int8, "u1": Uint8, "b": Int8, "B": Uint8,
	"i2": Int16, "u2": Uint16,
	"i4": Int32, "u4": Uint32,
	"i8": Int64, "u8": Uint64,
	"f4": Float32, "f8": Float64,
	"c8": Complex64, "c16": Complex128,
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Size returns the number of bytes in one sample, or 0 for an invalid kind.
func (k Kind) Size() int {
	switch k {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64, Complex64:
		return 8
	case Complex128:
		return 16
	default:
		return 0
	}
}

func (k Kind) Valid() bool { return k > Invalid && k <= Complex128 }

func (k Kind) IsComplex() bool { return k == Complex64 || k == Complex128 }

// componentSize is the byte-swapping unit: complex values swap each half.
func (k Kind) componentSize() int {
	if k.IsComplex() {
		return k.Size() / 2
	}
	return k.Size()
}

func (k Kind) code() string {
	for code, kk := range kindCodes {
		if kk == k && len(code) > 1 {
			return code
		}
	}
	return "?"
}

// DataType is a sample kind together with its on-disk byte order.
// A nil Order means little-endian.
type DataType struct {
	Kind  Kind
	Order binary.ByteOrder
}

// ParseDataType accepts numpy-style descriptors: an optional byte order
// prefix ('<', '>', '=', '|', '!') followed by a type code ("f4", "i2", "c8")
// or a type name ("float32", "int16"). Bare names use the native byte order.
func ParseDataType(s string) (DataType, error) {
	in := strings.TrimSpace(s)
	if in == "" {
		return DataType{}, fmt.Errorf("%w: empty data type", ErrInvalidConfig)
	}
	var order binary.ByteOrder = binary.NativeEndian
	switch in[0] {
	case '<':
		order, in = binary.LittleEndian, in[1:]
	case '>', '!':
		order, in = binary.BigEndian, in[1:]
	case '=', '|':
		in = in[1:]
	}
	if k, ok := kindCodes[in]; ok {
		return DataType{Kind: k, Order: order}, nil
	}
	for k, name := range kindNames {
		if name == strings.ToLower(in) && Kind(k).Valid() {
			return DataType{Kind: Kind(k), Order: order}, nil
		}
	}
	return DataType{}, fmt.Errorf("%w: unknown data type %q", ErrInvalidConfig, s)
}

// MustParseDataType is ParseDataType for package-level literals.
func MustParseDataType(s string) DataType {
	dt, err := ParseDataType(s)
	if err != nil {
		panic(err)
	}
	return dt
}

func (d DataType) Size() int { return d.Kind.Size() }

func (d DataType) order() binary.ByteOrder {
	if d.Order == nil {
		return binary.LittleEndian
	}
	return d.Order
}

// needsSwap reports whether samples must be byte-swapped between the file and memory.
func (d DataType) needsSwap() bool {
	if d.Kind.componentSize() <= 1 {
		return false
	}
	var disk, host [2]byte
	d.order().PutUint16(disk[:], 1)
	binary.NativeEndian.PutUint16(host[:], 1)
	return disk != host
}

func (d DataType) String() string {
	if d.Kind.Size() == 1 {
		return "|" + d.Kind.code()
	}
	switch d.order() {
	case binary.BigEndian:
		return ">" + d.Kind.code()
	case binary.LittleEndian:
		return "<" + d.Kind.code()
	default:
		return "=" + d.Kind.code()
	}
}

// swapBytes reverses every unit-sized group of b in place.
func swapBytes(b []byte, unit int) {
	switch unit {
	case 0, 1:
	case 2:
		for i := 0; i+1 < len(b); i += 2 {
			b[i], b[i+1] = b[i+1], b[i]
		}
	case 4:
		for i := 0; i+3 < len(b); i += 4 {
			b[i], b[i+1], b[i+2], b[i+3] = b[i+3], b[i+2], b[i+1], b[i]
		}
	default:
		for i := 0; i+unit <= len(b); i += unit {
			for l, r := i, i+unit-1; l < r; l, r = l+1, r-1 {
				b[l], b[r] = b[r], b[l]
			}
		}
	}
}

// Explicit resolves a native byte order to little or big endian, for
// descriptors that are stored and read back on other hosts.
func (d DataType) Explicit() DataType {
	switch d.order() {
	case binary.LittleEndian, binary.BigEndian:
		return d
	}
	var probe [2]byte
	binary.NativeEndian.PutUint16(probe[:], 1)
	if probe[0] == 1 {
		d.Order = binary.LittleEndian
	} else {
		d.Order = binary.BigEndian
	}
	return d
}
