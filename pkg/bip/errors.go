package bip

import "errors"

var (
	ErrInvalidConfig = errors.New("bip: invalid configuration")
	ErrInvalidLayout = errors.New("bip: invalid segment layout")
	ErrDataType      = errors.New("bip: data type mismatch")
	ErrShape         = errors.New("bip: array shape mismatch")
	ErrOutOfRange    = errors.New("bip: range out of bounds")
	ErrClosed        = errors.New("bip: accessor closed")
)
