package rcf

import "errors"

var (
	ErrInvalidMagic     = errors.New("invalid RCF magic")
	ErrUnsupportedMajor = errors.New("unsupported RCF major version")
	ErrUnsupportedMinor = errors.New("unsupported RCF section version")
	ErrCorruptFile      = errors.New("corrupt RCF file")
	ErrSectionNotFound  = errors.New("RCF section not found")
)
