package insts

import (
	"strconv"
	"strings"
)

// ToTwosComplementBits returns the width-bit two's-complement representation
// of value, most significant bit first. The value is taken modulo 2^width.
// Width must be between 1 and 64.
func ToTwosComplementBits(value int64, width int) string {
	bits := strconv.FormatUint(uint64(value)&mask(width), 2)
	if len(bits) >= width {
		return bits
	}
	return strings.Repeat("0", width-len(bits)) + bits
}

// FromTwosComplementBits parses a width-bit two's-complement string,
// reading the most significant bit as the sign.
func FromTwosComplementBits(bits string, width int) (int64, error) {
	u, err := parseBits(bits, width)
	if err != nil {
		return 0, err
	}

	if width < 64 && u>>(width-1)&1 == 1 {
		return int64(u) - int64(1)<<width, nil
	}
	return int64(u), nil
}

// parseBits parses an unsigned binary field of exactly width digits.
func parseBits(bits string, width int) (uint64, error) {
	if width < 1 || width > 64 || len(bits) != width {
		return 0, ErrMalformedWord
	}

	u, err := strconv.ParseUint(bits, 2, 64)
	if err != nil {
		return 0, ErrMalformedWord
	}
	return u, nil
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<width - 1
}
