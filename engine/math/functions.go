package math

import (
	"golang.org/x/exp/constraints"
)

// Clamp limits value to the inclusive range [min, max].
func Clamp[T constraints.Ordered](value, min, max T) T {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// AbsDiff returns |a - b| without relying on signed arithmetic, so it is
// safe for unsigned sizes.
func AbsDiff[T constraints.Integer](a, b T) T {
	if a > b {
		return a - b
	}
	return b - a
}

// AlignUp rounds value up to the next multiple of align. align must be > 0.
func AlignUp[T constraints.Integer](value, align T) T {
	if align <= 1 {
		return value
	}
	remainder := value % align
	if remainder == 0 {
		return value
	}
	return value + align - remainder
}

// NextPowerOfTwo returns the smallest power of two >= value.
func NextPowerOfTwo(value uint64) uint64 {
	if value == 0 {
		return 1
	}
	value--
	value |= value >> 1
	value |= value >> 2
	value |= value >> 4
	value |= value >> 8
	value |= value >> 16
	value |= value >> 32
	return value + 1
}
