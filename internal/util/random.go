// Package util provides small helpers shared across CareRouter components.
package util

import (
	"math/rand/v2"
	"strings"
)

// RandomInRange returns a pseudo-random integer in [lo, hi]. It returns lo when hi < lo.
// Not for security purposes.
func RandomInRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rand.IntN(hi-lo+1)
}

// RandomDigits returns a string of length decimal digits whose first digit is non-zero.
func RandomDigits(length int) string {
	if length <= 0 {
		return ""
	}

	const digits = "0123456789"
	var builder strings.Builder
	builder.Grow(length)

	builder.WriteByte(digits[1+rand.IntN(9)])
	for i := 1; i < length; i++ {
		builder.WriteByte(digits[rand.IntN(10)])
	}

	return builder.String()
}
