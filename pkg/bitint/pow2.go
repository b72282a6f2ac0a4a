// SPDX-License-Identifier: MIT

// Package bitint holds the power-of-two helpers used to validate and suggest
// analysis block sizes. Both functions are allocation free.
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size, and 1 for
// size <= 0. Subtracting one first keeps exact powers of two unchanged:
// Len(8-1) is 3, so the result is 1<<3 = 8 rather than 16.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. A power of two
// has one bit set, so clearing its lowest set bit with n&(n-1) leaves zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
