// SPDX-License-Identifier: MIT
/*
Package bitint provides the small set of power-of-two helpers the analysis
code needs for sizing FFT windows and snapshot rings.

All functions are allocation free and safe to call from the audio callback.

	// Round a requested window up to a usable FFT length
	n := bitint.NextPowerOfTwo(1500) // 2048

	// Reject a configured window that the FFT cannot use
	if !bitint.IsPowerOfTwo(cfg.Analysis.WindowSize) { ... }

NextPowerOfTwo works on (size-1) so exact powers of two map to themselves:
bits.Len(7) is 3 and 1<<3 is 8, whereas bits.Len(8) would give 16.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size.
// Zero and negative sizes return 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
// A power of two has a single bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
