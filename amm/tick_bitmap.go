// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import "math/bits"

// tickBitmap tracks which spacing-aligned ticks are initialized. Each word
// covers 256 compressed ticks (tick / spacing), stored as [4]uint64.
type tickBitmap map[int16][4]uint64

// wordPos returns the word position for a compressed tick. Arithmetic
// shift floors, so negative ticks land in the word covering them.
func wordPos(compressed int32) int16 {
	return int16(compressed >> 8)
}

// bitPos returns the bit position within a word (0-255).
func bitPos(compressed int32) uint16 {
	return uint16(compressed & 0xFF)
}

// flipTick toggles the initialized state of a spacing-aligned tick.
func (tb tickBitmap) flipTick(tick, tickSpacing int24) {
	compressed := tick / tickSpacing

	wp := wordPos(compressed)
	bp := bitPos(compressed)

	word := tb[wp]
	word[bp/64] ^= 1 << (bp % 64)
	tb[wp] = word
}

// isInitialized reports whether a spacing-aligned tick is initialized.
func (tb tickBitmap) isInitialized(tick, tickSpacing int24) bool {
	if tick%tickSpacing != 0 {
		return false
	}
	compressed := tick / tickSpacing

	wp := wordPos(compressed)
	bp := bitPos(compressed)

	return tb[wp][bp/64]&(1<<(bp%64)) != 0
}

// nextInitializedTickWithinOneWord searches for an initialized tick within
// the same 256-tick word as the starting tick. lte searches at-or-below
// (toward lower ticks), otherwise strictly above. When no initialized tick
// is found in the word it returns the word's boundary tick with false, so a
// caller stepping through words advances at most one word per call.
func (tb tickBitmap) nextInitializedTickWithinOneWord(tick, tickSpacing int24, lte bool) (int24, bool) {
	compressed := tick / tickSpacing
	if tick < 0 && tick%tickSpacing != 0 {
		compressed-- // round toward negative infinity
	}

	if lte {
		wp := wordPos(compressed)
		bp := bitPos(compressed)
		word := tb[wp]

		for i := int(bp/64) + 1; i > 0; i-- {
			wordIdx := i - 1
			w := word[wordIdx]
			if wordIdx == int(bp/64) {
				w &= uint64(1)<<(bp%64)<<1 - 1
			}
			if w != 0 {
				highBit := 63 - bits.LeadingZeros64(w)
				found := (int32(wp)*256 + int32(wordIdx)*64 + int32(highBit)) * tickSpacing
				return found, true
			}
		}
		// Word boundary: lowest tick covered by this word.
		return int32(wp) * 256 * tickSpacing, false
	}

	// Searching right starts strictly above the current tick.
	compressed++
	wp := wordPos(compressed)
	bp := bitPos(compressed)
	word := tb[wp]

	for wordIdx := int(bp / 64); wordIdx < 4; wordIdx++ {
		w := word[wordIdx]
		if wordIdx == int(bp/64) {
			w &= ^(uint64(1)<<(bp%64) - 1)
		}
		if w != 0 {
			lowBit := bits.TrailingZeros64(w)
			found := (int32(wp)*256 + int32(wordIdx)*64 + int32(lowBit)) * tickSpacing
			return found, true
		}
	}
	// Word boundary: highest tick covered by this word.
	return (int32(wp)*256 + 255) * tickSpacing, false
}
