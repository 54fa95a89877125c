// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import "testing"

func TestTickBitmapFlip(t *testing.T) {
	tb := make(tickBitmap)

	ticks := []int24{-887272, -230400, -256, -60, 0, 60, 256, 230400, 887272}
	for _, tick := range ticks {
		if tb.isInitialized(tick, 1) {
			t.Errorf("tick %d initialized before flip", tick)
		}
		tb.flipTick(tick, 1)
		if !tb.isInitialized(tick, 1) {
			t.Errorf("tick %d not initialized after flip", tick)
		}
		tb.flipTick(tick, 1)
		if tb.isInitialized(tick, 1) {
			t.Errorf("tick %d initialized after second flip", tick)
		}
	}
}

func TestTickBitmapSpacing(t *testing.T) {
	tb := make(tickBitmap)
	tb.flipTick(-120, 60)
	tb.flipTick(180, 60)

	if !tb.isInitialized(-120, 60) {
		t.Error("-120 should be initialized")
	}
	if tb.isInitialized(-60, 60) {
		t.Error("-60 should not be initialized")
	}
	// Off-spacing ticks are never initialized.
	if tb.isInitialized(-119, 60) {
		t.Error("off-spacing tick should not be initialized")
	}
}

func TestNextInitializedTickSearchRight(t *testing.T) {
	tb := make(tickBitmap)
	tb.flipTick(60, 60)
	tb.flipTick(120, 60)

	tests := []struct {
		name     string
		tick     int24
		wantTick int24
		wantInit bool
	}{
		{"from below first", 0, 60, true},
		{"from first finds second", 60, 120, true},
		{"from between", 61, 120, true},
		{"past all in word", 120, (0*256 + 255) * 60, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, initialized := tb.nextInitializedTickWithinOneWord(tt.tick, 60, false)
			if got != tt.wantTick || initialized != tt.wantInit {
				t.Errorf("got (%d, %v), want (%d, %v)", got, initialized, tt.wantTick, tt.wantInit)
			}
		})
	}
}

func TestNextInitializedTickSearchLeft(t *testing.T) {
	tb := make(tickBitmap)
	tb.flipTick(-120, 60)
	tb.flipTick(60, 60)

	tests := []struct {
		name     string
		tick     int24
		wantTick int24
		wantInit bool
	}{
		{"at initialized finds self", 60, 60, true},
		{"from above", 90, 60, true},
		{"from between stops at word floor", 0, 0, false},
		{"just above negative", -60, -120, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, initialized := tb.nextInitializedTickWithinOneWord(tt.tick, 60, true)
			if got != tt.wantTick || initialized != tt.wantInit {
				t.Errorf("got (%d, %v), want (%d, %v)", got, initialized, tt.wantTick, tt.wantInit)
			}
		})
	}
}

func TestNextInitializedTickWordBoundary(t *testing.T) {
	tb := make(tickBitmap)

	// Empty bitmap, searching left from tick 0 stops at the word's low
	// boundary without claiming initialization.
	got, initialized := tb.nextInitializedTickWithinOneWord(0, 1, true)
	if initialized {
		t.Error("empty bitmap should not find a tick")
	}
	if got != 0 {
		t.Errorf("left boundary from 0 = %d, want 0", got)
	}

	// Searching right from tick 0 stops at the word's high boundary.
	got, initialized = tb.nextInitializedTickWithinOneWord(0, 1, false)
	if initialized {
		t.Error("empty bitmap should not find a tick")
	}
	if got != 255 {
		t.Errorf("right boundary from 0 = %d, want 255", got)
	}

	// Negative ticks round toward negative infinity when compressing.
	got, _ = tb.nextInitializedTickWithinOneWord(-1, 1, true)
	if got != -256 {
		t.Errorf("left boundary from -1 = %d, want -256", got)
	}
}

func TestNegativeTickSelfLookup(t *testing.T) {
	// A flipped negative tick must be found by a downward search starting
	// at that tick, across bit positions and word boundaries.
	ticks := []int24{-60, -120, -180, -6000, -15360, -30660}
	for _, tick := range ticks {
		tb := make(tickBitmap)
		tb.flipTick(tick, 60)
		got, initialized := tb.nextInitializedTickWithinOneWord(tick, 60, true)
		if !initialized || got != tick {
			t.Errorf("tick %d: got (%d, %v), want (%d, true)", tick, got, initialized, tick)
		}
	}
}

func TestNextInitializedTickNegativeOffSpacing(t *testing.T) {
	tb := make(tickBitmap)
	tb.flipTick(-6000, 60)

	// Off-spacing negative start compresses toward negative infinity and
	// still finds the tick in the same word.
	got, initialized := tb.nextInitializedTickWithinOneWord(-61, 60, true)
	if !initialized || got != -6000 {
		t.Errorf("got (%d, %v), want (-6000, true)", got, initialized)
	}
}

func TestNextInitializedTickNegativeWord(t *testing.T) {
	tb := make(tickBitmap)
	tb.flipTick(-257, 1)

	got, initialized := tb.nextInitializedTickWithinOneWord(-258, 1, false)
	if !initialized || got != -257 {
		t.Errorf("got (%d, %v), want (-257, true)", got, initialized)
	}

	got, initialized = tb.nextInitializedTickWithinOneWord(-257, 1, true)
	if !initialized || got != -257 {
		t.Errorf("got (%d, %v), want (-257, true)", got, initialized)
	}
}
