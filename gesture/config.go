package gesture

import "time"

// Config holds the recognizer tunables. The thresholds were tuned
// empirically on real trackpad traffic; treat them as defaults to
// adjust, not as algorithmic requirements.
type Config struct {
	// CursorSpeed multiplies raw one-finger motion into pointer deltas.
	CursorSpeed float64
	// ScrollSpeed multiplies raw two-finger motion into scroll units.
	ScrollSpeed float64
	// ScrollReverse flips scroll direction ("natural" scrolling).
	ScrollReverse bool

	// TapMaxDuration is the longest touch still counted as a tap.
	TapMaxDuration time.Duration
	// DoubleTapWindow is how soon after a tap a new touch may begin a
	// double-tap-and-hold drag.
	DoubleTapWindow time.Duration
	// DoubleTapRadius bounds how far the new touch may land from the
	// previous tap.
	DoubleTapRadius float64
	// DragHoldDelay is how long the second touch must be held before
	// the drag engages.
	DragHoldDelay time.Duration

	// ScrollPromoteThreshold is the per-frame raw delta that commits an
	// ambiguous two-finger touch to scrolling.
	ScrollPromoteThreshold float64
	// SwipeThreshold is the per-frame horizontal delta that fires the
	// two-finger back/forward swipe.
	SwipeThreshold float64

	// PinchRatio: a three-finger span shrinking below this ratio of the
	// anchor span fires show-desktop.
	PinchRatio float64
	// ThreeSwipeX / ThreeSwipeYMax gate the three-finger task switch:
	// horizontal displacement above X with vertical below YMax.
	ThreeSwipeX    float64
	ThreeSwipeYMax float64
	// LongPressDelay / LongPressRadius gate the three-finger hold that
	// toggles the on-screen menu.
	LongPressDelay  time.Duration
	LongPressRadius float64

	// FourSwipe is the displacement on either axis that fires task view.
	FourSwipe float64
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		CursorSpeed:            1.5,
		ScrollSpeed:            0.25,
		ScrollReverse:          false,
		TapMaxDuration:         300 * time.Millisecond,
		DoubleTapWindow:        300 * time.Millisecond,
		DoubleTapRadius:        50,
		DragHoldDelay:          150 * time.Millisecond,
		ScrollPromoteThreshold: 10,
		SwipeThreshold:         20,
		PinchRatio:             0.7,
		ThreeSwipeX:            60,
		ThreeSwipeYMax:         50,
		LongPressDelay:         400 * time.Millisecond,
		LongPressRadius:        50,
		FourSwipe:              80,
	}
}
