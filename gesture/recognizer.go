package gesture

import (
	"math"
	"time"

	"github.com/glidedeck/glidedeck/input"
)

// scopeKind is the committed interpretation of the open gesture scope.
type scopeKind int

const (
	kindIdle scopeKind = iota
	kindMove
	kindTapPending
	kindScroll
	kindSwipe
	kindPinch
	kindDrag
)

type point struct {
	x, y float64
}

func (p point) distanceTo(q point) float64 {
	return math.Hypot(p.x-q.x, p.y-q.y)
}

// Scope is the state of one gesture, from first touch to all fingers
// lifted. At most one scope is open at a time; a fresh one begins only
// on the 0→1+ finger transition.
type Scope struct {
	kind scopeKind

	// anchor of the current gesture phase; re-stamped when the finger
	// count rises mid-scope
	anchor     point
	anchorTime time.Time
	anchorSpan float64

	// peak simultaneous finger count this scope
	peak      int
	prevCount int

	// pinchFingers is the finger count the pinch phase was anchored
	// with (3 or 4)
	pinchFingers int

	// triggered latches once a discrete action fires; nothing else may
	// fire for the rest of the scope
	triggered bool
	dragging  bool

	// fractional scroll remainders carried across frames so slow
	// scrolls are not truncated away
	scrollAccumX float64
	scrollAccumY float64
}

// Recognizer owns the gesture scope and the cross-scope tap tracking
// used for double-tap-and-hold drags. Feed frames in order from a
// single goroutine.
type Recognizer struct {
	cfg   Config
	scope Scope

	lastTapTime time.Time
	lastTapPos  point
	tapCount    int
}

func NewRecognizer(cfg Config) *Recognizer {
	return &Recognizer{cfg: cfg}
}

// SetConfig swaps the tunables between scopes; the change applies from
// the next frame.
func (r *Recognizer) SetConfig(cfg Config) {
	r.cfg = cfg
}

// Feed advances the state machine by one frame and returns the commands
// it produced, in order. Empty or contact-free frames are treated as
// scope end and never panic.
func (r *Recognizer) Feed(frame Frame) []Command {
	pressed := frame.pressed()
	count := len(pressed)

	var out []Command

	if count > r.scope.prevCount && r.scope.kind != kindIdle {
		r.fingerCountRose(frame, pressed, count)
	}
	r.scope.prevCount = count

	switch {
	case count == 0:
		out = r.closeScope(frame)
	case r.scope.kind == kindIdle:
		r.openScope(frame, pressed, count)
	default:
		out = r.continueScope(frame, pressed, count)
	}

	return out
}

// openScope starts a new gesture on the 0→1+ transition.
func (r *Recognizer) openScope(frame Frame, pressed []Contact, count int) {
	r.scope = Scope{
		anchor:     centroid(pressed),
		anchorTime: frame.Time,
		peak:       count,
		prevCount:  count,
	}

	switch {
	case count == 1:
		r.scope.kind = kindMove
	case count == 2:
		r.scope.kind = kindTapPending
	default:
		r.scope.kind = kindPinch
		r.scope.pinchFingers = count
		r.scope.anchorSpan = meanSpan(pressed, r.scope.anchor)
	}
}

// fingerCountRose re-anchors the open scope when more fingers land.
// Crossing into three or more fingers is a hard reset: the multi-finger
// phase must not inherit a two-finger scroll already in progress.
func (r *Recognizer) fingerCountRose(frame Frame, pressed []Contact, count int) {
	if count > r.scope.peak {
		r.scope.peak = count
	}

	switch {
	case count == 2:
		r.scope.kind = kindTapPending
		r.scope.anchor = centroid(pressed)
		r.scope.anchorTime = frame.Time
	case count >= 3:
		r.scope.anchor = centroid(pressed)
		r.scope.anchorTime = frame.Time
		r.scope.anchorSpan = meanSpan(pressed, r.scope.anchor)
		r.scope.kind = kindPinch
		r.scope.pinchFingers = count
		r.scope.triggered = false
	}
}

// closeScope fires the tap outcome (if any) and resets to idle.
func (r *Recognizer) closeScope(frame Frame) []Command {
	if r.scope.kind == kindIdle {
		return nil
	}

	var out []Command
	duration := frame.Time.Sub(r.scope.anchorTime)

	if r.scope.dragging {
		out = append(out, Command{Kind: CmdMouseUp, Button: input.MouseLeft})
	}

	tapEligible := duration < r.cfg.TapMaxDuration && !r.scope.triggered

	if tapEligible && r.scope.peak == 1 && r.scope.kind != kindDrag {
		out = append(out, click(input.MouseLeft))
		if frame.Time.Sub(r.lastTapTime) < r.cfg.DoubleTapWindow {
			r.tapCount = 2
		} else {
			r.tapCount = 1
		}
		r.lastTapTime = frame.Time
		r.lastTapPos = r.scope.anchor
	}

	if tapEligible && r.scope.peak == 2 && r.scope.kind != kindScroll && r.scope.kind != kindSwipe {
		out = append(out, click(input.MouseRight))
	}

	if tapEligible && r.scope.peak == 3 && r.scope.kind == kindPinch {
		out = append(out, click(input.MouseMiddle))
	}

	r.scope = Scope{}
	return out
}

func (r *Recognizer) continueScope(frame Frame, pressed []Contact, count int) []Command {
	switch {
	case count == 1 && (r.scope.kind == kindMove || r.scope.kind == kindDrag):
		return r.continueOneFinger(frame, pressed[0])
	case count == 2 && r.twoFingerKind():
		return r.continueTwoFinger(pressed)
	case count == 3 && r.scope.kind == kindPinch && r.scope.pinchFingers == 3:
		return r.continueThreeFinger(frame, pressed)
	case count == 4 && r.scope.kind == kindPinch && r.scope.pinchFingers == 4:
		return r.continueFourFinger(pressed)
	}
	return nil
}

func (r *Recognizer) twoFingerKind() bool {
	switch r.scope.kind {
	case kindTapPending, kindScroll, kindSwipe:
		return true
	}
	return false
}

// continueOneFinger handles pointer motion and double-tap-and-hold drag
// promotion.
func (r *Recognizer) continueOneFinger(frame Frame, c Contact) []Command {
	var out []Command

	if !r.scope.dragging && r.scope.kind == kindMove && r.tapCount >= 1 {
		pos := point{c.X, c.Y}
		sinceTap := frame.Time.Sub(r.lastTapTime)
		held := frame.Time.Sub(r.scope.anchorTime)

		if sinceTap < r.cfg.DoubleTapWindow &&
			pos.distanceTo(r.lastTapPos) < r.cfg.DoubleTapRadius &&
			held > r.cfg.DragHoldDelay {
			r.scope.dragging = true
			r.scope.kind = kindDrag
			r.tapCount = 0
			out = append(out, Command{Kind: CmdMouseDown, Button: input.MouseLeft})
		}
	}

	if c.Pressed && c.PrevPressed {
		dx := int((c.X - c.PrevX) * r.cfg.CursorSpeed)
		dy := int((c.Y - c.PrevY) * r.cfg.CursorSpeed)
		if dx != 0 || dy != 0 {
			out = append(out, mouseMove(dx, dy))
		}
	}

	return out
}

// continueTwoFinger accumulates scroll deltas and watches for the
// horizontal back/forward swipe. Scroll and swipe are mutually
// exclusive for the rest of the scope.
func (r *Recognizer) continueTwoFinger(pressed []Contact) []Command {
	var out []Command
	c := pressed[0]

	if c.Pressed && c.PrevPressed && r.scope.kind != kindSwipe {
		rawDX := c.X - c.PrevX
		rawDY := c.Y - c.PrevY

		if r.scope.kind == kindTapPending &&
			(math.Abs(rawDX) > r.cfg.ScrollPromoteThreshold || math.Abs(rawDY) > r.cfg.ScrollPromoteThreshold) {
			r.scope.kind = kindScroll
		}

		direction := 1.0
		if r.cfg.ScrollReverse {
			direction = -1.0
		}

		// content moves against finger motion; the accumulator keeps
		// the sub-unit remainder so nothing is lost to truncation
		r.scope.scrollAccumX += -rawDX * r.cfg.ScrollSpeed * direction
		r.scope.scrollAccumY += -rawDY * r.cfg.ScrollSpeed * direction

		sendX := int(r.scope.scrollAccumX)
		sendY := int(r.scope.scrollAccumY)
		if sendX != 0 || sendY != 0 {
			r.scope.scrollAccumX -= float64(sendX)
			r.scope.scrollAccumY -= float64(sendY)
			out = append(out, scroll(sendX, sendY))
		}
	}

	if !r.scope.triggered && r.scope.kind != kindSwipe {
		deltaX := c.X - c.PrevX
		if math.Abs(deltaX) > r.cfg.SwipeThreshold {
			if deltaX > 0 {
				out = append(out, key("Left", "ALT")) // browser back
			} else {
				out = append(out, key("Right", "ALT")) // browser forward
			}
			r.scope.triggered = true
			r.scope.kind = kindSwipe
		}
	}

	return out
}

// continueThreeFinger disambiguates long-press menu toggle, pinch-in
// show-desktop and horizontal task switch. Whichever fires first latches
// the scope.
func (r *Recognizer) continueThreeFinger(frame Frame, pressed []Contact) []Command {
	if r.scope.triggered {
		return nil
	}

	center := centroid(pressed)
	span := meanSpan(pressed, center)
	spanRatio := span / (r.scope.anchorSpan + 0.1)
	moveX := center.x - r.scope.anchor.x
	moveY := center.y - r.scope.anchor.y
	totalMove := math.Hypot(moveX, moveY)
	held := frame.Time.Sub(r.scope.anchorTime)

	switch {
	case held > r.cfg.LongPressDelay && totalMove < r.cfg.LongPressRadius:
		r.scope.triggered = true
		return []Command{{Kind: CmdMenuToggle}}
	case spanRatio < r.cfg.PinchRatio:
		r.scope.triggered = true
		return []Command{key("D", "WIN")} // show desktop
	case math.Abs(moveX) > r.cfg.ThreeSwipeX && math.Abs(moveY) < r.cfg.ThreeSwipeYMax:
		r.scope.triggered = true
		return []Command{key("Tab", "ALT")} // task switch
	}

	return nil
}

// continueFourFinger fires task view on a broad swipe along either axis.
func (r *Recognizer) continueFourFinger(pressed []Contact) []Command {
	if r.scope.triggered {
		return nil
	}

	center := centroid(pressed)
	moveX := center.x - r.scope.anchor.x
	moveY := center.y - r.scope.anchor.y

	if math.Abs(moveX) > r.cfg.FourSwipe || math.Abs(moveY) > r.cfg.FourSwipe {
		r.scope.triggered = true
		return []Command{key("Tab", "WIN")} // task view
	}

	return nil
}

func centroid(pressed []Contact) point {
	if len(pressed) == 0 {
		return point{}
	}
	var sx, sy float64
	for _, c := range pressed {
		sx += c.X
		sy += c.Y
	}
	n := float64(len(pressed))
	return point{sx / n, sy / n}
}

// meanSpan is the mean finger-to-centroid distance, the pinch measure.
func meanSpan(pressed []Contact, center point) float64 {
	if len(pressed) == 0 {
		return 0
	}
	var sum float64
	for _, c := range pressed {
		sum += center.distanceTo(point{c.X, c.Y})
	}
	return sum / float64(len(pressed))
}
