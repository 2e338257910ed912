package input

import (
	"fmt"
	"strings"
)

// MouseButton identifies a pointer button on the wire and at the
// injector boundary.
type MouseButton string

const (
	MouseLeft   MouseButton = "LEFT"
	MouseRight  MouseButton = "RIGHT"
	MouseMiddle MouseButton = "MIDDLE"
)

// ParseMouseButton maps a wire button value, case-insensitively. Unknown
// values fall back to the left button rather than dropping the event.
func ParseMouseButton(s string) MouseButton {
	switch strings.ToUpper(s) {
	case "RIGHT":
		return MouseRight
	case "MIDDLE":
		return MouseMiddle
	default:
		return MouseLeft
	}
}

// Key is a named virtual key. Injector implementations map names to
// platform key codes.
type Key string

// Modifier keys, used both standalone and as KEY message modifiers.
const (
	KeyControl Key = "Control"
	KeyAlt     Key = "Alt"
	KeyShift   Key = "Shift"
	KeyWin     Key = "Win"
)

// knownKeys is the accepted KEY code vocabulary. Single letters and
// digits are accepted separately.
var knownKeys = map[string]Key{
	"ESCAPE": "Escape", "TAB": "Tab", "CAPSLOCK": "CapsLock",
	"SPACE": "Space", "ENTER": "Enter", "BACKSPACE": "Backspace",
	"DELETE": "Delete", "INSERT": "Insert", "HOME": "Home", "END": "End",
	"PAGEUP": "PageUp", "PAGEDOWN": "PageDown", "PRINTSCREEN": "PrintScreen",
	"SCROLLLOCK": "ScrollLock", "PAUSE": "Pause", "NUMLOCK": "NumLock",
	"LEFT": "Left", "UP": "Up", "RIGHT": "Right", "DOWN": "Down",
	"F1": "F1", "F2": "F2", "F3": "F3", "F4": "F4", "F5": "F5", "F6": "F6",
	"F7": "F7", "F8": "F8", "F9": "F9", "F10": "F10", "F11": "F11", "F12": "F12",
	"CONTROL": KeyControl, "CTRL": KeyControl, "ALT": KeyAlt,
	"SHIFT": KeyShift, "WIN": KeyWin, "META": KeyWin,
}

// ParseKey resolves a wire key code to a Key, case-insensitively.
func ParseKey(code string) (Key, error) {
	if code == "" {
		return "", fmt.Errorf("empty key code")
	}

	upper := strings.ToUpper(code)
	if key, ok := knownKeys[upper]; ok {
		return key, nil
	}

	// single letters and digits map to themselves
	if len(upper) == 1 {
		c := upper[0]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			return Key(upper), nil
		}
	}

	return "", fmt.Errorf("unknown key code %q", code)
}

// ParseModifiers resolves the KEY message modifier list, skipping
// unrecognized entries so one bad modifier does not drop the keystroke.
func ParseModifiers(names []string) []Key {
	var mods []Key
	for _, name := range names {
		switch strings.ToUpper(name) {
		case "CTRL", "CONTROL":
			mods = append(mods, KeyControl)
		case "ALT":
			mods = append(mods, KeyAlt)
		case "SHIFT":
			mods = append(mods, KeyShift)
		case "WIN", "META":
			mods = append(mods, KeyWin)
		}
	}
	return mods
}

func (b MouseButton) String() string { return string(b) }
func (k Key) String() string         { return string(k) }
