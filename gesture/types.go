// Package gesture converts raw multi-touch contact snapshots into
// discrete remote-control commands: pointer motion, scrolls, clicks,
// drags and multi-finger shortcuts.
package gesture

import (
	"time"

	"github.com/glidedeck/glidedeck/input"
)

// Contact is one tracked finger within a frame. Positions are trackpad
// surface coordinates in pixels.
type Contact struct {
	ID           int
	X, Y         float64
	PrevX, PrevY float64
	Pressed      bool
	PrevPressed  bool
}

// Frame is a snapshot of every contact the touch surface currently
// reports, stamped with the time the snapshot was taken. The recognizer
// derives all timing from Frame.Time, never from the wall clock, so
// frames can be replayed deterministically.
type Frame struct {
	Time     time.Time
	Contacts []Contact
}

func (f Frame) pressed() []Contact {
	var out []Contact
	for _, c := range f.Contacts {
		if c.Pressed {
			out = append(out, c)
		}
	}
	return out
}

// CommandKind discriminates Command values.
type CommandKind int

const (
	CmdMouseMove CommandKind = iota
	CmdScroll
	CmdClick
	CmdMouseDown
	CmdMouseUp
	CmdKey
	CmdText
	CmdClipboardPush
	CmdGetMacros
	CmdExecMacro

	// CmdMenuToggle is a client-local intent (show/hide the on-screen
	// menu); it never reaches the wire.
	CmdMenuToggle
)

// Command is one discrete unit of intent. Values are immutable: created
// here or by the UI layer, consumed exactly once by the connection
// manager.
type Command struct {
	Kind CommandKind

	// CmdMouseMove / CmdScroll
	DX, DY int

	// CmdClick / CmdMouseDown / CmdMouseUp
	Button input.MouseButton

	// CmdKey, using wire vocabulary for code and modifiers
	Code      string
	Modifiers []string

	// CmdText / CmdClipboardPush
	Text string

	// CmdExecMacro
	MacroID string
}

func mouseMove(dx, dy int) Command { return Command{Kind: CmdMouseMove, DX: dx, DY: dy} }
func scroll(dx, dy int) Command    { return Command{Kind: CmdScroll, DX: dx, DY: dy} }

func click(button input.MouseButton) Command { return Command{Kind: CmdClick, Button: button} }

func key(code string, modifiers ...string) Command {
	return Command{Kind: CmdKey, Code: code, Modifiers: modifiers}
}
