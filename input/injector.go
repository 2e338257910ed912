// Package input defines the boundary to the OS-level input synthesizer.
// The receiver core translates wire commands into calls on Injector; the
// platform-specific synthesizer (SendInput, uinput, CGEvent) plugs in
// behind it.
package input

import (
	"github.com/glidedeck/glidedeck/utils"
)

// Injector is the device-action collaborator the command dispatcher
// drives. Implementations are expected to be cheap and non-blocking;
// every call stands alone and carries no protocol state.
type Injector interface {
	MouseMove(dx, dy int)
	MouseClick(button MouseButton)
	MouseDown(button MouseButton)
	MouseUp(button MouseButton)

	// MouseWheel scrolls vertically, MouseHWheel horizontally, in wheel
	// notches (the platform layer applies its own notch multiplier).
	MouseWheel(delta int)
	MouseHWheel(delta int)

	KeyDown(key Key)
	KeyUp(key Key)
	TypeText(text string)

	SetClipboard(text string)
}

// LogInjector logs every action instead of injecting it. It backs
// headless receivers and --dry-run operation.
type LogInjector struct{}

func (LogInjector) MouseMove(dx, dy int)          { utils.Verbose("inject: mouse move %d,%d", dx, dy) }
func (LogInjector) MouseClick(button MouseButton) { utils.Verbose("inject: click %s", button) }
func (LogInjector) MouseDown(button MouseButton)  { utils.Verbose("inject: mouse down %s", button) }
func (LogInjector) MouseUp(button MouseButton)    { utils.Verbose("inject: mouse up %s", button) }
func (LogInjector) MouseWheel(delta int)          { utils.Verbose("inject: wheel %d", delta) }
func (LogInjector) MouseHWheel(delta int)         { utils.Verbose("inject: hwheel %d", delta) }
func (LogInjector) KeyDown(key Key)               { utils.Verbose("inject: key down %s", key) }
func (LogInjector) KeyUp(key Key)                 { utils.Verbose("inject: key up %s", key) }
func (LogInjector) TypeText(text string)          { utils.Verbose("inject: type %q", text) }
func (LogInjector) SetClipboard(text string)      { utils.Verbose("inject: clipboard %d bytes", len(text)) }
