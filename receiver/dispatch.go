package receiver

import (
	"fmt"

	"github.com/glidedeck/glidedeck/input"
	"github.com/glidedeck/glidedeck/protocol"
)

// Dispatcher translates authenticated control messages and datagrams
// into injector calls. It holds no session state; the host gates
// everything that reaches it.
type Dispatcher struct {
	injector input.Injector
}

func NewDispatcher(injector input.Injector) *Dispatcher {
	return &Dispatcher{injector: injector}
}

// DispatchMessage applies one control-channel message to the desktop.
// Messages that carry no input action (PING, AUTH, macro requests) are
// handled by the host and never get here.
func (d *Dispatcher) DispatchMessage(msg protocol.Message) error {
	switch msg.Type {
	case protocol.TypeClick:
		d.injector.MouseClick(input.ParseMouseButton(msg.Button))

	case protocol.TypeMouseDown:
		d.injector.MouseDown(input.ParseMouseButton(msg.Button))

	case protocol.TypeMouseUp:
		d.injector.MouseUp(input.ParseMouseButton(msg.Button))

	case protocol.TypeKey:
		return d.pressKey(msg.Code, msg.Modifiers)

	case protocol.TypeText:
		d.injector.TypeText(msg.Text)

	case protocol.TypeClipboard:
		// only phone-originated pushes mutate the desktop clipboard;
		// our own broadcasts echo back with the receiver source tag
		if msg.Source == protocol.ClipboardSourceClient {
			d.injector.SetClipboard(msg.Text)
		}

	default:
		return fmt.Errorf("unhandled message type %q", msg.Type)
	}
	return nil
}

// pressKey holds the modifiers in listed order, taps the main key,
// then releases the modifiers in reverse order.
func (d *Dispatcher) pressKey(code string, modifiers []string) error {
	key, err := input.ParseKey(code)
	if err != nil {
		return err
	}
	mods := input.ParseModifiers(modifiers)

	for _, m := range mods {
		d.injector.KeyDown(m)
	}
	d.injector.KeyDown(key)
	d.injector.KeyUp(key)
	for i := len(mods) - 1; i >= 0; i-- {
		d.injector.KeyUp(mods[i])
	}
	return nil
}

// DispatchDatagram applies one motion datagram. A zero delta component
// is skipped so empty scroll halves do not turn into wheel events.
func (d *Dispatcher) DispatchDatagram(dg protocol.Datagram) {
	switch dg.Kind {
	case protocol.DatagramMouseMove:
		d.injector.MouseMove(dg.DX, dg.DY)
	case protocol.DatagramScroll:
		if dg.DY != 0 {
			d.injector.MouseWheel(dg.DY)
		}
		if dg.DX != 0 {
			d.injector.MouseHWheel(dg.DX)
		}
	}
}
