package receiver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/glidedeck/glidedeck/protocol"
)

func TestDispatcher_UnknownType(t *testing.T) {
	d := NewDispatcher(newRecorder())

	err := d.DispatchMessage(protocol.Message{Type: "BOGUS"})
	assert.Error(t, err)
}

func TestDispatcher_BadKeyCode(t *testing.T) {
	rec := newRecorder()
	d := NewDispatcher(rec)

	err := d.DispatchMessage(protocol.Message{Type: protocol.TypeKey, Code: "NOT_A_KEY"})
	assert.Error(t, err)
	assert.Empty(t, rec.ch)
}

func TestDispatcher_ScrollSkipsZeroComponents(t *testing.T) {
	rec := newRecorder()
	d := NewDispatcher(rec)

	d.DispatchDatagram(protocol.Datagram{Kind: protocol.DatagramScroll, DX: 0, DY: 0})
	assert.Empty(t, rec.ch)

	d.DispatchDatagram(protocol.Datagram{Kind: protocol.DatagramScroll, DX: 0, DY: 4})
	assert.Equal(t, "wheel 4", <-rec.ch)
}
