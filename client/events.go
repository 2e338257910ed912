package client

import (
	"sync"

	"github.com/glidedeck/glidedeck/protocol"
)

// EventKind discriminates client events.
type EventKind int

const (
	// EventStateChanged reports a connection state transition.
	EventStateChanged EventKind = iota
	// EventClipboard reports clipboard text pushed by the receiver.
	EventClipboard
	// EventMacros reports a macro listing answering GET_MACROS.
	EventMacros
)

// Event is one notification delivered to subscribers.
type Event struct {
	Kind   EventKind
	State  State
	Text   string
	Macros []protocol.MacroInfo
}

// subscribers fan events out to any number of observers. A subscriber
// that stops draining its channel loses events rather than blocking the
// network loops.
type subscribers struct {
	mu    sync.Mutex
	chans []chan Event
}

const subscriberBuffer = 16

func (s *subscribers) subscribe() <-chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Event, subscriberBuffer)
	s.chans = append(s.chans, ch)
	return ch
}

func (s *subscribers) unsubscribe(ch <-chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.chans {
		if c == ch {
			s.chans = append(s.chans[:i], s.chans[i+1:]...)
			close(c)
			return
		}
	}
}

func (s *subscribers) publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chans {
		select {
		case c <- ev:
		default:
		}
	}
}
