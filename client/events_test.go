package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribers_FanOut(t *testing.T) {
	var s subscribers

	a := s.subscribe()
	b := s.subscribe()

	s.publish(Event{Kind: EventClipboard, Text: "shared"})

	for _, ch := range []<-chan Event{a, b} {
		ev := <-ch
		assert.Equal(t, EventClipboard, ev.Kind)
		assert.Equal(t, "shared", ev.Text)
	}

	s.unsubscribe(a)
	s.unsubscribe(b)
}

func TestSubscribers_UnsubscribeClosesChannel(t *testing.T) {
	var s subscribers

	ch := s.subscribe()
	s.unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)

	// releasing an unknown channel is a no-op
	s.unsubscribe(ch)
	s.publish(Event{Kind: EventStateChanged, State: StateConnected})
}

func TestSubscribers_SlowSubscriberDropsEvents(t *testing.T) {
	var s subscribers

	ch := s.subscribe()
	for i := 0; i < subscriberBuffer+10; i++ {
		s.publish(Event{Kind: EventClipboard, Text: "flood"})
	}

	// publish never blocks; the overflow is simply gone
	require.Len(t, ch, subscriberBuffer)
	s.unsubscribe(ch)
}
