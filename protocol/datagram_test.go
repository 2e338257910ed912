package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDatagram_MouseMove(t *testing.T) {
	dg, err := ParseDatagram(EncodeMouseMove("tok", 12, -7))
	require.NoError(t, err)

	assert.Equal(t, "tok", dg.Token)
	assert.Equal(t, DatagramMouseMove, dg.Kind)
	assert.Equal(t, 12, dg.DX)
	assert.Equal(t, -7, dg.DY)
}

func TestParseDatagram_Scroll(t *testing.T) {
	dg, err := ParseDatagram(EncodeScroll("tok", 0, 3))
	require.NoError(t, err)

	assert.Equal(t, DatagramScroll, dg.Kind)
	assert.Equal(t, 0, dg.DX)
	assert.Equal(t, 3, dg.DY)
}

func TestParseDatagram_Malformed(t *testing.T) {
	cases := []string{
		"",
		"tok",
		"tok|M",
		"tok|M|5",
		"tok|X|5|3",
		"tok|M|five|3",
		"tok|M|5|three",
	}

	for _, c := range cases {
		_, err := ParseDatagram([]byte(c))
		assert.ErrorIs(t, err, ErrMalformedDatagram, "input %q", c)
	}
}
