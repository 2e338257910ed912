package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMouseButton(t *testing.T) {
	assert.Equal(t, MouseRight, ParseMouseButton("RIGHT"))
	assert.Equal(t, MouseRight, ParseMouseButton("right"))
	assert.Equal(t, MouseMiddle, ParseMouseButton("Middle"))

	// unknown values fall back to left
	assert.Equal(t, MouseLeft, ParseMouseButton("LEFT"))
	assert.Equal(t, MouseLeft, ParseMouseButton(""))
	assert.Equal(t, MouseLeft, ParseMouseButton("SIDE4"))
}

func TestParseKey_Named(t *testing.T) {
	key, err := ParseKey("enter")
	require.NoError(t, err)
	assert.Equal(t, Key("Enter"), key)

	key, err = ParseKey("CTRL")
	require.NoError(t, err)
	assert.Equal(t, KeyControl, key)

	key, err = ParseKey("meta")
	require.NoError(t, err)
	assert.Equal(t, KeyWin, key)
}

func TestParseKey_LettersAndDigits(t *testing.T) {
	key, err := ParseKey("a")
	require.NoError(t, err)
	assert.Equal(t, Key("A"), key)

	key, err = ParseKey("7")
	require.NoError(t, err)
	assert.Equal(t, Key("7"), key)
}

func TestParseKey_Unknown(t *testing.T) {
	_, err := ParseKey("")
	assert.Error(t, err)

	_, err = ParseKey("FROBNICATE")
	assert.Error(t, err)

	_, err = ParseKey("!")
	assert.Error(t, err)
}

func TestParseModifiers_OrderAndSkip(t *testing.T) {
	mods := ParseModifiers([]string{"ctrl", "bogus", "SHIFT", "win"})
	assert.Equal(t, []Key{KeyControl, KeyShift, KeyWin}, mods)

	assert.Empty(t, ParseModifiers(nil))
	assert.Empty(t, ParseModifiers([]string{"nope"}))
}
