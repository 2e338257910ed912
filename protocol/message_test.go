package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeMessage_AppendsNewline(t *testing.T) {
	data, err := EncodeMessage(Message{Type: TypePing, Time: 12345})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(string(data), "\n"))
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
}

func TestEncodeMessage_RequiresType(t *testing.T) {
	_, err := EncodeMessage(Message{})
	assert.Error(t, err)
}

func TestDecodeMessage_Auth(t *testing.T) {
	line := `{"type":"AUTH","token":"abc","version":1,"device":"Pixel 9"}`

	msg, err := DecodeMessage([]byte(line))
	require.NoError(t, err)

	assert.Equal(t, TypeAuth, msg.Type)
	assert.Equal(t, "abc", msg.Token)
	assert.Equal(t, 1, msg.Version)
	assert.Equal(t, "Pixel 9", msg.Device)
}

func TestDecodeMessage_MissingType(t *testing.T) {
	_, err := DecodeMessage([]byte(`{"token":"abc"}`))
	assert.Error(t, err)
}

func TestDecodeMessage_Garbage(t *testing.T) {
	_, err := DecodeMessage([]byte("not json"))
	assert.Error(t, err)
}

func TestAuthResult_RoundTrip(t *testing.T) {
	ok, err := EncodeMessage(AuthResultOK())
	require.NoError(t, err)

	msg, err := DecodeMessage(ok)
	require.NoError(t, err)
	assert.True(t, msg.IsSuccess())

	rejected, err := EncodeMessage(AuthResultError("Invalid token"))
	require.NoError(t, err)

	// a rejection must carry an explicit success=false on the wire
	assert.Contains(t, string(rejected), `"success":false`)

	msg, err = DecodeMessage(rejected)
	require.NoError(t, err)
	assert.False(t, msg.IsSuccess())
	assert.Equal(t, "Invalid token", msg.Error)
}

func TestIsSuccess_AbsentField(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"type":"AUTH_RESULT"}`))
	require.NoError(t, err)
	assert.False(t, msg.IsSuccess())
}
