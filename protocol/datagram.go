package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedDatagram is returned for datagrams that do not match the
// token|kind|dx|dy layout. Callers drop the packet and move on.
var ErrMalformedDatagram = errors.New("malformed datagram")

// DatagramKind selects the payload of a data-channel packet.
type DatagramKind byte

const (
	// DatagramMouseMove carries a relative pointer delta.
	DatagramMouseMove DatagramKind = 'M'
	// DatagramScroll carries a wheel delta, horizontal and vertical.
	DatagramScroll DatagramKind = 'S'
)

// Datagram is one decoded data-channel packet. DX/DY are absolute deltas,
// so lost or reordered packets skew motion momentarily but never corrupt
// receiver state.
type Datagram struct {
	Token string
	Kind  DatagramKind
	DX    int
	DY    int
}

// EncodeMouseMove builds a token|M|dx|dy packet.
func EncodeMouseMove(token string, dx, dy int) []byte {
	return []byte(fmt.Sprintf("%s|M|%d|%d", token, dx, dy))
}

// EncodeScroll builds a token|S|dx|dy packet.
func EncodeScroll(token string, dx, dy int) []byte {
	return []byte(fmt.Sprintf("%s|S|%d|%d", token, dx, dy))
}

// ParseDatagram decodes one data-channel packet. The token field is
// returned as-is; validating it against the current server token is the
// caller's job and must happen before the deltas are acted on.
func ParseDatagram(data []byte) (Datagram, error) {
	parts := strings.Split(string(data), "|")
	if len(parts) < 4 {
		return Datagram{}, fmt.Errorf("%w: expected 4 fields, got %d", ErrMalformedDatagram, len(parts))
	}

	var kind DatagramKind
	switch parts[1] {
	case "M":
		kind = DatagramMouseMove
	case "S":
		kind = DatagramScroll
	default:
		return Datagram{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedDatagram, parts[1])
	}

	dx, err := strconv.Atoi(parts[2])
	if err != nil {
		return Datagram{}, fmt.Errorf("%w: bad dx %q", ErrMalformedDatagram, parts[2])
	}
	dy, err := strconv.Atoi(parts[3])
	if err != nil {
		return Datagram{}, fmt.Errorf("%w: bad dy %q", ErrMalformedDatagram, parts[3])
	}

	return Datagram{Token: parts[0], Kind: kind, DX: dx, DY: dy}, nil
}
