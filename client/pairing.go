package client

import (
	"encoding/json"
	"fmt"

	"github.com/glidedeck/glidedeck/protocol"
)

// Pairing is the payload the receiver renders as a QR code. The client
// scans it (externally) and hands the fields to Connect.
type Pairing struct {
	IP      string `json:"ip"`
	Port    int    `json:"port"`
	Token   string `json:"token"`
	Version int    `json:"ver"`
}

// ParsePairing decodes a scanned pairing payload and sanity-checks it
// before any connection attempt is made with its contents.
func ParsePairing(data []byte) (Pairing, error) {
	var p Pairing
	if err := json.Unmarshal(data, &p); err != nil {
		return Pairing{}, fmt.Errorf("parse pairing payload: %w", err)
	}
	if p.IP == "" || p.Token == "" {
		return Pairing{}, fmt.Errorf("pairing payload missing ip or token")
	}
	if p.Port <= 0 || p.Port > 65535 {
		return Pairing{}, fmt.Errorf("pairing payload has invalid port %d", p.Port)
	}
	if p.Version != protocol.ProtocolVersion {
		return Pairing{}, fmt.Errorf("pairing payload is for protocol version %d, this app speaks %d",
			p.Version, protocol.ProtocolVersion)
	}
	return p, nil
}
