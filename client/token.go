package client

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "glidedeck"
const keyringUser = "pairing-token"

// SaveToken stores the pairing token in the OS keyring so a restart can
// reconnect without re-scanning the QR code, as long as the receiver
// run is the same.
func SaveToken(token string) error {
	if err := keyring.Set(keyringService, keyringUser, token); err != nil {
		return fmt.Errorf("store pairing token: %w", err)
	}
	return nil
}

// LoadToken fetches the stored pairing token.
func LoadToken() (string, error) {
	token, err := keyring.Get(keyringService, keyringUser)
	if err != nil {
		return "", fmt.Errorf("no stored pairing token")
	}
	return token, nil
}

// ClearToken forgets the stored pairing token.
func ClearToken() error {
	if err := keyring.Delete(keyringService, keyringUser); err != nil {
		return fmt.Errorf("clear pairing token: %w", err)
	}
	return nil
}
