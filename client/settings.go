package client

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"

	"github.com/glidedeck/glidedeck/gesture"
	"github.com/glidedeck/glidedeck/protocol"
)

// Settings are the user-tunable client preferences plus the last
// successful connection, persisted between runs.
type Settings struct {
	CursorSpeed   float64
	ScrollSpeed   float64
	ScrollReverse bool

	LastHost string
	LastPort int
}

// DefaultSettings mirrors the gesture defaults.
func DefaultSettings() Settings {
	cfg := gesture.DefaultConfig()
	return Settings{
		CursorSpeed:   cfg.CursorSpeed,
		ScrollSpeed:   cfg.ScrollSpeed,
		ScrollReverse: cfg.ScrollReverse,
		LastPort:      protocol.DefaultPort,
	}
}

// GestureConfig folds the settings into a recognizer config.
func (s Settings) GestureConfig() gesture.Config {
	cfg := gesture.DefaultConfig()
	cfg.CursorSpeed = s.CursorSpeed
	cfg.ScrollSpeed = s.ScrollSpeed
	cfg.ScrollReverse = s.ScrollReverse
	return cfg
}

// LoadSettings reads the ini file at path, returning defaults when the
// file does not exist yet.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}

	cfg, err := ini.Load(path)
	if err != nil {
		return s, fmt.Errorf("load settings: %w", err)
	}

	trackpad := cfg.Section("trackpad")
	s.CursorSpeed = trackpad.Key("cursor_speed").MustFloat64(s.CursorSpeed)
	s.ScrollSpeed = trackpad.Key("scroll_speed").MustFloat64(s.ScrollSpeed)
	s.ScrollReverse = trackpad.Key("scroll_reverse").MustBool(s.ScrollReverse)

	conn := cfg.Section("connection")
	s.LastHost = conn.Key("last_host").String()
	s.LastPort = conn.Key("last_port").MustInt(s.LastPort)

	return s, nil
}

// Save writes the settings, creating the directory as needed.
func (s Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	cfg := ini.Empty()

	trackpad := cfg.Section("trackpad")
	trackpad.Key("cursor_speed").SetValue(fmt.Sprintf("%g", s.CursorSpeed))
	trackpad.Key("scroll_speed").SetValue(fmt.Sprintf("%g", s.ScrollSpeed))
	trackpad.Key("scroll_reverse").SetValue(fmt.Sprintf("%t", s.ScrollReverse))

	conn := cfg.Section("connection")
	conn.Key("last_host").SetValue(s.LastHost)
	conn.Key("last_port").SetValue(fmt.Sprintf("%d", s.LastPort))

	if err := cfg.SaveTo(path); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
