package client

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glidedeck/glidedeck/protocol"
)

func TestLoadSettings_MissingFileGivesDefaults(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "nope.ini"))
	require.NoError(t, err)

	assert.Equal(t, DefaultSettings(), s)
	assert.Equal(t, protocol.DefaultPort, s.LastPort)
}

func TestSettings_SaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "settings.ini")

	s := DefaultSettings()
	s.CursorSpeed = 2.5
	s.ScrollReverse = true
	s.LastHost = "192.168.1.20"
	s.LastPort = 50123
	require.NoError(t, s.Save(path))

	loaded, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestSettings_GestureConfig(t *testing.T) {
	s := DefaultSettings()
	s.CursorSpeed = 3
	s.ScrollReverse = true

	cfg := s.GestureConfig()
	assert.Equal(t, 3.0, cfg.CursorSpeed)
	assert.True(t, cfg.ScrollReverse)
}
