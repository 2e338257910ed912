package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glidedeck/glidedeck/input"
	"github.com/glidedeck/glidedeck/receiver"
)

func TestIsChild(t *testing.T) {
	assert.False(t, IsChild())

	t.Setenv(DaemonEnvVar, "1")
	assert.True(t, IsChild())

	t.Setenv(DaemonEnvVar, "0")
	assert.False(t, IsChild())
}

func TestKillReceiver_NotRunning(t *testing.T) {
	err := KillReceiver("127.0.0.1:1")
	assert.Error(t, err)
}

func TestKillReceiver_PostsShutdown(t *testing.T) {
	cfg := receiver.DefaultConfig()
	cfg.BindIP = "127.0.0.1"
	cfg.Port = 0

	h, err := receiver.Start(cfg, input.LogInjector{})
	require.NoError(t, err)
	defer h.Stop()

	fired := make(chan struct{})
	s, err := receiver.StartStatus("127.0.0.1:0", h, func() { close(fired) })
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	}()

	require.NoError(t, KillReceiver(s.Addr()))

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("shutdown was not triggered")
	}
}
