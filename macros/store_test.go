package macros

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glidedeck/glidedeck/input"
)

// keyLog records key transitions in order.
type keyLog struct {
	input.LogInjector
	events []string
}

func (k *keyLog) KeyDown(key input.Key) { k.events = append(k.events, "down "+string(key)) }
func (k *keyLog) KeyUp(key input.Key)   { k.events = append(k.events, "up "+string(key)) }

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "macros.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_AddGetList(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.Add(ctx, "Copy", []input.Key{input.KeyControl, "C"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	m, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Copy", m.Name)
	assert.Equal(t, []input.Key{input.KeyControl, "C"}, m.Keys)

	id2, err := s.Add(ctx, "Paste", []input.Key{input.KeyControl, "V"})
	require.NoError(t, err)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, id2, list[1].ID)
}

func TestStore_Remove(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.Add(ctx, "Copy", []input.Key{input.KeyControl, "C"})
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, id))

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Remove(ctx, id), ErrNotFound)
}

func TestStore_GetMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ExecuteHoldsAndReleasesInOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.Add(ctx, "Switch", []input.Key{input.KeyAlt, "Tab"})
	require.NoError(t, err)

	log := &keyLog{}
	require.NoError(t, s.Execute(ctx, id, log))

	assert.Equal(t, []string{
		"down Alt", "down Tab",
		"up Tab", "up Alt",
	}, log.events)
}

func TestStore_ExecuteMissing(t *testing.T) {
	s := openTestStore(t)

	err := s.Execute(context.Background(), "no-such-id", &keyLog{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "macros.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	id, err := s.Add(ctx, "Copy", []input.Key{input.KeyControl, "C"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	m, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Copy", m.Name)
}
