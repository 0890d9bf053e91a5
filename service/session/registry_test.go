package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	registry := NewRegistry(func() (Provider, error) {
		return NewMockProvider(testAccount), nil
	}, Options{})
	defer registry.Close()

	a, err := registry.Create()
	require.NoError(t, err)
	b, err := registry.Create()
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())

	got, err := registry.Get(a.ID())
	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.Len(t, registry.IDs(), 2)

	// Sessions are isolated from each other.
	_, err = a.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusConnected, a.Snapshot().Status)
	assert.Equal(t, StatusDisconnected, b.Snapshot().Status)

	require.NoError(t, registry.Remove(a.ID()))
	_, err = registry.Get(a.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, registry.Remove(a.ID()), ErrSessionNotFound)
	assert.Equal(t, []string{b.ID()}, registry.IDs())
}

func TestRegistry_FactoryError(t *testing.T) {
	registry := NewRegistry(func() (Provider, error) {
		return nil, errors.New("no key configured")
	}, Options{})
	defer registry.Close()

	_, err := registry.Create()
	assert.Error(t, err)
	assert.Empty(t, registry.IDs())
}
