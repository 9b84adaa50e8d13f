package inmemory

import (
	"log/slog"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plyst/server/internal/repository/connection"
)

func TestLastConnectionWins(t *testing.T) {
	r := NewRepo(slog.Default())

	first := &websocket.Conn{}
	second := &websocket.Conn{}

	assert.Nil(t, r.Add(first, 1))
	assert.True(t, r.IsConnected(1))

	prev := r.Add(second, 1)
	assert.Same(t, first, prev)

	conn, err := r.GetConn(1)
	require.NoError(t, err)
	assert.Same(t, second, conn)
}

func TestRemoveOnlyOwnSlot(t *testing.T) {
	r := NewRepo(slog.Default())

	first := &websocket.Conn{}
	second := &websocket.Conn{}

	r.Add(first, 1)
	r.Add(second, 1)

	// the replaced connection must not evict its successor
	r.Remove(first)
	assert.True(t, r.IsConnected(1))

	r.Remove(second)
	assert.False(t, r.IsConnected(1))

	_, err := r.GetConn(1)
	assert.ErrorIs(t, err, connection.ErrNotFound)
	assert.Empty(t, r.GetAllConns())
}
