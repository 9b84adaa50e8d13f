// Package inmemory is the user-scoped notification hub. It guarantees at
// most one live connection per user: connecting again closes the
// previous connection (last-connection-wins).
package inmemory

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/plyst/server/internal/repository/connection"
)

type repo struct {
	userConns map[int]*websocket.Conn
	userIds   map[*websocket.Conn]int
	mu        sync.RWMutex
	logger    *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		userConns: make(map[int]*websocket.Conn),
		userIds:   make(map[*websocket.Conn]int),
		logger:    logger,
	}
}

// Add registers the connection for a user and returns the previous one,
// if any, so the caller can close it.
func (r *repo) Add(conn *websocket.Conn, userId int) *websocket.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.userConns[userId]
	if prev != nil {
		delete(r.userIds, prev)
	}

	r.userConns[userId] = conn
	r.userIds[conn] = userId

	return prev
}

func (r *repo) Remove(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userId, ok := r.userIds[conn]
	if !ok {
		return
	}

	delete(r.userIds, conn)
	// a newer connection may already own the user slot
	if r.userConns[userId] == conn {
		delete(r.userConns, userId)
	}
}

func (r *repo) GetConn(userId int) (*websocket.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.userConns[userId]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return conn, nil
}

func (r *repo) GetAllConns() []*websocket.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*websocket.Conn, 0, len(r.userConns))
	for _, conn := range r.userConns {
		conns = append(conns, conn)
	}

	return conns
}

func (r *repo) IsConnected(userId int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.userConns[userId]
	return ok
}
