// Package inmemory tracks which live websocket connections belong to
// which station so the coordinator can fan out broadcasts. It owns only
// connection bookkeeping; station lifecycle belongs to the registry.
package inmemory

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/plyst/server/internal/repository/connection"
)

type repo struct {
	sessions     map[*websocket.Conn]connection.SessionInfo
	stationConns map[int]map[*websocket.Conn]struct{}
	mu           sync.RWMutex
	logger       *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		sessions:     make(map[*websocket.Conn]connection.SessionInfo),
		stationConns: make(map[int]map[*websocket.Conn]struct{}),
		logger:       logger,
	}
}

func (r *repo) Add(conn *websocket.Conn, info connection.SessionInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[conn]; ok {
		r.logger.Debug("connection already registered", "station_id", info.StationId, "user_id", info.UserId)
		return connection.ErrAlreadyExists
	}

	r.sessions[conn] = info
	conns, ok := r.stationConns[info.StationId]
	if !ok {
		conns = make(map[*websocket.Conn]struct{})
		r.stationConns[info.StationId] = conns
	}
	conns[conn] = struct{}{}

	return nil
}

// Remove unregisters the connection and reports how many connections the
// station still has. Zero remaining only reclaims the hub's own map
// entry; the caller must not treat it as a station close.
func (r *repo) Remove(conn *websocket.Conn) (connection.SessionInfo, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.sessions[conn]
	if !ok {
		return connection.SessionInfo{}, 0, connection.ErrNotFound
	}

	delete(r.sessions, conn)
	remaining := 0
	if conns, ok := r.stationConns[info.StationId]; ok {
		delete(conns, conn)
		remaining = len(conns)
		if remaining == 0 {
			delete(r.stationConns, info.StationId)
		}
	}

	return info, remaining, nil
}

func (r *repo) GetSession(conn *websocket.Conn) (connection.SessionInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.sessions[conn]
	if !ok {
		return connection.SessionInfo{}, connection.ErrNotFound
	}

	return info, nil
}

func (r *repo) GetStationConns(stationId int) []*websocket.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*websocket.Conn, 0, len(r.stationConns[stationId]))
	for conn := range r.stationConns[stationId] {
		conns = append(conns, conn)
	}

	return conns
}

// GetUserConns returns the connections a user holds in one station, used
// for targeted delivery like kick notices.
func (r *repo) GetUserConns(stationId, userId int) []*websocket.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []*websocket.Conn
	for conn := range r.stationConns[stationId] {
		if info, ok := r.sessions[conn]; ok && info.UserId == userId {
			conns = append(conns, conn)
		}
	}

	return conns
}

func (r *repo) CountStationConns(stationId int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.stationConns[stationId])
}
