package controller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/plyst/server/internal/repository/connection"
	"github.com/plyst/server/pkg/ctxlogger"
	"github.com/plyst/server/pkg/dedup"
	"github.com/plyst/server/pkg/wsreader"
)

const subscribeTimeout = 15 * time.Second

func (c controller) closeWithCode(conn *websocket.Conn, code int, reason string) {
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	conn.Close()
}

// connectStation binds a websocket to a station from query params
// alone. Invalid or missing ids close the socket with 1007 after the
// upgrade so the client sees a websocket-level close, not an HTTP error.
func (c controller) connectStation(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	stationId, err1 := strconv.Atoi(r.URL.Query().Get("station-id"))
	userId, err2 := strconv.Atoi(r.URL.Query().Get("user-id"))
	if err1 != nil || err2 != nil || stationId <= 0 || userId <= 0 {
		c.closeWithCode(conn, websocket.CloseUnsupportedData, "invalid station or user id")
		return
	}

	c.serveStationConn(r.Context(), conn, stationId, userId)
}

type subscribeInput struct {
	StationId int `json:"stationId"`
}

// connectTopic is the subscription-style binding: the user is
// identified by header at connect time and names the station in a
// subscribe message.
func (c controller) connectTopic(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	userId, err := strconv.Atoi(r.Header.Get("X-User-Id"))
	if err != nil || userId <= 0 {
		c.closeWithCode(conn, websocket.CloseUnsupportedData, "invalid user id")
		return
	}

	stationId, err := c.readSubscribe(conn)
	if err != nil {
		c.closeWithCode(conn, websocket.CloseUnsupportedData, "expected subscribe")
		return
	}

	c.serveStationConn(r.Context(), conn, stationId, userId)
}

func (c controller) readSubscribe(conn *websocket.Conn) (int, error) {
	conn.SetReadDeadline(time.Now().Add(subscribeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return 0, err
		}

		var envelope wsreader.Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			continue
		}
		if envelope.Type == inputPing {
			continue
		}
		if envelope.Type != inputSubscribe {
			return 0, errors.New("unexpected message before subscribe")
		}

		input, err := unmarshalInput[subscribeInput](raw)
		if err != nil || input.StationId <= 0 {
			return 0, errors.New("malformed subscribe")
		}

		return input.StationId, nil
	}
}

// serveStationConn validates membership, registers the connection,
// sends the initial snapshot and pumps messages until the socket dies.
// Both station bindings converge here.
func (c controller) serveStationConn(ctx context.Context, conn *websocket.Conn, stationId, userId int) {
	ctx = ctxlogger.AppendCtx(ctx, slog.Int("station_id", stationId))
	ctx = ctxlogger.AppendCtx(ctx, slog.Int("user_id", userId))

	syncResp, err := c.stationService.Sync(ctx, stationId, userId)
	if err != nil {
		c.logger.DebugContext(ctx, "rejecting station conn", "error", err)
		c.closeWithCode(conn, websocket.ClosePolicyViolation, "not a participant")
		return
	}

	if err := c.connRepo.Add(conn, connection.SessionInfo{
		StationId: stationId,
		UserId:    userId,
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to register conn", "error", err)
		conn.Close()
		return
	}

	// a fresh connection may receive future kick notifications again
	c.outbox.Forget(dedup.Key{Kind: outputKicked, StationId: stationId, UserId: userId})

	c.writeToConn(ctx, conn, newOutput(outputConnected, stationSnapshot(&syncResp.Station)))
	c.logger.InfoContext(ctx, "station conn opened")

	if err := wsreader.Serve(ctx, conn, c); err != nil {
		c.logger.DebugContext(ctx, "station conn closed", "error", err)
	}

	c.handleDisconnect(ctx, conn)
}

// handleDisconnect treats a dropped socket as a departure: once the
// user's last connection to the station is gone, they leave it.
func (c controller) handleDisconnect(ctx context.Context, conn *websocket.Conn) {
	info, _, err := c.connRepo.Remove(conn)
	if err != nil {
		// already removed by an explicit leave or a kick
		return
	}

	c.departUser(ctx, info.StationId, info.UserId)
}

// connectUser is the per-user notification socket. A newer connection
// for the same user replaces the older one.
func (c controller) connectUser(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	userIdParam := r.URL.Query().Get("user-id")
	if userIdParam == "" {
		userIdParam = r.Header.Get("X-User-Id")
	}
	userId, err := strconv.Atoi(userIdParam)
	if err != nil || userId <= 0 {
		c.closeWithCode(conn, websocket.CloseUnsupportedData, "invalid user id")
		return
	}

	ctx := ctxlogger.AppendCtx(r.Context(), slog.Int("user_id", userId))

	if prev := c.userConnRepo.Add(conn, userId); prev != nil {
		c.closeWithCode(prev, websocket.ClosePolicyViolation, "replaced by a newer connection")
	}

	c.writeToConn(ctx, conn, newOutput(outputConnected, map[string]any{"userId": userId}))
	c.logger.InfoContext(ctx, "user conn opened")

	if err := wsreader.Serve(ctx, conn, c); err != nil {
		c.logger.DebugContext(ctx, "user conn closed", "error", err)
	}

	c.userConnRepo.Remove(conn)
}
