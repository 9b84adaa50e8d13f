package controller

import (
	"context"
	"errors"

	"github.com/gorilla/websocket"
	"github.com/plyst/server/internal/repository/connection"
	"github.com/plyst/server/internal/service/station"
	"github.com/plyst/server/pkg/wsreader"
)

// The inbound message catalogue is closed: every type a client may send
// is listed here and dispatched below. Anything else gets an error
// response instead of being silently accepted.
const (
	inputPing            = "ping"
	inputSubscribe       = "subscribe"
	inputLeave           = "leave"
	inputSyncRequest     = "sync_request"
	inputPlaybackUpdate  = "playback_update"
	inputChat            = "chat"
	inputVolumeUpdate    = "volume_update"
	inputQueueUpdate     = "queue_update"
	inputQueueAdd        = "queue_add"
	inputTransferHost    = "transfer_host"
	inputBan             = "ban"
	inputSubtitleEnable  = "subtitle_enable"
	inputSubtitleDisable = "subtitle_disable"
	inputSubtitleStatus  = "subtitle_status"
)

// Dispatch routes one decoded envelope. Ping works without a session;
// everything else requires the connection to be bound to a station.
func (c controller) Dispatch(ctx context.Context, conn *websocket.Conn, envelope wsreader.Envelope) {
	if envelope.Type == inputPing {
		c.writeToConn(ctx, conn, newOutput(outputPong, nil))
		return
	}

	session, err := c.connRepo.GetSession(conn)
	if err != nil {
		c.sendError(ctx, conn, "not subscribed to a station")
		return
	}

	c.stationService.TouchParticipant(ctx, session.StationId, session.UserId)

	switch envelope.Type {
	case inputSubscribe:
		c.sendError(ctx, conn, "already subscribed")
	case inputLeave:
		c.handleLeave(ctx, conn, session)
	case inputSyncRequest:
		c.handleSyncRequest(ctx, conn, session)
	case inputPlaybackUpdate:
		c.handlePlaybackUpdate(ctx, conn, session, envelope)
	case inputChat:
		c.handleChat(ctx, conn, session, envelope)
	case inputVolumeUpdate:
		c.handleVolumeUpdate(ctx, conn, session, envelope)
	case inputQueueUpdate:
		c.handleQueueUpdate(ctx, conn, session, envelope)
	case inputQueueAdd:
		c.handleQueueAdd(ctx, conn, session, envelope)
	case inputTransferHost:
		c.handleTransferHost(ctx, conn, session, envelope)
	case inputBan:
		c.handleBan(ctx, conn, session, envelope)
	case inputSubtitleEnable:
		c.handleSubtitleEnable(ctx, conn, session)
	case inputSubtitleDisable:
		c.handleSubtitleDisable(ctx, conn, session)
	case inputSubtitleStatus:
		c.handleSubtitleStatus(ctx, conn, session)
	default:
		c.logger.DebugContext(ctx, "unknown message type", "type", envelope.Type)
		c.sendError(ctx, conn, "unknown message type: "+envelope.Type)
	}
}

// droppedSilently reports errors that get no response on the socket.
// Authorization failures are dropped so probing non-hosts learn nothing
// about the station; messages racing a station close are dropped so
// clients don't get error spam for a room that just ended.
func droppedSilently(err error) bool {
	return errors.Is(err, station.ErrPermissionDenied) || errors.Is(err, station.ErrStationNotFound)
}

// handleServiceError maps a failed operation to the conn's feedback.
func (c controller) handleServiceError(ctx context.Context, conn *websocket.Conn, session connection.SessionInfo, err error) {
	if droppedSilently(err) {
		c.logger.DebugContext(ctx, "message dropped",
			"station_id", session.StationId,
			"user_id", session.UserId,
			"error", err,
		)
		return
	}

	c.sendError(ctx, conn, err.Error())
}
