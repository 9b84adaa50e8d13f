package controller

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/plyst/server/internal/service/station"
	omitnilpointers "github.com/plyst/server/pkg/omit-nil-pointers"
)

// outbound message types
const (
	outputConnected        = "connected"
	outputPong             = "pong"
	outputError            = "error"
	outputSyncResponse     = "sync_response"
	outputParticipants     = "participants_update"
	outputHostChanged      = "host_changed"
	outputTitleChanged     = "title_changed"
	outputPlaybackUpdate   = "playback_update"
	outputChat             = "chat"
	outputVolumeUpdate     = "volume_update"
	outputQueueUpdate      = "queue_update"
	outputQueueAdd         = "queue_add"
	outputSubtitleEnabled  = "subtitle_enabled"
	outputSubtitleDisabled = "subtitle_disabled"
	outputSubtitleReady    = "subtitle_ready"
	outputSubtitleStatus   = "subtitle_status"
	outputKicked           = "kicked"
	outputStationClosed    = "station_closed"
)

type Output struct {
	Type       string `json:"type"`
	Payload    any    `json:"payload,omitempty"`
	ServerTime int64  `json:"serverTime"`
}

func newOutput(messageType string, payload any) *Output {
	return &Output{
		Type:       messageType,
		Payload:    payload,
		ServerTime: time.Now().UnixMilli(),
	}
}

func (c controller) writeToConn(ctx context.Context, conn *websocket.Conn, output *Output) {
	if conn == nil {
		return
	}
	if err := conn.WriteJSON(output); err != nil {
		c.logger.DebugContext(ctx, "failed to write to conn", "type", output.Type, "error", err)
	}
}

func (c controller) broadcast(ctx context.Context, conns []*websocket.Conn, output *Output) {
	for _, conn := range conns {
		c.writeToConn(ctx, conn, output)
	}
}

func (c controller) sendError(ctx context.Context, conn *websocket.Conn, message string) {
	c.writeToConn(ctx, conn, newOutput(outputError, map[string]any{"message": message}))
}

// stationSnapshot flattens a detail into the payload shape clients
// render from. Nil playback is dropped rather than sent as null.
func stationSnapshot(detail *station.StationDetail) map[string]any {
	return omitnilpointers.OmitNilPointers(map[string]any{
		"id":              detail.Id,
		"title":           detail.Title,
		"inviteCode":      detail.InviteCode,
		"maxParticipants": detail.MaxParticipants,
		"isPrivate":       detail.IsPrivate,
		"createdAt":       detail.CreatedAt,
		"hostId":          detail.HostId,
		"participants":    detail.Participants,
		"playback":        detail.Playback,
		"queue":           detail.Queue,
		"volume":          detail.Volume,
		"subtitles":       detail.Subtitles,
	})
}

func (c controller) broadcastParticipants(ctx context.Context, conns []*websocket.Conn, participants []station.ParticipantInfo) {
	c.broadcast(ctx, conns, newOutput(outputParticipants, map[string]any{
		"participants": participants,
	}))
}

func (c controller) broadcastHostChanged(ctx context.Context, conns []*websocket.Conn, newHostId int, participants []station.ParticipantInfo) {
	c.broadcast(ctx, conns, newOutput(outputHostChanged, map[string]any{
		"hostId":       newHostId,
		"participants": participants,
	}))
}
