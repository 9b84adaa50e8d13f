package controller

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gorilla/websocket"
	"github.com/plyst/server/internal/repository/connection"
	"github.com/plyst/server/internal/service/station"
	"github.com/plyst/server/internal/service/subtitle"
	"github.com/plyst/server/pkg/dedup"
	"github.com/plyst/server/pkg/wsreader"
)

// handleLeave is an explicit departure: it drops every connection the
// user holds to the station, not just the one that sent the message.
func (c controller) handleLeave(ctx context.Context, conn *websocket.Conn, session connection.SessionInfo) {
	c.connRepo.Remove(conn)
	for _, other := range c.connRepo.GetUserConns(session.StationId, session.UserId) {
		c.connRepo.Remove(other)
		other.Close()
	}

	c.departUser(ctx, session.StationId, session.UserId)
	conn.Close()
}

// departUser runs the full leave flow once the user has no live
// connections left in the station.
func (c controller) departUser(ctx context.Context, stationId, userId int) {
	if len(c.connRepo.GetUserConns(stationId, userId)) > 0 {
		return
	}

	leaveResp, err := c.stationService.LeaveStation(ctx, &station.LeaveStationParams{
		StationId: stationId,
		UserId:    userId,
	})
	if err != nil {
		// already gone, nothing to announce
		if !errors.Is(err, station.ErrParticipantNotFound) {
			c.logger.InfoContext(ctx, "failed to leave station", "error", err)
		}
		return
	}

	if leaveResp.StationClosed {
		return
	}

	if leaveResp.NewHostId != 0 {
		c.broadcastHostChanged(ctx, leaveResp.Conns, leaveResp.NewHostId, leaveResp.Participants)
		return
	}

	c.broadcastParticipants(ctx, leaveResp.Conns, leaveResp.Participants)
}

func (c controller) handleSyncRequest(ctx context.Context, conn *websocket.Conn, session connection.SessionInfo) {
	syncResp, err := c.stationService.Sync(ctx, session.StationId, session.UserId)
	if err != nil {
		c.handleServiceError(ctx, conn, session, err)
		return
	}

	c.writeToConn(ctx, conn, newOutput(outputSyncResponse, stationSnapshot(&syncResp.Station)))
}

type playbackUpdateInput struct {
	TrackTitle  string `json:"trackTitle"`
	Artist      string `json:"artist"`
	AlbumImage  string `json:"albumImage"`
	VideoId     string `json:"videoId"`
	DurationSec int    `json:"durationSec"`
	PositionMs  int    `json:"positionMs"`
	IsPlaying   bool   `json:"isPlaying"`
}

func (c controller) handlePlaybackUpdate(ctx context.Context, conn *websocket.Conn, session connection.SessionInfo, envelope wsreader.Envelope) {
	input, err := unmarshalInput[playbackUpdateInput](envelope.Raw)
	if err != nil {
		c.sendError(ctx, conn, "malformed playback update")
		return
	}

	updateResp, err := c.stationService.UpdatePlayback(ctx, &station.UpdatePlaybackParams{
		StationId:   session.StationId,
		SenderId:    session.UserId,
		TrackTitle:  input.TrackTitle,
		Artist:      input.Artist,
		AlbumImage:  input.AlbumImage,
		VideoId:     input.VideoId,
		DurationSec: input.DurationSec,
		PositionMs:  input.PositionMs,
		IsPlaying:   input.IsPlaying,
	})
	if err != nil {
		c.handleServiceError(ctx, conn, session, err)
		return
	}

	c.broadcast(ctx, updateResp.Conns, newOutput(outputPlaybackUpdate, updateResp.Playback))

	if updateResp.SubtitlesStarted {
		c.broadcast(ctx, updateResp.Conns, newOutput(outputSubtitleEnabled, map[string]any{
			"videoId": updateResp.Playback.VideoId,
		}))
		go c.awaitSubtitles(ctx, session.StationId, updateResp.Playback.VideoId, updateResp.Subtitles)
	}
}

type chatInput struct {
	Text string `json:"text"`
}

func (c controller) handleChat(ctx context.Context, conn *websocket.Conn, session connection.SessionInfo, envelope wsreader.Envelope) {
	input, err := unmarshalInput[chatInput](envelope.Raw)
	if err != nil || input.Text == "" {
		c.sendError(ctx, conn, "malformed chat message")
		return
	}

	chatResp, err := c.stationService.SendChat(ctx, &station.SendChatParams{
		StationId: session.StationId,
		SenderId:  session.UserId,
		Text:      input.Text,
	})
	if err != nil {
		c.handleServiceError(ctx, conn, session, err)
		return
	}

	c.broadcast(ctx, chatResp.Conns, newOutput(outputChat, map[string]any{
		"sender": chatResp.Sender,
		"text":   chatResp.Text,
		"sentAt": chatResp.SentAt,
	}))
}

type volumeUpdateInput struct {
	Volume int `json:"volume"`
}

func (c controller) handleVolumeUpdate(ctx context.Context, conn *websocket.Conn, session connection.SessionInfo, envelope wsreader.Envelope) {
	input, err := unmarshalInput[volumeUpdateInput](envelope.Raw)
	if err != nil {
		c.sendError(ctx, conn, "malformed volume update")
		return
	}

	volumeResp, err := c.stationService.UpdateVolume(ctx, &station.UpdateVolumeParams{
		StationId: session.StationId,
		SenderId:  session.UserId,
		Volume:    input.Volume,
	})
	if err != nil {
		c.handleServiceError(ctx, conn, session, err)
		return
	}

	c.broadcast(ctx, volumeResp.Conns, newOutput(outputVolumeUpdate, map[string]any{
		"volume": volumeResp.Volume,
	}))
}

type queueUpdateInput struct {
	Queue []json.RawMessage `json:"queue"`
}

func (c controller) handleQueueUpdate(ctx context.Context, conn *websocket.Conn, session connection.SessionInfo, envelope wsreader.Envelope) {
	input, err := unmarshalInput[queueUpdateInput](envelope.Raw)
	if err != nil {
		c.sendError(ctx, conn, "malformed queue update")
		return
	}

	queueResp, err := c.stationService.UpdateQueue(ctx, &station.UpdateQueueParams{
		StationId: session.StationId,
		SenderId:  session.UserId,
		Queue:     input.Queue,
	})
	if err != nil {
		c.handleServiceError(ctx, conn, session, err)
		return
	}

	c.broadcast(ctx, queueResp.Conns, newOutput(outputQueueUpdate, map[string]any{
		"queue": queueResp.Queue,
	}))
}

type queueAddInput struct {
	Item json.RawMessage `json:"item"`
}

func (c controller) handleQueueAdd(ctx context.Context, conn *websocket.Conn, session connection.SessionInfo, envelope wsreader.Envelope) {
	input, err := unmarshalInput[queueAddInput](envelope.Raw)
	if err != nil || len(input.Item) == 0 {
		c.sendError(ctx, conn, "malformed queue add")
		return
	}

	addResp, err := c.stationService.AddToQueue(ctx, &station.AddToQueueParams{
		StationId: session.StationId,
		SenderId:  session.UserId,
		Item:      input.Item,
	})
	if err != nil {
		c.handleServiceError(ctx, conn, session, err)
		return
	}

	c.broadcast(ctx, addResp.Conns, newOutput(outputQueueAdd, map[string]any{
		"item":  addResp.Item,
		"queue": addResp.Queue,
	}))
}

type transferHostInput struct {
	TargetId int `json:"targetId"`
}

func (c controller) handleTransferHost(ctx context.Context, conn *websocket.Conn, session connection.SessionInfo, envelope wsreader.Envelope) {
	input, err := unmarshalInput[transferHostInput](envelope.Raw)
	if err != nil || input.TargetId == 0 {
		c.sendError(ctx, conn, "malformed transfer host")
		return
	}

	transferResp, err := c.stationService.TransferHost(ctx, &station.TransferHostParams{
		StationId: session.StationId,
		SenderId:  session.UserId,
		TargetId:  input.TargetId,
	})
	if err != nil {
		c.handleServiceError(ctx, conn, session, err)
		return
	}

	c.broadcastHostChanged(ctx, transferResp.Conns, input.TargetId, transferResp.Participants)
}

type banInput struct {
	TargetId int `json:"targetId"`
}

func (c controller) handleBan(ctx context.Context, conn *websocket.Conn, session connection.SessionInfo, envelope wsreader.Envelope) {
	input, err := unmarshalInput[banInput](envelope.Raw)
	if err != nil || input.TargetId == 0 {
		c.sendError(ctx, conn, "malformed ban")
		return
	}

	banResp, err := c.stationService.BanUser(ctx, &station.BanUserParams{
		StationId: session.StationId,
		SenderId:  session.UserId,
		TargetId:  input.TargetId,
	})
	if err != nil {
		c.handleServiceError(ctx, conn, session, err)
		return
	}
	if banResp.AlreadyBanned {
		return
	}

	c.kickUser(ctx, session.StationId, input.TargetId, banResp.TargetConns)
	c.broadcastParticipants(ctx, banResp.Conns, banResp.Participants)
}

// kickUser notifies the target on every channel once and drops their
// station connections. The outbox guard keeps a user who reconnects
// mid-kick from receiving the notification twice.
func (c controller) kickUser(ctx context.Context, stationId, targetId int, targetConns []*websocket.Conn) {
	kicked := newOutput(outputKicked, map[string]any{"stationId": stationId})

	for _, targetConn := range targetConns {
		c.writeToConn(ctx, targetConn, kicked)
		c.connRepo.Remove(targetConn)
		targetConn.Close()
	}

	key := dedup.Key{Kind: outputKicked, StationId: stationId, UserId: targetId}
	if c.outbox.Seen(key) {
		return
	}
	if userConn, err := c.userConnRepo.GetConn(targetId); err == nil {
		c.writeToConn(ctx, userConn, kicked)
	}
}

func (c controller) handleSubtitleEnable(ctx context.Context, conn *websocket.Conn, session connection.SessionInfo) {
	enableResp, err := c.stationService.EnableSubtitles(ctx, &station.EnableSubtitlesParams{
		StationId: session.StationId,
		SenderId:  session.UserId,
	})
	if err != nil {
		c.handleServiceError(ctx, conn, session, err)
		return
	}

	c.broadcast(ctx, enableResp.Conns, newOutput(outputSubtitleEnabled, map[string]any{
		"videoId": enableResp.VideoId,
	}))

	// a re-enable resolves immediately with the cached segments, so the
	// ready state is re-sent either way
	go c.awaitSubtitles(ctx, session.StationId, enableResp.VideoId, enableResp.Promise)
}

// awaitSubtitles delivers the generation outcome to whoever is
// connected to the station once it resolves.
func (c controller) awaitSubtitles(ctx context.Context, stationId int, videoId string, promise subtitle.Promise) {
	segments, err := promise.Wait(context.WithoutCancel(ctx))
	conns := c.connRepo.GetStationConns(stationId)
	if err != nil {
		c.broadcast(ctx, conns, newOutput(outputSubtitleStatus, map[string]any{
			"videoId":   videoId,
			"available": false,
			"error":     "subtitle generation failed",
		}))
		return
	}

	c.broadcast(ctx, conns, newOutput(outputSubtitleReady, map[string]any{
		"videoId":  videoId,
		"segments": segments,
	}))
}

func (c controller) handleSubtitleDisable(ctx context.Context, conn *websocket.Conn, session connection.SessionInfo) {
	disableResp, err := c.stationService.DisableSubtitles(ctx, &station.DisableSubtitlesParams{
		StationId: session.StationId,
		SenderId:  session.UserId,
	})
	if err != nil {
		c.handleServiceError(ctx, conn, session, err)
		return
	}

	c.broadcast(ctx, disableResp.Conns, newOutput(outputSubtitleDisabled, nil))
}

func (c controller) handleSubtitleStatus(ctx context.Context, conn *websocket.Conn, session connection.SessionInfo) {
	statusResp, err := c.stationService.SubtitleStatus(ctx, session.StationId, session.UserId)
	if err != nil {
		c.handleServiceError(ctx, conn, session, err)
		return
	}

	c.writeToConn(ctx, conn, newOutput(outputSubtitleStatus, map[string]any{
		"enabled": statusResp.Enabled,
		"status":  statusResp.Status,
	}))
}
