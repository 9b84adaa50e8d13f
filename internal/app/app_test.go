package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plyst/server/internal/repository/connection"
	connInmemory "github.com/plyst/server/internal/repository/connection/inmemory"
	cacheInmemory "github.com/plyst/server/internal/repository/roomcache/inmemory"
	stationRedis "github.com/plyst/server/internal/repository/station/redis"
	"github.com/plyst/server/internal/service/station"
	"github.com/plyst/server/internal/service/subtitle"
	"github.com/plyst/server/pkg/ytsearch"
)

type fakeAudioFetcher struct{}

func (fakeAudioFetcher) Fetch(ctx context.Context, videoId string) (string, func(), error) {
	return "/tmp/" + videoId + ".mp3", func() {}, nil
}

type fakeTranscriber struct{}

func (fakeTranscriber) Transcribe(ctx context.Context, audioPath string) (string, []subtitle.TranscribedSegment, error) {
	return "english", []subtitle.TranscribedSegment{
		{Start: 0, End: 2, Text: "first line"},
		{Start: 2, End: 4, Text: "second line"},
	}, nil
}

type fakeTranslator struct{}

func (fakeTranslator) TranslateBatch(ctx context.Context, sourceLanguage string, texts []string) ([]string, error) {
	translated := make([]string, len(texts))
	for i, text := range texts {
		translated[i] = "번역:" + text
	}
	return translated, nil
}

type fakeResolver struct{}

func (fakeResolver) FindVideoId(title, artist string) (string, error) {
	return "vid" + title[:1], nil
}

func (fakeResolver) GetVideoData(videoId string) (*ytsearch.VideoData, error) {
	return &ytsearch.VideoData{Title: videoId, AuthorName: "channel"}, nil
}

func TestStationLifecycle(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.Default()

	stationRepo := stationRedis.NewRepo(rc, logger)
	roomCacheRepo := cacheInmemory.NewRepo(logger)
	connRepo := connInmemory.NewRepo(logger)
	subtitleService := subtitle.NewService(fakeAudioFetcher{}, fakeTranscriber{}, fakeTranslator{}, &subtitle.Config{
		BatchSize:    30,
		BatchTimeout: 5 * time.Second,
	}, logger)
	service := station.NewService(stationRepo, roomCacheRepo, connRepo, subtitleService, fakeResolver{}, 10, logger)

	ctx := context.Background()

	// host creates a station
	createResp, err := service.CreateStation(ctx, &station.CreateStationParams{
		Creator: station.UserInfo{Id: 1, Nickname: "host", Avatar: "h"},
		Title:   "friday night",
	})
	require.NoError(t, err)
	stationId := createResp.Station.Id
	assert.NotZero(t, stationId)
	assert.Len(t, createResp.Station.InviteCode, 6)
	t.Log("station created")

	hostConn := &websocket.Conn{}
	require.NoError(t, connRepo.Add(hostConn, connection.SessionInfo{StationId: stationId, UserId: 1}))

	// member joins by invite code
	joinResp, err := service.JoinStation(ctx, &station.JoinStationParams{
		User:       station.UserInfo{Id: 2, Nickname: "member", Avatar: "m"},
		InviteCode: createResp.Station.InviteCode,
	})
	require.NoError(t, err)
	assert.Len(t, joinResp.Station.Participants, 2)
	t.Log("member joined")

	memberConn := &websocket.Conn{}
	require.NoError(t, connRepo.Add(memberConn, connection.SessionInfo{StationId: stationId, UserId: 2}))

	// host starts playback, video id gets resolved and the subtitle
	// pipeline kicks off for it
	playbackResp, err := service.UpdatePlayback(ctx, &station.UpdatePlaybackParams{
		StationId:  stationId,
		SenderId:   1,
		TrackTitle: "Supernova",
		Artist:     "aespa",
		IsPlaying:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "vidS", playbackResp.Playback.VideoId)
	assert.Len(t, playbackResp.Conns, 2)
	require.True(t, playbackResp.SubtitlesStarted)
	t.Log("playback started")

	// member queues a track and chats
	addResp, err := service.AddToQueue(ctx, &station.AddToQueueParams{
		StationId: stationId,
		SenderId:  2,
		Item:      json.RawMessage(`{"trackTitle":"Armageddon"}`),
	})
	require.NoError(t, err)
	assert.Len(t, addResp.Queue, 1)

	chatResp, err := service.SendChat(ctx, &station.SendChatParams{
		StationId: stationId,
		SenderId:  2,
		Text:      "great pick",
	})
	require.NoError(t, err)
	assert.Equal(t, "member", chatResp.Sender.Nickname)
	t.Log("queue and chat done")

	// a member cannot toggle subtitles; the host re-enable resolves
	// immediately with the segments the playback update generated
	_, err = service.EnableSubtitles(ctx, &station.EnableSubtitlesParams{
		StationId: stationId,
		SenderId:  2,
	})
	assert.ErrorIs(t, err, station.ErrPermissionDenied)

	enableResp, err := service.EnableSubtitles(ctx, &station.EnableSubtitlesParams{
		StationId: stationId,
		SenderId:  1,
	})
	require.NoError(t, err)
	assert.True(t, enableResp.AlreadyEnabled)
	segments, err := enableResp.Promise.Wait(ctx)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "번역:first line", segments[0].TranslatedText)
	t.Log("subtitles ready")

	// host leaves, member inherits the station
	leaveResp, err := service.LeaveStation(ctx, &station.LeaveStationParams{
		StationId: stationId,
		UserId:    1,
	})
	require.NoError(t, err)
	assert.False(t, leaveResp.StationClosed)
	assert.Equal(t, 2, leaveResp.NewHostId)
	t.Log("host left")

	// last participant leaves, station closes and state is wiped
	leaveResp, err = service.LeaveStation(ctx, &station.LeaveStationParams{
		StationId: stationId,
		UserId:    2,
	})
	require.NoError(t, err)
	assert.True(t, leaveResp.StationClosed)

	_, ok := roomCacheRepo.GetVideoId(stationId)
	assert.False(t, ok, "room cache must be cleared on close")
	assert.False(t, subtitleService.IsEnabled(stationId))

	keys := rc.Keys(ctx, "station:*").Val()
	assert.Empty(t, keys, "station keys must be removed on close")
	t.Log(rc.Keys(ctx, "*").Val())
}
