package station

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
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
	"github.com/plyst/server/internal/service/subtitle"
	"github.com/plyst/server/pkg/ytsearch"
)

type stubAudioFetcher struct{}

func (stubAudioFetcher) Fetch(ctx context.Context, videoId string) (string, func(), error) {
	return "/tmp/" + videoId + ".mp3", func() {}, nil
}

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(ctx context.Context, audioPath string) (string, []subtitle.TranscribedSegment, error) {
	return "english", []subtitle.TranscribedSegment{{Start: 0, End: 1, Text: "hi"}}, nil
}

type stubTranslator struct{}

func (stubTranslator) TranslateBatch(ctx context.Context, sourceLanguage string, texts []string) ([]string, error) {
	return texts, nil
}

type stubResolver struct {
	videoId string
}

func (r stubResolver) FindVideoId(title, artist string) (string, error) {
	return r.videoId, nil
}

func (r stubResolver) GetVideoData(videoId string) (*ytsearch.VideoData, error) {
	return &ytsearch.VideoData{
		Title:        "Resolved " + videoId,
		AuthorName:   "channel",
		ThumbnailUrl: "https://i.ytimg.com/vi/" + videoId + "/hqdefault.jpg",
	}, nil
}

type testEnv struct {
	service   *service
	connRepo  interface {
		Add(conn *websocket.Conn, info connection.SessionInfo) error
		GetStationConns(stationId int) []*websocket.Conn
		GetUserConns(stationId, userId int) []*websocket.Conn
	}
	redis *redis.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.Default()

	stationRepo := stationRedis.NewRepo(rc, logger)
	roomCache := cacheInmemory.NewRepo(logger)
	connRepo := connInmemory.NewRepo(logger)
	subtitles := subtitle.NewService(stubAudioFetcher{}, stubTranscriber{}, stubTranslator{}, &subtitle.Config{
		BatchSize:    30,
		BatchTimeout: time.Second,
	}, logger)

	svc := NewService(stationRepo, roomCache, connRepo, subtitles, stubResolver{videoId: "dQw4w9WgXcQ"}, 10, logger)

	return &testEnv{service: svc, connRepo: connRepo, redis: rc}
}

func (e *testEnv) connect(t *testing.T, stationId, userId int) *websocket.Conn {
	t.Helper()
	conn := &websocket.Conn{}
	require.NoError(t, e.connRepo.Add(conn, connection.SessionInfo{StationId: stationId, UserId: userId}))
	return conn
}

func createTestStation(t *testing.T, e *testEnv, host UserInfo) StationDetail {
	t.Helper()
	resp, err := e.service.CreateStation(context.Background(), &CreateStationParams{
		Creator: host,
		Title:   "late night drive",
	})
	require.NoError(t, err)
	return resp.Station
}

func TestCreateAndJoinStation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	st := createTestStation(t, e, UserInfo{Id: 1, Nickname: "mina", Avatar: "a1"})
	assert.NotZero(t, st.Id)
	assert.Len(t, st.InviteCode, 6)
	assert.Equal(t, 1, st.HostId)
	require.Len(t, st.Participants, 1)
	assert.Equal(t, "HOST", st.Participants[0].Role)

	e.connect(t, st.Id, 1)

	// invite codes are matched case-insensitively
	joinResp, err := e.service.JoinStation(ctx, &JoinStationParams{
		User:       UserInfo{Id: 2, Nickname: "juno", Avatar: "a2"},
		InviteCode: "  " + strings.ToLower(st.InviteCode) + " ",
	})
	require.NoError(t, err)
	assert.Len(t, joinResp.Station.Participants, 2)
	assert.Len(t, joinResp.Conns, 1)

	_, err = e.service.JoinStation(ctx, &JoinStationParams{
		User:       UserInfo{Id: 3, Nickname: "x"},
		InviteCode: "ZZZZZZ",
	})
	assert.ErrorIs(t, err, ErrStationNotFound)
}

func TestJoinRejectedWhenFull(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	resp, err := e.service.CreateStation(ctx, &CreateStationParams{
		Creator:         UserInfo{Id: 1, Nickname: "mina"},
		Title:           "tiny room",
		MaxParticipants: 2,
	})
	require.NoError(t, err)

	_, err = e.service.JoinStation(ctx, &JoinStationParams{
		User:       UserInfo{Id: 2, Nickname: "juno"},
		InviteCode: resp.Station.InviteCode,
	})
	require.NoError(t, err)

	_, err = e.service.JoinStation(ctx, &JoinStationParams{
		User:       UserInfo{Id: 3, Nickname: "rae"},
		InviteCode: resp.Station.InviteCode,
	})
	assert.ErrorIs(t, err, ErrStationFull)
}

func TestJoinRejectedWhenBlockedByHost(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	st := createTestStation(t, e, UserInfo{Id: 1, Nickname: "mina"})
	require.NoError(t, e.redis.SAdd(ctx, "user:1:blocked", 2).Err())

	_, err := e.service.JoinStation(ctx, &JoinStationParams{
		User:       UserInfo{Id: 2, Nickname: "juno"},
		InviteCode: st.InviteCode,
	})
	assert.ErrorIs(t, err, ErrJoinRejected)
}

func TestBanRemovesParticipantAndBlocksRejoin(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	st := createTestStation(t, e, UserInfo{Id: 1, Nickname: "mina"})
	_, err := e.service.JoinStation(ctx, &JoinStationParams{
		User:       UserInfo{Id: 2, Nickname: "juno", Avatar: "a2"},
		InviteCode: st.InviteCode,
	})
	require.NoError(t, err)
	e.connect(t, st.Id, 1)
	targetConn := e.connect(t, st.Id, 2)

	// only the host may ban
	_, err = e.service.BanUser(ctx, &BanUserParams{StationId: st.Id, SenderId: 2, TargetId: 1})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	banResp, err := e.service.BanUser(ctx, &BanUserParams{StationId: st.Id, SenderId: 1, TargetId: 2})
	require.NoError(t, err)
	assert.False(t, banResp.AlreadyBanned)
	assert.Len(t, banResp.Participants, 1)
	require.Len(t, banResp.TargetConns, 1)
	assert.Same(t, targetConn, banResp.TargetConns[0])

	// banning again is a no-op
	banResp, err = e.service.BanUser(ctx, &BanUserParams{StationId: st.Id, SenderId: 1, TargetId: 2})
	require.NoError(t, err)
	assert.True(t, banResp.AlreadyBanned)

	_, err = e.service.JoinStation(ctx, &JoinStationParams{
		User:       UserInfo{Id: 2, Nickname: "juno"},
		InviteCode: st.InviteCode,
	})
	assert.ErrorIs(t, err, ErrBanned)

	bans, err := e.service.GetBans(ctx, &GetBansParams{StationId: st.Id, SenderId: 1})
	require.NoError(t, err)
	require.Len(t, bans, 1)
	assert.Equal(t, "juno", bans[0].Nickname)

	require.NoError(t, e.service.UnbanUser(ctx, &UnbanUserParams{StationId: st.Id, SenderId: 1, TargetId: 2}))

	_, err = e.service.JoinStation(ctx, &JoinStationParams{
		User:       UserInfo{Id: 2, Nickname: "juno"},
		InviteCode: st.InviteCode,
	})
	assert.NoError(t, err)
}

func TestLeavePromotesNewHostAndClosesWhenEmpty(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	st := createTestStation(t, e, UserInfo{Id: 1, Nickname: "mina"})
	_, err := e.service.JoinStation(ctx, &JoinStationParams{
		User:       UserInfo{Id: 2, Nickname: "juno"},
		InviteCode: st.InviteCode,
	})
	require.NoError(t, err)

	leaveResp, err := e.service.LeaveStation(ctx, &LeaveStationParams{StationId: st.Id, UserId: 1})
	require.NoError(t, err)
	assert.False(t, leaveResp.StationClosed)
	assert.Equal(t, 2, leaveResp.NewHostId)
	require.Len(t, leaveResp.Participants, 1)
	assert.Equal(t, "HOST", leaveResp.Participants[0].Role)

	leaveResp, err = e.service.LeaveStation(ctx, &LeaveStationParams{StationId: st.Id, UserId: 2})
	require.NoError(t, err)
	assert.True(t, leaveResp.StationClosed)

	_, err = e.service.JoinStation(ctx, &JoinStationParams{
		User:       UserInfo{Id: 3, Nickname: "rae"},
		InviteCode: st.InviteCode,
	})
	assert.ErrorIs(t, err, ErrStationNotFound)
}

func TestTransferHost(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	st := createTestStation(t, e, UserInfo{Id: 1, Nickname: "mina"})
	_, err := e.service.JoinStation(ctx, &JoinStationParams{
		User:       UserInfo{Id: 2, Nickname: "juno"},
		InviteCode: st.InviteCode,
	})
	require.NoError(t, err)

	_, err = e.service.TransferHost(ctx, &TransferHostParams{StationId: st.Id, SenderId: 2, TargetId: 1})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	resp, err := e.service.TransferHost(ctx, &TransferHostParams{StationId: st.Id, SenderId: 1, TargetId: 2})
	require.NoError(t, err)

	roles := map[int]string{}
	for _, p := range resp.Participants {
		roles[p.Id] = p.Role
	}
	assert.Equal(t, "MEMBER", roles[1])
	assert.Equal(t, "HOST", roles[2])

	// former host no longer controls playback
	_, err = e.service.UpdatePlayback(ctx, &UpdatePlaybackParams{StationId: st.Id, SenderId: 1, TrackTitle: "song"})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestUpdatePlaybackResolvesVideoId(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	st := createTestStation(t, e, UserInfo{Id: 1, Nickname: "mina"})
	e.connect(t, st.Id, 1)

	resp, err := e.service.UpdatePlayback(ctx, &UpdatePlaybackParams{
		StationId:   st.Id,
		SenderId:    1,
		TrackTitle:  "Dynamite",
		Artist:      "BTS",
		DurationSec: 199,
		IsPlaying:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", resp.Playback.VideoId)
	assert.Len(t, resp.Conns, 1)

	sync, err := e.service.Sync(ctx, st.Id, 1)
	require.NoError(t, err)
	require.NotNil(t, sync.Station.Playback)
	assert.Equal(t, "Dynamite", sync.Station.Playback.TrackTitle)
	assert.Equal(t, "dQw4w9WgXcQ", sync.Station.Playback.VideoId)
}

func TestUpdatePlaybackFillsMetadataFromVideoId(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	st := createTestStation(t, e, UserInfo{Id: 1, Nickname: "mina"})

	resp, err := e.service.UpdatePlayback(ctx, &UpdatePlaybackParams{
		StationId: st.Id,
		SenderId:  1,
		VideoId:   "abc123",
		IsPlaying: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Resolved abc123", resp.Playback.TrackTitle)
	assert.Equal(t, "channel", resp.Playback.Artist)
	assert.Equal(t, "https://i.ytimg.com/vi/abc123/hqdefault.jpg", resp.Playback.AlbumImage)
}

func TestPlaybackUpdateStartsSubtitles(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	st := createTestStation(t, e, UserInfo{Id: 1, Nickname: "mina"})

	// the first update for a video starts generation without any
	// subtitle_enable having been sent
	resp, err := e.service.UpdatePlayback(ctx, &UpdatePlaybackParams{
		StationId: st.Id,
		SenderId:  1,
		VideoId:   "abc123",
	})
	require.NoError(t, err)
	require.True(t, resp.SubtitlesStarted)

	segments, err := resp.Subtitles.Wait(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, segments)

	statusResp, err := e.service.SubtitleStatus(ctx, st.Id, 1)
	require.NoError(t, err)
	assert.True(t, statusResp.Enabled)

	// repeating the same video does not start a second generation
	resp, err = e.service.UpdatePlayback(ctx, &UpdatePlaybackParams{
		StationId: st.Id,
		SenderId:  1,
		VideoId:   "abc123",
	})
	require.NoError(t, err)
	assert.False(t, resp.SubtitlesStarted)
}

func TestQueueAndVolume(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	st := createTestStation(t, e, UserInfo{Id: 1, Nickname: "mina"})
	_, err := e.service.JoinStation(ctx, &JoinStationParams{
		User:       UserInfo{Id: 2, Nickname: "juno"},
		InviteCode: st.InviteCode,
	})
	require.NoError(t, err)

	item := json.RawMessage(`{"trackTitle":"Dynamite","artist":"BTS"}`)

	// members may add to the queue but not replace it
	addResp, err := e.service.AddToQueue(ctx, &AddToQueueParams{StationId: st.Id, SenderId: 2, Item: item})
	require.NoError(t, err)
	assert.Len(t, addResp.Queue, 1)

	_, err = e.service.UpdateQueue(ctx, &UpdateQueueParams{StationId: st.Id, SenderId: 2, Queue: nil})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	updateResp, err := e.service.UpdateQueue(ctx, &UpdateQueueParams{StationId: st.Id, SenderId: 1, Queue: nil})
	require.NoError(t, err)
	assert.Empty(t, updateResp.Queue)

	_, err = e.service.UpdateVolume(ctx, &UpdateVolumeParams{StationId: st.Id, SenderId: 1, Volume: 101})
	assert.ErrorIs(t, err, ErrInvalidVolume)

	volResp, err := e.service.UpdateVolume(ctx, &UpdateVolumeParams{StationId: st.Id, SenderId: 1, Volume: 40})
	require.NoError(t, err)
	assert.Equal(t, 40, volResp.Volume)

	sync, err := e.service.Sync(ctx, st.Id, 2)
	require.NoError(t, err)
	assert.Equal(t, 40, sync.Station.Volume)
}

func TestChatUsesStoredIdentity(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	st := createTestStation(t, e, UserInfo{Id: 1, Nickname: "mina", Avatar: "a1"})

	resp, err := e.service.SendChat(ctx, &SendChatParams{StationId: st.Id, SenderId: 1, Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "mina", resp.Sender.Nickname)
	assert.Equal(t, "a1", resp.Sender.Avatar)
	assert.NotZero(t, resp.SentAt)

	_, err = e.service.SendChat(ctx, &SendChatParams{StationId: st.Id, SenderId: 99, Text: "hi"})
	assert.ErrorIs(t, err, ErrParticipantNotFound)
}

func TestSubtitleLifecycle(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	st := createTestStation(t, e, UserInfo{Id: 1, Nickname: "mina"})
	_, err := e.service.JoinStation(ctx, &JoinStationParams{
		User:       UserInfo{Id: 2, Nickname: "juno"},
		InviteCode: st.InviteCode,
	})
	require.NoError(t, err)

	// nothing playing yet
	_, err = e.service.EnableSubtitles(ctx, &EnableSubtitlesParams{StationId: st.Id, SenderId: 1})
	assert.ErrorIs(t, err, ErrPlaybackNotFound)

	playResp, err := e.service.UpdatePlayback(ctx, &UpdatePlaybackParams{
		StationId:  st.Id,
		SenderId:   1,
		TrackTitle: "Dynamite",
		Artist:     "BTS",
	})
	require.NoError(t, err)
	require.True(t, playResp.SubtitlesStarted)
	_, err = playResp.Subtitles.Wait(ctx)
	require.NoError(t, err)

	// only the host may toggle subtitles
	_, err = e.service.EnableSubtitles(ctx, &EnableSubtitlesParams{StationId: st.Id, SenderId: 2})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = e.service.DisableSubtitles(ctx, &DisableSubtitlesParams{StationId: st.Id, SenderId: 2})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// re-enabling still hands back the cached segments
	enableResp, err := e.service.EnableSubtitles(ctx, &EnableSubtitlesParams{StationId: st.Id, SenderId: 1})
	require.NoError(t, err)
	assert.True(t, enableResp.AlreadyEnabled)
	assert.Equal(t, "dQw4w9WgXcQ", enableResp.VideoId)

	segments, err := enableResp.Promise.Wait(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, segments)

	statusResp, err := e.service.SubtitleStatus(ctx, st.Id, 1)
	require.NoError(t, err)
	assert.True(t, statusResp.Enabled)
	assert.True(t, statusResp.Status.Available)

	// the snapshot carries the subtitle state so a reconnect can render
	// the overlay immediately
	sync, err := e.service.Sync(ctx, st.Id, 2)
	require.NoError(t, err)
	require.NotNil(t, sync.Station.Subtitles)
	assert.True(t, sync.Station.Subtitles.Available)
	assert.Equal(t, "dQw4w9WgXcQ", sync.Station.Subtitles.VideoId)
	assert.NotEmpty(t, sync.Station.Subtitles.Segments)

	_, err = e.service.DisableSubtitles(ctx, &DisableSubtitlesParams{StationId: st.Id, SenderId: 1})
	require.NoError(t, err)

	statusResp, err = e.service.SubtitleStatus(ctx, st.Id, 1)
	require.NoError(t, err)
	assert.False(t, statusResp.Enabled)

	sync, err = e.service.Sync(ctx, st.Id, 2)
	require.NoError(t, err)
	assert.Nil(t, sync.Station.Subtitles)
}

func TestListStationsSkipsPrivate(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.service.CreateStation(ctx, &CreateStationParams{
		Creator: UserInfo{Id: 1, Nickname: "mina"},
		Title:   "public room",
	})
	require.NoError(t, err)

	_, err = e.service.CreateStation(ctx, &CreateStationParams{
		Creator:   UserInfo{Id: 2, Nickname: "juno"},
		Title:     "secret room",
		IsPrivate: true,
	})
	require.NoError(t, err)

	summaries, err := e.service.ListStations(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "public room", summaries[0].Title)
	assert.Equal(t, 1, summaries[0].ParticipantCount)
}
