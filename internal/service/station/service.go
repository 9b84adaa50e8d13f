package station

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/plyst/server/internal/repository/station"
	"github.com/plyst/server/internal/service/subtitle"
	"github.com/plyst/server/pkg/randstr"
	"github.com/plyst/server/pkg/ytsearch"
)

var (
	ErrStationNotFound     = errors.New("station not found")
	ErrStationNotActive    = errors.New("station not active")
	ErrStationFull         = errors.New("station full")
	ErrBanned              = errors.New("banned from station")
	ErrJoinRejected        = errors.New("join rejected")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrInvalidVolume       = errors.New("volume out of range")
	ErrPlaybackNotFound    = errors.New("no track is playing")
)

const (
	inviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	inviteCodeLength   = 6
	inviteCodeRetries  = 10
)

type iStationRepo interface {
	// station
	NextStationId(ctx context.Context) (int, error)
	CreateStation(ctx context.Context, params *station.CreateStationParams) error
	GetStation(ctx context.Context, stationId int) (station.Station, error)
	GetStationIdByInviteCode(ctx context.Context, inviteCode string) (int, error)
	GetActiveStationIds(ctx context.Context) ([]int, error)
	UpdateStationTitle(ctx context.Context, stationId int, title string) error
	GetHostId(ctx context.Context, stationId int) (int, error)
	RemoveStation(ctx context.Context, stationId int) error
	// participant
	SetParticipant(ctx context.Context, params *station.SetParticipantParams) error
	GetParticipant(ctx context.Context, params *station.GetParticipantParams) (station.Participant, error)
	GetParticipantIds(ctx context.Context, stationId int) ([]int, error)
	CountParticipants(ctx context.Context, stationId int) (int, error)
	RemoveParticipant(ctx context.Context, params *station.RemoveParticipantParams) error
	TransferHost(ctx context.Context, params *station.TransferHostParams) error
	PromoteHost(ctx context.Context, stationId, userId int) error
	UpdateParticipantActivity(ctx context.Context, stationId, userId int, lastActiveAt int64) error
	// ban
	AddBan(ctx context.Context, params *station.AddBanParams) error
	IsBanned(ctx context.Context, stationId, userId int) (bool, error)
	RemoveBan(ctx context.Context, params *station.RemoveBanParams) error
	GetBanIds(ctx context.Context, stationId int) ([]int, error)
	GetBan(ctx context.Context, stationId, userId int) (station.Ban, error)
	// playback
	SetPlayback(ctx context.Context, params *station.SetPlaybackParams) error
	GetPlayback(ctx context.Context, stationId int) (station.Playback, error)
	RemovePlayback(ctx context.Context, stationId int) error
	// block relationship, written by the account service
	IsBlocked(ctx context.Context, userId, otherUserId int) (bool, error)
}

type iRoomCacheRepo interface {
	SetVideoId(stationId int, videoId string)
	GetVideoId(stationId int) (string, bool)
	SetQueue(stationId int, queue []json.RawMessage)
	GetQueue(stationId int) ([]json.RawMessage, bool)
	AppendQueueItem(stationId int, item json.RawMessage) []json.RawMessage
	SetVolume(stationId, volume int)
	GetVolume(stationId int) (int, bool)
	Clear(stationId int)
}

type iConnRepo interface {
	GetStationConns(stationId int) []*websocket.Conn
	GetUserConns(stationId, userId int) []*websocket.Conn
}

type iSubtitleService interface {
	Ensure(videoId string) subtitle.Promise
	GetStatus(videoId string) subtitle.Status
	Enable(stationId int, videoId string) bool
	Disable(stationId int)
	IsEnabled(stationId int) bool
	Cleanup(stationId int)
}

type iVideoResolver interface {
	FindVideoId(title, artist string) (string, error)
	GetVideoData(videoId string) (*ytsearch.VideoData, error)
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

// stationLock serializes writers per station. Refcounted so entries
// disappear once the last holder releases.
type stationLock struct {
	mu   sync.Mutex
	refs int
}

type service struct {
	stationRepo     iStationRepo
	roomCache       iRoomCacheRepo
	connRepo        iConnRepo
	subtitles       iSubtitleService
	videos          iVideoResolver
	generator       iGenerator
	maxParticipants int
	logger          *slog.Logger

	locksMu sync.Mutex
	locks   map[int]*stationLock
}

func NewService(stationRepo iStationRepo, roomCache iRoomCacheRepo, connRepo iConnRepo, subtitles iSubtitleService, videos iVideoResolver, maxParticipants int, logger *slog.Logger) *service {
	return &service{
		stationRepo:     stationRepo,
		roomCache:       roomCache,
		connRepo:        connRepo,
		subtitles:       subtitles,
		videos:          videos,
		generator:       randstr.New([]byte(inviteCodeAlphabet)),
		maxParticipants: maxParticipants,
		logger:          logger,
		locks:           make(map[int]*stationLock),
	}
}

func (s *service) lockStation(stationId int) func() {
	s.locksMu.Lock()
	l, ok := s.locks[stationId]
	if !ok {
		l = &stationLock{}
		s.locks[stationId] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, stationId)
		}
		s.locksMu.Unlock()
	}
}

func (s *service) now() int64 {
	return time.Now().UnixMilli()
}
