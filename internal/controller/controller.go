package controller

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/plyst/server/internal/repository/connection"
	"github.com/plyst/server/internal/service/station"
	"github.com/plyst/server/pkg/dedup"
	"github.com/plyst/server/pkg/validator"
)

type iStationService interface {
	CreateStation(context.Context, *station.CreateStationParams) (station.CreateStationResponse, error)
	JoinStation(context.Context, *station.JoinStationParams) (station.JoinStationResponse, error)
	LeaveStation(context.Context, *station.LeaveStationParams) (station.LeaveStationResponse, error)
	TransferHost(context.Context, *station.TransferHostParams) (station.TransferHostResponse, error)
	BanUser(context.Context, *station.BanUserParams) (station.BanUserResponse, error)
	UnbanUser(context.Context, *station.UnbanUserParams) error
	UpdateTitle(context.Context, *station.UpdateTitleParams) (station.UpdateTitleResponse, error)
	CloseStation(context.Context, *station.CloseStationParams) (station.CloseStationResponse, error)
	GetStationDetail(ctx context.Context, stationId, userId int) (station.StationDetail, error)
	ListStations(context.Context) ([]station.StationSummary, error)
	GetBans(context.Context, *station.GetBansParams) ([]station.BannedUserInfo, error)
	TouchParticipant(ctx context.Context, stationId, userId int)
	UpdatePlayback(context.Context, *station.UpdatePlaybackParams) (station.UpdatePlaybackResponse, error)
	Sync(ctx context.Context, stationId, userId int) (station.SyncResponse, error)
	UpdateQueue(context.Context, *station.UpdateQueueParams) (station.UpdateQueueResponse, error)
	AddToQueue(context.Context, *station.AddToQueueParams) (station.AddToQueueResponse, error)
	UpdateVolume(context.Context, *station.UpdateVolumeParams) (station.UpdateVolumeResponse, error)
	SendChat(context.Context, *station.SendChatParams) (station.SendChatResponse, error)
	EnableSubtitles(context.Context, *station.EnableSubtitlesParams) (station.EnableSubtitlesResponse, error)
	DisableSubtitles(context.Context, *station.DisableSubtitlesParams) (station.DisableSubtitlesResponse, error)
	SubtitleStatus(ctx context.Context, stationId, userId int) (station.SubtitleStatusResponse, error)
}

type iConnRepo interface {
	Add(conn *websocket.Conn, info connection.SessionInfo) error
	Remove(conn *websocket.Conn) (connection.SessionInfo, int, error)
	GetSession(conn *websocket.Conn) (connection.SessionInfo, error)
	GetStationConns(stationId int) []*websocket.Conn
	GetUserConns(stationId, userId int) []*websocket.Conn
}

type iUserConnRepo interface {
	Add(conn *websocket.Conn, userId int) *websocket.Conn
	Remove(conn *websocket.Conn)
	GetConn(userId int) (*websocket.Conn, error)
}

type controller struct {
	stationService iStationService
	connRepo       iConnRepo
	userConnRepo   iUserConnRepo
	outbox         *dedup.Store
	upgrader       websocket.Upgrader
	validate       *validator.Validator
	logger         *slog.Logger
}

func NewController(stationService iStationService, connRepo iConnRepo, userConnRepo iUserConnRepo, logger *slog.Logger) *controller {
	return &controller{
		stationService: stationService,
		connRepo:       connRepo,
		userConnRepo:   userConnRepo,
		outbox:         dedup.NewStore(4096),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate: validator.NewValidator(),
		logger:   logger,
	}
}

func unmarshalInput[T any](raw json.RawMessage) (T, error) {
	var input T
	err := json.Unmarshal(raw, &input)
	return input, err
}
