package station

import (
	"context"

	"github.com/gorilla/websocket"
	"github.com/plyst/server/internal/service/subtitle"
)

type EnableSubtitlesParams struct {
	StationId int
	SenderId  int
}

type EnableSubtitlesResponse struct {
	VideoId        string
	AlreadyEnabled bool
	Promise        subtitle.Promise
	Conns          []*websocket.Conn
}

// EnableSubtitles turns subtitles on for the station's current video
// and kicks off generation. Only the host may toggle subtitles.
// Enabling twice for the same video reports AlreadyEnabled instead of
// starting over; the returned promise still resolves with the cached
// segments so the caller can re-deliver them.
func (s *service) EnableSubtitles(ctx context.Context, params *EnableSubtitlesParams) (EnableSubtitlesResponse, error) {
	if err := s.checkIfHost(ctx, params.StationId, params.SenderId); err != nil {
		return EnableSubtitlesResponse{}, err
	}

	videoId, ok := s.roomCache.GetVideoId(params.StationId)
	if !ok || videoId == "" {
		return EnableSubtitlesResponse{}, ErrPlaybackNotFound
	}

	alreadyEnabled := s.subtitles.Enable(params.StationId, videoId)

	return EnableSubtitlesResponse{
		VideoId:        videoId,
		AlreadyEnabled: alreadyEnabled,
		Promise:        s.subtitles.Ensure(videoId),
		Conns:          s.connRepo.GetStationConns(params.StationId),
	}, nil
}

type DisableSubtitlesParams struct {
	StationId int
	SenderId  int
}

type DisableSubtitlesResponse struct {
	Conns []*websocket.Conn
}

func (s *service) DisableSubtitles(ctx context.Context, params *DisableSubtitlesParams) (DisableSubtitlesResponse, error) {
	if err := s.checkIfHost(ctx, params.StationId, params.SenderId); err != nil {
		return DisableSubtitlesResponse{}, err
	}

	s.subtitles.Disable(params.StationId)

	return DisableSubtitlesResponse{
		Conns: s.connRepo.GetStationConns(params.StationId),
	}, nil
}

type SubtitleStatusResponse struct {
	Enabled bool
	Status  subtitle.Status
}

func (s *service) SubtitleStatus(ctx context.Context, stationId, userId int) (SubtitleStatusResponse, error) {
	if _, err := s.checkIfParticipant(ctx, stationId, userId); err != nil {
		return SubtitleStatusResponse{}, err
	}

	videoId, _ := s.roomCache.GetVideoId(stationId)

	return SubtitleStatusResponse{
		Enabled: s.subtitles.IsEnabled(stationId),
		Status:  s.subtitles.GetStatus(videoId),
	}, nil
}
