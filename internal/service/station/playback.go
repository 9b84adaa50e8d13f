package station

import (
	"context"

	"github.com/gorilla/websocket"
	"github.com/plyst/server/internal/repository/station"
	"github.com/plyst/server/internal/service/subtitle"
)

type UpdatePlaybackParams struct {
	StationId   int
	SenderId    int
	TrackTitle  string
	Artist      string
	AlbumImage  string
	VideoId     string
	DurationSec int
	PositionMs  int
	IsPlaying   bool
}

type UpdatePlaybackResponse struct {
	Playback         PlaybackInfo
	SubtitlesStarted bool
	Subtitles        subtitle.Promise
	Conns            []*websocket.Conn
}

// UpdatePlayback replaces the station's playback state. Only the host
// drives playback. A track change resolves the backing video id (or,
// when only a video id arrives, fills the track metadata from it) and
// kicks off subtitle generation for the new video.
func (s *service) UpdatePlayback(ctx context.Context, params *UpdatePlaybackParams) (UpdatePlaybackResponse, error) {
	unlock := s.lockStation(params.StationId)
	defer unlock()

	if err := s.checkIfHost(ctx, params.StationId, params.SenderId); err != nil {
		return UpdatePlaybackResponse{}, err
	}

	videoId := params.VideoId
	prevVideoId, _ := s.roomCache.GetVideoId(params.StationId)
	if videoId == "" && params.TrackTitle != "" {
		resolved, err := s.videos.FindVideoId(params.TrackTitle, params.Artist)
		if err != nil {
			s.logger.InfoContext(ctx, "failed to resolve video id", "track", params.TrackTitle, "error", err)
		} else {
			videoId = resolved
		}
	}

	trackTitle, artist, albumImage := params.TrackTitle, params.Artist, params.AlbumImage
	if trackTitle == "" && videoId != "" {
		videoData, err := s.videos.GetVideoData(videoId)
		if err != nil {
			s.logger.InfoContext(ctx, "failed to resolve video metadata", "video_id", videoId, "error", err)
		} else {
			trackTitle = videoData.Title
			if artist == "" {
				artist = videoData.AuthorName
			}
			if albumImage == "" {
				albumImage = videoData.ThumbnailUrl
			}
		}
	}

	now := s.now()
	if err := s.stationRepo.SetPlayback(ctx, &station.SetPlaybackParams{
		StationId:   params.StationId,
		TrackTitle:  trackTitle,
		Artist:      artist,
		AlbumImage:  albumImage,
		DurationSec: params.DurationSec,
		PositionMs:  params.PositionMs,
		IsPlaying:   params.IsPlaying,
		UpdatedAt:   now,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to set playback", "error", err)
		return UpdatePlaybackResponse{}, err
	}

	resp := UpdatePlaybackResponse{
		Playback: PlaybackInfo{
			TrackTitle:  trackTitle,
			Artist:      artist,
			AlbumImage:  albumImage,
			VideoId:     videoId,
			DurationSec: params.DurationSec,
			PositionMs:  params.PositionMs,
			IsPlaying:   params.IsPlaying,
			UpdatedAt:   now,
		},
	}

	if videoId != "" {
		s.roomCache.SetVideoId(params.StationId, videoId)
		if videoId != prevVideoId {
			s.subtitles.Enable(params.StationId, videoId)
			resp.SubtitlesStarted = true
			resp.Subtitles = s.subtitles.Ensure(videoId)
		}
	}

	resp.Conns = s.connRepo.GetStationConns(params.StationId)
	return resp, nil
}

type SyncResponse struct {
	Station StationDetail
}

// Sync builds the full state snapshot a client needs after connecting
// or recovering from a gap.
func (s *service) Sync(ctx context.Context, stationId, userId int) (SyncResponse, error) {
	if _, err := s.checkIfParticipant(ctx, stationId, userId); err != nil {
		return SyncResponse{}, err
	}

	detail, err := s.getStationDetail(ctx, stationId)
	if err != nil {
		return SyncResponse{}, err
	}

	return SyncResponse{Station: detail}, nil
}
