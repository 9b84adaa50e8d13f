package redis

import (
	"context"
	"strconv"

	"github.com/plyst/server/internal/repository/station"
)

func (r repo) getPlaybackKey(stationId int) string {
	return "station:" + strconv.Itoa(stationId) + ":playback"
}

func (r repo) SetPlayback(ctx context.Context, params *station.SetPlaybackParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	r.HSetStruct(ctx, pipe, r.getPlaybackKey(params.StationId), station.Playback{
		TrackTitle:  params.TrackTitle,
		Artist:      params.Artist,
		AlbumImage:  params.AlbumImage,
		DurationSec: params.DurationSec,
		PositionMs:  params.PositionMs,
		IsPlaying:   params.IsPlaying,
		UpdatedAt:   params.UpdatedAt,
	})

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetPlayback(ctx context.Context, stationId int) (station.Playback, error) {
	var playback station.Playback
	if err := r.rc.HGetAll(ctx, r.getPlaybackKey(stationId)).Scan(&playback); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return station.Playback{}, err
	}

	if playback.TrackTitle == "" {
		return station.Playback{}, station.ErrPlaybackNotFound
	}

	return playback, nil
}

func (r repo) RemovePlayback(ctx context.Context, stationId int) error {
	return r.rc.Del(ctx, r.getPlaybackKey(stationId)).Err()
}
