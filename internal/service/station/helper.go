package station

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/plyst/server/internal/repository/station"
)

func (s *service) checkIfHost(ctx context.Context, stationId, userId int) error {
	hostId, err := s.stationRepo.GetHostId(ctx, stationId)
	if err != nil {
		// no host key means the station is gone
		if errors.Is(err, station.ErrStationNotFound) || errors.Is(err, station.ErrParticipantNotFound) {
			return ErrStationNotFound
		}
		return err
	}

	if hostId != userId {
		return ErrPermissionDenied
	}

	return nil
}

func (s *service) checkIfParticipant(ctx context.Context, stationId, userId int) (station.Participant, error) {
	participant, err := s.stationRepo.GetParticipant(ctx, &station.GetParticipantParams{
		StationId: stationId,
		UserId:    userId,
	})
	if err != nil {
		if errors.Is(err, station.ErrParticipantNotFound) {
			return station.Participant{}, ErrParticipantNotFound
		}
		return station.Participant{}, err
	}

	return participant, nil
}

func (s *service) getParticipants(ctx context.Context, stationId int) ([]ParticipantInfo, error) {
	participantIds, err := s.stationRepo.GetParticipantIds(ctx, stationId)
	if err != nil {
		return nil, err
	}

	participants := make([]ParticipantInfo, 0, len(participantIds))
	for _, participantId := range participantIds {
		participant, err := s.stationRepo.GetParticipant(ctx, &station.GetParticipantParams{
			StationId: stationId,
			UserId:    participantId,
		})
		if err != nil {
			// participant rows and the member list can race on removal
			if errors.Is(err, station.ErrParticipantNotFound) {
				continue
			}
			return nil, err
		}

		participants = append(participants, ParticipantInfo{
			Id:           participantId,
			Nickname:     participant.Nickname,
			Avatar:       participant.Avatar,
			Role:         participant.Role,
			JoinedAt:     participant.JoinedAt,
			LastActiveAt: participant.LastActiveAt,
		})
	}

	return participants, nil
}

func (s *service) getPlaybackInfo(ctx context.Context, stationId int) (*PlaybackInfo, error) {
	playback, err := s.stationRepo.GetPlayback(ctx, stationId)
	if err != nil {
		if errors.Is(err, station.ErrPlaybackNotFound) {
			return nil, nil
		}
		return nil, err
	}

	videoId, _ := s.roomCache.GetVideoId(stationId)

	return &PlaybackInfo{
		TrackTitle:  playback.TrackTitle,
		Artist:      playback.Artist,
		AlbumImage:  playback.AlbumImage,
		VideoId:     videoId,
		DurationSec: playback.DurationSec,
		PositionMs:  playback.PositionMs,
		IsPlaying:   playback.IsPlaying,
		UpdatedAt:   playback.UpdatedAt,
	}, nil
}

func (s *service) getStationDetail(ctx context.Context, stationId int) (StationDetail, error) {
	st, err := s.stationRepo.GetStation(ctx, stationId)
	if err != nil {
		if errors.Is(err, station.ErrStationNotFound) {
			return StationDetail{}, ErrStationNotFound
		}
		return StationDetail{}, err
	}

	hostId, err := s.stationRepo.GetHostId(ctx, stationId)
	if err != nil && !errors.Is(err, station.ErrParticipantNotFound) {
		return StationDetail{}, err
	}

	participants, err := s.getParticipants(ctx, stationId)
	if err != nil {
		return StationDetail{}, err
	}

	playback, err := s.getPlaybackInfo(ctx, stationId)
	if err != nil {
		return StationDetail{}, err
	}

	queue, ok := s.roomCache.GetQueue(stationId)
	if !ok {
		queue = []json.RawMessage{}
	}
	volume, _ := s.roomCache.GetVolume(stationId)

	var subtitles *SubtitleState
	if s.subtitles.IsEnabled(stationId) {
		videoId, _ := s.roomCache.GetVideoId(stationId)
		status := s.subtitles.GetStatus(videoId)
		subtitles = &SubtitleState{
			Enabled:          true,
			VideoId:          videoId,
			Available:        status.Available,
			Processing:       status.Processing,
			OriginalLanguage: status.OriginalLanguage,
			Segments:         status.Segments,
		}
	}

	return StationDetail{
		Id:              stationId,
		Title:           st.Title,
		InviteCode:      st.InviteCode,
		MaxParticipants: st.MaxParticipants,
		IsPrivate:       st.IsPrivate,
		CreatedAt:       st.CreatedAt,
		HostId:          hostId,
		Participants:    participants,
		Playback:        playback,
		Queue:           queue,
		Volume:          volume,
		Subtitles:       subtitles,
	}, nil
}

func (s *service) createWithInviteCode(ctx context.Context, params *station.CreateStationParams) error {
	var err error
	for i := 0; i < inviteCodeRetries; i++ {
		params.InviteCode = s.generator.GenerateRandomString(inviteCodeLength)
		err = s.stationRepo.CreateStation(ctx, params)
		if !errors.Is(err, station.ErrInviteCodeTaken) {
			return err
		}
	}

	return err
}

func normalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
