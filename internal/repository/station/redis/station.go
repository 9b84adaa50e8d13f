package redis

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/plyst/server/internal/repository/station"
)

func (r repo) getStationKey(stationId int) string {
	return "station:" + strconv.Itoa(stationId)
}

func (r repo) getInviteCodeKey(inviteCode string) string {
	return "invite-code:" + inviteCode
}

func (r repo) getHostKey(stationId int) string {
	return "station:" + strconv.Itoa(stationId) + ":host"
}

const stationListKey = "stationlist"

func (r repo) CreateStation(ctx context.Context, params *station.CreateStationParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	// the invite code key is the uniqueness guard, claim it first
	claimed, err := r.rc.SetNX(ctx, r.getInviteCodeKey(params.InviteCode), params.StationId, 0).Result()
	if err != nil {
		return err
	}
	if !claimed {
		r.logger.DebugContext(ctx, "returned", "error", station.ErrInviteCodeTaken)
		return station.ErrInviteCodeTaken
	}

	pipe := r.rc.TxPipeline()

	r.HSetStruct(ctx, pipe, r.getStationKey(params.StationId), station.Station{
		Title:           params.Title,
		InviteCode:      params.InviteCode,
		MaxParticipants: params.MaxParticipants,
		Status:          station.StatusActive,
		IsPrivate:       params.IsPrivate,
		CreatedAt:       params.CreatedAt,
	})
	pipe.ZAdd(ctx, stationListKey, redis.Z{
		Score:  float64(params.CreatedAt),
		Member: params.StationId,
	})

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetStation(ctx context.Context, stationId int) (station.Station, error) {
	var st station.Station
	if err := r.rc.HGetAll(ctx, r.getStationKey(stationId)).Scan(&st); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return station.Station{}, err
	}

	if st.InviteCode == "" {
		return station.Station{}, station.ErrStationNotFound
	}

	return st, nil
}

func (r repo) GetStationIdByInviteCode(ctx context.Context, inviteCode string) (int, error) {
	id, err := r.rc.Get(ctx, r.getInviteCodeKey(inviteCode)).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, station.ErrStationNotFound
		}
		r.logger.DebugContext(ctx, "returned", "error", err)
		return 0, err
	}

	return id, nil
}

func (r repo) GetActiveStationIds(ctx context.Context) ([]int, error) {
	// newest first, mirroring findByStatusOrderByCreatedAtDesc
	fields, err := r.rc.ZRevRange(ctx, stationListKey, 0, -1).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	return r.idsFromStrings(fields), nil
}

func (r repo) UpdateStationTitle(ctx context.Context, stationId int, title string) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"station_id": stationId,
		"title":      title,
	})
	key := r.getStationKey(stationId)
	cmd := r.rc.Exists(ctx, key)
	if err := cmd.Err(); err != nil {
		return err
	}
	if cmd.Val() == 0 {
		return station.ErrStationNotFound
	}

	return r.rc.HSet(ctx, key, "title", title).Err()
}

func (r repo) GetHostId(ctx context.Context, stationId int) (int, error) {
	id, err := r.rc.Get(ctx, r.getHostKey(stationId)).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, station.ErrParticipantNotFound
		}
		return 0, err
	}

	return id, nil
}

// RemoveStation cascades removal of participants, bans, playback and the
// station row itself in one transaction.
func (r repo) RemoveStation(ctx context.Context, stationId int) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"station_id": stationId,
	})
	st, err := r.GetStation(ctx, stationId)
	if err != nil {
		return err
	}

	participantIds, err := r.GetParticipantIds(ctx, stationId)
	if err != nil {
		return err
	}

	banIds, err := r.GetBanIds(ctx, stationId)
	if err != nil {
		return err
	}

	pipe := r.rc.TxPipeline()

	for _, userId := range participantIds {
		pipe.Del(ctx, r.getParticipantKey(stationId, userId))
	}
	for _, userId := range banIds {
		pipe.Del(ctx, r.getBanKey(stationId, userId))
	}
	pipe.Del(ctx,
		r.getMemberListKey(stationId),
		r.getBanListKey(stationId),
		r.getPlaybackKey(stationId),
		r.getHostKey(stationId),
		r.getInviteCodeKey(st.InviteCode),
		r.getStationKey(stationId),
	)
	pipe.ZRem(ctx, stationListKey, stationId)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}
