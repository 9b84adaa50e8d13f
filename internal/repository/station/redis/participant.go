package redis

import (
	"context"
	"strconv"

	"github.com/plyst/server/internal/repository/station"
)

func (r repo) getParticipantKey(stationId, userId int) string {
	return "participant:" + strconv.Itoa(stationId) + ":" + strconv.Itoa(userId)
}

func (r repo) getMemberListKey(stationId int) string {
	return "station:" + strconv.Itoa(stationId) + ":memberlist"
}

func (r repo) SetParticipant(ctx context.Context, params *station.SetParticipantParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	r.HSetStruct(ctx, pipe, r.getParticipantKey(params.StationId, params.UserId), station.Participant{
		Nickname:     params.Nickname,
		Avatar:       params.Avatar,
		Role:         params.Role,
		JoinedAt:     params.JoinedAt,
		LastActiveAt: params.LastActiveAt,
	})
	r.addWithIncrement(ctx, pipe, r.getMemberListKey(params.StationId), params.UserId)
	if params.Role == station.RoleHost {
		pipe.Set(ctx, r.getHostKey(params.StationId), params.UserId, 0)
	}

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetParticipant(ctx context.Context, params *station.GetParticipantParams) (station.Participant, error) {
	var participant station.Participant
	err := r.rc.HGetAll(ctx, r.getParticipantKey(params.StationId, params.UserId)).Scan(&participant)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return station.Participant{}, err
	}

	if participant.Role == "" {
		return station.Participant{}, station.ErrParticipantNotFound
	}

	return participant, nil
}

func (r repo) GetParticipantIds(ctx context.Context, stationId int) ([]int, error) {
	fields, err := r.rc.ZRange(ctx, r.getMemberListKey(stationId), 0, -1).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	return r.idsFromStrings(fields), nil
}

func (r repo) CountParticipants(ctx context.Context, stationId int) (int, error) {
	count, err := r.rc.ZCard(ctx, r.getMemberListKey(stationId)).Result()
	if err != nil {
		return 0, err
	}

	return int(count), nil
}

func (r repo) RemoveParticipant(ctx context.Context, params *station.RemoveParticipantParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	pipe.ZRem(ctx, r.getMemberListKey(params.StationId), params.UserId)
	pipe.Del(ctx, r.getParticipantKey(params.StationId, params.UserId))

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

// TransferHost demotes the old host and promotes the new one in a single
// transaction so there is never more or less than one host.
func (r repo) TransferHost(ctx context.Context, params *station.TransferHostParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	pipe.HSet(ctx, r.getParticipantKey(params.StationId, params.FromUserId), "role", station.RoleMember)
	pipe.HSet(ctx, r.getParticipantKey(params.StationId, params.ToUserId), "role", station.RoleHost)
	pipe.Set(ctx, r.getHostKey(params.StationId), params.ToUserId, 0)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

// PromoteHost assigns the host role without touching a previous host row,
// used after the old host's participant row is already gone.
func (r repo) PromoteHost(ctx context.Context, stationId, userId int) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"station_id": stationId,
		"user_id":    userId,
	})
	pipe := r.rc.TxPipeline()

	pipe.HSet(ctx, r.getParticipantKey(stationId, userId), "role", station.RoleHost)
	pipe.Set(ctx, r.getHostKey(stationId), userId, 0)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) UpdateParticipantActivity(ctx context.Context, stationId, userId int, lastActiveAt int64) error {
	key := r.getParticipantKey(stationId, userId)
	cmd := r.rc.Exists(ctx, key)
	if err := cmd.Err(); err != nil {
		return err
	}
	if cmd.Val() == 0 {
		return station.ErrParticipantNotFound
	}

	return r.rc.HSet(ctx, key, "last_active_at", lastActiveAt).Err()
}
