package redis

import (
	"context"
	"strconv"

	"github.com/plyst/server/internal/repository/station"
)

func (r repo) getBanKey(stationId, userId int) string {
	return "ban:" + strconv.Itoa(stationId) + ":" + strconv.Itoa(userId)
}

func (r repo) getBanListKey(stationId int) string {
	return "station:" + strconv.Itoa(stationId) + ":banlist"
}

func (r repo) AddBan(ctx context.Context, params *station.AddBanParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	r.HSetStruct(ctx, pipe, r.getBanKey(params.StationId, params.UserId), station.Ban{
		Nickname: params.Nickname,
		Avatar:   params.Avatar,
		BannedAt: params.BannedAt,
	})
	pipe.SAdd(ctx, r.getBanListKey(params.StationId), params.UserId)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) IsBanned(ctx context.Context, stationId, userId int) (bool, error) {
	return r.rc.SIsMember(ctx, r.getBanListKey(stationId), userId).Result()
}

func (r repo) RemoveBan(ctx context.Context, params *station.RemoveBanParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	pipe.SRem(ctx, r.getBanListKey(params.StationId), params.UserId)
	pipe.Del(ctx, r.getBanKey(params.StationId, params.UserId))

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetBanIds(ctx context.Context, stationId int) ([]int, error) {
	fields, err := r.rc.SMembers(ctx, r.getBanListKey(stationId)).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	return r.idsFromStrings(fields), nil
}

func (r repo) GetBan(ctx context.Context, stationId, userId int) (station.Ban, error) {
	var ban station.Ban
	if err := r.rc.HGetAll(ctx, r.getBanKey(stationId, userId)).Scan(&ban); err != nil {
		return station.Ban{}, err
	}

	return ban, nil
}
