package redis

import (
	"context"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plyst/server/internal/repository/station"
)

func newTestRepo(t *testing.T) (*repo, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRepo(rc, slog.Default()), rc
}

func createStation(t *testing.T, r *repo, stationId int, inviteCode string) {
	t.Helper()
	require.NoError(t, r.CreateStation(context.Background(), &station.CreateStationParams{
		StationId:       stationId,
		Title:           "room",
		InviteCode:      inviteCode,
		MaxParticipants: 10,
		CreatedAt:       int64(stationId),
	}))
}

func TestInviteCodeClaim(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	createStation(t, r, 1, "ABC234")

	err := r.CreateStation(ctx, &station.CreateStationParams{
		StationId:  2,
		Title:      "other",
		InviteCode: "ABC234",
		CreatedAt:  2,
	})
	assert.ErrorIs(t, err, station.ErrInviteCodeTaken)

	stationId, err := r.GetStationIdByInviteCode(ctx, "ABC234")
	require.NoError(t, err)
	assert.Equal(t, 1, stationId)

	_, err = r.GetStationIdByInviteCode(ctx, "XYZ789")
	assert.ErrorIs(t, err, station.ErrStationNotFound)
}

func TestHostKeyFollowsRoleChanges(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	createStation(t, r, 1, "ABC234")
	require.NoError(t, r.SetParticipant(ctx, &station.SetParticipantParams{
		StationId: 1, UserId: 10, Nickname: "a", Role: station.RoleHost,
	}))
	require.NoError(t, r.SetParticipant(ctx, &station.SetParticipantParams{
		StationId: 1, UserId: 20, Nickname: "b", Role: station.RoleMember,
	}))

	hostId, err := r.GetHostId(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, hostId)

	require.NoError(t, r.TransferHost(ctx, &station.TransferHostParams{
		StationId: 1, FromUserId: 10, ToUserId: 20,
	}))

	hostId, err = r.GetHostId(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 20, hostId)

	old, err := r.GetParticipant(ctx, &station.GetParticipantParams{StationId: 1, UserId: 10})
	require.NoError(t, err)
	assert.Equal(t, station.RoleMember, old.Role)

	promoted, err := r.GetParticipant(ctx, &station.GetParticipantParams{StationId: 1, UserId: 20})
	require.NoError(t, err)
	assert.Equal(t, station.RoleHost, promoted.Role)
}

func TestRemoveStationCascades(t *testing.T) {
	r, rc := newTestRepo(t)
	ctx := context.Background()

	createStation(t, r, 1, "ABC234")
	require.NoError(t, r.SetParticipant(ctx, &station.SetParticipantParams{
		StationId: 1, UserId: 10, Nickname: "a", Role: station.RoleHost,
	}))
	require.NoError(t, r.AddBan(ctx, &station.AddBanParams{
		StationId: 1, UserId: 30, Nickname: "troll", BannedAt: 5,
	}))
	require.NoError(t, r.SetPlayback(ctx, &station.SetPlaybackParams{
		StationId: 1, TrackTitle: "song", UpdatedAt: 6,
	}))

	require.NoError(t, r.RemoveStation(ctx, 1))

	_, err := r.GetStation(ctx, 1)
	assert.ErrorIs(t, err, station.ErrStationNotFound)
	_, err = r.GetStationIdByInviteCode(ctx, "ABC234")
	assert.ErrorIs(t, err, station.ErrStationNotFound)
	_, err = r.GetParticipant(ctx, &station.GetParticipantParams{StationId: 1, UserId: 10})
	assert.ErrorIs(t, err, station.ErrParticipantNotFound)
	_, err = r.GetPlayback(ctx, 1)
	assert.ErrorIs(t, err, station.ErrPlaybackNotFound)

	banned, err := r.IsBanned(ctx, 1, 30)
	require.NoError(t, err)
	assert.False(t, banned)

	ids, err := r.GetActiveStationIds(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	keys := rc.Keys(ctx, "*").Val()
	assert.NotContains(t, keys, "station:1")
}

func TestActiveStationIdsNewestFirst(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	createStation(t, r, 1, "AAA111")
	createStation(t, r, 2, "BBB222")
	createStation(t, r, 3, "CCC333")

	ids, err := r.GetActiveStationIds(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 1}, ids)
}

func TestNextStationIdIncrements(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	first, err := r.NextStationId(ctx)
	require.NoError(t, err)
	second, err := r.NextStationId(ctx)
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
}

func TestIsBlockedChecksBothDirections(t *testing.T) {
	r, rc := newTestRepo(t)
	ctx := context.Background()

	blocked, err := r.IsBlocked(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, rc.SAdd(ctx, "user:2:blocked", 1).Err())

	blocked, err = r.IsBlocked(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = r.IsBlocked(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, blocked)
}
