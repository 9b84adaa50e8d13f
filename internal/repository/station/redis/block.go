package redis

import (
	"context"
	"strconv"
)

func (r repo) getBlockedKey(userId int) string {
	return "user:" + strconv.Itoa(userId) + ":blocked"
}

// IsBlocked reports a mutual block relationship between two users. The
// block sets are written by the account service; this repo only reads them.
func (r repo) IsBlocked(ctx context.Context, userId, otherUserId int) (bool, error) {
	blocked, err := r.rc.SIsMember(ctx, r.getBlockedKey(userId), otherUserId).Result()
	if err != nil {
		return false, err
	}
	if blocked {
		return true, nil
	}

	return r.rc.SIsMember(ctx, r.getBlockedKey(otherUserId), userId).Result()
}
