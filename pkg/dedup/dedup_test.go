package dedup_test

import (
	"testing"

	"github.com/plyst/server/pkg/dedup"
	"github.com/stretchr/testify/assert"
)

func TestSeen(t *testing.T) {
	s := dedup.NewStore(8)

	key := dedup.Key{Kind: "kicked", StationId: 1, UserId: 2}
	assert.False(t, s.Seen(key), "first observation must not be suppressed")
	assert.True(t, s.Seen(key), "second observation must be suppressed")
}

func TestForget(t *testing.T) {
	s := dedup.NewStore(8)

	key := dedup.Key{Kind: "station_closed", StationId: 1, UserId: 2}
	s.Seen(key)
	s.Forget(key)
	assert.False(t, s.Seen(key), "forgotten key must be deliverable again")
}

func TestBoundedEviction(t *testing.T) {
	s := dedup.NewStore(2)

	first := dedup.Key{Kind: "kicked", StationId: 1, UserId: 1}
	s.Seen(first)
	s.Seen(dedup.Key{Kind: "kicked", StationId: 1, UserId: 2})
	s.Seen(dedup.Key{Kind: "kicked", StationId: 1, UserId: 3})

	assert.Equal(t, 2, s.Len(), "store must not grow past capacity")
	assert.False(t, s.Seen(first), "evicted key must be treated as unseen")
}
