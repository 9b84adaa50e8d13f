package inmemory

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueAppendIsIsolated(t *testing.T) {
	r := NewRepo(slog.Default())

	first := r.AppendQueueItem(1, json.RawMessage(`{"trackTitle":"a"}`))
	assert.Len(t, first, 1)

	second := r.AppendQueueItem(1, json.RawMessage(`{"trackTitle":"b"}`))
	assert.Len(t, second, 2)

	// the earlier snapshot must not grow underneath its reader
	assert.Len(t, first, 1)

	queue, ok := r.GetQueue(1)
	assert.True(t, ok)
	assert.Len(t, queue, 2)
}

func TestClearDropsAllStationState(t *testing.T) {
	r := NewRepo(slog.Default())

	r.SetVideoId(1, "abc123")
	r.SetVolume(1, 70)
	r.SetQueue(1, []json.RawMessage{json.RawMessage(`{}`)})
	r.SetVideoId(2, "def456")

	r.Clear(1)

	_, ok := r.GetVideoId(1)
	assert.False(t, ok)
	_, ok = r.GetVolume(1)
	assert.False(t, ok)
	_, ok = r.GetQueue(1)
	assert.False(t, ok)

	// other stations keep their state
	videoId, ok := r.GetVideoId(2)
	assert.True(t, ok)
	assert.Equal(t, "def456", videoId)
}
