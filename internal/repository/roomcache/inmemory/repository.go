// Package inmemory holds the volatile per-station playback state: the
// video id currently on screen, the client-supplied queue and the room
// volume. None of it survives a restart and all of it is dropped when
// the station closes.
package inmemory

import (
	"encoding/json"
	"log/slog"
	"sync"
)

type repo struct {
	videoIds map[int]string
	queues   map[int][]json.RawMessage
	volumes  map[int]int
	mu       sync.RWMutex
	logger   *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		videoIds: make(map[int]string),
		queues:   make(map[int][]json.RawMessage),
		volumes:  make(map[int]int),
		logger:   logger,
	}
}

func (r *repo) SetVideoId(stationId int, videoId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.videoIds[stationId] = videoId
}

func (r *repo) GetVideoId(stationId int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	videoId, ok := r.videoIds[stationId]
	return videoId, ok
}

func (r *repo) SetQueue(stationId int, queue []json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.queues[stationId] = queue
}

func (r *repo) GetQueue(stationId int) ([]json.RawMessage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	queue, ok := r.queues[stationId]
	return queue, ok
}

// AppendQueueItem copies the stored queue and replaces it with the copy
// plus the new item. Callers are expected to hold the station's write
// lock so concurrent appends do not lose items.
func (r *repo) AppendQueueItem(stationId int, item json.RawMessage) []json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.queues[stationId]
	next := make([]json.RawMessage, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, item)
	r.queues[stationId] = next

	return next
}

func (r *repo) SetVolume(stationId, volume int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.volumes[stationId] = volume
}

func (r *repo) GetVolume(stationId int) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	volume, ok := r.volumes[stationId]
	return volume, ok
}

// Clear drops every cached value for the station. Called on station
// close only; losing a connection does not clear the cache.
func (r *repo) Clear(stationId int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("clearing room cache", "station_id", stationId)
	delete(r.videoIds, stationId)
	delete(r.queues, stationId)
	delete(r.volumes, stationId)
}
