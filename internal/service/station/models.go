package station

import (
	"encoding/json"

	"github.com/plyst/server/internal/service/subtitle"
)

type UserInfo struct {
	Id       int    `json:"id"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

type ParticipantInfo struct {
	Id           int    `json:"id"`
	Nickname     string `json:"nickname"`
	Avatar       string `json:"avatar"`
	Role         string `json:"role"`
	JoinedAt     int64  `json:"joinedAt"`
	LastActiveAt int64  `json:"lastActiveAt"`
}

type PlaybackInfo struct {
	TrackTitle  string `json:"trackTitle"`
	Artist      string `json:"artist"`
	AlbumImage  string `json:"albumImage,omitempty"`
	VideoId     string `json:"videoId,omitempty"`
	DurationSec int    `json:"durationSec"`
	PositionMs  int    `json:"positionMs"`
	IsPlaying   bool   `json:"isPlaying"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// SubtitleState is attached to snapshots while subtitles are on, so a
// client connecting mid-song can render the overlay without an extra
// status round trip.
type SubtitleState struct {
	Enabled          bool               `json:"enabled"`
	VideoId          string             `json:"videoId"`
	Available        bool               `json:"available"`
	Processing       bool               `json:"processing"`
	OriginalLanguage string             `json:"originalLanguage,omitempty"`
	Segments         []subtitle.Segment `json:"segments"`
}

type StationDetail struct {
	Id              int               `json:"id"`
	Title           string            `json:"title"`
	InviteCode      string            `json:"inviteCode"`
	MaxParticipants int               `json:"maxParticipants"`
	IsPrivate       bool              `json:"isPrivate"`
	CreatedAt       int64             `json:"createdAt"`
	HostId          int               `json:"hostId"`
	Participants    []ParticipantInfo `json:"participants"`
	Playback        *PlaybackInfo     `json:"playback,omitempty"`
	Queue           []json.RawMessage `json:"queue"`
	Volume          int               `json:"volume"`
	Subtitles       *SubtitleState    `json:"subtitles,omitempty"`
}

type StationSummary struct {
	Id               int    `json:"id"`
	Title            string `json:"title"`
	ParticipantCount int    `json:"participantCount"`
	MaxParticipants  int    `json:"maxParticipants"`
	IsPrivate        bool   `json:"isPrivate"`
	CreatedAt        int64  `json:"createdAt"`
}

type BannedUserInfo struct {
	Id       int    `json:"id"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
	BannedAt int64  `json:"bannedAt"`
}
