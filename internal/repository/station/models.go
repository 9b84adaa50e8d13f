package station

const (
	RoleHost   = "HOST"
	RoleMember = "MEMBER"
)

const (
	StatusActive = "ACTIVE"
	StatusClosed = "CLOSED"
)

type Station struct {
	Title           string `redis:"title"`
	InviteCode      string `redis:"invite_code"`
	MaxParticipants int    `redis:"max_participants"`
	Status          string `redis:"status"`
	IsPrivate       bool   `redis:"is_private"`
	CreatedAt       int64  `redis:"created_at"`
}

type Participant struct {
	Nickname     string `redis:"nickname"`
	Avatar       string `redis:"avatar"`
	Role         string `redis:"role"`
	JoinedAt     int64  `redis:"joined_at"`
	LastActiveAt int64  `redis:"last_active_at"`
}

type Ban struct {
	Nickname string `redis:"nickname"`
	Avatar   string `redis:"avatar"`
	BannedAt int64  `redis:"banned_at"`
}

type Playback struct {
	TrackTitle  string `redis:"track_title"`
	Artist      string `redis:"artist"`
	AlbumImage  string `redis:"album_image"`
	DurationSec int    `redis:"duration_sec"`
	PositionMs  int    `redis:"position_ms"`
	IsPlaying   bool   `redis:"is_playing"`
	UpdatedAt   int64  `redis:"updated_at"`
}
