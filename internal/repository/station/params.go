package station

type CreateStationParams struct {
	StationId       int
	Title           string
	InviteCode      string
	MaxParticipants int
	IsPrivate       bool
	CreatedAt       int64
}

type SetParticipantParams struct {
	StationId    int
	UserId       int
	Nickname     string
	Avatar       string
	Role         string
	JoinedAt     int64
	LastActiveAt int64
}

type GetParticipantParams struct {
	StationId int
	UserId    int
}

type RemoveParticipantParams struct {
	StationId int
	UserId    int
}

type TransferHostParams struct {
	StationId  int
	FromUserId int
	ToUserId   int
}

type AddBanParams struct {
	StationId int
	UserId    int
	Nickname  string
	Avatar    string
	BannedAt  int64
}

type RemoveBanParams struct {
	StationId int
	UserId    int
}

type SetPlaybackParams struct {
	StationId   int
	TrackTitle  string
	Artist      string
	AlbumImage  string
	DurationSec int
	PositionMs  int
	IsPlaying   bool
	UpdatedAt   int64
}
