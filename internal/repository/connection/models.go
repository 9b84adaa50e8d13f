package connection

// SessionInfo identifies who is behind a live connection. The nickname
// is captured at connect time for logging only; broadcast payloads
// re-resolve identity from the registry.
type SessionInfo struct {
	StationId int
	UserId    int
	Nickname  string
}
