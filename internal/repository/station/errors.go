package station

import "errors"

var (
	ErrStationNotFound     = errors.New("station not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrPlaybackNotFound    = errors.New("playback not found")
	ErrInviteCodeTaken     = errors.New("invite code already taken")
)
