package station

import (
	"context"
	"errors"
	"math/rand"

	"github.com/gorilla/websocket"
	"github.com/plyst/server/internal/repository/station"
)

type CreateStationParams struct {
	Creator         UserInfo
	Title           string
	MaxParticipants int
	IsPrivate       bool
}

type CreateStationResponse struct {
	Station StationDetail
}

func (s *service) CreateStation(ctx context.Context, params *CreateStationParams) (CreateStationResponse, error) {
	maxParticipants := params.MaxParticipants
	if maxParticipants <= 0 || maxParticipants > s.maxParticipants {
		maxParticipants = s.maxParticipants
	}

	stationId, err := s.stationRepo.NextStationId(ctx)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to allocate station id", "error", err)
		return CreateStationResponse{}, err
	}

	now := s.now()
	if err := s.createWithInviteCode(ctx, &station.CreateStationParams{
		StationId:       stationId,
		Title:           params.Title,
		MaxParticipants: maxParticipants,
		IsPrivate:       params.IsPrivate,
		CreatedAt:       now,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to create station", "error", err)
		return CreateStationResponse{}, err
	}

	if err := s.stationRepo.SetParticipant(ctx, &station.SetParticipantParams{
		StationId:    stationId,
		UserId:       params.Creator.Id,
		Nickname:     params.Creator.Nickname,
		Avatar:       params.Creator.Avatar,
		Role:         station.RoleHost,
		JoinedAt:     now,
		LastActiveAt: now,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to set host participant", "error", err)
		return CreateStationResponse{}, err
	}

	detail, err := s.getStationDetail(ctx, stationId)
	if err != nil {
		return CreateStationResponse{}, err
	}

	return CreateStationResponse{Station: detail}, nil
}

type JoinStationParams struct {
	User       UserInfo
	InviteCode string
}

type JoinStationResponse struct {
	Station StationDetail
	Conns   []*websocket.Conn
}

func (s *service) JoinStation(ctx context.Context, params *JoinStationParams) (JoinStationResponse, error) {
	stationId, err := s.stationRepo.GetStationIdByInviteCode(ctx, normalizeInviteCode(params.InviteCode))
	if err != nil {
		if errors.Is(err, station.ErrStationNotFound) {
			return JoinStationResponse{}, ErrStationNotFound
		}
		return JoinStationResponse{}, err
	}

	unlock := s.lockStation(stationId)
	defer unlock()

	st, err := s.stationRepo.GetStation(ctx, stationId)
	if err != nil {
		if errors.Is(err, station.ErrStationNotFound) {
			return JoinStationResponse{}, ErrStationNotFound
		}
		return JoinStationResponse{}, err
	}
	if st.Status != station.StatusActive {
		return JoinStationResponse{}, ErrStationNotActive
	}

	banned, err := s.stationRepo.IsBanned(ctx, stationId, params.User.Id)
	if err != nil {
		return JoinStationResponse{}, err
	}
	if banned {
		return JoinStationResponse{}, ErrBanned
	}

	now := s.now()

	// a rejoin from a user already inside only refreshes activity
	if _, err := s.stationRepo.GetParticipant(ctx, &station.GetParticipantParams{
		StationId: stationId,
		UserId:    params.User.Id,
	}); err == nil {
		if err := s.stationRepo.UpdateParticipantActivity(ctx, stationId, params.User.Id, now); err != nil {
			return JoinStationResponse{}, err
		}
		detail, err := s.getStationDetail(ctx, stationId)
		if err != nil {
			return JoinStationResponse{}, err
		}
		return JoinStationResponse{Station: detail}, nil
	} else if !errors.Is(err, station.ErrParticipantNotFound) {
		return JoinStationResponse{}, err
	}

	hostId, err := s.stationRepo.GetHostId(ctx, stationId)
	if err != nil && !errors.Is(err, station.ErrParticipantNotFound) {
		return JoinStationResponse{}, err
	}
	if hostId != 0 {
		blocked, err := s.stationRepo.IsBlocked(ctx, hostId, params.User.Id)
		if err != nil {
			return JoinStationResponse{}, err
		}
		if blocked {
			return JoinStationResponse{}, ErrJoinRejected
		}
	}

	count, err := s.stationRepo.CountParticipants(ctx, stationId)
	if err != nil {
		return JoinStationResponse{}, err
	}
	if count >= st.MaxParticipants {
		return JoinStationResponse{}, ErrStationFull
	}

	if err := s.stationRepo.SetParticipant(ctx, &station.SetParticipantParams{
		StationId:    stationId,
		UserId:       params.User.Id,
		Nickname:     params.User.Nickname,
		Avatar:       params.User.Avatar,
		Role:         station.RoleMember,
		JoinedAt:     now,
		LastActiveAt: now,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to set participant", "error", err)
		return JoinStationResponse{}, err
	}

	detail, err := s.getStationDetail(ctx, stationId)
	if err != nil {
		return JoinStationResponse{}, err
	}

	return JoinStationResponse{
		Station: detail,
		Conns:   s.connRepo.GetStationConns(stationId),
	}, nil
}

type LeaveStationParams struct {
	StationId int
	UserId    int
}

type LeaveStationResponse struct {
	StationClosed bool
	NewHostId     int
	Participants  []ParticipantInfo
	Conns         []*websocket.Conn
}

// LeaveStation removes the participant, promotes a random successor if
// the host left, and closes the station when nobody remains. Called for
// explicit departures and for disconnects alike.
func (s *service) LeaveStation(ctx context.Context, params *LeaveStationParams) (LeaveStationResponse, error) {
	unlock := s.lockStation(params.StationId)
	defer unlock()

	participant, err := s.stationRepo.GetParticipant(ctx, &station.GetParticipantParams{
		StationId: params.StationId,
		UserId:    params.UserId,
	})
	if err != nil {
		if errors.Is(err, station.ErrParticipantNotFound) {
			return LeaveStationResponse{}, ErrParticipantNotFound
		}
		return LeaveStationResponse{}, err
	}

	if err := s.stationRepo.RemoveParticipant(ctx, &station.RemoveParticipantParams{
		StationId: params.StationId,
		UserId:    params.UserId,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to remove participant", "error", err)
		return LeaveStationResponse{}, err
	}

	remainingIds, err := s.stationRepo.GetParticipantIds(ctx, params.StationId)
	if err != nil {
		return LeaveStationResponse{}, err
	}

	if len(remainingIds) == 0 {
		if err := s.closeStation(ctx, params.StationId); err != nil {
			return LeaveStationResponse{}, err
		}
		return LeaveStationResponse{StationClosed: true}, nil
	}

	var newHostId int
	if participant.Role == station.RoleHost {
		newHostId = remainingIds[rand.Intn(len(remainingIds))]
		if err := s.stationRepo.PromoteHost(ctx, params.StationId, newHostId); err != nil {
			s.logger.InfoContext(ctx, "failed to promote host", "error", err)
			return LeaveStationResponse{}, err
		}
	}

	participants, err := s.getParticipants(ctx, params.StationId)
	if err != nil {
		return LeaveStationResponse{}, err
	}

	return LeaveStationResponse{
		NewHostId:    newHostId,
		Participants: participants,
		Conns:        s.connRepo.GetStationConns(params.StationId),
	}, nil
}

func (s *service) closeStation(ctx context.Context, stationId int) error {
	if err := s.stationRepo.RemoveStation(ctx, stationId); err != nil {
		s.logger.InfoContext(ctx, "failed to remove station", "error", err)
		return err
	}

	s.roomCache.Clear(stationId)
	s.subtitles.Cleanup(stationId)
	s.logger.InfoContext(ctx, "station closed", "station_id", stationId)

	return nil
}

type TransferHostParams struct {
	StationId int
	SenderId  int
	TargetId  int
}

type TransferHostResponse struct {
	Participants []ParticipantInfo
	Conns        []*websocket.Conn
}

func (s *service) TransferHost(ctx context.Context, params *TransferHostParams) (TransferHostResponse, error) {
	unlock := s.lockStation(params.StationId)
	defer unlock()

	if err := s.checkIfHost(ctx, params.StationId, params.SenderId); err != nil {
		return TransferHostResponse{}, err
	}

	if _, err := s.checkIfParticipant(ctx, params.StationId, params.TargetId); err != nil {
		return TransferHostResponse{}, err
	}

	if err := s.stationRepo.TransferHost(ctx, &station.TransferHostParams{
		StationId:  params.StationId,
		FromUserId: params.SenderId,
		ToUserId:   params.TargetId,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to transfer host", "error", err)
		return TransferHostResponse{}, err
	}

	participants, err := s.getParticipants(ctx, params.StationId)
	if err != nil {
		return TransferHostResponse{}, err
	}

	return TransferHostResponse{
		Participants: participants,
		Conns:        s.connRepo.GetStationConns(params.StationId),
	}, nil
}

type BanUserParams struct {
	StationId int
	SenderId  int
	TargetId  int
}

type BanUserResponse struct {
	AlreadyBanned bool
	Participants  []ParticipantInfo
	Conns         []*websocket.Conn
	TargetConns   []*websocket.Conn
}

// BanUser is idempotent: banning an already banned user succeeds
// without touching the ban record again.
func (s *service) BanUser(ctx context.Context, params *BanUserParams) (BanUserResponse, error) {
	unlock := s.lockStation(params.StationId)
	defer unlock()

	if err := s.checkIfHost(ctx, params.StationId, params.SenderId); err != nil {
		return BanUserResponse{}, err
	}
	if params.TargetId == params.SenderId {
		return BanUserResponse{}, ErrPermissionDenied
	}

	banned, err := s.stationRepo.IsBanned(ctx, params.StationId, params.TargetId)
	if err != nil {
		return BanUserResponse{}, err
	}
	if banned {
		return BanUserResponse{AlreadyBanned: true}, nil
	}

	var nickname, avatar string
	participant, err := s.stationRepo.GetParticipant(ctx, &station.GetParticipantParams{
		StationId: params.StationId,
		UserId:    params.TargetId,
	})
	switch {
	case err == nil:
		nickname, avatar = participant.Nickname, participant.Avatar
		if err := s.stationRepo.RemoveParticipant(ctx, &station.RemoveParticipantParams{
			StationId: params.StationId,
			UserId:    params.TargetId,
		}); err != nil {
			s.logger.InfoContext(ctx, "failed to remove banned participant", "error", err)
			return BanUserResponse{}, err
		}
	case !errors.Is(err, station.ErrParticipantNotFound):
		return BanUserResponse{}, err
	}

	if err := s.stationRepo.AddBan(ctx, &station.AddBanParams{
		StationId: params.StationId,
		UserId:    params.TargetId,
		Nickname:  nickname,
		Avatar:    avatar,
		BannedAt:  s.now(),
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to add ban", "error", err)
		return BanUserResponse{}, err
	}

	participants, err := s.getParticipants(ctx, params.StationId)
	if err != nil {
		return BanUserResponse{}, err
	}

	return BanUserResponse{
		Participants: participants,
		Conns:        s.connRepo.GetStationConns(params.StationId),
		TargetConns:  s.connRepo.GetUserConns(params.StationId, params.TargetId),
	}, nil
}

type UnbanUserParams struct {
	StationId int
	SenderId  int
	TargetId  int
}

func (s *service) UnbanUser(ctx context.Context, params *UnbanUserParams) error {
	if err := s.checkIfHost(ctx, params.StationId, params.SenderId); err != nil {
		return err
	}

	if err := s.stationRepo.RemoveBan(ctx, &station.RemoveBanParams{
		StationId: params.StationId,
		UserId:    params.TargetId,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to remove ban", "error", err)
		return err
	}

	return nil
}

type UpdateTitleParams struct {
	StationId int
	SenderId  int
	Title     string
}

type UpdateTitleResponse struct {
	Title string
	Conns []*websocket.Conn
}

func (s *service) UpdateTitle(ctx context.Context, params *UpdateTitleParams) (UpdateTitleResponse, error) {
	if err := s.checkIfHost(ctx, params.StationId, params.SenderId); err != nil {
		return UpdateTitleResponse{}, err
	}

	if err := s.stationRepo.UpdateStationTitle(ctx, params.StationId, params.Title); err != nil {
		if errors.Is(err, station.ErrStationNotFound) {
			return UpdateTitleResponse{}, ErrStationNotFound
		}
		return UpdateTitleResponse{}, err
	}

	return UpdateTitleResponse{
		Title: params.Title,
		Conns: s.connRepo.GetStationConns(params.StationId),
	}, nil
}

type CloseStationParams struct {
	StationId int
	SenderId  int
}

type CloseStationResponse struct {
	Conns []*websocket.Conn
}

func (s *service) CloseStation(ctx context.Context, params *CloseStationParams) (CloseStationResponse, error) {
	unlock := s.lockStation(params.StationId)
	defer unlock()

	if err := s.checkIfHost(ctx, params.StationId, params.SenderId); err != nil {
		return CloseStationResponse{}, err
	}

	conns := s.connRepo.GetStationConns(params.StationId)
	if err := s.closeStation(ctx, params.StationId); err != nil {
		return CloseStationResponse{}, err
	}

	return CloseStationResponse{Conns: conns}, nil
}

func (s *service) GetStationDetail(ctx context.Context, stationId, userId int) (StationDetail, error) {
	if _, err := s.checkIfParticipant(ctx, stationId, userId); err != nil {
		return StationDetail{}, err
	}

	return s.getStationDetail(ctx, stationId)
}

func (s *service) ListStations(ctx context.Context) ([]StationSummary, error) {
	stationIds, err := s.stationRepo.GetActiveStationIds(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]StationSummary, 0, len(stationIds))
	for _, stationId := range stationIds {
		st, err := s.stationRepo.GetStation(ctx, stationId)
		if err != nil {
			if errors.Is(err, station.ErrStationNotFound) {
				continue
			}
			return nil, err
		}
		if st.IsPrivate {
			continue
		}

		count, err := s.stationRepo.CountParticipants(ctx, stationId)
		if err != nil {
			return nil, err
		}

		summaries = append(summaries, StationSummary{
			Id:               stationId,
			Title:            st.Title,
			ParticipantCount: count,
			MaxParticipants:  st.MaxParticipants,
			IsPrivate:        st.IsPrivate,
			CreatedAt:        st.CreatedAt,
		})
	}

	return summaries, nil
}

type GetBansParams struct {
	StationId int
	SenderId  int
}

func (s *service) GetBans(ctx context.Context, params *GetBansParams) ([]BannedUserInfo, error) {
	if err := s.checkIfHost(ctx, params.StationId, params.SenderId); err != nil {
		return nil, err
	}

	banIds, err := s.stationRepo.GetBanIds(ctx, params.StationId)
	if err != nil {
		return nil, err
	}

	bans := make([]BannedUserInfo, 0, len(banIds))
	for _, banId := range banIds {
		ban, err := s.stationRepo.GetBan(ctx, params.StationId, banId)
		if err != nil {
			return nil, err
		}

		bans = append(bans, BannedUserInfo{
			Id:       banId,
			Nickname: ban.Nickname,
			Avatar:   ban.Avatar,
			BannedAt: ban.BannedAt,
		})
	}

	return bans, nil
}

func (s *service) TouchParticipant(ctx context.Context, stationId, userId int) {
	if err := s.stationRepo.UpdateParticipantActivity(ctx, stationId, userId, s.now()); err != nil {
		s.logger.DebugContext(ctx, "failed to update participant activity", "error", err)
	}
}
