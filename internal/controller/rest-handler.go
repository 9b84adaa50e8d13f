package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/plyst/server/internal/service/station"
	"github.com/plyst/server/pkg/rest"
)

func (c controller) senderId(r *http.Request) (int, error) {
	userId, err := strconv.Atoi(r.Header.Get("X-User-Id"))
	if err != nil || userId <= 0 {
		return 0, errors.New("X-User-Id header is required")
	}

	return userId, nil
}

func (c controller) stationIdParam(r *http.Request) (int, error) {
	stationId, err := strconv.Atoi(chi.URLParam(r, "station-id"))
	if err != nil || stationId <= 0 {
		return 0, errors.New("invalid station id")
	}

	return stationId, nil
}

func serviceErrorStatus(err error) int {
	switch {
	case errors.Is(err, station.ErrStationNotFound):
		return http.StatusNotFound
	case errors.Is(err, station.ErrParticipantNotFound):
		return http.StatusForbidden
	case errors.Is(err, station.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, station.ErrBanned), errors.Is(err, station.ErrJoinRejected):
		return http.StatusForbidden
	case errors.Is(err, station.ErrStationFull):
		return http.StatusConflict
	case errors.Is(err, station.ErrStationNotActive):
		return http.StatusGone
	case errors.Is(err, station.ErrInvalidVolume), errors.Is(err, station.ErrPlaybackNotFound):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (c controller) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := serviceErrorStatus(err)
	if status == http.StatusInternalServerError {
		c.logger.ErrorContext(r.Context(), "request failed", "error", err)
		rest.WriteJSON(w, status, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, status, rest.Envelope{"error": err.Error()})
}

func (c controller) listStations(w http.ResponseWriter, r *http.Request) {
	summaries, err := c.stationService.ListStations(r.Context())
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": summaries})
}

type createStationRequest struct {
	Title           string `json:"title" validate:"required,max=64"`
	Nickname        string `json:"nickname" validate:"required,max=32"`
	Avatar          string `json:"avatar" validate:"max=256"`
	MaxParticipants int    `json:"maxParticipants" validate:"min=0,max=100"`
	IsPrivate       bool   `json:"isPrivate"`
}

func (c controller) createStation(w http.ResponseWriter, r *http.Request) {
	senderId, err := c.senderId(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": err.Error()})
		return
	}

	var req createStationRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}
	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	createResp, err := c.stationService.CreateStation(r.Context(), &station.CreateStationParams{
		Creator: station.UserInfo{
			Id:       senderId,
			Nickname: req.Nickname,
			Avatar:   req.Avatar,
		},
		Title:           req.Title,
		MaxParticipants: req.MaxParticipants,
		IsPrivate:       req.IsPrivate,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": createResp.Station})
}

type joinStationRequest struct {
	InviteCode string `json:"inviteCode" validate:"required,len=6"`
	Nickname   string `json:"nickname" validate:"required,max=32"`
	Avatar     string `json:"avatar" validate:"max=256"`
}

func (c controller) joinStation(w http.ResponseWriter, r *http.Request) {
	senderId, err := c.senderId(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": err.Error()})
		return
	}

	var req joinStationRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}
	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	joinResp, err := c.stationService.JoinStation(r.Context(), &station.JoinStationParams{
		User: station.UserInfo{
			Id:       senderId,
			Nickname: req.Nickname,
			Avatar:   req.Avatar,
		},
		InviteCode: req.InviteCode,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	c.broadcastParticipants(r.Context(), joinResp.Conns, joinResp.Station.Participants)

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": joinResp.Station})
}

func (c controller) getStation(w http.ResponseWriter, r *http.Request) {
	senderId, err := c.senderId(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": err.Error()})
		return
	}
	stationId, err := c.stationIdParam(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
		return
	}

	detail, err := c.stationService.GetStationDetail(r.Context(), stationId, senderId)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": detail})
}

func (c controller) leaveStation(w http.ResponseWriter, r *http.Request) {
	senderId, err := c.senderId(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": err.Error()})
		return
	}
	stationId, err := c.stationIdParam(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
		return
	}

	for _, conn := range c.connRepo.GetUserConns(stationId, senderId) {
		c.connRepo.Remove(conn)
		conn.Close()
	}

	leaveResp, err := c.stationService.LeaveStation(r.Context(), &station.LeaveStationParams{
		StationId: stationId,
		UserId:    senderId,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	if !leaveResp.StationClosed {
		if leaveResp.NewHostId != 0 {
			c.broadcastHostChanged(r.Context(), leaveResp.Conns, leaveResp.NewHostId, leaveResp.Participants)
		} else {
			c.broadcastParticipants(r.Context(), leaveResp.Conns, leaveResp.Participants)
		}
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"stationClosed": leaveResp.StationClosed,
	}})
}

type transferHostRequest struct {
	TargetId int `json:"targetId" validate:"required,min=1"`
}

func (c controller) transferHost(w http.ResponseWriter, r *http.Request) {
	senderId, err := c.senderId(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": err.Error()})
		return
	}
	stationId, err := c.stationIdParam(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
		return
	}

	var req transferHostRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}
	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	transferResp, err := c.stationService.TransferHost(r.Context(), &station.TransferHostParams{
		StationId: stationId,
		SenderId:  senderId,
		TargetId:  req.TargetId,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	c.broadcastHostChanged(r.Context(), transferResp.Conns, req.TargetId, transferResp.Participants)

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"hostId": req.TargetId,
	}})
}

type updateTitleRequest struct {
	Title string `json:"title" validate:"required,max=64"`
}

func (c controller) updateTitle(w http.ResponseWriter, r *http.Request) {
	senderId, err := c.senderId(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": err.Error()})
		return
	}
	stationId, err := c.stationIdParam(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
		return
	}

	var req updateTitleRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}
	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	titleResp, err := c.stationService.UpdateTitle(r.Context(), &station.UpdateTitleParams{
		StationId: stationId,
		SenderId:  senderId,
		Title:     req.Title,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	c.broadcast(r.Context(), titleResp.Conns, newOutput(outputTitleChanged, map[string]any{
		"title": titleResp.Title,
	}))

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"title": titleResp.Title,
	}})
}

func (c controller) closeStation(w http.ResponseWriter, r *http.Request) {
	senderId, err := c.senderId(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": err.Error()})
		return
	}
	stationId, err := c.stationIdParam(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
		return
	}

	closeResp, err := c.stationService.CloseStation(r.Context(), &station.CloseStationParams{
		StationId: stationId,
		SenderId:  senderId,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	closed := newOutput(outputStationClosed, map[string]any{"stationId": stationId})
	for _, conn := range closeResp.Conns {
		c.writeToConn(r.Context(), conn, closed)
		c.connRepo.Remove(conn)
		conn.Close()
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"stationClosed": true,
	}})
}

func (c controller) getBans(w http.ResponseWriter, r *http.Request) {
	senderId, err := c.senderId(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": err.Error()})
		return
	}
	stationId, err := c.stationIdParam(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
		return
	}

	bans, err := c.stationService.GetBans(r.Context(), &station.GetBansParams{
		StationId: stationId,
		SenderId:  senderId,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": bans})
}

type banUserRequest struct {
	TargetId int `json:"targetId" validate:"required,min=1"`
}

func (c controller) banUser(w http.ResponseWriter, r *http.Request) {
	senderId, err := c.senderId(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": err.Error()})
		return
	}
	stationId, err := c.stationIdParam(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
		return
	}

	var req banUserRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}
	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	banResp, err := c.stationService.BanUser(r.Context(), &station.BanUserParams{
		StationId: stationId,
		SenderId:  senderId,
		TargetId:  req.TargetId,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	if !banResp.AlreadyBanned {
		c.kickUser(r.Context(), stationId, req.TargetId, banResp.TargetConns)
		c.broadcastParticipants(r.Context(), banResp.Conns, banResp.Participants)
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"banned": true,
	}})
}

func (c controller) unbanUser(w http.ResponseWriter, r *http.Request) {
	senderId, err := c.senderId(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": err.Error()})
		return
	}
	stationId, err := c.stationIdParam(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
		return
	}
	targetId, err := strconv.Atoi(chi.URLParam(r, "user-id"))
	if err != nil || targetId <= 0 {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": "invalid user id"})
		return
	}

	if err := c.stationService.UnbanUser(r.Context(), &station.UnbanUserParams{
		StationId: stationId,
		SenderId:  senderId,
		TargetId:  targetId,
	}); err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"unbanned": true,
	}})
}
