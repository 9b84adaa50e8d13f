package station

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
)

type UpdateQueueParams struct {
	StationId int
	SenderId  int
	Queue     []json.RawMessage
}

type UpdateQueueResponse struct {
	Queue []json.RawMessage
	Conns []*websocket.Conn
}

func (s *service) UpdateQueue(ctx context.Context, params *UpdateQueueParams) (UpdateQueueResponse, error) {
	unlock := s.lockStation(params.StationId)
	defer unlock()

	if err := s.checkIfHost(ctx, params.StationId, params.SenderId); err != nil {
		return UpdateQueueResponse{}, err
	}

	queue := params.Queue
	if queue == nil {
		queue = []json.RawMessage{}
	}
	s.roomCache.SetQueue(params.StationId, queue)

	return UpdateQueueResponse{
		Queue: queue,
		Conns: s.connRepo.GetStationConns(params.StationId),
	}, nil
}

type AddToQueueParams struct {
	StationId int
	SenderId  int
	Item      json.RawMessage
}

type AddToQueueResponse struct {
	Item  json.RawMessage
	Queue []json.RawMessage
	Conns []*websocket.Conn
}

// AddToQueue appends one track. Any participant may add, the host is
// not required.
func (s *service) AddToQueue(ctx context.Context, params *AddToQueueParams) (AddToQueueResponse, error) {
	unlock := s.lockStation(params.StationId)
	defer unlock()

	if _, err := s.checkIfParticipant(ctx, params.StationId, params.SenderId); err != nil {
		return AddToQueueResponse{}, err
	}

	queue := s.roomCache.AppendQueueItem(params.StationId, params.Item)

	return AddToQueueResponse{
		Item:  params.Item,
		Queue: queue,
		Conns: s.connRepo.GetStationConns(params.StationId),
	}, nil
}

type UpdateVolumeParams struct {
	StationId int
	SenderId  int
	Volume    int
}

type UpdateVolumeResponse struct {
	Volume int
	Conns  []*websocket.Conn
}

func (s *service) UpdateVolume(ctx context.Context, params *UpdateVolumeParams) (UpdateVolumeResponse, error) {
	if params.Volume < 0 || params.Volume > 100 {
		return UpdateVolumeResponse{}, ErrInvalidVolume
	}

	unlock := s.lockStation(params.StationId)
	defer unlock()

	if err := s.checkIfHost(ctx, params.StationId, params.SenderId); err != nil {
		return UpdateVolumeResponse{}, err
	}

	s.roomCache.SetVolume(params.StationId, params.Volume)

	return UpdateVolumeResponse{
		Volume: params.Volume,
		Conns:  s.connRepo.GetStationConns(params.StationId),
	}, nil
}

type SendChatParams struct {
	StationId int
	SenderId  int
	Text      string
}

type SendChatResponse struct {
	Sender UserInfo
	Text   string
	SentAt int64
	Conns  []*websocket.Conn
}

// SendChat relays a message to the station. Sender identity comes from
// the stored participant row, never from the inbound payload.
func (s *service) SendChat(ctx context.Context, params *SendChatParams) (SendChatResponse, error) {
	participant, err := s.checkIfParticipant(ctx, params.StationId, params.SenderId)
	if err != nil {
		return SendChatResponse{}, err
	}

	s.TouchParticipant(ctx, params.StationId, params.SenderId)

	return SendChatResponse{
		Sender: UserInfo{
			Id:       params.SenderId,
			Nickname: participant.Nickname,
			Avatar:   participant.Avatar,
		},
		Text:   params.Text,
		SentAt: s.now(),
		Conns:  s.connRepo.GetStationConns(params.StationId),
	}, nil
}
