package signal

import (
	"context"

	"github.com/dkeye/Jukebox/internal/app/orch"
	"github.com/dkeye/Jukebox/internal/domain"
)

func (ctl *SignalWSController) handleRequestSong(ctx context.Context, cl *client, payload []byte) error {
	var p struct {
		roomPayload
		Song      domain.Track `json:"song"`
		UserName  string       `json:"userName"`
		UserColor string       `json:"userColor"`
	}
	a, ok := ctl.decode(cl, "request_song", payload, &p, &p.actorFields)
	if !ok {
		return nil
	}
	return ctl.Orch.RequestSong(ctx, a, orch.RequestInput{
		RoomID:    p.RoomID,
		Song:      p.Song,
		UserName:  p.UserName,
		UserColor: p.UserColor,
	})
}

type requestPayload struct {
	roomPayload
	RequestID string `json:"requestId"`
}

func (ctl *SignalWSController) handleAcceptRequest(ctx context.Context, cl *client, payload []byte) error {
	var p requestPayload
	a, ok := ctl.decode(cl, "accept_request", payload, &p, &p.actorFields)
	if !ok {
		return nil
	}
	return ctl.Orch.AcceptRequest(ctx, a, p.RoomID, p.RequestID)
}

func (ctl *SignalWSController) handleDeclineRequest(ctx context.Context, cl *client, payload []byte) error {
	var p requestPayload
	a, ok := ctl.decode(cl, "decline_request", payload, &p, &p.actorFields)
	if !ok {
		return nil
	}
	return ctl.Orch.DeclineRequest(ctx, a, p.RoomID, p.RequestID)
}

type djPayload struct {
	roomPayload
	TargetUserID string `json:"targetUserId"`
}

func (ctl *SignalWSController) handleGrantDJ(ctx context.Context, cl *client, payload []byte) error {
	var p djPayload
	a, ok := ctl.decode(cl, "grant_dj_permission", payload, &p, &p.actorFields)
	if !ok {
		return nil
	}
	return ctl.Orch.GrantDJ(ctx, a, p.RoomID, p.TargetUserID)
}

func (ctl *SignalWSController) handleRevokeDJ(ctx context.Context, cl *client, payload []byte) error {
	var p djPayload
	a, ok := ctl.decode(cl, "revoke_dj_permission", payload, &p, &p.actorFields)
	if !ok {
		return nil
	}
	return ctl.Orch.RevokeDJ(ctx, a, p.RoomID, p.TargetUserID)
}
