package signal

import (
	"context"

	"github.com/dkeye/Jukebox/internal/app/orch"
)

type roomPayload struct {
	actorFields
	RoomID string `json:"roomId"`
}

func (ctl *SignalWSController) handleActiveRooms(ctx context.Context, cl *client, _ []byte) error {
	return ctl.Orch.ActiveRooms(ctx, orch.Actor{SID: cl.sid})
}

func (ctl *SignalWSController) handleCreateRoom(ctx context.Context, cl *client, payload []byte) error {
	var p struct {
		roomPayload
		Name        string   `json:"name"`
		IsPublic    *bool    `json:"isPublic"`
		Tags        []string `json:"tags"`
		Description string   `json:"description"`
	}
	a, ok := ctl.decode(cl, "create_room", payload, &p, &p.actorFields)
	if !ok {
		return nil
	}
	return ctl.Orch.CreateRoom(ctx, a, orch.CreateRoomInput{
		RoomID:      p.RoomID,
		Name:        p.Name,
		IsPublic:    p.IsPublic,
		Tags:        p.Tags,
		Description: p.Description,
	})
}

type userProfile struct {
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
}

func (ctl *SignalWSController) handleJoin(ctx context.Context, cl *client, payload []byte) error {
	var p struct {
		roomPayload
		UserProfile userProfile `json:"userProfile"`
	}
	a, ok := ctl.decode(cl, "join_room", payload, &p, &p.actorFields)
	if !ok {
		return nil
	}
	if p.UserID == "" && p.UserProfile.UserID != "" {
		// older clients send the user id inside the profile
		hints := p.actorFields
		hints.UserID = p.UserProfile.UserID
		var err error
		if a, err = ctl.actor(cl, hints); err != nil {
			return ctl.Orch.Fail(a, "join_room", err)
		}
	}
	name := p.UserProfile.DisplayName
	if name == "" {
		name = p.UserProfile.Name
	}
	return ctl.Orch.JoinRoom(ctx, a, orch.JoinInput{
		RoomID:      p.RoomID,
		DisplayName: name,
		Color:       p.UserProfile.Color,
	})
}

func (ctl *SignalWSController) handleLeave(ctx context.Context, cl *client, payload []byte) error {
	var p roomPayload
	a, ok := ctl.decode(cl, "leave_room", payload, &p, &p.actorFields)
	if !ok {
		return nil
	}
	return ctl.Orch.LeaveRoom(ctx, a, p.RoomID)
}

func (ctl *SignalWSController) handleDeleteRoom(ctx context.Context, cl *client, payload []byte) error {
	var p roomPayload
	a, ok := ctl.decode(cl, "delete_room", payload, &p, &p.actorFields)
	if !ok {
		return nil
	}
	return ctl.Orch.DeleteRoom(ctx, a, p.RoomID)
}
