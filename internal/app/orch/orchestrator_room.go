package orch

import (
	"context"

	"github.com/dkeye/Jukebox/internal/core"
	"github.com/dkeye/Jukebox/internal/domain"
	"github.com/rs/zerolog/log"
)

type CreateRoomInput struct {
	RoomID      string
	Name        string
	IsPublic    *bool
	Tags        []string
	Description string
}

type JoinInput struct {
	RoomID      string
	DisplayName string
	Color       string
}

func roomConfig(a Actor) domain.RoomConfig {
	cfg := domain.RoomConfig{CreatorID: a.Identity.String()}
	if a.Identity.IsRegistered() {
		cfg.Owner = a.Identity.String()
	}
	return cfg
}

func (o *Orchestrator) CreateRoom(ctx context.Context, a Actor, in CreateRoomInput) error {
	cfg := roomConfig(a)
	cfg.ID = in.RoomID
	cfg.Name = in.Name
	cfg.IsPublic = in.IsPublic
	cfg.Tags = in.Tags
	cfg.Description = in.Description

	room, err := o.Store.Create(ctx, cfg)
	if err != nil {
		return o.fail(a, "create_room", "", err)
	}
	o.Rooms.GetOrCreate(room.ID)
	log.Info().Str("module", "orch").Str("sid", string(a.SID)).Str("room", room.ID).Msg("room created")

	o.emit(a.SID, room.ID, core.Event{Scope: core.ToOrigin, Type: core.EvRoomCreated, Payload: core.RoomCreatedPayload{RoomID: room.ID}})
	o.broadcastDirectory(ctx)
	return nil
}

// JoinRoom puts the connection in a room, creating the room on first join.
// A connection is in at most one room; joining another leaves the old one.
func (o *Orchestrator) JoinRoom(ctx context.Context, a Actor, in JoinInput) error {
	id := domain.NormalizeRoomID(in.RoomID)
	if err := domain.ValidateRoomID(id); err != nil {
		return o.fail(a, "join_room", "", err)
	}
	name, err := domain.CleanDisplayName(in.DisplayName, "")
	if err != nil {
		return o.fail(a, "join_room", "", domain.Invalid("Display name is too long"))
	}
	sess, ok := o.Registry.GetSession(a.SID)
	if !ok {
		return nil
	}

	room, created, err := o.Store.FindOrCreate(ctx, id, roomConfig(a))
	if err != nil {
		return o.fail(a, "join_room", "", err)
	}
	if room.CreatorID == "" && !a.Identity.IsAnonymous() {
		backfilled, err := o.Store.Update(ctx, id, func(r *domain.Room) error {
			r.BackfillCreator(a.Identity)
			return nil
		})
		if err != nil {
			return o.fail(a, "join_room", "", err)
		}
		room = backfilled
		log.Info().Str("module", "orch").Str("room", id).Str("creator", room.CreatorID).Msg("creator backfilled")
	}

	if prev, _, ok := o.Registry.RoomOf(a.SID); ok && prev != id {
		o.leave(ctx, a.SID, prev)
	}

	sess.UpdateIdentity(a.Identity).UpdateMeta(name, in.Color)

	live := o.Rooms.GetOrCreate(id)
	wasLive := live.HasIdentity(a.Identity)
	live.AddMember(sess)
	o.Registry.UpdateRoom(a.SID, id)
	log.Info().Str("module", "orch").Str("sid", string(a.SID)).Str("room", id).Bool("created", created).Msg("joined room")

	o.emit(a.SID, id,
		core.RoomStateEvent(room, live.MembersSnapshot(), a.Identity),
		core.ListenersEvent(live.MembersSnapshot()),
	)
	if a.Identity.IsRegistered() && core.IsCreator(room, a.Identity) && !wasLive {
		meta := sess.Meta()
		o.emit(a.SID, id, core.Event{Scope: core.ToAll, Type: core.EvDJWentLive, Payload: core.DJWentLivePayload{
			DJID:     a.Identity.String(),
			DJName:   meta.DisplayName,
			RoomID:   id,
			RoomName: room.Name,
		}})
	}
	o.broadcastDirectory(ctx)
	return nil
}

// LeaveRoom leaves the current room without closing the connection.
func (o *Orchestrator) LeaveRoom(ctx context.Context, a Actor, roomID string) error {
	cur, _, ok := o.Registry.RoomOf(a.SID)
	if !ok {
		return nil
	}
	if roomID != "" && domain.NormalizeRoomID(roomID) != cur {
		return o.fail(a, "leave_room", "", domain.Invalid("You are not in this room"))
	}
	o.leave(ctx, a.SID, cur)
	o.broadcastDirectory(ctx)
	return nil
}

// Disconnect cleans up after a closed connection.
func (o *Orchestrator) Disconnect(ctx context.Context, sid core.SessionID) {
	if cur, _, ok := o.Registry.RoomOf(sid); ok {
		o.leave(ctx, sid, cur)
		o.broadcastDirectory(ctx)
	}
	o.Registry.Unbind(sid)
}

// leave removes sid from roomID and tells the remaining members. The room
// stops playing when nobody is left to listen.
func (o *Orchestrator) leave(ctx context.Context, sid core.SessionID, roomID string) {
	o.Registry.RemoveRoom(sid)
	live, ok := o.Rooms.Get(roomID)
	if !ok {
		return
	}
	remaining := live.RemoveMember(sid)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", roomID).Int("remaining", len(remaining)).Msg("left room")

	if len(remaining) == 0 {
		stopped := false
		if _, err := o.Store.UpsertStateDelta(ctx, roomID, domain.StateDelta{IsPlaying: &stopped}); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("room", roomID).Msg("stop playback on empty room")
		}
		live.ResetSkipVotes("")
		return
	}
	o.emit(sid, roomID, core.ListenersEvent(remaining))
	o.settleSkip(ctx, sid, roomID, live.RecountSkip())
}

func (o *Orchestrator) DeleteRoom(ctx context.Context, a Actor, roomID string) error {
	id := domain.NormalizeRoomID(roomID)
	if err := o.Store.Delete(ctx, id, core.RequireCreator(a.Identity, "delete this room")); err != nil {
		return o.fail(a, "delete_room", "", err)
	}
	log.Info().Str("module", "orch").Str("sid", string(a.SID)).Str("room", id).Msg("room deleted")

	o.emit(a.SID, id, core.Event{Scope: core.ToRoom, Type: core.EvRoomDeleted, Payload: core.RoomDeletedPayload{RoomID: id}})
	live, hasLive := o.Rooms.Get(id)
	for _, ms := range o.Registry.InRoom(id) {
		o.Registry.RemoveRoom(ms.ID())
		if hasLive {
			live.RemoveMember(ms.ID())
		}
	}
	if hasLive {
		live.ResetSkipVotes("")
	}
	o.emit(a.SID, id, core.SuccessEvent("Room deleted"))
	o.broadcastDirectory(ctx)
	return nil
}

func (o *Orchestrator) ActiveRooms(ctx context.Context, a Actor) error {
	dir, err := o.directory(ctx)
	if err != nil {
		return o.fail(a, "get_active_rooms", "", err)
	}
	o.emit(a.SID, "", core.Event{Scope: core.ToOrigin, Type: core.EvUpdateActiveRooms, Payload: dir})
	return nil
}

// Directory is the public room list, busiest first.
func (o *Orchestrator) Directory(ctx context.Context) ([]core.DirectoryEntry, error) {
	return o.directory(ctx)
}

func (o *Orchestrator) directory(ctx context.Context) ([]core.DirectoryEntry, error) {
	rooms, err := o.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	return core.Directory(rooms, o.Rooms.ListenerCount), nil
}

func (o *Orchestrator) broadcastDirectory(ctx context.Context) {
	dir, err := o.directory(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("room directory")
		return
	}
	o.emit("", "", core.Event{Scope: core.ToAll, Type: core.EvUpdateActiveRooms, Payload: dir})
}

// Stats reports live connection and room counts.
func (o *Orchestrator) Stats() (connections, rooms int) {
	return o.Registry.Len(), len(o.Rooms.List())
}

// RoomSnapshot is the durable room joined with its live listeners.
type RoomSnapshot struct {
	*domain.Room
	Listeners []domain.LiveMember `json:"listeners"`
}

func (o *Orchestrator) Snapshot(ctx context.Context, roomID string) (RoomSnapshot, error) {
	room, err := o.Store.FindByRoomID(ctx, roomID)
	if err != nil {
		return RoomSnapshot{}, err
	}
	snap := RoomSnapshot{Room: room, Listeners: []domain.LiveMember{}}
	if live, ok := o.Rooms.Get(room.ID); ok {
		snap.Listeners = live.MembersSnapshot()
	}
	return snap, nil
}
