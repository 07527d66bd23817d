// Package orch is the shell around the room core: it resolves rooms, runs
// state transitions against the store, keeps the live session registry in
// step and fans the resulting events out.
package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Jukebox/internal/app"
	"github.com/dkeye/Jukebox/internal/core"
	"github.com/dkeye/Jukebox/internal/domain"
	"github.com/dkeye/Jukebox/internal/storage"
	"github.com/rs/zerolog/log"
)

const genericFailure = "Something went wrong, please try again"

type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.SessionRegistry
	Store    *storage.Store
	Policy   app.Policy

	shuffle func([]domain.Track) []domain.Track
}

// Actor is the connection behind an inbound event and its effective identity
// for that event.
type Actor struct {
	SID      core.SessionID
	Identity domain.Identity
}

func New(reg *app.Registry, rooms core.SessionRegistry, store *storage.Store, policy app.Policy) *Orchestrator {
	return &Orchestrator{
		Registry: reg,
		Rooms:    rooms,
		Store:    store,
		Policy:   policy,
		shuffle:  func(q []domain.Track) []domain.Track { return core.ShuffleTracks(q, nil) },
	}
}

// emit delivers events by scope. roomID is the normalised live room id.
func (o *Orchestrator) emit(origin core.SessionID, roomID string, evs ...core.Event) {
	for _, ev := range evs {
		frame, err := ev.Encode()
		if err != nil {
			log.Error().Err(err).Str("module", "orch").Str("type", ev.Type).Msg("encode event")
			continue
		}
		switch ev.Scope {
		case core.ToOrigin:
			o.sendTo(origin, frame)
		case core.ToRoom:
			o.broadcastRoom(roomID, frame)
		case core.ToAll:
			o.broadcastAll(frame)
		}
	}
}

func (o *Orchestrator) sendTo(sid core.SessionID, frame core.Frame) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return
	}
	if err := sess.Signal().TrySend(frame); err != nil {
		o.onDropped(nil, []core.MemberSession{sess})
	}
}

func (o *Orchestrator) broadcastRoom(roomID string, frame core.Frame) {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return
	}
	res := room.Broadcast("", frame)
	o.onDropped(room, res.Dropped)
}

func (o *Orchestrator) broadcastAll(frame core.Frame) {
	var dropped []core.MemberSession
	for _, sess := range o.Registry.All() {
		if err := sess.Signal().TrySend(frame); err != nil {
			dropped = append(dropped, sess)
		}
	}
	o.onDropped(nil, dropped)
}

// onDropped applies the back-pressure policy. A kicked connection is closed;
// its read pump then reports the disconnect, which does the cleanup.
func (o *Orchestrator) onDropped(room core.RoomSession, dropped []core.MemberSession) {
	if o.Policy == nil {
		return
	}
	for _, slow := range dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("sid", string(slow.ID())).Msg("kicking slow connection")
			o.Registry.Cancel(slow.ID())
			slow.Signal().Close()
		case app.DropFrame, app.NoAction:
		}
	}
}

// fail reports err to the acting connection. Conflicts go out as feedback
// of the given type when one applies; unclassified errors are persistence
// failures and are logged.
func (o *Orchestrator) fail(a Actor, op, feedback string, err error) error {
	msg := domain.MessageOf(err)
	switch domain.KindOf(err) {
	case domain.KindConflict:
		switch feedback {
		case core.EvQueueFeedback:
			o.emit(a.SID, "", core.QueueFeedback(core.FeedbackError, msg))
		case core.EvRequestFeedback:
			o.emit(a.SID, "", core.RequestFeedback(core.FeedbackError, msg))
		default:
			o.emit(a.SID, "", core.ErrorEvent(msg))
		}
	case domain.KindNotFound, domain.KindForbidden, domain.KindInvalid:
		o.emit(a.SID, "", core.ErrorEvent(msg))
	default:
		if errors.Is(err, context.Canceled) {
			return err
		}
		log.Error().Err(err).Str("module", "orch").Str("op", op).Str("sid", string(a.SID)).Msg("operation failed")
		o.emit(a.SID, "", core.ErrorEvent(genericFailure))
	}
	log.Debug().Err(err).Str("module", "orch").Str("op", op).Str("sid", string(a.SID)).Msg("rejected")
	return err
}

// memberOf returns the live session of roomID when the actor has joined it.
func (o *Orchestrator) memberOf(a Actor, roomID string) (string, core.RoomSession, error) {
	id := domain.NormalizeRoomID(roomID)
	if id == "" {
		return "", nil, domain.Invalid("Room id is required")
	}
	cur, _, ok := o.Registry.RoomOf(a.SID)
	if !ok || cur != id {
		return "", nil, domain.Forbidden("Join the room first")
	}
	room, ok := o.Rooms.Get(id)
	if !ok {
		return "", nil, domain.ErrRoomNotFound
	}
	if !room.HasMember(a.SID) {
		return "", nil, domain.Forbidden("Join the room first")
	}
	return id, room, nil
}

// meta is the actor's live member meta, or a default one.
func (o *Orchestrator) meta(a Actor) domain.LiveMember {
	if sess, ok := o.Registry.GetSession(a.SID); ok {
		return *sess.Meta()
	}
	return *domain.NewMember(string(a.SID), "", "", a.Identity)
}
