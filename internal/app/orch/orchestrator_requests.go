package orch

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dkeye/Jukebox/internal/core"
	"github.com/dkeye/Jukebox/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	maxEmojiLen   = 16
	maxMessageLen = 500
)

type RequestInput struct {
	RoomID    string
	Song      domain.Track
	UserName  string
	UserColor string
}

func (o *Orchestrator) RequestSong(ctx context.Context, a Actor, in RequestInput) error {
	id, _, err := o.memberOf(a, in.RoomID)
	if err != nil {
		return o.fail(a, "request_song", core.EvRequestFeedback, err)
	}
	meta := o.meta(a)
	who := core.Requester{Identity: a.Identity, DisplayName: meta.DisplayName, Color: meta.Color}
	if name, err := domain.CleanDisplayName(in.UserName, ""); err == nil && name != "" {
		who.DisplayName = name
	}
	if in.UserColor != "" {
		who.Color = in.UserColor
	}

	room, err := o.Store.AppendSongRequest(ctx, id, core.NewSongRequest(in.Song, who, time.Now()))
	if err != nil {
		return o.fail(a, "request_song", core.EvRequestFeedback, err)
	}
	log.Info().Str("module", "orch").Str("room", id).Str("track", in.Song.ID).Str("by", who.DisplayName).Msg("song requested")
	o.emit(a.SID, id,
		core.SongRequestsEvent(room),
		core.RequestFeedback(core.FeedbackSuccess, "Song requested"),
	)
	return nil
}

func (o *Orchestrator) AcceptRequest(ctx context.Context, a Actor, roomID, requestID string) error {
	id := domain.NormalizeRoomID(roomID)
	room, req, err := o.Store.SetSongRequestStatus(ctx, id, requestID, domain.RequestAccepted,
		core.RequireDJ(a.Identity, "accept song requests"))
	if err != nil {
		return o.fail(a, "accept_request", core.EvRequestFeedback, err)
	}
	log.Info().Str("module", "orch").Str("room", id).Str("request", req.ID).Msg("request accepted")
	o.emit(a.SID, id,
		core.SongRequestsEvent(room),
		core.QueueEvent(room),
		core.RequestFeedback(core.FeedbackSuccess, "Request accepted"),
	)
	return nil
}

func (o *Orchestrator) DeclineRequest(ctx context.Context, a Actor, roomID, requestID string) error {
	id := domain.NormalizeRoomID(roomID)
	room, req, err := o.Store.SetSongRequestStatus(ctx, id, requestID, domain.RequestDeclined,
		core.RequireDJ(a.Identity, "decline song requests"))
	if err != nil {
		return o.fail(a, "decline_request", core.EvRequestFeedback, err)
	}
	log.Info().Str("module", "orch").Str("room", id).Str("request", req.ID).Msg("request declined")
	o.emit(a.SID, id,
		core.SongRequestsEvent(room),
		core.RequestFeedback(core.FeedbackSuccess, "Request declined"),
	)
	return nil
}

func (o *Orchestrator) GrantDJ(ctx context.Context, a Actor, roomID, target string) error {
	return o.setDJ(ctx, a, roomID, target, true)
}

func (o *Orchestrator) RevokeDJ(ctx context.Context, a Actor, roomID, target string) error {
	return o.setDJ(ctx, a, roomID, target, false)
}

func (o *Orchestrator) setDJ(ctx context.Context, a Actor, roomID, target string, grant bool) error {
	op, action, msg := "revoke_dj_permission", "revoke DJ permissions", "DJ permissions revoked"
	if grant {
		op, action, msg = "grant_dj_permission", "grant DJ permissions", "DJ permissions granted"
	}
	id := domain.NormalizeRoomID(roomID)
	target = strings.TrimSpace(target)
	if target == "" {
		return o.fail(a, op, "", domain.Invalid("Target user is required"))
	}
	room, err := o.Store.Update(ctx, id, func(r *domain.Room) error {
		if err := core.Check(r, core.RequireCreator(a.Identity, action)); err != nil {
			return err
		}
		if grant {
			r.GrantDJ(target)
		} else {
			r.RevokeDJ(target)
		}
		return nil
	})
	if err != nil {
		return o.fail(a, op, "", err)
	}
	log.Info().Str("module", "orch").Str("room", id).Str("target", target).Bool("grant", grant).Msg("dj permissions changed")
	o.emit(a.SID, id, core.DJPermissionsEvent(room, msg), core.SuccessEvent(msg))
	return nil
}

func (o *Orchestrator) Reaction(_ context.Context, a Actor, roomID, emoji string) error {
	id, _, err := o.memberOf(a, roomID)
	if err != nil {
		return o.fail(a, "send_reaction", "", err)
	}
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || len(emoji) > maxEmojiLen {
		return o.fail(a, "send_reaction", "", domain.Invalid("Invalid reaction"))
	}
	o.emit(a.SID, id, core.Event{Scope: core.ToRoom, Type: core.EvReaction, Payload: core.ReactionPayload{
		ID:    uuid.NewString(),
		Emoji: emoji,
	}})
	return nil
}

func (o *Orchestrator) Message(_ context.Context, a Actor, roomID, text string) error {
	id, _, err := o.memberOf(a, roomID)
	if err != nil {
		return o.fail(a, "send_message", "", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return o.fail(a, "send_message", "", domain.Invalid("Message is empty"))
	}
	if utf8.RuneCountInString(text) > maxMessageLen {
		return o.fail(a, "send_message", "", domain.Invalid("Message is too long"))
	}
	meta := o.meta(a)
	o.emit(a.SID, id, core.Event{Scope: core.ToRoom, Type: core.EvMessage, Payload: core.MessagePayload{
		ID:        uuid.NewString(),
		Text:      text,
		UserName:  meta.DisplayName,
		UserColor: meta.Color,
		UserID:    a.Identity.String(),
		SentAt:    time.Now().UnixMilli(),
	}})
	return nil
}

// Pong answers a keep-alive.
func (o *Orchestrator) Pong(a Actor) {
	o.emit(a.SID, "", core.Event{Scope: core.ToOrigin, Type: core.EvPong})
}

// Fail reports an adapter-side rejection, such as rate limiting, the same
// way handler errors are reported.
func (o *Orchestrator) Fail(a Actor, op string, err error) error {
	return o.fail(a, op, "", err)
}
