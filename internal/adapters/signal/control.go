package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Jukebox/internal/app/orch"
	"github.com/dkeye/Jukebox/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

type handlerFunc func(ctx context.Context, cl *client, payload []byte) error

// routes maps inbound event names to handlers.
func (ctl *SignalWSController) routes() map[string]handlerFunc {
	return map[string]handlerFunc{
		"ping":                 ctl.handlePing,
		"get_active_rooms":     ctl.handleActiveRooms,
		"create_room":          ctl.handleCreateRoom,
		"join_room":            ctl.handleJoin,
		"leave_room":           ctl.handleLeave,
		"delete_room":          ctl.handleDeleteRoom,
		"add_to_queue":         ctl.handleAddToQueue,
		"remove_from_queue":    ctl.handleRemoveFromQueue,
		"shuffle_queue":        ctl.handleShuffle,
		"next_song":            ctl.handleNextSong,
		"vote_skip":            ctl.handleVoteSkip,
		"send_play":            ctl.handlePlay,
		"send_pause":           ctl.handlePause,
		"send_seek":            ctl.handleSeek,
		"send_reaction":        ctl.handleReaction,
		"send_message":         ctl.handleMessage,
		"request_song":         ctl.handleRequestSong,
		"accept_request":       ctl.handleAcceptRequest,
		"decline_request":      ctl.handleDeclineRequest,
		"grant_dj_permission":  ctl.handleGrantDJ,
		"revoke_dj_permission": ctl.handleRevokeDJ,
	}
}

// handleSignal peeks the envelope type and hands the payload to its handler.
func (ctl *SignalWSController) handleSignal(ctx context.Context, cl *client, data []byte) {
	if !gjson.ValidBytes(data) {
		log.Warn().Str("module", "signal").Str("sid", string(cl.sid)).Msg("bad json")
		ctl.Orch.Fail(orch.Actor{SID: cl.sid}, "decode", domain.Invalid("Malformed message"))
		return
	}
	env := gjson.GetManyBytes(data, "type", "payload")
	typ, payload := env[0].String(), env[1].Raw

	h, ok := ctl.handlers[typ]
	if !ok {
		log.Warn().Str("module", "signal").Str("type", typ).Msg("unknown signal")
		ctl.Orch.Fail(orch.Actor{SID: cl.sid}, typ, domain.Invalid("Unknown event"))
		return
	}
	if payload == "" {
		payload = "{}"
	}
	if err := h(ctx, cl, []byte(payload)); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(cl.sid)).Str("type", typ).Msg("handler rejected")
	}
}

// actorFields are the identity hints every payload may carry.
type actorFields struct {
	UserID  string `json:"userId"`
	GuestID string `json:"guestId"`
}

// actor resolves the effective identity for one event. The authenticated
// user id from the token wins; a payload userId only counts when the server
// trusts it. A payload guestId replaces the cookie guest id.
func (ctl *SignalWSController) actor(cl *client, f actorFields) (orch.Actor, error) {
	userID := cl.userID
	if userID == "" && ctl.opts.TrustPayloadUserID {
		userID = f.UserID
	}
	guestID := cl.guestID
	if f.GuestID != "" {
		guestID = f.GuestID
	}
	id := domain.Resolve(userID, guestID)
	if err := id.Validate(); err != nil {
		return orch.Actor{SID: cl.sid}, domain.Invalid("Identity is too long")
	}
	return orch.Actor{SID: cl.sid, Identity: id}, nil
}

// decode unmarshals the payload into p and resolves the actor from the
// identity hints embedded in it.
func (ctl *SignalWSController) decode(cl *client, op string, payload []byte, p any, hints *actorFields) (orch.Actor, bool) {
	if err := json.Unmarshal(payload, p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("type", op).Msg("bad payload")
		ctl.Orch.Fail(orch.Actor{SID: cl.sid}, op, domain.Invalid("Malformed payload"))
		return orch.Actor{}, false
	}
	a, err := ctl.actor(cl, *hints)
	if err != nil {
		ctl.Orch.Fail(a, op, err)
		return orch.Actor{}, false
	}
	return a, true
}

func (ctl *SignalWSController) handlePing(_ context.Context, cl *client, _ []byte) error {
	ctl.Orch.Pong(orch.Actor{SID: cl.sid})
	return nil
}
