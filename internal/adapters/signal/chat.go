package signal

import (
	"context"

	"github.com/dkeye/Jukebox/internal/domain"
)

var errSlowDown = domain.Invalid("You are sending too fast, slow down")

func (ctl *SignalWSController) handleReaction(ctx context.Context, cl *client, payload []byte) error {
	var p struct {
		roomPayload
		Emoji string `json:"emoji"`
	}
	a, ok := ctl.decode(cl, "send_reaction", payload, &p, &p.actorFields)
	if !ok {
		return nil
	}
	if !ctl.reactions.Allow(cl.sid) {
		return ctl.Orch.Fail(a, "send_reaction", errSlowDown)
	}
	return ctl.Orch.Reaction(ctx, a, p.RoomID, p.Emoji)
}

func (ctl *SignalWSController) handleMessage(ctx context.Context, cl *client, payload []byte) error {
	var p struct {
		roomPayload
		Message string `json:"message"`
		Text    string `json:"text"`
	}
	a, ok := ctl.decode(cl, "send_message", payload, &p, &p.actorFields)
	if !ok {
		return nil
	}
	if !ctl.messages.Allow(cl.sid) {
		return ctl.Orch.Fail(a, "send_message", errSlowDown)
	}
	text := p.Message
	if text == "" {
		text = p.Text
	}
	return ctl.Orch.Message(ctx, a, p.RoomID, text)
}
