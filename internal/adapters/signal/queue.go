package signal

import (
	"context"

	"github.com/dkeye/Jukebox/internal/domain"
)

func (ctl *SignalWSController) handleAddToQueue(ctx context.Context, cl *client, payload []byte) error {
	var p struct {
		roomPayload
		Song domain.Track `json:"song"`
	}
	a, ok := ctl.decode(cl, "add_to_queue", payload, &p, &p.actorFields)
	if !ok {
		return nil
	}
	return ctl.Orch.AddToQueue(ctx, a, p.RoomID, p.Song)
}

func (ctl *SignalWSController) handleRemoveFromQueue(ctx context.Context, cl *client, payload []byte) error {
	var p struct {
		roomPayload
		QueueID string `json:"queueId"`
	}
	a, ok := ctl.decode(cl, "remove_from_queue", payload, &p, &p.actorFields)
	if !ok {
		return nil
	}
	return ctl.Orch.RemoveFromQueue(ctx, a, p.RoomID, p.QueueID)
}

func (ctl *SignalWSController) handleShuffle(ctx context.Context, cl *client, payload []byte) error {
	var p roomPayload
	a, ok := ctl.decode(cl, "shuffle_queue", payload, &p, &p.actorFields)
	if !ok {
		return nil
	}
	return ctl.Orch.ShuffleQueue(ctx, a, p.RoomID)
}

func (ctl *SignalWSController) handleNextSong(ctx context.Context, cl *client, payload []byte) error {
	var p roomPayload
	a, ok := ctl.decode(cl, "next_song", payload, &p, &p.actorFields)
	if !ok {
		return nil
	}
	return ctl.Orch.NextSong(ctx, a, p.RoomID)
}

func (ctl *SignalWSController) handleVoteSkip(ctx context.Context, cl *client, payload []byte) error {
	var p roomPayload
	a, ok := ctl.decode(cl, "vote_skip", payload, &p, &p.actorFields)
	if !ok {
		return nil
	}
	return ctl.Orch.VoteSkip(ctx, a, p.RoomID)
}

type transportPayload struct {
	roomPayload
	Time float64 `json:"time"`
}

func (ctl *SignalWSController) handlePlay(ctx context.Context, cl *client, payload []byte) error {
	var p transportPayload
	a, ok := ctl.decode(cl, "send_play", payload, &p, &p.actorFields)
	if !ok {
		return nil
	}
	return ctl.Orch.Play(ctx, a, p.RoomID, p.Time)
}

func (ctl *SignalWSController) handlePause(ctx context.Context, cl *client, payload []byte) error {
	var p roomPayload
	a, ok := ctl.decode(cl, "send_pause", payload, &p, &p.actorFields)
	if !ok {
		return nil
	}
	return ctl.Orch.Pause(ctx, a, p.RoomID)
}

func (ctl *SignalWSController) handleSeek(ctx context.Context, cl *client, payload []byte) error {
	var p transportPayload
	a, ok := ctl.decode(cl, "send_seek", payload, &p, &p.actorFields)
	if !ok {
		return nil
	}
	return ctl.Orch.Seek(ctx, a, p.RoomID, p.Time)
}
