package orch

import (
	"context"

	"github.com/dkeye/Jukebox/internal/core"
	"github.com/dkeye/Jukebox/internal/domain"
	"github.com/rs/zerolog/log"
)

// AddToQueue lets any member enqueue. An Idle room starts the track at once.
func (o *Orchestrator) AddToQueue(ctx context.Context, a Actor, roomID string, t domain.Track) error {
	id, _, err := o.memberOf(a, roomID)
	if err != nil {
		return o.fail(a, "add_to_queue", core.EvQueueFeedback, err)
	}
	room, started, err := o.Store.AppendToQueue(ctx, id, t, true)
	if err != nil {
		return o.fail(a, "add_to_queue", core.EvQueueFeedback, err)
	}
	log.Info().Str("module", "orch").Str("room", id).Str("track", t.ID).Bool("started", started).Msg("enqueued")
	o.emit(a.SID, id, core.EnqueueEvents(room, started)...)
	return nil
}

func (o *Orchestrator) RemoveFromQueue(ctx context.Context, a Actor, roomID, queueID string) error {
	id := domain.NormalizeRoomID(roomID)
	if queueID == "" {
		return o.fail(a, "remove_from_queue", "", domain.Invalid("Queue id is required"))
	}
	room, n, err := o.Store.RemoveFromQueue(ctx, id, core.MatchQueueEntry(queueID),
		core.RequireDJ(a.Identity, "remove songs from the queue"))
	if err != nil {
		return o.fail(a, "remove_from_queue", core.EvQueueFeedback, err)
	}
	if n == 0 {
		o.emit(a.SID, id, core.QueueFeedback(core.FeedbackError, "Song is not in the queue"))
		return nil
	}
	o.emit(a.SID, id, core.QueueEvent(room), core.QueueFeedback(core.FeedbackSuccess, "Removed from queue"))
	return nil
}

// ShuffleQueue permutes the queue. The permutation is computed from a read
// and installed only if the queue did not change in between.
func (o *Orchestrator) ShuffleQueue(ctx context.Context, a Actor, roomID string) error {
	id := domain.NormalizeRoomID(roomID)
	guard := core.RequireDJ(a.Identity, "shuffle the queue")
	room, err := o.Store.FindByRoomID(ctx, id)
	if err == nil {
		err = core.Check(room, guard)
	}
	if err != nil {
		return o.fail(a, "shuffle_queue", core.EvQueueFeedback, err)
	}
	if len(room.Queue) <= 1 {
		return nil
	}
	room, err = o.Store.ReplaceQueue(ctx, id, o.shuffle(room.Queue), guard)
	if err != nil {
		return o.fail(a, "shuffle_queue", core.EvQueueFeedback, err)
	}
	o.emit(a.SID, id, core.QueueEvent(room), core.QueueFeedback(core.FeedbackSuccess, "Queue shuffled"))
	return nil
}

// NextSong advances to the queue head, or goes Idle on an empty queue.
func (o *Orchestrator) NextSong(ctx context.Context, a Actor, roomID string) error {
	id := domain.NormalizeRoomID(roomID)
	room, err := o.Store.PopQueueHead(ctx, id, core.RequireDJ(a.Identity, "skip songs"))
	if err != nil {
		return o.fail(a, "next_song", "", err)
	}
	o.advanced(a.SID, id, room)
	return nil
}

func (o *Orchestrator) advanced(origin core.SessionID, roomID string, room *domain.Room) {
	song := ""
	if room.CurrentSong != nil {
		song = room.CurrentSong.ID
	}
	if live, ok := o.Rooms.Get(roomID); ok {
		live.ResetSkipVotes(song)
	}
	log.Info().Str("module", "orch").Str("room", roomID).Str("track", song).Int("queued", len(room.Queue)).Msg("advanced")
	o.emit(origin, roomID, core.AdvanceEvents(room)...)
}

// VoteSkip counts a member's vote; a strict majority of live members skips.
func (o *Orchestrator) VoteSkip(ctx context.Context, a Actor, roomID string) error {
	id, live, err := o.memberOf(a, roomID)
	if err != nil {
		return o.fail(a, "vote_skip", "", err)
	}
	room, err := o.Store.FindByRoomID(ctx, id)
	if err == nil {
		err = core.RequireCurrentSong(room)
	}
	if err != nil {
		return o.fail(a, "vote_skip", "", err)
	}
	o.settleSkip(ctx, a.SID, id, live.VoteSkip(a.SID, room.CurrentSong.ID))
	return nil
}

// settleSkip publishes a tally, or advances past the song it was cast
// against once it passed. A leaving member triggers a recount too, since
// that lowers the bar.
func (o *Orchestrator) settleSkip(ctx context.Context, origin core.SessionID, roomID string, t core.SkipTally) {
	if !t.Passed {
		if t.Votes > 0 {
			o.emit(origin, roomID, skipVotesEvent(t.Votes, t.Needed))
		}
		return
	}
	room, err := o.Store.PopQueueHead(ctx, roomID, core.RequireSong(t.SongID))
	if err != nil {
		// the song was already skipped or advanced by a DJ
		log.Warn().Err(err).Str("module", "orch").Str("room", roomID).Str("track", t.SongID).Msg("vote skip")
		return
	}
	o.advanced(origin, roomID, room)
	o.emit(origin, roomID, skipVotesEvent(0, t.Needed))
}

func skipVotesEvent(votes, needed int) core.Event {
	return core.Event{Scope: core.ToRoom, Type: core.EvSkipVotesUpdated, Payload: core.SkipVotesPayload{Votes: votes, Needed: needed}}
}

func (o *Orchestrator) Play(ctx context.Context, a Actor, roomID string, at float64) error {
	id := domain.NormalizeRoomID(roomID)
	playing := true
	room, err := o.Store.UpsertStateDelta(ctx, id, domain.StateDelta{IsPlaying: &playing, CurrentTime: &at},
		core.RequireDJ(a.Identity, "control playback"), core.RequireCurrentSong)
	if err != nil {
		return o.fail(a, "send_play", "", err)
	}
	o.emit(a.SID, id, core.Event{Scope: core.ToRoom, Type: core.EvPlay, Payload: core.TimePayload{Time: room.CurrentTime}})
	return nil
}

func (o *Orchestrator) Pause(ctx context.Context, a Actor, roomID string) error {
	id := domain.NormalizeRoomID(roomID)
	paused := false
	if _, err := o.Store.UpsertStateDelta(ctx, id, domain.StateDelta{IsPlaying: &paused},
		core.RequireDJ(a.Identity, "control playback"), core.RequireCurrentSong); err != nil {
		return o.fail(a, "send_pause", "", err)
	}
	o.emit(a.SID, id, core.Event{Scope: core.ToRoom, Type: core.EvPause})
	return nil
}

func (o *Orchestrator) Seek(ctx context.Context, a Actor, roomID string, at float64) error {
	id := domain.NormalizeRoomID(roomID)
	room, err := o.Store.UpsertStateDelta(ctx, id, domain.StateDelta{CurrentTime: &at},
		core.RequireDJ(a.Identity, "control playback"), core.RequireCurrentSong)
	if err != nil {
		return o.fail(a, "send_seek", "", err)
	}
	o.emit(a.SID, id, core.Event{Scope: core.ToRoom, Type: core.EvSeek, Payload: core.TimePayload{Time: room.CurrentTime}})
	return nil
}
