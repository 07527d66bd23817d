package orch

import (
	"reflect"
	"slices"
	"sync"
	"testing"

	"github.com/dkeye/Jukebox/internal/app"
	"github.com/dkeye/Jukebox/internal/core"
	"github.com/dkeye/Jukebox/internal/domain"
)

// queuedJam has u1 as DJ and g1 as a listener, with a playing and b, c, d queued.
func queuedJam(t *testing.T) (*harness, Actor, *recorder, Actor, *recorder) {
	h := newHarness(t, app.TolerantPolicy{})
	dj, djRec := h.connect("c1", domain.Registered("u1"))
	g1, gRec := h.connect("c2", domain.Guest("g1"))
	h.join(dj, "jam", "DJ")
	h.join(g1, "jam", "Guest")
	for _, id := range []string{"a", "b", "c", "d"} {
		if err := h.orch.AddToQueue(h.ctx, dj, "jam", domain.Track{ID: id, Title: id}); err != nil {
			t.Fatal(err)
		}
	}
	return h, dj, djRec, g1, gRec
}

func trackIDs(q []domain.Track) []string {
	out := make([]string, len(q))
	for i, t := range q {
		out[i] = t.ID
	}
	return out
}

func TestDJActionsDeniedToListeners(t *testing.T) {
	h, _, djRec, g1, gRec := queuedJam(t)
	if err := h.orch.RequestSong(h.ctx, g1, RequestInput{RoomID: "jam", Song: domain.Track{ID: "r"}}); err != nil {
		t.Fatal(err)
	}
	r := h.room("jam")
	reqID, queueID := r.SongRequests[0].ID, r.Queue[0].QueueID

	cases := []struct {
		name string
		run  func() error
		msg  string
	}{
		{"next song", func() error { return h.orch.NextSong(h.ctx, g1, "jam") }, "Only DJs can skip songs"},
		{"shuffle", func() error { return h.orch.ShuffleQueue(h.ctx, g1, "jam") }, "Only DJs can shuffle the queue"},
		{"remove", func() error { return h.orch.RemoveFromQueue(h.ctx, g1, "jam", queueID) }, "Only DJs can remove songs from the queue"},
		{"seek", func() error { return h.orch.Seek(h.ctx, g1, "jam", 30) }, "Only DJs can control playback"},
		{"pause", func() error { return h.orch.Pause(h.ctx, g1, "jam") }, "Only DJs can control playback"},
		{"play", func() error { return h.orch.Play(h.ctx, g1, "jam", 5) }, "Only DJs can control playback"},
		{"accept", func() error { return h.orch.AcceptRequest(h.ctx, g1, "jam", reqID) }, "Only DJs can accept song requests"},
		{"decline", func() error { return h.orch.DeclineRequest(h.ctx, g1, "jam", reqID) }, "Only DJs can decline song requests"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := h.room("jam")
			djRec.reset()
			gRec.reset()

			if err := tc.run(); domain.KindOf(err) != domain.KindForbidden {
				t.Fatalf("expected forbidden, got %v", err)
			}
			if got := gRec.last(t, core.EvError).Get("message").String(); got != tc.msg {
				t.Fatalf("message = %q, want %q", got, tc.msg)
			}
			if gRec.count() != 1 {
				t.Fatalf("the denied listener gets the error only, got %d frames", gRec.count())
			}
			if djRec.count() != 0 {
				t.Fatalf("a denied action must not broadcast, dj got %d frames", djRec.count())
			}
			if after := h.room("jam"); !reflect.DeepEqual(before, after) {
				t.Fatalf("room changed:\nbefore %+v\nafter  %+v", before, after)
			}
		})
	}
}

func TestShuffleQueue(t *testing.T) {
	h, dj, djRec, _, gRec := queuedJam(t)
	before := h.room("jam")

	if err := h.orch.ShuffleQueue(h.ctx, dj, "jam"); err != nil {
		t.Fatal(err)
	}
	after := h.room("jam")
	if !core.SameTracks(before.Queue, after.Queue) {
		t.Fatalf("shuffle must permute the queue: %v -> %v", trackIDs(before.Queue), trackIDs(after.Queue))
	}
	if after.CurrentSong.ID != "a" {
		t.Fatal("shuffle must leave the current song alone")
	}
	if fb := djRec.last(t, core.EvQueueFeedback); fb.Get("type").String() != "success" || fb.Get("message").String() != "Queue shuffled" {
		t.Fatalf("feedback: %s", fb.Raw)
	}
	if n := len(gRec.last(t, core.EvUpdateQueue).Array()); n != 3 {
		t.Fatalf("listeners get the shuffled queue, got %d entries", n)
	}

	h.orch.shuffle = func(q []domain.Track) []domain.Track {
		out := slices.Clone(q)
		slices.Reverse(out)
		return out
	}
	want := trackIDs(after.Queue)
	slices.Reverse(want)
	if err := h.orch.ShuffleQueue(h.ctx, dj, "jam"); err != nil {
		t.Fatal(err)
	}
	if got := trackIDs(h.room("jam").Queue); !slices.Equal(got, want) {
		t.Fatalf("stored order %v, want %v", got, want)
	}
	var broadcast []string
	for _, e := range gRec.last(t, core.EvUpdateQueue).Array() {
		broadcast = append(broadcast, e.Get("id").String())
	}
	if !slices.Equal(broadcast, want) {
		t.Fatalf("broadcast order %v, want %v", broadcast, want)
	}
}

func TestShuffleShortQueueIsNoop(t *testing.T) {
	h := newHarness(t, app.TolerantPolicy{})
	dj, djRec := h.connect("c1", domain.Registered("u1"))
	h.join(dj, "jam", "")

	h.orch.shuffle = func([]domain.Track) []domain.Track {
		t.Fatal("nothing to shuffle")
		return nil
	}
	for _, id := range []string{"", "a", "b"} {
		if id != "" {
			if err := h.orch.AddToQueue(h.ctx, dj, "jam", domain.Track{ID: id}); err != nil {
				t.Fatal(err)
			}
		}
		// queue is empty, empty with a playing, then holds only b
		before := h.room("jam")
		djRec.reset()
		if err := h.orch.ShuffleQueue(h.ctx, dj, "jam"); err != nil {
			t.Fatal(err)
		}
		if djRec.count() != 0 {
			t.Fatalf("a no-op shuffle sends nothing, got %d frames", djRec.count())
		}
		if !reflect.DeepEqual(before, h.room("jam")) {
			t.Fatal("a no-op shuffle must not write")
		}
	}
}

func TestShuffleConflictsWithConcurrentEnqueue(t *testing.T) {
	h, dj, djRec, _, gRec := queuedJam(t)
	h.orch.shuffle = func(q []domain.Track) []domain.Track {
		// someone enqueues between the read and the write
		if _, _, err := h.store.AppendToQueue(h.ctx, "jam", domain.Track{ID: "e"}, true); err != nil {
			t.Fatal(err)
		}
		out := slices.Clone(q)
		slices.Reverse(out)
		return out
	}
	gRec.reset()

	if err := h.orch.ShuffleQueue(h.ctx, dj, "jam"); domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if fb := djRec.last(t, core.EvQueueFeedback); fb.Get("type").String() != "error" || fb.Get("message").String() != "The queue changed, try again" {
		t.Fatalf("feedback: %s", fb.Raw)
	}
	if got := trackIDs(h.room("jam").Queue); !slices.Equal(got, []string{"b", "c", "d", "e"}) {
		t.Fatalf("the concurrent enqueue must survive in order, got %v", got)
	}
	if len(gRec.payloads(core.EvUpdateQueue)) != 0 {
		t.Fatal("a failed shuffle must not broadcast")
	}
}

func TestRemoveFromQueueByQueueID(t *testing.T) {
	h, dj, djRec, _, gRec := queuedJam(t)
	r := h.room("jam")
	target := r.Queue[1]

	if err := h.orch.RemoveFromQueue(h.ctx, dj, "jam", target.QueueID); err != nil {
		t.Fatal(err)
	}
	if fb := djRec.last(t, core.EvQueueFeedback); fb.Get("type").String() != "success" || fb.Get("message").String() != "Removed from queue" {
		t.Fatalf("feedback: %s", fb.Raw)
	}
	r = h.room("jam")
	if got := trackIDs(r.Queue); !slices.Equal(got, []string{"b", "d"}) {
		t.Fatalf("queue after removal: %v", got)
	}
	if r.CurrentSong.ID != "a" {
		t.Fatal("removal must not touch the current song")
	}
	if n := len(gRec.last(t, core.EvUpdateQueue).Array()); n != 2 {
		t.Fatalf("listeners get the new queue, got %d entries", n)
	}

	for _, key := range []string{"no-such-entry", "a", target.QueueID} {
		gRec.reset()
		if err := h.orch.RemoveFromQueue(h.ctx, dj, "jam", key); err != nil {
			t.Fatal(err)
		}
		if fb := djRec.last(t, core.EvQueueFeedback); fb.Get("type").String() != "error" || fb.Get("message").String() != "Song is not in the queue" {
			t.Fatalf("remove %q: %s", key, fb.Raw)
		}
		if len(gRec.payloads(core.EvUpdateQueue)) != 0 {
			t.Fatalf("remove %q must not broadcast", key)
		}
	}
	if err := h.orch.RemoveFromQueue(h.ctx, dj, "jam", ""); domain.MessageOf(err) != "Queue id is required" {
		t.Fatalf("empty queue id: %v", err)
	}
	if len(h.room("jam").Queue) != 2 {
		t.Fatal("failed removals must not write")
	}
}

func TestConcurrentVoteSkipAdvancesOnce(t *testing.T) {
	h, dj, djRec, g1, _ := queuedJam(t)
	g2, _ := h.connect("c3", domain.Guest("g2"))
	g3, _ := h.connect("c4", domain.Guest("g3"))
	h.join(g2, "jam", "")
	h.join(g3, "jam", "")

	// 4 members need 3 votes; two standing, two racing
	for _, a := range []Actor{g1, g2} {
		if err := h.orch.VoteSkip(h.ctx, a, "jam"); err != nil {
			t.Fatal(err)
		}
	}
	djRec.reset()
	var wg sync.WaitGroup
	for _, a := range []Actor{dj, g3} {
		wg.Add(1)
		go func(a Actor) {
			defer wg.Done()
			if err := h.orch.VoteSkip(h.ctx, a, "jam"); err != nil {
				t.Error(err)
			}
		}(a)
	}
	wg.Wait()

	r := h.room("jam")
	if r.CurrentSong.ID != "b" || !slices.Equal(trackIDs(r.Queue), []string{"c", "d"}) {
		t.Fatalf("one passing tally skips one song: current=%s queue=%v", r.CurrentSong.ID, trackIDs(r.Queue))
	}
	if n := len(djRec.payloads(core.EvPlaySong)); n != 1 {
		t.Fatalf("expected one play_song, got %d", n)
	}
}
