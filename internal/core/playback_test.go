package core

import (
	"testing"
	"time"

	"github.com/dkeye/Jukebox/internal/domain"
)

func idleRoom() *domain.Room {
	return domain.NewRoom(domain.RoomConfig{ID: "jam", CreatorID: "u1"}, time.Now())
}

func TestEnqueueScenario(t *testing.T) {
	r := idleRoom()

	started, err := EnqueueTrack(r, domain.Track{ID: "a"}, true)
	if err != nil || !started {
		t.Fatalf("enqueue a: started=%v err=%v", started, err)
	}
	if r.State() != domain.Playing || r.CurrentSong.ID != "a" || r.CurrentTime != 0 || len(r.Queue) != 0 {
		t.Fatalf("expected Playing(a) with empty queue: %+v", r)
	}

	started, err = EnqueueTrack(r, domain.Track{ID: "b"}, true)
	if err != nil || started {
		t.Fatalf("enqueue b: started=%v err=%v", started, err)
	}
	if r.CurrentSong.ID != "a" || len(r.Queue) != 1 || r.Queue[0].ID != "b" {
		t.Fatalf("expected Playing(a) queue=[b]: %+v", r)
	}

	r.Advance()
	if r.CurrentSong.ID != "b" || len(r.Queue) != 0 || !r.IsPlaying {
		t.Fatalf("expected Playing(b) queue=[]: %+v", r)
	}
}

func TestEnqueueRejectsDuplicateMedia(t *testing.T) {
	r := idleRoom()
	if _, err := EnqueueTrack(r, domain.Track{ID: "a"}, true); err != nil {
		t.Fatal(err)
	}
	if _, err := EnqueueTrack(r, domain.Track{ID: "b"}, true); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"a", "b"} {
		// a different queue id does not make it a different song
		_, err := EnqueueTrack(r, domain.Track{ID: id, QueueID: "fresh"}, true)
		if err != domain.ErrDuplicateTrack {
			t.Fatalf("duplicate %s: got %v", id, err)
		}
	}
	if len(r.Queue) != 1 {
		t.Fatalf("rejected enqueue mutated the queue: %+v", r.Queue)
	}
	if _, err := EnqueueTrack(r, domain.Track{}, true); domain.KindOf(err) != domain.KindInvalid {
		t.Fatalf("missing id: %v", err)
	}
}

func TestShuffleTracks(t *testing.T) {
	if got := ShuffleTracks(nil, nil); len(got) != 0 {
		t.Fatalf("empty: %v", got)
	}
	one := []domain.Track{{ID: "a"}}
	if got := ShuffleTracks(one, func(int) int { t.Fatal("no randomness for one track"); return 0 }); got[0].ID != "a" {
		t.Fatalf("single: %v", got)
	}

	q := []domain.Track{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	for i := 0; i < 50; i++ {
		got := ShuffleTracks(q, nil)
		if !SameTracks(q, got) {
			t.Fatalf("not a permutation: %v", got)
		}
	}
	if q[0].ID != "a" || q[3].ID != "d" {
		t.Fatal("input must not be modified")
	}

	// always picking 0 rotates deterministically
	got := ShuffleTracks(q, func(int) int { return 0 })
	if got[0].ID != "b" || got[3].ID != "a" {
		t.Fatalf("fisher-yates with j=0: %v", got)
	}
}

func TestReorder(t *testing.T) {
	r := idleRoom()
	r.Queue = []domain.Track{{ID: "a", QueueID: "1"}, {ID: "b", QueueID: "2"}}

	if err := Reorder(r, []domain.Track{r.Queue[1], r.Queue[0]}); err != nil {
		t.Fatal(err)
	}
	if r.Queue[0].ID != "b" {
		t.Fatalf("not reordered: %v", r.Queue)
	}
	stale := []domain.Track{{ID: "a", QueueID: "1"}}
	if err := Reorder(r, stale); domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("stale order: %v", err)
	}
}

func TestMatchQueueEntry(t *testing.T) {
	match := MatchQueueEntry("q1")
	if !match(domain.Track{ID: "a", QueueID: "q1"}) || match(domain.Track{ID: "a", QueueID: "q2"}) {
		t.Fatal("queue id matching broken")
	}
	if !MatchQueueEntry("a")(domain.Track{ID: "a"}) {
		t.Fatal("entries without queue id match by media id")
	}
}
