package domain

import (
	"errors"
	"testing"
	"time"
)

func newTestRoom() *Room {
	return NewRoom(RoomConfig{ID: "Jam", CreatorID: "u1"}, time.Unix(0, 0))
}

func TestNewRoomDefaults(t *testing.T) {
	private := false
	r := NewRoom(RoomConfig{ID: " Jam ", Tags: []string{"Rock", "rock", " ", "Jazz"}, IsPublic: &private}, time.Now())
	if r.ID != "jam" || r.Name != "jam" || r.IsPublic {
		t.Fatalf("unexpected room: %+v", r)
	}
	if len(r.Tags) != 2 || r.Tags[0] != "rock" || r.Tags[1] != "jazz" {
		t.Fatalf("tags not cleaned: %v", r.Tags)
	}
	if r.State() != Idle {
		t.Fatalf("new room must be idle, got %s", r.State())
	}
}

func TestNormalizeLegacyRecord(t *testing.T) {
	r := &Room{ID: "old", IsPlaying: true, SongRequests: []SongRequest{{ID: "r1"}}}
	r.Normalize()
	if r.IsPlaying {
		t.Fatal("isPlaying without a current song must be cleared")
	}
	if r.Queue == nil || r.Tags == nil || r.DJPermissions == nil {
		t.Fatalf("collections must default to empty: %+v", r)
	}
	if r.SongRequests[0].Status != RequestPending || r.Name != "old" {
		t.Fatalf("defaults not applied: %+v", r)
	}
}

func TestAdvance(t *testing.T) {
	r := newTestRoom()
	r.PushTrack(Track{ID: "a"})
	r.PushTrack(Track{ID: "b"})
	r.CurrentTime = 99

	if got := r.Advance(); got == nil || got.ID != "a" {
		t.Fatalf("advance returned %+v", got)
	}
	if r.State() != Playing || r.CurrentTime != 0 || len(r.Queue) != 1 {
		t.Fatalf("after first advance: %+v", r)
	}
	r.Advance()
	if got := r.Advance(); got != nil {
		t.Fatalf("advance on empty queue returned %+v", got)
	}
	if r.State() != Idle || r.IsPlaying {
		t.Fatalf("empty advance must go idle: %+v", r)
	}
}

func TestTransportRejectedWhileIdle(t *testing.T) {
	r := newTestRoom()
	for name, fn := range map[string]func() error{
		"play":  func() error { return r.Play(10) },
		"pause": r.Pause,
		"seek":  func() error { return r.Seek(10) },
	} {
		if err := fn(); !errors.Is(err, ErrNothingPlaying) {
			t.Fatalf("%s while idle: expected ErrNothingPlaying, got %v", name, err)
		}
	}
	if r.IsPlaying || r.CurrentTime != 0 {
		t.Fatalf("rejected transport must not mutate: %+v", r)
	}
}

func TestTransport(t *testing.T) {
	r := newTestRoom()
	r.PushTrack(Track{ID: "a"})
	r.Advance()

	if err := r.Pause(); err != nil || r.State() != Paused {
		t.Fatalf("pause: %v, state %s", err, r.State())
	}
	if err := r.Seek(-5); err != nil || r.CurrentTime != 0 {
		t.Fatalf("negative seek must clamp: %v, %v", err, r.CurrentTime)
	}
	if err := r.Play(30); err != nil || r.State() != Playing || r.CurrentTime != 30 {
		t.Fatalf("play: %v, %+v", err, r)
	}
	if len(r.Queue) != 0 || r.CurrentSong.ID != "a" {
		t.Fatal("transport must not touch queue or current song")
	}
}

func TestStateDeltaNeverPlaysWithoutSong(t *testing.T) {
	r := newTestRoom()
	playing := true
	StateDelta{IsPlaying: &playing}.Apply(r)
	if r.IsPlaying {
		t.Fatal("isPlaying=true requires a current song")
	}
}

func TestSetRequestStatus(t *testing.T) {
	r := newTestRoom()
	r.AppendRequest(SongRequest{ID: "r1", TrackID: "a", Status: RequestPending})

	if _, err := r.SetRequestStatus("missing", RequestAccepted); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
	got, err := r.SetRequestStatus("r1", RequestDeclined)
	if err != nil || got.Status != RequestDeclined {
		t.Fatalf("decline: %+v, %v", got, err)
	}
	if _, err := r.SetRequestStatus("r1", RequestAccepted); KindOf(err) != KindConflict {
		t.Fatalf("terminal status must not change, got %v", err)
	}
	if r.HasPendingRequest("a") {
		t.Fatal("declined request is not pending")
	}
}

func TestDJPermissions(t *testing.T) {
	r := newTestRoom()
	if !r.GrantDJ("g2") || r.GrantDJ("g2") {
		t.Fatal("grant must be idempotent")
	}
	if !r.RevokeDJ("g2") || r.RevokeDJ("g2") {
		t.Fatal("revoke must be idempotent")
	}
}

func TestBackfillCreator(t *testing.T) {
	r := &Room{ID: "legacy"}
	if r.BackfillCreator(Resolve("", "")) {
		t.Fatal("anonymous must not become creator")
	}
	if !r.BackfillCreator(Guest("g1")) || r.CreatorID != "g1" {
		t.Fatalf("backfill failed: %+v", r)
	}
	if r.BackfillCreator(Guest("g2")) || r.CreatorID != "g1" {
		t.Fatal("creator must never be replaced")
	}
}

func TestCloneIsDeep(t *testing.T) {
	r := newTestRoom()
	r.PushTrack(Track{ID: "a"})
	r.Advance()
	r.PushTrack(Track{ID: "b"})

	c := r.Clone()
	c.Queue[0].Title = "changed"
	c.CurrentSong.Title = "changed"
	if r.Queue[0].Title == "changed" || r.CurrentSong.Title == "changed" {
		t.Fatal("clone shares memory with the original")
	}
}
