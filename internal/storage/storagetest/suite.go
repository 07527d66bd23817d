// Package storagetest holds the behaviour suite every storage backend must
// pass.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Jukebox/internal/core"
	"github.com/dkeye/Jukebox/internal/domain"
	"github.com/dkeye/Jukebox/internal/storage"
)

// Run executes the suite, building a fresh backend per subtest.
func Run(t *testing.T, newBackend func(t *testing.T) storage.Backend) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s *storage.Store, b storage.Backend)
	}{
		{"CreateAndFind", testCreateAndFind},
		{"DuplicateRoomID", testDuplicateRoomID},
		{"Timestamps", testTimestamps},
		{"LegacyExactCaseFallback", testLegacyFallback},
		{"FindOrCreate", testFindOrCreate},
		{"EnqueueOnIdleAutoAdvances", testEnqueueIdle},
		{"EnqueueDuplicateRejected", testEnqueueDuplicate},
		{"PopQueueHead", testPopQueueHead},
		{"RemoveFromQueueKeepsCurrent", testRemoveFromQueue},
		{"ReplaceQueueRequiresPermutation", testReplaceQueue},
		{"SongRequests", testSongRequests},
		{"GuardDenialWritesNothing", testGuardDenial},
		{"StateDeltaDisjointFields", testStateDelta},
		{"ConcurrentPopsNeverRepeat", testConcurrentPops},
		{"DeleteAndList", testDeleteAndList},
		{"ResetPlayback", testResetPlayback},
		{"LegacyAliasAfterStartup", testLegacyAlias},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newBackend(t)
			t.Cleanup(func() { _ = b.Close() })
			tc.fn(t, storage.New(b), b)
		})
	}
}

var (
	trackA = domain.Track{ID: "a", Title: "Song A", Duration: 180}
	trackB = domain.Track{ID: "b", Title: "Song B", Duration: 200}
	trackC = domain.Track{ID: "c", Title: "Song C", Duration: 210}
	owner  = domain.Guest("g-owner")
)

func mustCreate(t *testing.T, s *storage.Store, id string) *domain.Room {
	t.Helper()
	r, err := s.Create(context.Background(), domain.RoomConfig{ID: id, CreatorID: owner.String()})
	if err != nil {
		t.Fatalf("create %q: %v", id, err)
	}
	return r
}

func mustEnqueue(t *testing.T, s *storage.Store, id string, tracks ...domain.Track) *domain.Room {
	t.Helper()
	var r *domain.Room
	for _, tr := range tracks {
		var err error
		r, _, err = s.AppendToQueue(context.Background(), id, tr, false)
		if err != nil {
			t.Fatalf("enqueue %s: %v", tr.ID, err)
		}
	}
	return r
}

func testCreateAndFind(t *testing.T, s *storage.Store, _ storage.Backend) {
	mustCreate(t, s, "  Jam ")
	r, err := s.FindByRoomID(context.Background(), "JAM")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if r.ID != "jam" || r.Name != "jam" || !r.IsPublic {
		t.Fatalf("unexpected room: %+v", r)
	}
	if r.Queue == nil || r.SongRequests == nil || r.DJPermissions == nil || r.Tags == nil {
		t.Fatalf("collections must default to empty: %+v", r)
	}
	if _, err := s.FindByRoomID(context.Background(), "nope"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func testTimestamps(t *testing.T, s *storage.Store, _ storage.Backend) {
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.WithClock(func() time.Time { return created })
	mustCreate(t, s, "jam")

	updated := created.Add(time.Minute)
	s.WithClock(func() time.Time { return updated })
	if _, _, err := s.AppendToQueue(ctx, "jam", trackA, false); err != nil {
		t.Fatalf("append: %v", err)
	}
	r, err := s.FindByRoomID(ctx, "jam")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !r.CreatedAt.Equal(created) || !r.UpdatedAt.Equal(updated) {
		t.Fatalf("timestamps: created=%v updated=%v", r.CreatedAt, r.UpdatedAt)
	}
}

func testDuplicateRoomID(t *testing.T, s *storage.Store, _ storage.Backend) {
	mustCreate(t, s, "jam")
	_, err := s.Create(context.Background(), domain.RoomConfig{ID: "JAM"})
	if !errors.Is(err, domain.ErrDuplicateRoomID) {
		t.Fatalf("expected ErrDuplicateRoomID, got %v", err)
	}
	if domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("duplicate room id must be a conflict, got %v", domain.KindOf(err))
	}
}

func testLegacyFallback(t *testing.T, s *storage.Store, b storage.Backend) {
	ctx := context.Background()
	legacy := &domain.Room{ID: "OldRoom", Name: "Old", IsPublic: true}
	if err := b.Insert(ctx, legacy); err != nil {
		t.Fatalf("insert legacy: %v", err)
	}
	r, err := s.FindByRoomID(ctx, "OldRoom")
	if err != nil {
		t.Fatalf("legacy lookup: %v", err)
	}
	if r.Queue == nil || r.SongRequests == nil {
		t.Fatalf("legacy record must be normalised on read: %+v", r)
	}
	if _, _, err := s.AppendToQueue(ctx, "OldRoom", trackA, true); err != nil {
		t.Fatalf("mutate legacy: %v", err)
	}
	if _, err := s.Create(ctx, domain.RoomConfig{ID: "OldRoom"}); !errors.Is(err, domain.ErrDuplicateRoomID) {
		t.Fatalf("expected duplicate for legacy id, got %v", err)
	}
}

func testFindOrCreate(t *testing.T, s *storage.Store, _ storage.Backend) {
	ctx := context.Background()
	r, created, err := s.FindOrCreate(ctx, "Party", domain.RoomConfig{CreatorID: "u1"})
	if err != nil || !created {
		t.Fatalf("first call: created=%v err=%v", created, err)
	}
	if r.ID != "party" || r.CreatorID != "u1" {
		t.Fatalf("unexpected room: %+v", r)
	}
	r, created, err = s.FindOrCreate(ctx, "party", domain.RoomConfig{CreatorID: "u2"})
	if err != nil || created {
		t.Fatalf("second call: created=%v err=%v", created, err)
	}
	if r.CreatorID != "u1" {
		t.Fatalf("creator must not change, got %q", r.CreatorID)
	}
}

func testEnqueueIdle(t *testing.T, s *storage.Store, _ storage.Backend) {
	ctx := context.Background()
	mustCreate(t, s, "jam")
	r, started, err := s.AppendToQueue(ctx, "jam", trackA, true)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !started || r.CurrentSong == nil || r.CurrentSong.ID != "a" || !r.IsPlaying || r.CurrentTime != 0 || len(r.Queue) != 0 {
		t.Fatalf("idle enqueue must start playing: started=%v room=%+v", started, r)
	}
	r, started, err = s.AppendToQueue(ctx, "jam", trackB, true)
	if err != nil {
		t.Fatalf("enqueue b: %v", err)
	}
	if started || r.CurrentSong.ID != "a" || len(r.Queue) != 1 || r.Queue[0].ID != "b" {
		t.Fatalf("enqueue while playing must only append: %+v", r)
	}
	if r.Queue[0].QueueID == "" {
		t.Fatal("queued track must get a queue id")
	}
}

func testEnqueueDuplicate(t *testing.T, s *storage.Store, _ storage.Backend) {
	ctx := context.Background()
	mustCreate(t, s, "jam")
	if _, _, err := s.AppendToQueue(ctx, "jam", trackA, true); err != nil {
		t.Fatal(err)
	}
	mustEnqueue(t, s, "jam", trackB)
	before, _ := s.FindByRoomID(ctx, "jam")

	for _, dup := range []domain.Track{trackA, trackB} {
		_, _, err := s.AppendToQueue(ctx, "jam", dup, true)
		if domain.KindOf(err) != domain.KindConflict {
			t.Fatalf("duplicate %s: expected conflict, got %v", dup.ID, err)
		}
	}
	after, _ := s.FindByRoomID(ctx, "jam")
	if len(after.Queue) != len(before.Queue) || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("rejected enqueue must not write: before=%+v after=%+v", before, after)
	}
}

func testPopQueueHead(t *testing.T, s *storage.Store, _ storage.Backend) {
	ctx := context.Background()
	mustCreate(t, s, "jam")
	mustEnqueue(t, s, "jam", trackA, trackB)

	r, err := s.PopQueueHead(ctx, "jam")
	if err != nil {
		t.Fatal(err)
	}
	if r.CurrentSong == nil || r.CurrentSong.ID != "a" || !r.IsPlaying || len(r.Queue) != 1 {
		t.Fatalf("pop: %+v", r)
	}
	if _, err := s.PopQueueHead(ctx, "jam"); err != nil {
		t.Fatal(err)
	}
	r, err = s.PopQueueHead(ctx, "jam")
	if err != nil {
		t.Fatal(err)
	}
	if r.CurrentSong != nil || r.IsPlaying || r.State() != domain.Idle {
		t.Fatalf("pop on empty queue must go idle: %+v", r)
	}
}

func testRemoveFromQueue(t *testing.T, s *storage.Store, _ storage.Backend) {
	ctx := context.Background()
	mustCreate(t, s, "jam")
	if _, _, err := s.AppendToQueue(ctx, "jam", trackA, true); err != nil {
		t.Fatal(err)
	}
	r := mustEnqueue(t, s, "jam", trackB, trackC)

	r, n, err := s.RemoveFromQueue(ctx, "jam", core.MatchQueueEntry("a"))
	if err != nil || n != 0 || r.CurrentSong.ID != "a" {
		t.Fatalf("removing the current song id must not touch it: n=%d err=%v room=%+v", n, err, r)
	}
	r, n, err = s.RemoveFromQueue(ctx, "jam", core.MatchQueueEntry(r.Queue[0].QueueID))
	if err != nil || n != 1 || len(r.Queue) != 1 || r.Queue[0].ID != "c" {
		t.Fatalf("remove by queue id: n=%d err=%v room=%+v", n, err, r)
	}
}

func testReplaceQueue(t *testing.T, s *storage.Store, _ storage.Backend) {
	ctx := context.Background()
	mustCreate(t, s, "jam")
	r := mustEnqueue(t, s, "jam", trackA, trackB, trackC)

	reversed := []domain.Track{r.Queue[2], r.Queue[1], r.Queue[0]}
	r, err := s.ReplaceQueue(ctx, "jam", reversed)
	if err != nil {
		t.Fatal(err)
	}
	if r.Queue[0].ID != "c" || r.Queue[2].ID != "a" {
		t.Fatalf("replace: %+v", r.Queue)
	}
	if _, err := s.ReplaceQueue(ctx, "jam", reversed[:2]); domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("stale order must conflict, got %v", err)
	}
}

func testSongRequests(t *testing.T, s *storage.Store, _ storage.Backend) {
	ctx := context.Background()
	mustCreate(t, s, "jam")
	who := core.Requester{Identity: domain.Guest("g2"), DisplayName: "Guest", Color: "#fff"}
	req := core.NewSongRequest(trackA, who, time.Now())

	r, err := s.AppendSongRequest(ctx, "jam", req)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.SongRequests) != 1 || r.SongRequests[0].Status != domain.RequestPending {
		t.Fatalf("submit: %+v", r.SongRequests)
	}
	if _, err := s.AppendSongRequest(ctx, "jam", core.NewSongRequest(trackA, who, time.Now())); domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("second pending request must conflict, got %v", err)
	}

	r, got, err := s.SetSongRequestStatus(ctx, "jam", req.ID, domain.RequestAccepted)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.RequestAccepted || len(r.Queue) != 1 || r.Queue[0].ID != "a" {
		t.Fatalf("accept: req=%+v queue=%+v", got, r.Queue)
	}
	if r.CurrentSong != nil {
		t.Fatal("accept must not auto-advance an idle room")
	}
	if _, _, err := s.SetSongRequestStatus(ctx, "jam", req.ID, domain.RequestDeclined); domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("resolving twice must conflict, got %v", err)
	}
	if _, _, err := s.SetSongRequestStatus(ctx, "jam", "missing", domain.RequestDeclined); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}

	reqB := core.NewSongRequest(trackB, who, time.Now())
	if _, err := s.AppendSongRequest(ctx, "jam", reqB); err != nil {
		t.Fatal(err)
	}
	r, got, err = s.SetSongRequestStatus(ctx, "jam", reqB.ID, domain.RequestDeclined)
	if err != nil || got.Status != domain.RequestDeclined || len(r.Queue) != 1 || len(r.SongRequests) != 2 {
		t.Fatalf("decline: err=%v req=%+v room=%+v", err, got, r)
	}
}

func testGuardDenial(t *testing.T, s *storage.Store, _ storage.Backend) {
	ctx := context.Background()
	mustCreate(t, s, "jam")
	r := mustEnqueue(t, s, "jam", trackA, trackB)
	stranger := domain.Guest("g-stranger")

	if _, err := s.PopQueueHead(ctx, "jam", core.RequireDJ(stranger, "skip songs")); domain.KindOf(err) != domain.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	after, _ := s.FindByRoomID(ctx, "jam")
	if after.CurrentSong != nil || len(after.Queue) != 2 || !after.UpdatedAt.Equal(r.UpdatedAt) {
		t.Fatalf("denied action must not mutate: %+v", after)
	}
	if err := s.Delete(ctx, "jam", core.RequireCreator(stranger, "delete this room")); domain.KindOf(err) != domain.KindForbidden {
		t.Fatalf("expected forbidden delete, got %v", err)
	}
	if _, err := s.PopQueueHead(ctx, "jam", core.RequireDJ(owner, "skip songs")); err != nil {
		t.Fatalf("creator must pass: %v", err)
	}
}

func testStateDelta(t *testing.T, s *storage.Store, _ storage.Backend) {
	ctx := context.Background()
	mustCreate(t, s, "jam")
	if _, _, err := s.AppendToQueue(ctx, "jam", trackA, true); err != nil {
		t.Fatal(err)
	}
	at := 42.5
	name := "Friday Jam"
	if _, err := s.UpsertStateDelta(ctx, "jam", domain.StateDelta{CurrentTime: &at}); err != nil {
		t.Fatal(err)
	}
	r, err := s.UpsertStateDelta(ctx, "jam", domain.StateDelta{Name: &name})
	if err != nil {
		t.Fatal(err)
	}
	if r.CurrentTime != 42.5 || r.Name != name || !r.IsPlaying {
		t.Fatalf("disjoint deltas must both survive: %+v", r)
	}
	if _, err := s.UpsertStateDelta(ctx, "nope", domain.StateDelta{Name: &name}); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func testConcurrentPops(t *testing.T, s *storage.Store, _ storage.Backend) {
	ctx := context.Background()
	mustCreate(t, s, "jam")
	tracks := []domain.Track{trackA, trackB, trackC, {ID: "d"}, {ID: "e"}}
	mustEnqueue(t, s, "jam", tracks...)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]int{}
	)
	for range tracks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := s.PopQueueHead(ctx, "jam")
			if err != nil {
				t.Errorf("pop: %v", err)
				return
			}
			mu.Lock()
			seen[r.CurrentSong.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != len(tracks) {
		t.Fatalf("every pop must promote a distinct track, got %v", seen)
	}
}

func testDeleteAndList(t *testing.T, s *storage.Store, _ storage.Backend) {
	ctx := context.Background()
	mustCreate(t, s, "one")
	mustCreate(t, s, "two")
	rooms, err := s.List(ctx)
	if err != nil || len(rooms) != 2 {
		t.Fatalf("list: %d rooms, err=%v", len(rooms), err)
	}
	if err := s.Delete(ctx, "ONE", core.RequireCreator(owner, "delete this room")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "one"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("second delete: %v", err)
	}
	rooms, _ = s.List(ctx)
	if len(rooms) != 1 || rooms[0].ID != "two" {
		t.Fatalf("after delete: %+v", rooms)
	}
}

func testResetPlayback(t *testing.T, s *storage.Store, _ storage.Backend) {
	ctx := context.Background()
	mustCreate(t, s, "jam")
	mustCreate(t, s, "quiet")
	if _, _, err := s.AppendToQueue(ctx, "jam", trackA, true); err != nil {
		t.Fatal(err)
	}
	rooms, err := s.ResetPlayback(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}
	r, _ := s.FindByRoomID(ctx, "jam")
	if r.IsPlaying || r.CurrentSong == nil {
		t.Fatalf("reset must pause but keep the current song: %+v", r)
	}
}

func testLegacyAlias(t *testing.T, s *storage.Store, b storage.Backend) {
	ctx := context.Background()
	if err := b.Insert(ctx, &domain.Room{ID: "OldRoom", Name: "Old", CreatorID: "u1"}); err != nil {
		t.Fatalf("insert legacy: %v", err)
	}
	if _, err := s.ResetPlayback(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	for _, id := range []string{"oldroom", "OLDROOM", " OldRoom "} {
		r, err := s.FindByRoomID(ctx, id)
		if err != nil {
			t.Fatalf("lookup %q: %v", id, err)
		}
		if r.ID != "OldRoom" || r.CreatorID != "u1" {
			t.Fatalf("lookup %q reached %+v", id, r)
		}
	}
	if _, _, err := s.AppendToQueue(ctx, "oldroom", trackA, true); err != nil {
		t.Fatalf("mutate through normalised id: %v", err)
	}
	if _, err := s.Create(ctx, domain.RoomConfig{ID: "oldroom"}); !errors.Is(err, domain.ErrDuplicateRoomID) {
		t.Fatalf("expected duplicate for aliased id, got %v", err)
	}
	r, created, err := s.FindOrCreate(ctx, "oldroom", domain.RoomConfig{CreatorID: "u2"})
	if err != nil || created || r.CreatorID != "u1" {
		t.Fatalf("find-or-create must reuse the legacy room: created=%v room=%+v err=%v", created, r, err)
	}
	rooms, _ := s.List(ctx)
	if len(rooms) != 1 {
		t.Fatalf("expected the legacy room only, got %d rooms", len(rooms))
	}

	if err := s.Delete(ctx, "oldroom"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.FindByRoomID(ctx, "oldroom"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("deleted legacy room still reachable: %v", err)
	}
	if _, err := s.Create(ctx, domain.RoomConfig{ID: "oldroom"}); err != nil {
		t.Fatalf("id must be free after delete: %v", err)
	}
}
