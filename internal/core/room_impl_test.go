package core

import (
	"fmt"
	"sync"
	"testing"

	"github.com/dkeye/Jukebox/internal/domain"
)

type fakeSignal struct {
	mu     sync.Mutex
	frames []Frame
	full   bool
}

func (f *fakeSignal) TrySend(fr Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return ErrBackpressure
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeSignal) Close() {}

func (f *fakeSignal) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func TestRoomSessionMembership(t *testing.T) {
	room := NewRoomSession("jam")
	// one identity, two tabs
	a := NewMemberSession("c1", &fakeSignal{}, domain.Guest("g1"))
	b := NewMemberSession("c2", &fakeSignal{}, domain.Guest("g1"))
	room.AddMember(a)
	room.AddMember(b)

	if room.MemberCount() != 2 || len(room.MembersSnapshot()) != 2 {
		t.Fatalf("expected two live members, got %d", room.MemberCount())
	}
	if !room.HasIdentity(domain.Guest("g1")) || room.HasIdentity(domain.Resolve("", "")) {
		t.Fatal("identity lookup broken")
	}

	left := room.RemoveMember("c1")
	if len(left) != 1 || left[0].ConnectionID != "c2" {
		t.Fatalf("remaining: %+v", left)
	}
	if !room.HasIdentity(domain.Guest("g1")) {
		t.Fatal("second tab still holds the identity")
	}
}

func TestRoomSessionBroadcast(t *testing.T) {
	room := NewRoomSession("jam")
	ok := &fakeSignal{}
	slow := &fakeSignal{full: true}
	room.AddMember(NewMemberSession("c1", ok, domain.Guest("g1")))
	room.AddMember(NewMemberSession("c2", slow, domain.Guest("g2")))
	room.AddMember(NewMemberSession("c3", &fakeSignal{}, domain.Guest("g3")))

	res := room.Broadcast("c3", Frame(`{}`))
	if res.SendTo != 1 || len(res.Dropped) != 1 || res.Dropped[0].ID() != "c2" {
		t.Fatalf("unexpected result: sent=%d dropped=%d", res.SendTo, len(res.Dropped))
	}
	if ok.count() != 1 {
		t.Fatal("frame not delivered")
	}
}

func TestSkipVotes(t *testing.T) {
	room := NewRoomSession("jam")
	for _, sid := range []SessionID{"c1", "c2", "c3"} {
		room.AddMember(NewMemberSession(sid, &fakeSignal{}, domain.Guest(string(sid))))
	}

	if tl := room.VoteSkip("c1", "a"); tl.Votes != 1 || tl.Needed != 2 || tl.Passed {
		t.Fatalf("first vote: %+v", tl)
	}
	if tl := room.VoteSkip("c1", "a"); tl.Votes != 1 {
		t.Fatalf("a connection votes once: %+v", tl)
	}
	if tl := room.VoteSkip("stranger", "a"); tl.Votes != 1 {
		t.Fatalf("non-members cannot vote: %+v", tl)
	}
	if tl := room.VoteSkip("c2", "b"); tl.Votes != 1 || tl.SongID != "b" {
		t.Fatalf("a vote for another song starts over: %+v", tl)
	}
	room.RemoveMember("c2")
	if tl := room.RecountSkip(); tl.Votes != 0 || tl.Needed != 2 {
		t.Fatalf("votes of departed members are dropped: %+v", tl)
	}

	room.VoteSkip("c1", "b")
	room.ResetSkipVotes("b")
	if tl := room.RecountSkip(); tl.Votes != 1 {
		t.Fatalf("votes for the new current song survive: %+v", tl)
	}
	room.ResetSkipVotes("c")
	if tl := room.RecountSkip(); tl.Votes != 0 || tl.SongID != "" {
		t.Fatalf("reset: %+v", tl)
	}
}

func TestSkipPassesOnceAndClears(t *testing.T) {
	room := NewRoomSession("jam")
	for _, sid := range []SessionID{"c1", "c2", "c3"} {
		room.AddMember(NewMemberSession(sid, &fakeSignal{}, domain.Guest(string(sid))))
	}
	room.VoteSkip("c1", "a")
	tl := room.VoteSkip("c2", "a")
	if !tl.Passed || tl.Votes != 2 || tl.SongID != "a" {
		t.Fatalf("majority: %+v", tl)
	}
	if again := room.RecountSkip(); again.Passed || again.Votes != 0 {
		t.Fatalf("a passed tally is cleared: %+v", again)
	}

	// a departure can carry a standing tally over the bar
	room.VoteSkip("c1", "b")
	room.RemoveMember("c3")
	if tl := room.RecountSkip(); tl.Passed {
		t.Fatalf("1 of 2 is not a majority: %+v", tl)
	}
	room.RemoveMember("c2")
	if tl := room.RecountSkip(); !tl.Passed || tl.SongID != "b" {
		t.Fatalf("1 of 1 is: %+v", tl)
	}
}

func TestConcurrentSkipVotesPassOnce(t *testing.T) {
	room := NewRoomSession("jam")
	for i := range 8 {
		sid := SessionID(fmt.Sprintf("c%d", i))
		room.AddMember(NewMemberSession(sid, &fakeSignal{}, domain.Guest(string(sid))))
	}
	// 4 standing votes, one short of the 5 needed; 4 more race in
	for i := range 4 {
		room.VoteSkip(SessionID(fmt.Sprintf("c%d", i)), "a")
	}
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		passed int
	)
	for i := 4; i < 8; i++ {
		wg.Add(1)
		go func(sid SessionID) {
			defer wg.Done()
			if room.VoteSkip(sid, "a").Passed {
				mu.Lock()
				passed++
				mu.Unlock()
			}
		}(SessionID(fmt.Sprintf("c%d", i)))
	}
	wg.Wait()
	if passed != 1 {
		t.Fatalf("exactly one voter must see the skip pass, got %d", passed)
	}
}

func TestSkipThreshold(t *testing.T) {
	for members, want := range map[int]int{1: 1, 2: 2, 3: 2, 4: 3, 5: 3} {
		if got := SkipThreshold(members); got != want {
			t.Errorf("SkipThreshold(%d) = %d, want %d", members, got, want)
		}
	}
}
