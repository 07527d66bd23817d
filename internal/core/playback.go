package core

import (
	"math/rand/v2"

	"github.com/dkeye/Jukebox/internal/domain"
	"github.com/google/uuid"
)

// EnqueueTrack appends t to the queue. Duplicates are keyed on the media id
// against both the current song and the queue. When autoPlay is set and the
// room is Idle the new track is promoted at once; started reports that.
func EnqueueTrack(r *domain.Room, t domain.Track, autoPlay bool) (started bool, err error) {
	if t.ID == "" {
		return false, domain.Invalid("Song id is required")
	}
	if r.HasMedia(t.ID) {
		return false, domain.ErrDuplicateTrack
	}
	if t.QueueID == "" {
		t.QueueID = uuid.NewString()
	}
	r.PushTrack(t)
	if autoPlay && r.State() == domain.Idle {
		r.Advance()
		return true, nil
	}
	return false, nil
}

// ShuffleTracks returns a Fisher-Yates permutation of q. intn must return a
// uniform value in [0, n). q itself is left untouched.
func ShuffleTracks(q []domain.Track, intn func(n int) int) []domain.Track {
	out := append([]domain.Track(nil), q...)
	if len(out) <= 1 {
		return out
	}
	if intn == nil {
		intn = rand.IntN
	}
	for i := len(out) - 1; i > 0; i-- {
		j := intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Reorder replaces the queue only when order is a permutation of it, so a
// shuffle computed from a stale read never drops a concurrent enqueue.
func Reorder(r *domain.Room, order []domain.Track) error {
	if !SameTracks(r.Queue, order) {
		return domain.Conflict("The queue changed, try again")
	}
	r.ReplaceQueue(order)
	return nil
}

// SameTracks reports multiset equality of two queues.
func SameTracks(a, b []domain.Track) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, t := range a {
		counts[trackKey(t)]++
	}
	for _, t := range b {
		k := trackKey(t)
		if counts[k] == 0 {
			return false
		}
		counts[k]--
	}
	return true
}

func trackKey(t domain.Track) string {
	return t.ID + "\x00" + t.QueueID
}

// MatchQueueEntry builds the removal predicate for a queue id.
func MatchQueueEntry(key string) func(domain.Track) bool {
	return func(t domain.Track) bool { return t.Matches(key) }
}
