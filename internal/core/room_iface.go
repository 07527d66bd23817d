package core

import "github.com/dkeye/Jukebox/internal/domain"

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// RoomSession is the live, process-local side of a room: who is connected
// right now and their skip votes. It never touches durable state or closes
// transport resources.
type RoomSession interface {
	RoomID() string
	MemberCount() int
	MembersSnapshot() []domain.LiveMember
	HasMember(sid SessionID) bool
	HasIdentity(id domain.Identity) bool

	AddMember(ms MemberSession)
	// RemoveMember returns the members left after removal.
	RemoveMember(sid SessionID) []domain.LiveMember
	Broadcast(from SessionID, data Frame) PublishResult

	// VoteSkip records sid's vote against songID and returns the tally.
	// A vote for another song than the tally's starts a fresh tally.
	VoteSkip(sid SessionID, songID string) SkipTally
	// RecountSkip re-evaluates the tally against the current member count.
	RecountSkip() SkipTally
	// ResetSkipVotes drops votes cast against any song other than songID.
	ResetSkipVotes(songID string)
}

// SkipTally is the outcome of a vote or recount. Passed is reported to
// exactly one caller per tally; the votes are cleared in the same step.
type SkipTally struct {
	Votes  int
	Needed int
	SongID string
	Passed bool
}

// SkipThreshold is a strict majority of members.
func SkipThreshold(members int) int {
	return members/2 + 1
}

type RoomInfo struct {
	RoomID      string `json:"roomId"`
	MemberCount int    `json:"listeners"`
}
