package core

import (
	"encoding/json"
	"sort"

	"github.com/dkeye/Jukebox/internal/domain"
)

// Scope tells the fan-out who receives an event.
type Scope uint8

const (
	ToOrigin Scope = iota
	ToRoom
	ToAll
)

func (s Scope) String() string {
	switch s {
	case ToRoom:
		return "room"
	case ToAll:
		return "all"
	default:
		return "origin"
	}
}

// Outbound event names.
const (
	EvUpdateActiveRooms    = "update_active_rooms"
	EvRoomCreated          = "room_created"
	EvRoomDeleted          = "room_deleted"
	EvRoomState            = "receive_room_state"
	EvUpdateListeners      = "update_listeners"
	EvUpdateQueue          = "update_queue"
	EvPlaySong             = "receive_play_song"
	EvPlay                 = "receive_play"
	EvPause                = "receive_pause"
	EvSeek                 = "receive_seek"
	EvReaction             = "receive_reaction"
	EvMessage              = "receive_message"
	EvQueueFeedback        = "queue_feedback"
	EvRequestFeedback      = "request_feedback"
	EvSongRequestsUpdated  = "song_requests_updated"
	EvDJPermissionsUpdated = "dj_permissions_updated"
	EvDJWentLive           = "dj_went_live"
	EvSkipVotesUpdated     = "skip_votes_updated"
	EvError                = "error"
	EvSuccess              = "success"
	EvPong                 = "pong"
)

const (
	FeedbackSuccess = "success"
	FeedbackError   = "error"
)

type Event struct {
	Scope   Scope
	Type    string
	Payload any
}

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Encode renders the wire envelope {"type", "payload"}.
func (e Event) Encode() (Frame, error) {
	return json.Marshal(envelope{Type: e.Type, Payload: e.Payload})
}

type Feedback struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Notice struct {
	Message string `json:"message"`
}

type TimePayload struct {
	Time float64 `json:"time"`
}

type PlaySongPayload struct {
	Track domain.Track `json:"track"`
}

type ReactionPayload struct {
	ID    string `json:"id"`
	Emoji string `json:"emoji"`
}

type MessagePayload struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	UserName  string `json:"userName"`
	UserColor string `json:"userColor"`
	UserID    string `json:"userId,omitempty"`
	SentAt    int64  `json:"sentAt"`
}

type RoomCreatedPayload struct {
	RoomID string `json:"roomId"`
}

type RoomDeletedPayload struct {
	RoomID string `json:"roomId"`
}

type SongRequestsPayload struct {
	SongRequests []domain.SongRequest `json:"songRequests"`
}

type DJPermissionsPayload struct {
	DJPermissions []string `json:"djPermissions"`
	Message       string   `json:"message"`
}

type DJWentLivePayload struct {
	DJID     string `json:"djId"`
	DJName   string `json:"djName"`
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName"`
}

type SkipVotesPayload struct {
	Votes  int `json:"votes"`
	Needed int `json:"needed"`
}

// RoomState is the full snapshot a joining connection receives.
type RoomState struct {
	*domain.Room
	Listeners []domain.LiveMember `json:"listeners"`
	IsDJ      bool                `json:"isDJ"`
	IsCreator bool                `json:"isCreator"`
}

// DirectoryEntry is one public room in the active room directory.
type DirectoryEntry struct {
	RoomID      string        `json:"roomId"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Tags        []string      `json:"tags"`
	Listeners   int           `json:"listeners"`
	CurrentSong *domain.Track `json:"currentSong"`
	IsPlaying   bool          `json:"isPlaying"`
}

func ErrorEvent(msg string) Event {
	return Event{Scope: ToOrigin, Type: EvError, Payload: Notice{Message: msg}}
}

func SuccessEvent(msg string) Event {
	return Event{Scope: ToOrigin, Type: EvSuccess, Payload: Notice{Message: msg}}
}

func QueueFeedback(kind, msg string) Event {
	return Event{Scope: ToOrigin, Type: EvQueueFeedback, Payload: Feedback{Type: kind, Message: msg}}
}

func RequestFeedback(kind, msg string) Event {
	return Event{Scope: ToOrigin, Type: EvRequestFeedback, Payload: Feedback{Type: kind, Message: msg}}
}

func QueueEvent(r *domain.Room) Event {
	return Event{Scope: ToRoom, Type: EvUpdateQueue, Payload: nonNilTracks(r.Queue)}
}

func ListenersEvent(members []domain.LiveMember) Event {
	if members == nil {
		members = []domain.LiveMember{}
	}
	return Event{Scope: ToRoom, Type: EvUpdateListeners, Payload: members}
}

func SongRequestsEvent(r *domain.Room) Event {
	reqs := r.SongRequests
	if reqs == nil {
		reqs = []domain.SongRequest{}
	}
	return Event{Scope: ToRoom, Type: EvSongRequestsUpdated, Payload: SongRequestsPayload{SongRequests: reqs}}
}

func DJPermissionsEvent(r *domain.Room, msg string) Event {
	perms := r.DJPermissions
	if perms == nil {
		perms = []string{}
	}
	return Event{Scope: ToRoom, Type: EvDJPermissionsUpdated, Payload: DJPermissionsPayload{DJPermissions: perms, Message: msg}}
}

func RoomStateEvent(r *domain.Room, listeners []domain.LiveMember, actor domain.Identity) Event {
	if listeners == nil {
		listeners = []domain.LiveMember{}
	}
	return Event{Scope: ToOrigin, Type: EvRoomState, Payload: RoomState{
		Room:      r,
		Listeners: listeners,
		IsDJ:      IsDJ(r, actor),
		IsCreator: IsCreator(r, actor),
	}}
}

// AdvanceEvents are emitted after the queue head was promoted, or after an
// advance on an empty queue left the room Idle.
func AdvanceEvents(r *domain.Room) []Event {
	if r.CurrentSong == nil {
		return []Event{{Scope: ToRoom, Type: EvPause}}
	}
	return []Event{
		{Scope: ToRoom, Type: EvPlaySong, Payload: PlaySongPayload{Track: *r.CurrentSong}},
		QueueEvent(r),
	}
}

// EnqueueEvents follow a successful enqueue; started means the room was Idle
// and the track began playing.
func EnqueueEvents(r *domain.Room, started bool) []Event {
	evs := make([]Event, 0, 3)
	if started && r.CurrentSong != nil {
		evs = append(evs, Event{Scope: ToRoom, Type: EvPlaySong, Payload: PlaySongPayload{Track: *r.CurrentSong}})
	}
	evs = append(evs, QueueEvent(r), QueueFeedback(FeedbackSuccess, "Added to queue"))
	return evs
}

// Directory builds the active room list from durable rooms and a live member
// count lookup: public rooms only, busiest first.
func Directory(rooms []*domain.Room, listeners func(roomID string) int) []DirectoryEntry {
	out := make([]DirectoryEntry, 0, len(rooms))
	for _, r := range rooms {
		if r == nil || !r.IsPublic {
			continue
		}
		out = append(out, DirectoryEntry{
			RoomID:      r.ID,
			Name:        r.Name,
			Description: r.Description,
			Tags:        r.Tags,
			Listeners:   listeners(r.ID),
			CurrentSong: r.CurrentSong,
			IsPlaying:   r.IsPlaying,
		})
	}
	sortDirectory(out)
	return out
}

func nonNilTracks(q []domain.Track) []domain.Track {
	if q == nil {
		return []domain.Track{}
	}
	return q
}

// sortDirectory orders by listeners descending, then room id for stability.
func sortDirectory(d []DirectoryEntry) {
	sort.SliceStable(d, func(i, j int) bool {
		if d[i].Listeners != d[j].Listeners {
			return d[i].Listeners > d[j].Listeners
		}
		return d[i].RoomID < d[j].RoomID
	})
}
