package domain

import (
	"strings"
	"time"
)

const (
	MaxRoomIDLen   = 64
	MaxRoomNameLen = 80
	MaxTags        = 10
)

// Track is a playable media entry. ID names the media, QueueID tells apart
// duplicate queue entries of the same media.
type Track struct {
	ID        string  `json:"id"`
	QueueID   string  `json:"queueId,omitempty"`
	Title     string  `json:"title"`
	Thumbnail string  `json:"thumbnail"`
	Channel   string  `json:"channel"`
	Duration  float64 `json:"duration"`
}

// Matches reports whether key names this queue entry, by queue id first and
// media id for entries that never got one.
func (t Track) Matches(key string) bool {
	if key == "" {
		return false
	}
	if t.QueueID != "" {
		return t.QueueID == key || t.ID == key
	}
	return t.ID == key
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDeclined RequestStatus = "declined"
)

func (s RequestStatus) Terminal() bool {
	return s == RequestAccepted || s == RequestDeclined
}

type SongRequest struct {
	ID                   string        `json:"id"`
	TrackID              string        `json:"trackId"`
	QueueID              string        `json:"queueId,omitempty"`
	Title                string        `json:"title"`
	Thumbnail            string        `json:"thumbnail"`
	Channel              string        `json:"channel"`
	Duration             float64       `json:"duration"`
	RequesterIdentity    string        `json:"requestedBy"`
	RequesterDisplayName string        `json:"requestedByName"`
	RequesterColor       string        `json:"requestedByColor"`
	Status               RequestStatus `json:"status"`
	RequestedAt          time.Time     `json:"requestedAt"`
}

func (r SongRequest) Track() Track {
	return Track{
		ID:        r.TrackID,
		QueueID:   r.QueueID,
		Title:     r.Title,
		Thumbnail: r.Thumbnail,
		Channel:   r.Channel,
		Duration:  r.Duration,
	}
}

// Room is the durable record of a listening room.
type Room struct {
	ID            string        `json:"roomId"`
	Name          string        `json:"name"`
	IsPublic      bool          `json:"isPublic"`
	Tags          []string      `json:"tags"`
	Description   string        `json:"description"`
	Owner         string        `json:"owner,omitempty"`
	CreatorID     string        `json:"creatorId"`
	DJPermissions []string      `json:"djPermissions"`
	Queue         []Track       `json:"queue"`
	CurrentSong   *Track        `json:"currentSong"`
	IsPlaying     bool          `json:"isPlaying"`
	CurrentTime   float64       `json:"currentTime"`
	SongRequests  []SongRequest `json:"songRequests"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// RoomConfig carries the creation-time fields of a room.
type RoomConfig struct {
	ID          string
	Name        string
	IsPublic    *bool
	Tags        []string
	Description string
	Owner       string
	CreatorID   string
}

// NormalizeRoomID folds case and trims blanks; the result is the store key.
func NormalizeRoomID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func ValidateRoomID(id string) error {
	if id == "" {
		return Invalid("Room id is required")
	}
	if len(id) > MaxRoomIDLen {
		return Invalid("Room id is too long")
	}
	return nil
}

// NewRoom builds a canonical room from a config, defaults applied.
func NewRoom(cfg RoomConfig, now time.Time) *Room {
	id := NormalizeRoomID(cfg.ID)
	r := &Room{
		ID:          id,
		Name:        strings.TrimSpace(cfg.Name),
		IsPublic:    true,
		Tags:        cleanTags(cfg.Tags),
		Description: strings.TrimSpace(cfg.Description),
		Owner:       cfg.Owner,
		CreatorID:   cfg.CreatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if cfg.IsPublic != nil {
		r.IsPublic = *cfg.IsPublic
	}
	if len(r.Name) > MaxRoomNameLen {
		r.Name = r.Name[:MaxRoomNameLen]
	}
	r.Normalize()
	return r
}

// Normalize gives every optional field its explicit default so records
// written by older schema versions never need presence checks.
func (r *Room) Normalize() {
	if r.Name == "" {
		r.Name = r.ID
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if r.DJPermissions == nil {
		r.DJPermissions = []string{}
	}
	if r.Queue == nil {
		r.Queue = []Track{}
	}
	if r.SongRequests == nil {
		r.SongRequests = []SongRequest{}
	}
	for i := range r.SongRequests {
		if r.SongRequests[i].Status == "" {
			r.SongRequests[i].Status = RequestPending
		}
	}
	if r.CurrentSong == nil {
		r.IsPlaying = false
	}
	if r.CurrentTime < 0 {
		r.CurrentTime = 0
	}
}

// Clone returns a deep copy; stores hand out clones only.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.Tags = append([]string(nil), r.Tags...)
	c.DJPermissions = append([]string(nil), r.DJPermissions...)
	c.Queue = append([]Track(nil), r.Queue...)
	c.SongRequests = append([]SongRequest(nil), r.SongRequests...)
	if r.CurrentSong != nil {
		t := *r.CurrentSong
		c.CurrentSong = &t
	}
	c.Normalize()
	return &c
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}
