package domain

import "slices"

type PlaybackState string

const (
	Idle    PlaybackState = "idle"
	Playing PlaybackState = "playing"
	Paused  PlaybackState = "paused"
)

func (r *Room) State() PlaybackState {
	switch {
	case r.CurrentSong == nil:
		return Idle
	case r.IsPlaying:
		return Playing
	default:
		return Paused
	}
}

// HasMedia reports whether the media id is current or queued.
func (r *Room) HasMedia(trackID string) bool {
	if trackID == "" {
		return false
	}
	if r.CurrentSong != nil && r.CurrentSong.ID == trackID {
		return true
	}
	return slices.ContainsFunc(r.Queue, func(t Track) bool { return t.ID == trackID })
}

func (r *Room) PushTrack(t Track) {
	r.Queue = append(r.Queue, t)
}

// PopHead removes and returns the next track to play.
func (r *Room) PopHead() (Track, bool) {
	if len(r.Queue) == 0 {
		return Track{}, false
	}
	head := r.Queue[0]
	r.Queue = append([]Track{}, r.Queue[1:]...)
	return head, true
}

// Advance pops the queue head into CurrentSong and starts it from zero, or
// goes Idle when the queue is empty. Returns the new current song.
func (r *Room) Advance() *Track {
	head, ok := r.PopHead()
	if !ok {
		r.CurrentSong = nil
		r.IsPlaying = false
		r.CurrentTime = 0
		return nil
	}
	r.CurrentSong = &head
	r.IsPlaying = true
	r.CurrentTime = 0
	return r.CurrentSong
}

// RemoveFromQueue drops matching queue entries. CurrentSong is never touched.
func (r *Room) RemoveFromQueue(match func(Track) bool) int {
	before := len(r.Queue)
	r.Queue = slices.DeleteFunc(r.Queue, match)
	return before - len(r.Queue)
}

func (r *Room) ReplaceQueue(order []Track) {
	r.Queue = append([]Track{}, order...)
}

func (r *Room) Play(at float64) error {
	if r.CurrentSong == nil {
		return ErrNothingPlaying
	}
	r.IsPlaying = true
	r.CurrentTime = clampTime(at)
	return nil
}

func (r *Room) Pause() error {
	if r.CurrentSong == nil {
		return ErrNothingPlaying
	}
	r.IsPlaying = false
	return nil
}

func (r *Room) Seek(at float64) error {
	if r.CurrentSong == nil {
		return ErrNothingPlaying
	}
	r.CurrentTime = clampTime(at)
	return nil
}

func clampTime(t float64) float64 {
	if t < 0 {
		return 0
	}
	return t
}

func (r *Room) HasPendingRequest(trackID string) bool {
	return slices.ContainsFunc(r.SongRequests, func(sr SongRequest) bool {
		return sr.TrackID == trackID && sr.Status == RequestPending
	})
}

func (r *Room) AppendRequest(req SongRequest) {
	r.SongRequests = append(r.SongRequests, req)
}

func (r *Room) FindRequest(id string) (SongRequest, bool) {
	i := slices.IndexFunc(r.SongRequests, func(sr SongRequest) bool { return sr.ID == id })
	if i < 0 {
		return SongRequest{}, false
	}
	return r.SongRequests[i], true
}

// SetRequestStatus moves a pending request to a terminal status.
func (r *Room) SetRequestStatus(id string, status RequestStatus) (SongRequest, error) {
	i := slices.IndexFunc(r.SongRequests, func(sr SongRequest) bool { return sr.ID == id })
	if i < 0 {
		return SongRequest{}, ErrRequestNotFound
	}
	if r.SongRequests[i].Status != RequestPending {
		return r.SongRequests[i], Conflict("This request was already handled")
	}
	r.SongRequests[i].Status = status
	return r.SongRequests[i], nil
}

func (r *Room) GrantDJ(id string) bool {
	if id == "" || slices.Contains(r.DJPermissions, id) {
		return false
	}
	r.DJPermissions = append(r.DJPermissions, id)
	return true
}

func (r *Room) RevokeDJ(id string) bool {
	before := len(r.DJPermissions)
	r.DJPermissions = slices.DeleteFunc(r.DJPermissions, func(s string) bool { return s == id })
	return len(r.DJPermissions) != before
}

// BackfillCreator sets the creator on legacy records that never had one.
// Once set it is never replaced.
func (r *Room) BackfillCreator(id Identity) bool {
	if r.CreatorID != "" || id.IsAnonymous() {
		return false
	}
	r.CreatorID = id.String()
	return true
}

// StateDelta is a partial update; nil fields are left alone.
type StateDelta struct {
	Name        *string
	IsPublic    *bool
	Description *string
	Tags        []string
	IsPlaying   *bool
	CurrentTime *float64
}

func (d StateDelta) Apply(r *Room) {
	if d.Name != nil {
		r.Name = *d.Name
	}
	if d.IsPublic != nil {
		r.IsPublic = *d.IsPublic
	}
	if d.Description != nil {
		r.Description = *d.Description
	}
	if d.Tags != nil {
		r.Tags = cleanTags(d.Tags)
	}
	if d.IsPlaying != nil {
		r.IsPlaying = *d.IsPlaying && r.CurrentSong != nil
	}
	if d.CurrentTime != nil {
		r.CurrentTime = clampTime(*d.CurrentTime)
	}
}
