package core

import (
	"time"

	"github.com/dkeye/Jukebox/internal/domain"
	"github.com/google/uuid"
)

// Requester is who asked for a song, as shown to DJs.
type Requester struct {
	Identity    domain.Identity
	DisplayName string
	Color       string
}

func NewSongRequest(t domain.Track, who Requester, now time.Time) domain.SongRequest {
	return domain.SongRequest{
		ID:                   uuid.NewString(),
		TrackID:              t.ID,
		QueueID:              t.QueueID,
		Title:                t.Title,
		Thumbnail:            t.Thumbnail,
		Channel:              t.Channel,
		Duration:             t.Duration,
		RequesterIdentity:    who.Identity.String(),
		RequesterDisplayName: who.DisplayName,
		RequesterColor:       who.Color,
		Status:               domain.RequestPending,
		RequestedAt:          now,
	}
}

// AdmitRequest appends req unless its track is already pending, queued or
// playing.
func AdmitRequest(r *domain.Room, req domain.SongRequest) error {
	if req.TrackID == "" {
		return domain.Invalid("Song id is required")
	}
	if r.HasPendingRequest(req.TrackID) {
		return domain.Conflict("This song has already been requested")
	}
	if r.HasMedia(req.TrackID) {
		return domain.Conflict("This song is already in the queue")
	}
	if req.Status == "" {
		req.Status = domain.RequestPending
	}
	r.AppendRequest(req)
	return nil
}

// ResolveRequest moves a pending request to status. Accepting pushes the
// track onto the queue without auto-advance, even when the room is Idle.
// A track that was enqueued directly in the meantime is not pushed again;
// the request is still marked accepted.
func ResolveRequest(r *domain.Room, requestID string, status domain.RequestStatus) (domain.SongRequest, error) {
	if !status.Terminal() {
		return domain.SongRequest{}, domain.Invalid("Unknown request status")
	}
	req, ok := r.FindRequest(requestID)
	if !ok {
		return domain.SongRequest{}, domain.ErrRequestNotFound
	}
	if req.Status != domain.RequestPending {
		return req, domain.Conflict("This request was already handled")
	}
	if status == domain.RequestAccepted && !r.HasMedia(req.TrackID) {
		if _, err := EnqueueTrack(r, req.Track(), false); err != nil {
			return req, err
		}
	}
	return r.SetRequestStatus(requestID, status)
}
