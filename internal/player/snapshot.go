package player

import (
	"time"

	"github.com/strumcli/strum/internal/spotify"
)

// Snapshot is a point-in-time, immutable capture of remote playback state.
//
// PositionMS is only trustworthy at CapturedAt; renderers interpolate with
// [Snapshot.Progress] between polls. Each poll constructs a new Snapshot, the
// prior one is never mutated.
type Snapshot struct {
	IsPlaying     bool
	TrackID       string
	TrackName     string
	Artists       string
	Album         string
	TrackURI      string
	PositionMS    int
	DurationMS    int
	DeviceID      string
	DeviceName    string
	VolumePercent int
	CapturedAt    time.Time
}

// NewSnapshot projects a playback context from the API into a Snapshot.
// A nil context (no active session) yields nil.
func NewSnapshot(pc *spotify.PlaybackContext, capturedAt time.Time) *Snapshot {
	if pc == nil {
		return nil
	}

	s := &Snapshot{
		IsPlaying:     pc.IsPlaying,
		PositionMS:    pc.ProgressMS,
		DeviceID:      pc.Device.ID,
		DeviceName:    pc.Device.Name,
		VolumePercent: pc.Device.VolumePercent,
		CapturedAt:    capturedAt,
	}

	if pc.Item != nil {
		s.TrackID = pc.Item.ID
		s.TrackName = pc.Item.Name
		s.Artists = pc.Item.ArtistNames()
		s.Album = pc.Item.Album.Name
		s.TrackURI = pc.Item.URI
		s.DurationMS = pc.Item.DurationMS
	}

	return s
}

// Progress interpolates the playback position by wall-clock time elapsed
// since capture. Paused snapshots do not advance; the position is clamped to
// the track duration.
func (s *Snapshot) Progress(now time.Time) (positionMS, durationMS int) {
	if s == nil {
		return 0, 0
	}

	positionMS = s.PositionMS
	durationMS = s.DurationMS

	if s.IsPlaying {
		positionMS += int(now.Sub(s.CapturedAt).Milliseconds())
	}
	if durationMS > 0 && positionMS > durationMS {
		positionMS = durationMS
	}

	return positionMS, durationMS
}

// with returns a copy of the snapshot with the given mutation applied, used to
// build optimistic projections without touching the authoritative value.
func (s *Snapshot) with(mutate func(*Snapshot)) *Snapshot {
	if s == nil {
		return nil
	}
	clone := *s
	mutate(&clone)
	return &clone
}
