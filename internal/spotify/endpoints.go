package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/strumcli/strum/internal/shared"
)

// likedSongsCap bounds how many saved tracks are fetched for the liked-songs view.
const likedSongsCap = 200

// CurrentPlayback retrieves the player state for the active session.
//
// Returns (nil, nil) when no device holds a session (Spotify answers 204 or 404).
func (c *Client) CurrentPlayback(ctx context.Context) (*PlaybackContext, error) {
	var pc PlaybackContext
	err := c.call(ctx, http.MethodGet, "/me/player", nil, nil, &pc, callOpts{idempotent: true, player: true})
	if errors.Is(err, shared.ErrNoActiveDevice) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if pc.Item == nil && pc.Device.ID == "" {
		return nil, nil
	}
	return &pc, nil
}

// Devices retrieves the devices known to the user's account.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	var resp devicesResponse
	if err := c.call(ctx, http.MethodGet, "/me/player/devices", nil, nil, &resp, callOpts{idempotent: true, player: true}); err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

// Play resumes playback on the active device.
func (c *Client) Play(ctx context.Context) error {
	return c.call(ctx, http.MethodPut, "/me/player/play", nil, nil, nil, callOpts{idempotent: true, player: true})
}

// PlayURI starts playback of a single track on the active device.
func (c *Client) PlayURI(ctx context.Context, trackURI string) error {
	body := map[string]any{"uris": []string{trackURI}}
	return c.call(ctx, http.MethodPut, "/me/player/play", nil, body, nil, callOpts{idempotent: true, player: true})
}

// PlayContext starts playback inside a context (playlist, album, artist) at the given track offset.
func (c *Client) PlayContext(ctx context.Context, contextURI string, position int) error {
	body := map[string]any{
		"context_uri": contextURI,
		"offset":      map[string]any{"position": position},
	}
	return c.call(ctx, http.MethodPut, "/me/player/play", nil, body, nil, callOpts{idempotent: true, player: true})
}

// Pause pauses playback on the active device.
func (c *Client) Pause(ctx context.Context) error {
	return c.call(ctx, http.MethodPut, "/me/player/pause", nil, nil, nil, callOpts{idempotent: true, player: true})
}

// Next skips to the next track. Not idempotent: an unknown outcome is
// surfaced as [shared.ErrAmbiguous] rather than retried.
func (c *Client) Next(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/me/player/next", nil, nil, nil, callOpts{player: true})
}

// Previous skips to the previous track. Not idempotent, same ambiguity rule as [Client.Next].
func (c *Client) Previous(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/me/player/previous", nil, nil, nil, callOpts{player: true})
}

// Seek moves playback to the given position.
func (c *Client) Seek(ctx context.Context, positionMS int) error {
	q := url.Values{"position_ms": {strconv.Itoa(positionMS)}}
	return c.call(ctx, http.MethodPut, "/me/player/seek", q, nil, nil, callOpts{idempotent: true, player: true})
}

// SetVolume sets the active device's volume percentage (0-100).
func (c *Client) SetVolume(ctx context.Context, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	q := url.Values{"volume_percent": {strconv.Itoa(percent)}}
	return c.call(ctx, http.MethodPut, "/me/player/volume", q, nil, nil, callOpts{idempotent: true, player: true})
}

// TransferPlayback moves the session to another device, optionally starting playback there.
func (c *Client) TransferPlayback(ctx context.Context, deviceID string, play bool) error {
	body := map[string]any{"device_ids": []string{deviceID}, "play": play}
	return c.call(ctx, http.MethodPut, "/me/player", nil, body, nil, callOpts{idempotent: true, player: true})
}

// SearchTracks searches the catalog for tracks matching the query.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	q := url.Values{
		"q":     {query},
		"type":  {"track"},
		"limit": {strconv.Itoa(limit)},
	}

	var resp searchResponse
	if err := c.call(ctx, http.MethodGet, "/search", q, nil, &resp, callOpts{idempotent: true}); err != nil {
		return nil, err
	}
	return resp.Tracks.Items, nil
}

// SavedTracks retrieves one page of the user's saved tracks.
func (c *Client) SavedTracks(ctx context.Context, limit, offset int) (*SavedTracksPage, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	q := url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}

	var page SavedTracksPage
	if err := c.call(ctx, http.MethodGet, "/me/tracks", q, nil, &page, callOpts{idempotent: true}); err != nil {
		return nil, err
	}
	return &page, nil
}

// LikedSongs retrieves the user's saved tracks, paging until done or the view cap is reached.
func (c *Client) LikedSongs(ctx context.Context) ([]SavedTrack, error) {
	var songs []SavedTrack
	offset := 0

	for {
		page, err := c.SavedTracks(ctx, 50, offset)
		if err != nil {
			return nil, err
		}
		songs = append(songs, page.Items...)
		offset += 50
		if page.Next == nil || offset >= page.Total || len(songs) >= likedSongsCap {
			break
		}
	}

	return songs, nil
}

// SaveTrack adds a track to the user's liked collection.
func (c *Client) SaveTrack(ctx context.Context, trackID string) error {
	q := url.Values{"ids": {trackID}}
	return c.call(ctx, http.MethodPut, "/me/tracks", q, nil, nil, callOpts{idempotent: true})
}

// RemoveTrack removes a track from the user's liked collection.
func (c *Client) RemoveTrack(ctx context.Context, trackID string) error {
	q := url.Values{"ids": {trackID}}
	return c.call(ctx, http.MethodDelete, "/me/tracks", q, nil, nil, callOpts{idempotent: true})
}

// CheckSavedTracks reports, per ID, whether each track is in the liked collection.
func (c *Client) CheckSavedTracks(ctx context.Context, trackIDs []string) ([]bool, error) {
	if len(trackIDs) == 0 {
		return nil, nil
	}
	if len(trackIDs) > 50 {
		trackIDs = trackIDs[:50]
	}

	q := url.Values{"ids": {strings.Join(trackIDs, ",")}}
	var liked []bool
	if err := c.call(ctx, http.MethodGet, "/me/tracks/contains", q, nil, &liked, callOpts{idempotent: true}); err != nil {
		return nil, err
	}
	return liked, nil
}

// Playlists retrieves all of the user's playlists, paging 50 at a time.
func (c *Client) Playlists(ctx context.Context) ([]SimplePlaylist, error) {
	var all []SimplePlaylist
	offset := 0

	for {
		q := url.Values{
			"limit":  {"50"},
			"offset": {strconv.Itoa(offset)},
		}

		var page PlaylistsPage
		if err := c.call(ctx, http.MethodGet, "/me/playlists", q, nil, &page, callOpts{idempotent: true}); err != nil {
			return nil, err
		}

		all = append(all, page.Items...)
		offset += 50
		if page.Next == nil || offset >= page.Total {
			break
		}
	}

	return all, nil
}

// PlaylistItems retrieves all tracks in a playlist, paging 100 at a time.
func (c *Client) PlaylistItems(ctx context.Context, playlistID string) ([]PlaylistItem, error) {
	var all []PlaylistItem
	offset := 0

	for {
		q := url.Values{
			"limit":  {"100"},
			"offset": {strconv.Itoa(offset)},
		}

		path := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
		var page PlaylistItemsPage
		if err := c.call(ctx, http.MethodGet, path, q, nil, &page, callOpts{idempotent: true}); err != nil {
			return nil, err
		}

		all = append(all, page.Items...)
		offset += 100
		if page.Next == nil || offset >= page.Total {
			break
		}
	}

	return all, nil
}
