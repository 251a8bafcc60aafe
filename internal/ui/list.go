package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/strumcli/strum/internal/spotify"
)

// playlistItem adapts a [spotify.SimplePlaylist] to [list.Item].
type playlistItem struct {
	playlist spotify.SimplePlaylist
}

func (i playlistItem) Title() string { return i.playlist.Name }
func (i playlistItem) Description() string {
	return fmt.Sprintf("%d tracks · %s", i.playlist.Tracks.Total, i.playlist.Owner.DisplayName)
}
func (i playlistItem) FilterValue() string { return i.playlist.Name }

// trackItem adapts a [spotify.Track] to [list.Item]. The liked marker is
// resolved at render time against the model's liked-ID set.
type trackItem struct {
	track spotify.Track
	liked bool
}

func (i trackItem) Title() string {
	if i.liked {
		return "♥ " + i.track.Name
	}
	return i.track.Name
}

func (i trackItem) Description() string {
	return fmt.Sprintf("%s · %s · %s", i.track.ArtistNames(), i.track.Album.Name, formatMS(i.track.DurationMS))
}

func (i trackItem) FilterValue() string { return i.track.Name + " " + i.track.ArtistNames() }

// deviceItem adapts a [spotify.Device] to [list.Item].
type deviceItem struct {
	device spotify.Device
}

func (i deviceItem) Title() string {
	if i.device.IsActive {
		return "● " + i.device.Name
	}
	return i.device.Name
}

func (i deviceItem) Description() string {
	return fmt.Sprintf("%s · volume %d%%", i.device.Type, i.device.VolumePercent)
}

func (i deviceItem) FilterValue() string { return i.device.Name }

func newListModel(title string, width, height int) list.Model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), width, height)
	l.Title = title
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)
	return l
}

// formatMS renders a millisecond duration as m:ss.
func formatMS(ms int) string {
	totalSecs := ms / 1000
	return fmt.Sprintf("%d:%02d", totalSecs/60, totalSecs%60)
}
