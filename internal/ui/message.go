package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/strumcli/strum/internal/player"
	"github.com/strumcli/strum/internal/spotify"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var _ tea.Msg = Msg{}

const (
	MsgStateChanged MsgKind = iota
	MsgProgressTick
	MsgPlaylistsFetched
	MsgTracksFetched
	MsgSearchDone
	MsgLikedFetched
	MsgDevicesFetched
	MsgLikeToggled
	MsgDeviceChanged
)

// stateChangedMsg signals that the view-model bus published a new state.
func stateChangedMsg(vm player.ViewModel) Msg {
	return Msg{kind: MsgStateChanged, data: vm}
}

// progressTickMsg drives progress-bar interpolation between polls.
func progressTickMsg() Msg {
	return Msg{kind: MsgProgressTick}
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []spotify.SimplePlaylist, err error) Msg {
	return Msg{
		kind: MsgPlaylistsFetched,
		data: struct {
			playlists []spotify.SimplePlaylist
			err       error
		}{playlists, err},
	}
}

// tracksFetchedMsg is the constructor for [MsgTracksFetched]
func tracksFetchedMsg(contextURI string, items []spotify.PlaylistItem, err error) Msg {
	return Msg{
		kind: MsgTracksFetched,
		data: struct {
			contextURI string
			items      []spotify.PlaylistItem
			err        error
		}{contextURI, items, err},
	}
}

// searchDoneMsg is the constructor for [MsgSearchDone]
func searchDoneMsg(tracks []spotify.Track, err error) Msg {
	return Msg{
		kind: MsgSearchDone,
		data: struct {
			tracks []spotify.Track
			err    error
		}{tracks, err},
	}
}

// likedFetchedMsg is the constructor for [MsgLikedFetched]
func likedFetchedMsg(songs []spotify.SavedTrack, err error) Msg {
	return Msg{
		kind: MsgLikedFetched,
		data: struct {
			songs []spotify.SavedTrack
			err   error
		}{songs, err},
	}
}

// devicesFetchedMsg is the constructor for [MsgDevicesFetched]
func devicesFetchedMsg(devices []spotify.Device, err error) Msg {
	return Msg{
		kind: MsgDevicesFetched,
		data: struct {
			devices []spotify.Device
			err     error
		}{devices, err},
	}
}

// deviceChangedMsg signals that polling observed playback moving to another
// device without a local transfer.
func deviceChangedMsg(change player.DeviceChange) Msg {
	return Msg{kind: MsgDeviceChanged, data: change}
}

// likeToggledMsg is the constructor for [MsgLikeToggled]
func likeToggledMsg(trackID string, liked bool, err error) Msg {
	return Msg{
		kind: MsgLikeToggled,
		data: struct {
			trackID string
			liked   bool
			err     error
		}{trackID, liked, err},
	}
}
