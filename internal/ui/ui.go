package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/strumcli/strum/internal/player"
	"github.com/strumcli/strum/internal/spotify"
)

// Screen represents the current view in the TUI.
type Screen int

const (
	LibraryScreen Screen = iota
	SearchScreen
	LikedScreen
)

func (s Screen) label() string {
	switch s {
	case SearchScreen:
		return "Search"
	case LikedScreen:
		return "Liked Songs"
	default:
		return "Library"
	}
}

const (
	volumeStep = 5
	seekStepMS = 5000
	flashTTL   = 5 * time.Second
)

// Catalog is the slice of the API gateway the UI fetches read-only
// projections through (library, search, liked, devices).
type Catalog interface {
	Playlists(ctx context.Context) ([]spotify.SimplePlaylist, error)
	PlaylistItems(ctx context.Context, playlistID string) ([]spotify.PlaylistItem, error)
	SearchTracks(ctx context.Context, query string, limit int) ([]spotify.Track, error)
	LikedSongs(ctx context.Context) ([]spotify.SavedTrack, error)
	SaveTrack(ctx context.Context, trackID string) error
	RemoveTrack(ctx context.Context, trackID string) error
	Devices(ctx context.Context) ([]spotify.Device, error)
}

// Model represents the TUI application state: a read-only subscriber of the
// engine's view-model bus that forwards typed intents to the dispatcher.
type Model struct {
	ctx     context.Context
	engine  *player.Engine
	catalog Catalog
	logger  *log.Logger
	sub     <-chan struct{}
	devices <-chan player.DeviceChange

	screen      Screen
	activePanel int // library screen: 0 = playlists, 1 = tracks
	showDevices bool
	showHelp    bool
	searching   bool

	width  int
	height int
	vm     player.ViewModel

	playlistList list.Model
	trackList    list.Model
	searchList   list.Model
	likedList    list.Model
	deviceList   list.Model
	searchInput  textinput.Model
	help         help.Model
	keys         keyMap

	selectedContextURI string
	likedIDs           map[string]bool
	playlistsLoaded    bool
	likedLoaded        bool

	flash   string
	flashAt time.Time
}

// New creates the TUI model over an assembled engine and catalog gateway.
func New(ctx context.Context, engine *player.Engine, catalog Catalog, logger *log.Logger) Model {
	input := textinput.New()
	input.Placeholder = "search tracks..."
	input.CharLimit = 120

	return Model{
		ctx:          ctx,
		engine:       engine,
		catalog:      catalog,
		logger:       logger,
		sub:          engine.Bus.Subscribe(),
		devices:      engine.Tracker.DeviceChanges(),
		screen:       LibraryScreen,
		playlistList: newListModel("Playlists", 0, 0),
		trackList:    newListModel("Tracks", 0, 0),
		searchList:   newListModel("Results", 0, 0),
		likedList:    newListModel("Liked Songs", 0, 0),
		deviceList:   newListModel("Devices", 0, 0),
		searchInput:  input,
		help:         help.New(),
		keys:         newKeyMap(),
		likedIDs:     map[string]bool{},
		vm:           engine.Bus.State(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForState(),
		m.waitForDeviceChange(),
		progressTick(),
		m.fetchPlaylists(),
		m.fetchLiked(),
	)
}

// waitForState blocks on the bus subscription and converts each change
// notification into a render trigger.
func (m Model) waitForState() tea.Cmd {
	sub := m.sub
	bus := m.engine.Bus
	return func() tea.Msg {
		<-sub
		return stateChangedMsg(bus.State())
	}
}

// waitForDeviceChange blocks on the tracker's device-change channel so the
// device overlay can be refreshed when playback moves externally.
func (m Model) waitForDeviceChange() tea.Cmd {
	events := m.devices
	return func() tea.Msg {
		change, ok := <-events
		if !ok {
			return nil
		}
		return deviceChangedMsg(change)
	}
}

func progressTick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg {
		return progressTickMsg()
	})
}

func (m Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.catalog.Playlists(m.ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m Model) fetchTracks(playlist spotify.SimplePlaylist) tea.Cmd {
	return func() tea.Msg {
		items, err := m.catalog.PlaylistItems(m.ctx, playlist.ID)
		return tracksFetchedMsg(playlist.URI, items, err)
	}
}

func (m Model) runSearch(query string) tea.Cmd {
	return func() tea.Msg {
		tracks, err := m.catalog.SearchTracks(m.ctx, query, 20)
		return searchDoneMsg(tracks, err)
	}
}

func (m Model) fetchLiked() tea.Cmd {
	return func() tea.Msg {
		songs, err := m.catalog.LikedSongs(m.ctx)
		return likedFetchedMsg(songs, err)
	}
}

func (m Model) fetchDevices() tea.Cmd {
	return func() tea.Msg {
		devices, err := m.catalog.Devices(m.ctx)
		return devicesFetchedMsg(devices, err)
	}
}

func (m Model) toggleLike(trackID string, currentlyLiked bool) tea.Cmd {
	return func() tea.Msg {
		var err error
		if currentlyLiked {
			err = m.catalog.RemoveTrack(m.ctx, trackID)
		} else {
			err = m.catalog.SaveTrack(m.ctx, trackID)
		}
		return likeToggledMsg(trackID, !currentlyLiked, err)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLists()
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)

	case Msg:
		return m.updateMsg(msg)
	}

	return m, nil
}

func (m Model) updateMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgStateChanged:
		m.vm = msg.data.(player.ViewModel)
		if n := m.vm.Notice; n != nil && time.Since(n.At) < flashTTL {
			m.flash = n.Text
			m.flashAt = n.At
		}
		return m, m.waitForState()

	case MsgProgressTick:
		if m.flash != "" && time.Since(m.flashAt) > flashTTL {
			m.flash = ""
		}
		return m, progressTick()

	case MsgPlaylistsFetched:
		data := msg.data.(struct {
			playlists []spotify.SimplePlaylist
			err       error
		})
		if data.err != nil {
			return m.withFlash(fmt.Sprintf("failed to load playlists: %v", data.err)), nil
		}
		items := make([]list.Item, 0, len(data.playlists))
		for _, p := range data.playlists {
			items = append(items, playlistItem{playlist: p})
		}
		m.playlistsLoaded = true
		m.playlistList.SetItems(items)
		return m, nil

	case MsgTracksFetched:
		data := msg.data.(struct {
			contextURI string
			items      []spotify.PlaylistItem
			err        error
		})
		if data.err != nil {
			return m.withFlash(fmt.Sprintf("failed to load tracks: %v", data.err)), nil
		}
		m.selectedContextURI = data.contextURI
		items := make([]list.Item, 0, len(data.items))
		for _, it := range data.items {
			items = append(items, trackItem{track: it.Track, liked: m.likedIDs[it.Track.ID]})
		}
		m.trackList.SetItems(items)
		m.activePanel = 1
		return m, nil

	case MsgSearchDone:
		data := msg.data.(struct {
			tracks []spotify.Track
			err    error
		})
		if data.err != nil {
			return m.withFlash(fmt.Sprintf("search failed: %v", data.err)), nil
		}
		items := make([]list.Item, 0, len(data.tracks))
		for _, t := range data.tracks {
			items = append(items, trackItem{track: t, liked: m.likedIDs[t.ID]})
		}
		m.searchList.SetItems(items)
		return m, nil

	case MsgLikedFetched:
		data := msg.data.(struct {
			songs []spotify.SavedTrack
			err   error
		})
		if data.err != nil {
			return m.withFlash(fmt.Sprintf("failed to load liked songs: %v", data.err)), nil
		}
		m.likedIDs = map[string]bool{}
		items := make([]list.Item, 0, len(data.songs))
		for _, s := range data.songs {
			m.likedIDs[s.Track.ID] = true
			items = append(items, trackItem{track: s.Track, liked: true})
		}
		m.likedLoaded = true
		m.likedList.SetItems(items)
		return m, nil

	case MsgDevicesFetched:
		data := msg.data.(struct {
			devices []spotify.Device
			err     error
		})
		if data.err != nil {
			return m.withFlash(fmt.Sprintf("failed to load devices: %v", data.err)), nil
		}
		items := make([]list.Item, 0, len(data.devices))
		for _, d := range data.devices {
			items = append(items, deviceItem{device: d})
		}
		m.deviceList.SetItems(items)
		return m, nil

	case MsgLikeToggled:
		data := msg.data.(struct {
			trackID string
			liked   bool
			err     error
		})
		if data.err != nil {
			return m.withFlash(fmt.Sprintf("like toggle failed: %v", data.err)), nil
		}
		if data.liked {
			m.likedIDs[data.trackID] = true
		} else {
			delete(m.likedIDs, data.trackID)
		}
		// Refresh the liked list to reflect the change.
		return m, m.fetchLiked()

	case MsgDeviceChanged:
		change := msg.data.(player.DeviceChange)
		m.flash = fmt.Sprintf("playback moved to %s", change.ToName)
		m.flashAt = change.At
		cmds := []tea.Cmd{m.waitForDeviceChange()}
		if m.showDevices {
			cmds = append(cmds, m.fetchDevices())
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		return m.updateSearchInput(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.devices):
		m.showDevices = !m.showDevices
		if m.showDevices {
			return m, m.fetchDevices()
		}
		return m, nil

	case key.Matches(msg, m.keys.back):
		switch {
		case m.showDevices:
			m.showDevices = false
		case m.screen == LibraryScreen && m.activePanel == 1:
			m.activePanel = 0
		}
		return m, nil

	case key.Matches(msg, m.keys.nextTab):
		return m.switchScreen((m.screen + 1) % 3)

	case key.Matches(msg, m.keys.prevTab):
		return m.switchScreen((m.screen + 2) % 3)

	case key.Matches(msg, m.keys.search):
		m.screen = SearchScreen
		m.searching = true
		m.engine.Tracker.SetFocused(false)
		m.searchInput.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.playPause):
		if snap := m.vm.Display.Snapshot; snap != nil && snap.IsPlaying {
			m.engine.Dispatch(m.ctx, player.Intent{Kind: player.CmdPause})
		} else {
			m.engine.Dispatch(m.ctx, player.Intent{Kind: player.CmdPlay})
		}
		return m, nil

	case key.Matches(msg, m.keys.next):
		m.engine.Dispatch(m.ctx, player.Intent{Kind: player.CmdNext})
		return m, nil

	case key.Matches(msg, m.keys.previous):
		m.engine.Dispatch(m.ctx, player.Intent{Kind: player.CmdPrevious})
		return m, nil

	case key.Matches(msg, m.keys.volUp):
		return m.adjustVolume(volumeStep)

	case key.Matches(msg, m.keys.volDown):
		return m.adjustVolume(-volumeStep)

	case key.Matches(msg, m.keys.seekFwd):
		return m.seekBy(seekStepMS)

	case key.Matches(msg, m.keys.seekBack):
		return m.seekBy(-seekStepMS)

	case key.Matches(msg, m.keys.like):
		return m.likeSelected()

	case key.Matches(msg, m.keys.enter):
		return m.onEnter()
	}

	return m.updateActiveList(msg)
}

func (m Model) updateSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		query := m.searchInput.Value()
		m.searching = false
		m.searchInput.Blur()
		m.engine.Tracker.SetFocused(true)
		if query == "" {
			return m, nil
		}
		return m, m.runSearch(query)
	case "esc":
		m.searching = false
		m.searchInput.Blur()
		m.engine.Tracker.SetFocused(true)
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) updateActiveList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.showDevices:
		m.deviceList, cmd = m.deviceList.Update(msg)
	case m.screen == LibraryScreen && m.activePanel == 0:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case m.screen == LibraryScreen:
		m.trackList, cmd = m.trackList.Update(msg)
	case m.screen == SearchScreen:
		m.searchList, cmd = m.searchList.Update(msg)
	case m.screen == LikedScreen:
		m.likedList, cmd = m.likedList.Update(msg)
	}
	return m, cmd
}

func (m Model) switchScreen(next Screen) (tea.Model, tea.Cmd) {
	m.screen = next
	m.activePanel = 0

	var cmds []tea.Cmd
	if next == LibraryScreen && !m.playlistsLoaded {
		cmds = append(cmds, m.fetchPlaylists())
	}
	if next == LikedScreen && !m.likedLoaded {
		cmds = append(cmds, m.fetchLiked())
	}
	return m, tea.Batch(cmds...)
}

func (m Model) onEnter() (tea.Model, tea.Cmd) {
	if m.showDevices {
		if item, ok := m.deviceList.SelectedItem().(deviceItem); ok {
			m.showDevices = false
			m.engine.Dispatch(m.ctx, player.Intent{
				Kind:       player.CmdTransfer,
				DeviceID:   item.device.ID,
				DeviceName: item.device.Name,
			})
		}
		return m, nil
	}

	switch m.screen {
	case LibraryScreen:
		if m.activePanel == 0 {
			if item, ok := m.playlistList.SelectedItem().(playlistItem); ok {
				return m, m.fetchTracks(item.playlist)
			}
			return m, nil
		}
		if _, ok := m.trackList.SelectedItem().(trackItem); ok {
			m.engine.Dispatch(m.ctx, player.Intent{
				Kind:       player.CmdPlayContext,
				ContextURI: m.selectedContextURI,
				Offset:     m.trackList.Index(),
			})
		}

	case SearchScreen:
		if item, ok := m.searchList.SelectedItem().(trackItem); ok {
			m.engine.Dispatch(m.ctx, player.Intent{Kind: player.CmdPlayTrack, TrackURI: item.track.URI})
		}

	case LikedScreen:
		if item, ok := m.likedList.SelectedItem().(trackItem); ok {
			m.engine.Dispatch(m.ctx, player.Intent{Kind: player.CmdPlayTrack, TrackURI: item.track.URI})
		}
	}

	return m, nil
}

func (m Model) adjustVolume(delta int) (tea.Model, tea.Cmd) {
	snap := m.vm.Display.Snapshot
	if snap == nil {
		return m, nil
	}
	target := snap.VolumePercent + delta
	if target < 0 {
		target = 0
	}
	if target > 100 {
		target = 100
	}
	m.engine.Dispatch(m.ctx, player.Intent{Kind: player.CmdVolume, VolumePercent: target})
	return m, nil
}

func (m Model) seekBy(deltaMS int) (tea.Model, tea.Cmd) {
	snap := m.vm.Display.Snapshot
	if snap == nil {
		return m, nil
	}
	pos, dur := snap.Progress(time.Now())
	target := pos + deltaMS
	if target < 0 {
		target = 0
	}
	if dur > 0 && target > dur {
		target = dur
	}
	m.engine.Dispatch(m.ctx, player.Intent{Kind: player.CmdSeek, PositionMS: target})
	return m, nil
}

// likeSelected toggles the liked state of the highlighted track, falling back
// to the now-playing track when nothing is selected.
func (m Model) likeSelected() (tea.Model, tea.Cmd) {
	trackID := ""

	switch m.screen {
	case LibraryScreen:
		if m.activePanel == 1 {
			if item, ok := m.trackList.SelectedItem().(trackItem); ok {
				trackID = item.track.ID
			}
		}
	case SearchScreen:
		if item, ok := m.searchList.SelectedItem().(trackItem); ok {
			trackID = item.track.ID
		}
	case LikedScreen:
		if item, ok := m.likedList.SelectedItem().(trackItem); ok {
			trackID = item.track.ID
		}
	}

	if trackID == "" {
		if snap := m.vm.Display.Snapshot; snap != nil {
			trackID = snap.TrackID
		}
	}
	if trackID == "" {
		return m, nil
	}

	return m, m.toggleLike(trackID, m.likedIDs[trackID])
}

func (m Model) withFlash(text string) Model {
	m.flash = text
	m.flashAt = time.Now()
	return m
}

func (m *Model) resizeLists() {
	bodyHeight := m.height - 6
	if bodyHeight < 4 {
		bodyHeight = 4
	}
	half := m.width / 2

	m.playlistList.SetSize(half, bodyHeight)
	m.trackList.SetSize(m.width-half, bodyHeight)
	m.searchList.SetSize(m.width, bodyHeight-2)
	m.likedList.SetSize(m.width, bodyHeight)
	m.deviceList.SetSize(m.width, bodyHeight)
	m.help.Width = m.width
}

func (m Model) View() string {
	if m.showHelp {
		return lipgloss.JoinVertical(lipgloss.Left,
			styles.title.Render("strum — keys"),
			m.help.FullHelpView(m.keys.FullHelp()),
		)
	}

	var body string
	switch {
	case m.showDevices:
		body = m.deviceList.View()
	case m.screen == LibraryScreen:
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.playlistList.View(), m.trackList.View())
	case m.screen == SearchScreen:
		body = lipgloss.JoinVertical(lipgloss.Left, m.searchInput.View(), m.searchList.View())
	case m.screen == LikedScreen:
		body = m.likedList.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		body,
		m.nowPlayingView(),
		m.help.ShortHelpView(m.keys.ShortHelp()),
	)
}

func (m Model) headerView() string {
	tabs := make([]string, 0, 3)
	for s := LibraryScreen; s <= LikedScreen; s++ {
		label := s.label()
		if s == m.screen {
			tabs = append(tabs, styles.accent.Render("["+label+"]"))
		} else {
			tabs = append(tabs, styles.dim.Render(" "+label+" "))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, tabs...)
}

// nowPlayingView renders the playback bar: track, interpolated progress,
// device, volume, connectivity, and any pending-command or flash indicator.
func (m Model) nowPlayingView() string {
	snap := m.vm.Display.Snapshot

	var line string
	if snap == nil || snap.TrackID == "" {
		line = styles.dim.Render("nothing playing")
	} else {
		pos, dur := snap.Progress(time.Now())
		state := "▮▮"
		if snap.IsPlaying {
			state = "▶"
		}
		line = fmt.Sprintf("%s %s — %s  %s / %s  ·  %s  ·  vol %d%%",
			state, snap.TrackName, snap.Artists,
			formatMS(pos), formatMS(dur),
			snap.DeviceName, snap.VolumePercent,
		)
	}

	var marks []string
	if m.vm.Display.Mode == player.Optimistic {
		marks = append(marks, styles.warn.Render("~"+m.vm.Display.Pending.String()))
	}
	if m.vm.TransferLock {
		marks = append(marks, styles.warn.Render("transferring..."))
	}
	switch m.vm.Connectivity {
	case player.Reconnecting:
		marks = append(marks, styles.err.Render("reconnecting"))
	case player.Reauthorize:
		marks = append(marks, styles.err.Render("re-authenticate: run `strum auth`"))
	}
	if m.flash != "" {
		marks = append(marks, styles.warn.Render(m.flash))
	}

	if len(marks) > 0 {
		line += "  " + lipgloss.JoinHorizontal(lipgloss.Center, marks...)
	}
	return styles.bar.Render(line)
}
