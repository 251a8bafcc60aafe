package player

import (
	"sync"
	"time"
)

// Connectivity describes the engine's link to the remote service.
type Connectivity int

const (
	// Connected means the last poll succeeded recently.
	Connected Connectivity = iota
	// Reconnecting means polls are failing past the stale threshold; the
	// last-known snapshot is still displayed.
	Reconnecting
	// Reauthorize means the refresh token was rejected; polling and commands
	// are suspended until a fresh authorization completes.
	Reauthorize
)

// DisplayMode tags whether the displayed snapshot is real or a local guess.
type DisplayMode int

const (
	// Authoritative means the displayed snapshot came from a poll.
	Authoritative DisplayMode = iota
	// Optimistic means a locally projected snapshot is displayed while a
	// command awaits confirmation.
	Optimistic
)

// DisplayState is the tagged pair of mode and snapshot the UI renders.
// It collapses back to Authoritative on confirmation or timeout; optimistic
// and authoritative state are never merged silently.
type DisplayState struct {
	Mode     DisplayMode
	Snapshot *Snapshot
	Pending  CommandKind // meaningful only in Optimistic mode
}

// NoticeKind classifies user-facing notices emitted by the engine.
type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeWarning
	NoticeDeviceChange
)

// Notice is a soft, non-fatal message for the UI (command may not have
// applied, playback moved to another device, and the like).
type Notice struct {
	Kind NoticeKind
	Text string
	At   time.Time
}

// ViewModel is the merged displayable state: authoritative snapshot, any live
// optimistic projection, and connectivity status.
type ViewModel struct {
	Display       DisplayState
	Authoritative *Snapshot
	Connectivity  Connectivity
	TransferLock  bool
	Notice        *Notice
}

// Bus is the single-writer, many-reader state cell between the engine and the
// UI. The tracker and dispatcher mutate it through one mutex-guarded path;
// readers only ever see whole, consistent view models.
type Bus struct {
	mu   sync.Mutex
	vm   ViewModel
	subs []chan struct{}
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe returns a channel that receives a (coalesced) signal whenever the
// view model changes. Readers then pull the new state with [Bus.State].
func (b *Bus) Subscribe() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan struct{}, 1)
	b.subs = append(b.subs, ch)
	return ch
}

// State returns the current view model. Snapshots are immutable, so sharing
// their pointers with readers is safe.
func (b *Bus) State() ViewModel {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.vm
}

// update is the single mutation path. All writes funnel through here so
// readers never observe a torn update.
func (b *Bus) update(fn func(*ViewModel)) {
	b.mu.Lock()
	fn(&b.vm)
	subs := b.subs
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default: // a pending signal already covers this change
		}
	}
}

// applySnapshot installs a new authoritative snapshot.
//
// Snapshots are applied in capture order only: anything at or before the
// current authoritative capture time is dropped, so a late response can never
// roll the published state backwards. Returns whether the snapshot was applied.
func (b *Bus) applySnapshot(s *Snapshot) bool {
	applied := false
	b.update(func(vm *ViewModel) {
		if s != nil && vm.Authoritative != nil && !s.CapturedAt.After(vm.Authoritative.CapturedAt) {
			return
		}
		applied = true
		vm.Authoritative = s
		vm.Connectivity = Connected
		if vm.Display.Mode == Authoritative {
			vm.Display.Snapshot = s
		}
	})
	return applied
}

// setOptimistic publishes a locally projected snapshot ahead of confirmation.
func (b *Bus) setOptimistic(s *Snapshot, kind CommandKind) {
	b.update(func(vm *ViewModel) {
		vm.Display = DisplayState{Mode: Optimistic, Snapshot: s, Pending: kind}
	})
}

// collapse reverts the display to the authoritative snapshot, optionally
// surfacing a notice. Used both for confirmation (no notice) and for rollback.
func (b *Bus) collapse(notice *Notice) {
	b.update(func(vm *ViewModel) {
		vm.Display = DisplayState{Mode: Authoritative, Snapshot: vm.Authoritative}
		if notice != nil {
			vm.Notice = notice
		}
	})
}

func (b *Bus) setConnectivity(c Connectivity) {
	b.update(func(vm *ViewModel) {
		vm.Connectivity = c
	})
}

func (b *Bus) setTransferLock(locked bool) {
	b.update(func(vm *ViewModel) {
		vm.TransferLock = locked
	})
}

func (b *Bus) notify(kind NoticeKind, text string, at time.Time) {
	b.update(func(vm *ViewModel) {
		vm.Notice = &Notice{Kind: kind, Text: text, At: at}
	})
}
