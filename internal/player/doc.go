// Package player implements the playback-state synchronization and
// command-dispatch engine: it reconciles the eventually-consistent remote
// playback state with local user intent and keeps the rendered state truthful
// despite polling delay and network latency.
//
// # Data flow
//
// user intent -> [Dispatcher] (optimistic projection + gateway call) ->
// [Tracker]'s next poll reconciles -> [Bus] publishes the authoritative view
// model -> UI renders.
//
// The remote service is the source of truth: an optimistic projection is only
// ever a guess, tagged as such in [DisplayState], and collapses back to the
// authoritative snapshot on confirmation or timeout. Snapshots are applied in
// capture order only, polls are never concurrent, and all view-model mutation
// funnels through the bus's single guarded path.
package player
