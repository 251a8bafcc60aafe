// Package ui implements the interactive terminal interface using bubbletea's
// Elm architecture.
//
// The TUI offers three screens (Library with playlists and tracks, Search,
// and Liked Songs) plus a devices overlay and an always-visible now-playing bar.
//
// The [Model] is a read-only subscriber of the engine's view-model bus:
// every bus change arrives as a render trigger, and keybindings are turned
// into typed [player.Intent] values for the dispatcher. The UI never mutates
// engine state directly.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, tab) with
// playback controls on space, n/p, +/-, and </>; contextual help is displayed
// via charmbracelet/bubbles/help.
package ui
