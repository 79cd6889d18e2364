// Package ui implements the now-playing terminal interface using bubbletea's Elm architecture.
//
// The TUI has three views:
//  1. [PlayerView] : the current session state, one screen per [models.State]
//  2. [SetupView] : the redirect URI and a text input that saves the Spotify Client ID
//  3. [LinksView] : the track, artist and album URIs, opened through the OS handler
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Session updates reach the loop through a [Presenter], a buffered channel drained by a waiting command,
// and every user action is dispatched to the session from a command so Update never blocks.
//
// Keyboard bindings (l, o, r, s, enter, esc, q) are displayed via charmbracelet/bubbles/help.
package ui
