package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotbar/internal/models"
	"github.com/desertthunder/spotbar/internal/session"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStateUpdate MsgKind = iota
	MsgSetupRequested
	MsgPresenterClosed
	MsgTick
	MsgSettingsLoaded
	MsgCommandDone
	MsgClientSaved
)

// stateUpdateMsg is the constructor for [MsgStateUpdate]
func stateUpdateMsg(u models.Update) Msg {
	return Msg{kind: MsgStateUpdate, data: u}
}

// setupRequestedMsg is the constructor for [MsgSetupRequested]
func setupRequestedMsg() Msg {
	return Msg{kind: MsgSetupRequested}
}

// presenterClosedMsg is the constructor for [MsgPresenterClosed]
func presenterClosedMsg() Msg {
	return Msg{kind: MsgPresenterClosed}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg() Msg {
	return Msg{kind: MsgTick}
}

type settingsLoaded struct {
	settings models.Settings
	err      error
}

// settingsLoadedMsg is the constructor for [MsgSettingsLoaded]
func settingsLoadedMsg(settings models.Settings, err error) Msg {
	return Msg{kind: MsgSettingsLoaded, data: settingsLoaded{settings, err}}
}

type commandDone struct {
	kind  session.CommandKind
	reply session.Reply
}

// commandDoneMsg is the constructor for [MsgCommandDone]
func commandDoneMsg(kind session.CommandKind, reply session.Reply) Msg {
	return Msg{kind: MsgCommandDone, data: commandDone{kind, reply}}
}

// clientSavedMsg is the constructor for [MsgClientSaved]
func clientSavedMsg(err error) Msg {
	return Msg{kind: MsgClientSaved, data: err}
}
