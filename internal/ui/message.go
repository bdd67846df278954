package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/castlebay/halcyon/internal/models"
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
	MsgTick MsgKind = iota
	MsgEventsLoaded
)

// tickMsg is the constructor for [MsgTick]
func tickMsg(t time.Time) Msg {
	return Msg{kind: MsgTick, data: t}
}

// eventsLoadedMsg is the constructor for [MsgEventsLoaded]
func eventsLoadedMsg(events []models.AuthEvent, err error) Msg {
	return Msg{
		kind: MsgEventsLoaded,
		data: struct {
			events []models.AuthEvent
			err    error
		}{events, err},
	}
}
