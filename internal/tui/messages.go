package tui

import "replydesk/internal/ledger"

// Async message types for Bubble Tea commands.

type loadedMsg struct {
	err error
}

type sessionChangedMsg struct{}

type notesChangedMsg struct{}

type sentMsg struct {
	id  string
	err error
}

type autoSendDoneMsg struct {
	sent int
	err  error
}

type polledMsg struct {
	added int
	err   error
}

type reviewOpenedMsg struct {
	ledger *ledger.Ledger
	err    error
}

type regeneratedMsg struct {
	id   string
	text string
	err  error
}

type dictatedMsg struct {
	text string
	err  error
}

type statusMsg string
