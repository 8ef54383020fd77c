package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/tasks"
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
	MsgProgressUpdate MsgKind = iota
	MsgBuildComplete
)

type buildResult struct {
	summary *models.BuildSummary
	err     error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// buildCompleteMsg is the constructor for [MsgBuildComplete]
func buildCompleteMsg(summary *models.BuildSummary, err error) Msg {
	return Msg{kind: MsgBuildComplete, data: buildResult{summary, err}}
}
