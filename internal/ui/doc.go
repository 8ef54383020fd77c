// Package ui implements an interactive terminal view of a playlist build using bubbletea's Elm architecture.
//
// The [Model] moves through three views:
//  1. [WaitingView] : spinner while the browser authorization, chart fetch and playlist creation run
//  2. [MatchingView] : progress bar and a scrolling log of the latest matched entries
//  3. [ResultView] : lipgloss summary plus a browsable list of entries that were not added
//
// The build itself is a [BuildFunc] run on its own goroutine. Progress updates flow through a
// channel and arrive as [Msg] values; esc or ctrl+c cancels the build and the partial summary is shown.
package ui
