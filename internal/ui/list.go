package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/chartx/internal/models"
)

var _ list.Item = resultItem{}

// resultItem wraps an unmatched [models.MatchResult] to implement [list.Item].
type resultItem struct {
	result models.MatchResult
}

func (i resultItem) FilterValue() string { return i.result.Entry.Label() }
func (i resultItem) Title() string {
	return fmt.Sprintf("%d. %s", i.result.Entry.Position, i.result.Entry.Title)
}
func (i resultItem) Description() string {
	desc := fmt.Sprintf("%s • %s", i.result.Entry.Artist, i.result.Outcome)
	if msg := i.result.ErrorString(); msg != "" {
		desc = fmt.Sprintf("%s • %s", desc, msg)
	}
	return desc
}

// missingItems lists every result that did not make it into the playlist, in chart order.
func missingItems(summary *models.BuildSummary) []list.Item {
	if summary == nil {
		return nil
	}
	var items []list.Item
	for _, r := range summary.Results {
		if !r.Matched() {
			items = append(items, resultItem{result: r})
		}
	}
	return items
}
