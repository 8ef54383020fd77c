package models

import "fmt"

// ChartEntry is one row of a year-end chart. Position is the 1-based chart rank.
type ChartEntry struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
}

// Label renders the entry the way summaries list it: "<title> by <artist>".
func (e ChartEntry) Label() string {
	return fmt.Sprintf("%s by %s", e.Title, e.Artist)
}
