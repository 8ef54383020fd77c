// package formatter renders build summaries and chart listings as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
)

// Format names an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or a common alias ("md", "txt").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, s)
	}
}

// Ext returns the file extension for f, without the dot.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	default:
		return "txt"
	}
}

// SummaryToCSV converts a BuildSummary to CSV with columns: Position, Title, Artist, Outcome, TrackID, Error
func SummaryToCSV(summary *models.BuildSummary) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Title", "Artist", "Outcome", "TrackID", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range summary.Results {
		record := []string{
			strconv.Itoa(r.Entry.Position),
			r.Entry.Title,
			r.Entry.Artist,
			r.Outcome.String(),
			r.TrackID,
			r.ErrorString(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// SummaryToMarkdown converts a BuildSummary to Markdown with a link to the playlist and one section per outcome
func SummaryToMarkdown(summary *models.BuildSummary) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", summary.PlaylistName))
	if summary.PlaylistURL != "" {
		buf.WriteString(fmt.Sprintf("[Open in Spotify](%s)\n\n", summary.PlaylistURL))
	}
	buf.WriteString(fmt.Sprintf("%s\n\n", summary.Message))

	buf.WriteString(fmt.Sprintf("**Year**: %d\n", summary.Year))
	buf.WriteString(fmt.Sprintf("**Matched**: %d\n", len(summary.Matched)))
	buf.WriteString(fmt.Sprintf("**Not found**: %d\n", len(summary.NotFound)))
	buf.WriteString(fmt.Sprintf("**Errored**: %d\n\n", len(summary.Errored)))

	writeSection := func(title string, keep func(models.MatchResult) bool) {
		var lines []string
		for _, r := range summary.Results {
			if !keep(r) {
				continue
			}
			line := fmt.Sprintf("%d. %s - %s", r.Entry.Position, r.Entry.Artist, r.Entry.Title)
			if msg := r.ErrorString(); msg != "" {
				line += fmt.Sprintf(" (%s)", msg)
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			return
		}
		buf.WriteString(fmt.Sprintf("## %s\n\n", title))
		buf.WriteString(strings.Join(lines, "\n"))
		buf.WriteString("\n\n")
	}

	writeSection("Added", func(r models.MatchResult) bool { return r.Outcome == models.OutcomeMatched })
	writeSection("Not Found", func(r models.MatchResult) bool {
		return r.Outcome == models.OutcomeNotFound || r.Outcome == models.OutcomeAddFailed
	})
	writeSection("Errors", func(r models.MatchResult) bool { return r.Outcome == models.OutcomeSearchError })

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// SummaryToText converts a BuildSummary to plain text format
func SummaryToText(summary *models.BuildSummary) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", summary.PlaylistName))
	if summary.PlaylistURL != "" {
		buf.WriteString(fmt.Sprintf("URL: %s\n", summary.PlaylistURL))
	}
	buf.WriteString(fmt.Sprintf("%s\n", summary.Message))
	buf.WriteString(fmt.Sprintf("Matched: %d  Not found: %d  Errored: %d\n", len(summary.Matched), len(summary.NotFound), len(summary.Errored)))

	if unresolved := summary.Unresolved(); len(unresolved) > 0 {
		buf.WriteString("\nCould not add:\n")
		for _, label := range unresolved {
			buf.WriteString(fmt.Sprintf("  - %s\n", label))
		}
	}

	return buf.Bytes(), nil
}

// SummaryToJSON converts a BuildSummary to indented JSON
func SummaryToJSON(summary *models.BuildSummary) ([]byte, error) {
	return shared.MarshalJSON(summary, true)
}

// RenderSummary dispatches to the renderer for f.
func RenderSummary(summary *models.BuildSummary, f Format) ([]byte, error) {
	if summary == nil {
		return nil, fmt.Errorf("%w: nil summary", shared.ErrInvalidInput)
	}

	switch f {
	case FormatMarkdown:
		return SummaryToMarkdown(summary)
	case FormatCSV:
		return SummaryToCSV(summary)
	case FormatJSON:
		return SummaryToJSON(summary)
	default:
		return SummaryToText(summary)
	}
}

// WriteSummary renders summary in format f and writes it to path.
//
// Defaults to billboard_{year}.{ext} in the working directory; parent directories are created.
func WriteSummary(summary *models.BuildSummary, f Format, path string) (string, error) {
	data, err := RenderSummary(summary, f)
	if err != nil {
		return "", err
	}

	if path == "" {
		path = fmt.Sprintf("billboard_%d.%s", summary.Year, f.Ext())
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write summary file: %w", err)
	}
	return path, nil
}

// EntriesToText lists chart entries as "N. Title - Artist" lines
func EntriesToText(year int, entries []models.ChartEntry) []byte {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("Billboard Year-End Hot 100: %d (%d songs)\n\n", year, len(entries)))
	for _, e := range entries {
		buf.WriteString(fmt.Sprintf("%3d. %s - %s\n", e.Position, e.Title, e.Artist))
	}
	return buf.Bytes()
}

// EntriesToCSV converts chart entries to CSV with columns: Position, Title, Artist
func EntriesToCSV(entries []models.ChartEntry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Position", "Title", "Artist"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, e := range entries {
		if err := writer.Write([]string{strconv.Itoa(e.Position), e.Title, e.Artist}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}
