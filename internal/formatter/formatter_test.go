package formatter

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
	th "github.com/desertthunder/chartx/internal/testing"
)

func mixedSummary() *models.BuildSummary {
	results := []models.MatchResult{
		{Entry: models.ChartEntry{Position: 1, Title: "Song A", Artist: "Artist A"}, Outcome: models.OutcomeMatched, TrackID: "id-a"},
		{Entry: models.ChartEntry{Position: 2, Title: "Song B", Artist: "Artist B"}, Outcome: models.OutcomeNotFound},
		{Entry: models.ChartEntry{Position: 3, Title: "Song, C", Artist: "Artist C"}, Outcome: models.OutcomeSearchError, Err: errors.New("status 502")},
		{Entry: models.ChartEntry{Position: 4, Title: "Song D", Artist: "Artist D"}, Outcome: models.OutcomeAddFailed, TrackID: "id-d", Err: errors.New("status 403")},
	}
	return models.NewBuildSummary(2019, "pl-1", models.PlaylistName(2019), "https://open.spotify.com/playlist/pl-1", results)
}

func TestRenderers(t *testing.T) {
	t.Run("SummaryToCSV", func(t *testing.T) {
		data, err := SummaryToCSV(mixedSummary())
		if err != nil {
			t.Fatalf("SummaryToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if lines[0] != "Position,Title,Artist,Outcome,TrackID,Error" {
			t.Errorf("CSV headers = %q", lines[0])
		}
		if len(lines) != 5 {
			t.Fatalf("expected 5 lines, got %d", len(lines))
		}
		if lines[1] != "1,Song A,Artist A,matched,id-a," {
			t.Errorf("row 1 = %q", lines[1])
		}
		if lines[3] != `3,"Song, C",Artist C,search_error,,status 502` {
			t.Errorf("row 3 = %q", lines[3])
		}
		if !strings.Contains(lines[4], "add_failed,id-d,status 403") {
			t.Errorf("row 4 = %q", lines[4])
		}
	})

	t.Run("SummaryToMarkdown", func(t *testing.T) {
		data, err := SummaryToMarkdown(mixedSummary())
		if err != nil {
			t.Fatalf("SummaryToMarkdown failed: %v", err)
		}
		output := string(data)

		for _, want := range []string{
			"# Billboard Top 100 - 2019",
			"[Open in Spotify](https://open.spotify.com/playlist/pl-1)",
			"**Matched**: 1",
			"**Not found**: 2",
			"**Errored**: 1",
			"## Added\n\n1. Artist A - Song A",
			"## Not Found\n\n2. Artist B - Song B\n4. Artist D - Song D (status 403)",
			"## Errors\n\n3. Artist C - Song, C (status 502)",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("SummaryToMarkdown skips empty sections", func(t *testing.T) {
		data, err := SummaryToMarkdown(th.SampleSummary(2023))
		if err != nil {
			t.Fatalf("SummaryToMarkdown failed: %v", err)
		}
		if strings.Contains(string(data), "## Errors") {
			t.Error("Errors section should be omitted")
		}
	})

	t.Run("SummaryToText", func(t *testing.T) {
		data, err := SummaryToText(mixedSummary())
		if err != nil {
			t.Fatalf("SummaryToText failed: %v", err)
		}
		output := string(data)

		if !strings.Contains(output, "Playlist: Billboard Top 100 - 2019") {
			t.Errorf("text missing playlist name: %s", output)
		}
		if !strings.Contains(output, "Successfully created playlist 'Billboard Top 100 - 2019' with 1 songs. 3 songs could not be found on Spotify.") {
			t.Errorf("text missing message: %s", output)
		}
		if !strings.Contains(output, "  - Song B by Artist B\n  - Song, C by Artist C\n  - Song D by Artist D") {
			t.Errorf("text missing unresolved list: %s", output)
		}
	})

	t.Run("SummaryToJSON", func(t *testing.T) {
		data, err := SummaryToJSON(mixedSummary())
		if err != nil {
			t.Fatalf("SummaryToJSON failed: %v", err)
		}
		output := string(data)
		if !strings.Contains(output, `"outcome": "search_error"`) {
			t.Errorf("JSON missing outcome text: %s", output)
		}
		if !strings.Contains(output, `"error_adding": true`) {
			t.Errorf("JSON missing error_adding: %s", output)
		}
	})

	t.Run("EntriesToCSV", func(t *testing.T) {
		entries := []models.ChartEntry{{Position: 1, Title: "Song A", Artist: "Artist A"}}
		data, err := EntriesToCSV(entries)
		if err != nil {
			t.Fatalf("EntriesToCSV failed: %v", err)
		}
		if string(data) != "Position,Title,Artist\n1,Song A,Artist A\n" {
			t.Errorf("EntriesToCSV = %q", data)
		}
	})

	t.Run("EntriesToText", func(t *testing.T) {
		entries := []models.ChartEntry{{Position: 1, Title: "Song A", Artist: "Artist A"}}
		output := string(EntriesToText(2023, entries))
		if !strings.Contains(output, "2023 (1 songs)") || !strings.Contains(output, "  1. Song A - Artist A") {
			t.Errorf("EntriesToText = %q", output)
		}
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"txt", FormatText, false},
		{"Markdown", FormatMarkdown, false},
		{"md", FormatMarkdown, false},
		{"csv", FormatCSV, false},
		{" json ", FormatJSON, false},
		{"yaml", "", true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidFlag) {
					t.Errorf("expected ErrInvalidFlag, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWriteSummary(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out", "summary.csv")

		got, err := WriteSummary(mixedSummary(), FormatCSV, path)
		if err != nil {
			t.Fatalf("WriteSummary failed: %v", err)
		}
		if got != path {
			t.Errorf("path = %q, want %q", got, path)
		}

		th.AssertFileExists(t, path)
		if content := th.MustReadFile(t, path); !strings.HasPrefix(content, "Position,Title") {
			t.Errorf("unexpected content: %s", content)
		}
	})

	t.Run("default path", func(t *testing.T) {
		t.Chdir(t.TempDir())

		got, err := WriteSummary(th.SampleSummary(2023), FormatMarkdown, "")
		if err != nil {
			t.Fatalf("WriteSummary failed: %v", err)
		}
		if got != "billboard_2023.md" {
			t.Errorf("path = %q", got)
		}
		th.AssertFileExists(t, got)
	})

	t.Run("nil summary", func(t *testing.T) {
		if _, err := WriteSummary(nil, FormatText, filepath.Join(t.TempDir(), "x.txt")); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
