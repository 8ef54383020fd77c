package charts

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
)

const (
	DefaultSourceURL = "https://www.billboard.com/charts/year-end/%d/hot-100-songs"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultTimeout   = 15 * time.Second
)

// Selectors for the year-end page. The page layout changes now and then, so each has a fallback.
const (
	rowSelector         = "div.o-chart-results-list-row-container"
	fallbackRowSelector = "li.o-chart-results-list__item"
	titleSelector       = `h3[id*="title-of-a-story"]`
	artistSelector      = "span.c-label.a-no-trucate"
)

// BillboardSource scrapes the Billboard Year-End Hot 100.
type BillboardSource struct {
	urlPattern string
	userAgent  string
	client     *http.Client
	logger     *log.Logger
}

// NewBillboardSource creates a scraper from the chart config. Zero values fall back to the defaults.
func NewBillboardSource(cfg shared.ChartConfig, client *http.Client, logger *log.Logger) *BillboardSource {
	s := &BillboardSource{
		urlPattern: cfg.SourceURL,
		userAgent:  cfg.UserAgent,
		client:     client,
		logger:     logger,
	}
	if s.urlPattern == "" {
		s.urlPattern = DefaultSourceURL
	}
	if s.userAgent == "" {
		s.userAgent = DefaultUserAgent
	}
	if s.client == nil {
		timeout := cfg.Timeout.Duration
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		s.client = &http.Client{Timeout: timeout}
	}
	if s.logger == nil {
		s.logger = shared.NewLogger(nil)
	}
	return s
}

// URL returns the chart page address for year.
func (s *BillboardSource) URL(year int) string {
	return fmt.Sprintf(s.urlPattern, year)
}

// TopEntries fetches and parses the chart page for year.
func (s *BillboardSource) TopEntries(ctx context.Context, year int) ([]models.ChartEntry, error) {
	if err := ValidateYear(year); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(year), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrChartUnavailable, err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("failed to fetch chart page", "year", year, "error", err)
		return nil, fmt.Errorf("%w: %w", shared.ErrChartUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Error("chart page returned an error", "year", year, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", shared.ErrChartUnavailable, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse page: %v", shared.ErrChartUnavailable, err)
	}

	entries, err := ParseChart(doc, s.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: year %d: %v", shared.ErrChartUnavailable, year, err)
	}

	s.logger.Info("scraped chart", "year", year, "songs", len(entries))
	return entries, nil
}

// ParseChart extracts entries from a chart page in page order.
//
// Rows missing a title or an artist are skipped and every other row is kept, so positions follow
// the page. Repeated songs, compared with [shared.NormalizeTrackKey], are kept and logged.
func ParseChart(doc *goquery.Document, logger *log.Logger) ([]models.ChartEntry, error) {
	rows := doc.Find(rowSelector)
	if rows.Length() == 0 {
		if logger != nil {
			logger.Warn("no chart rows found, trying fallback selector", "selector", rowSelector)
		}
		rows = doc.Find(fallbackRowSelector)
	}
	if rows.Length() == 0 {
		return nil, fmt.Errorf("no chart rows found")
	}

	entries := []models.ChartEntry{}
	seen := make(map[string]int)

	rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
		title, artist := parseRow(row)
		if title == "" || artist == "" {
			if logger != nil {
				logger.Debug("skipping row with missing title or artist", "text", truncate(cleanText(row.Text()), 50))
			}
			return true
		}

		position := len(entries) + 1
		key := shared.NormalizeTrackKey(title, artist)
		if first, ok := seen[key]; ok {
			if logger != nil {
				logger.Debug("song repeated on chart", "title", title, "position", position, "first", first)
			}
		} else {
			seen[key] = position
		}

		entries = append(entries, models.ChartEntry{
			Position: position,
			Title:    title,
			Artist:   artist,
		})
		return len(entries) < MaxEntries
	})

	return entries, nil
}

func parseRow(row *goquery.Selection) (title, artist string) {
	titleTag := row.Find(titleSelector).First()
	if titleTag.Length() == 0 {
		return "", ""
	}
	title = cleanText(titleTag.Text())

	artistTag := titleTag.NextAllFiltered("span").First()
	if artistTag.Length() == 0 {
		artistTag = row.Find(artistSelector).First()
	}
	artist = cleanText(artistTag.Text())
	return title, artist
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
