package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
	"github.com/desertthunder/chartx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	WaitingView ViewState = iota
	MatchingView
	ResultView
)

const (
	logSize        = 8
	progressBuffer = 128
	maxBarWidth    = 60
)

// BuildFunc runs a build, reporting progress on the channel. It must not close the channel.
type BuildFunc func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*models.BuildSummary, error)

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	year   int
	build  BuildFunc
	view   ViewState
	width  int
	height int

	spinner   spinner.Model
	bar       progress.Model
	status    string
	authURL   string
	step      int
	total     int
	log       []string
	canceling bool

	progressChan chan tasks.ProgressUpdate
	done         chan Msg

	summary *models.BuildSummary
	err     error
	missing list.Model
	help    help.Model
	keys    keyMap
}

// NewModel creates a TUI model that runs build for year once started.
func NewModel(ctx context.Context, year int, build BuildFunc) *Model {
	ctx, cancel := context.WithCancel(ctx)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title.UnsetMarginBottom()

	return &Model{
		ctx:     ctx,
		cancel:  cancel,
		year:    year,
		build:   build,
		view:    WaitingView,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		status:  "Starting...",
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Run starts the program and blocks until the user quits, returning the build's outcome.
func Run(ctx context.Context, year int, build BuildFunc) (*models.BuildSummary, error) {
	m := NewModel(ctx, year, build)
	defer m.cancel()

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return nil, fmt.Errorf("error running TUI: %w", err)
	}
	if m.view != ResultView {
		return nil, fmt.Errorf("%w: interface closed before the build finished", shared.ErrBuildCanceled)
	}
	return m.summary, m.err
}

// Init starts the spinner and the build.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(max(msg.Width-4, 10), maxBarWidth)
		if m.view == ResultView {
			m.missing.SetSize(msg.Width-4, m.listHeight())
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		if m.view == ResultView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.apply(msg.data.(tasks.ProgressUpdate))
			return m, m.waitForProgress()
		case MsgBuildComplete:
			res := msg.data.(buildResult)
			m.finish(res.summary, res.err)
			return m, nil
		}
	}

	if m.view == ResultView {
		var cmd tea.Cmd
		m.missing, cmd = m.missing.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case WaitingView:
		return m.renderWaiting()
	case MatchingView:
		return m.renderMatching()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

// Summary returns the finished build's summary and error.
func (m *Model) Summary() (*models.BuildSummary, error) {
	return m.summary, m.err
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.view == ResultView {
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.missing, cmd = m.missing.Update(msg)
		return m, cmd
	}

	switch {
	case m.canceling && msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.cancel), key.Matches(msg, m.keys.quit):
		m.canceling = true
		m.status = "Canceling... waiting for in-flight requests"
		m.cancel()
	}
	return m, nil
}

func (m *Model) apply(u tasks.ProgressUpdate) {
	switch u.Phase {
	case tasks.Authorize:
		if url, ok := u.Data.(string); ok {
			m.authURL = url
		}
		m.status = u.Message
	case tasks.MatchTracks:
		m.view = MatchingView
		m.authURL = ""
		m.step, m.total = u.Step, u.Total
		m.log = append(m.log, u.Message)
		if len(m.log) > logSize {
			m.log = m.log[len(m.log)-logSize:]
		}
	default:
		m.authURL = ""
		if !m.canceling {
			m.status = u.Message
		}
	}
}

func (m *Model) finish(summary *models.BuildSummary, err error) {
	m.summary = summary
	m.err = err
	m.view = ResultView

	delegate := list.NewDefaultDelegate()
	m.missing = list.New(missingItems(summary), delegate, max(m.width-4, 20), m.listHeight())
	m.missing.Title = "Not added"
	m.missing.SetShowHelp(false)
	m.missing.SetFilteringEnabled(false)
}

func (m *Model) listHeight() int {
	return max(m.height-14, 6)
}

func (m *Model) start() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, progressBuffer)
	m.done = make(chan Msg, 1)

	ch, done, ctx := m.progressChan, m.done, m.ctx
	go func() {
		summary, err := m.build(ctx, ch)
		done <- buildCompleteMsg(summary, err)
		close(ch)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	ch, done := m.progressChan, m.done
	return func() tea.Msg {
		update, ok := <-ch
		if !ok {
			return <-done
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) title() string {
	return styles.title.Render(models.PlaylistName(m.year))
}

func (m *Model) renderWaiting() string {
	var b strings.Builder
	b.WriteString(m.title())
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), m.status)
	if m.authURL != "" {
		fmt.Fprintf(&b, "\n%s\n%s\n", styles.help.Render("If the browser did not open, visit:"), m.authURL)
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.cancel}))
	return b.String()
}

func (m *Model) renderMatching() string {
	var b strings.Builder
	b.WriteString(m.title())
	b.WriteString("\n")

	percent := 0.0
	if m.total > 0 {
		percent = float64(m.step) / float64(m.total)
	}
	fmt.Fprintf(&b, "%s %d/%d\n\n", m.bar.ViewAs(percent), m.step, m.total)

	for _, line := range m.log {
		b.WriteString(styles.help.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.canceling {
		fmt.Fprintf(&b, "%s %s\n\n", m.spinner.View(), styles.warn.Render(m.status))
	}
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.cancel}))
	return b.String()
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.quit})

	if m.summary == nil {
		msg := "Build failed"
		if m.err != nil {
			msg = fmt.Sprintf("Build failed: %v", m.err)
		}
		return fmt.Sprintf("%s\n%s\n\n%s", m.title(), styles.err.Render(msg), helpView)
	}

	var heading string
	switch {
	case errors.Is(m.err, shared.ErrBuildCanceled):
		heading = styles.warn.Render("! Build canceled, partial results")
	case m.summary.Success:
		heading = styles.ok.Render("✓ " + m.summary.Message)
	default:
		heading = styles.err.Render("✗ " + m.summary.Message)
	}

	info := fmt.Sprintf(
		"Playlist: %s\nURL: %s\nMatched: %d  Not found: %d  Errors: %d",
		m.summary.PlaylistName,
		m.summary.PlaylistURL,
		len(m.summary.Matched),
		len(m.summary.NotFound),
		len(m.summary.Errored),
	)
	if m.summary.ErrorAdding {
		info += "\n" + styles.warn.Render("Some songs could not be added.")
	}

	out := fmt.Sprintf("%s\n%s\n%s", m.title(), heading, styles.box.Render(info))
	if len(m.missing.Items()) > 0 {
		out += "\n\n" + m.missing.View()
	}
	return out + "\n\n" + helpView
}
