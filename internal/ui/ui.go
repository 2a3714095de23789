package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/cull/internal/artwork"
	"github.com/desertthunder/cull/internal/curation"
	"github.com/desertthunder/cull/internal/models"
	"github.com/desertthunder/cull/internal/shared"
)

// Curator is the decision loop as seen by the UI. [*curation.DecisionLoop] implements it.
type Curator interface {
	Accept(ctx context.Context) error
	Reject(ctx context.Context) error
	Retry(ctx context.Context) error
	Current() (models.Track, bool)
	State() curation.State
	Position() curation.Position
	Stats() curation.Stats
}

var _ Curator = (*curation.DecisionLoop)(nil)

const defaultDoneHold = 2 * time.Second

// Options configures a [Model].
type Options struct {
	Playlist string // Display name of the playlist
	Rule     string // Keep rule, shown in the header
	DryRun   bool
	Loop     Curator
	Save     func() // Triggers finalization; called at most once, off the update loop
	Progress <-chan curation.ProgressUpdate
	Finished <-chan struct{} // Closed when finalization is over; the UI then quits
	DoneHold time.Duration   // How long the done view stays up before quitting
	Artwork  *artwork.Loader // nil disables cover art
	Logger   *log.Logger
}

// ViewState represents the current view in the TUI.
type ViewState int

const (
	CuratingView ViewState = iota
	SavingView
	DoneView
)

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	opts   Options
	logger *log.Logger

	view     ViewState
	busy     bool
	waiting  bool
	finished bool
	saveOnce sync.Once
	err      error

	// Snapshot of the loop, refreshed only while no decision is in flight.
	track    models.Track
	hasTrack bool
	state    curation.State
	pos      curation.Position
	stats    curation.Stats

	art      string
	artID    string
	progress curation.ProgressUpdate

	width   int
	height  int
	spinner spinner.Model
	bar     progress.Model
	help    help.Model
	keys    keyMap
}

// NewModel creates a new TUI model over a ready decision loop.
func NewModel(ctx context.Context, opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	if opts.Save == nil {
		opts.Save = func() {}
	}
	if opts.DoneHold <= 0 {
		opts.DoneHold = defaultDoneHold
	}

	m := &Model{
		ctx:     ctx,
		opts:    opts,
		logger:  opts.Logger,
		view:    CuratingView,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:    help.New(),
		keys:    newKeyMap(),
	}
	m.snapshot()
	return m
}

// Active returns the view being shown.
func (m *Model) Active() ViewState { return m.view }

// Init starts the spinner, loads art for the first track and watches for finalization.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadArtwork(), m.waitForFinish())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case decidedMsg:
		return m, m.handleDecided(msg)

	case artworkMsg:
		if msg.trackID != m.track.ID {
			return m, nil
		}
		if msg.err != nil {
			m.logger.Warn("artwork unavailable", "track", msg.trackID, "error", msg.err)
		}
		m.artID = msg.trackID
		m.art = msg.art
		return m, nil

	case finishedMsg:
		return m, m.handleFinished()

	case progressMsg:
		m.waiting = false
		m.progress = curation.ProgressUpdate(msg)
		if m.progress.Phase == curation.PhaseDone {
			m.view = DoneView
			return m, nil
		}
		return m, m.waitForProgress()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.finished {
		return tea.Quit
	}
	if key.Matches(msg, m.keys.save) {
		return m.save()
	}
	if m.view != CuratingView {
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return nil
	case m.busy:
		return nil
	case key.Matches(msg, m.keys.accept):
		return m.decide(m.opts.Loop.Accept)
	case key.Matches(msg, m.keys.reject):
		return m.decide(m.opts.Loop.Reject)
	case key.Matches(msg, m.keys.retry) && m.state == curation.AwaitingNextBatch:
		return m.decide(m.opts.Loop.Retry)
	}
	return nil
}

// decide runs one loop input off the update loop. Inputs arriving while it runs are dropped.
func (m *Model) decide(input func(context.Context) error) tea.Cmd {
	m.busy = true
	m.err = nil
	return tea.Batch(
		func() tea.Msg { return decidedMsg{err: input(m.ctx)} },
		m.spinner.Tick,
	)
}

func (m *Model) handleDecided(msg decidedMsg) tea.Cmd {
	m.busy = false

	switch {
	case msg.err == nil:
	case errors.Is(msg.err, shared.ErrSessionOver):
	default:
		m.err = msg.err
	}

	m.snapshot()
	if m.state == curation.Exhausted {
		return m.startSaving()
	}
	return m.loadArtwork()
}

// save triggers finalization once and switches to the saving view.
func (m *Model) save() tea.Cmd {
	m.saveOnce.Do(func() {
		m.logger.Info("save requested")
		go m.opts.Save()
	})
	return m.startSaving()
}

func (m *Model) startSaving() tea.Cmd {
	if m.view == CuratingView {
		m.view = SavingView
	}
	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	if m.opts.Progress == nil || m.waiting || m.view == DoneView {
		return nil
	}
	m.waiting = true

	ch := m.opts.Progress
	return func() tea.Msg {
		update, ok := <-ch
		if !ok {
			return progressMsg{Phase: curation.PhaseDone, Message: "Saved"}
		}
		return progressMsg(update)
	}
}

func (m *Model) waitForFinish() tea.Cmd {
	if m.opts.Finished == nil {
		return nil
	}

	ch, ctx := m.opts.Finished, m.ctx
	return func() tea.Msg {
		select {
		case <-ch:
			return finishedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

// handleFinished shows the done view with the latest progress and quits after DoneHold.
// Finalization may have started from a signal, so progress not yet read is drained here.
func (m *Model) handleFinished() tea.Cmd {
	m.finished = true
	m.busy = false
	m.snapshot()

drain:
	for {
		select {
		case update, ok := <-m.opts.Progress:
			if !ok {
				break drain
			}
			m.progress = update
		default:
			break drain
		}
	}
	if m.progress.Phase != curation.PhaseDone {
		m.progress = curation.ProgressUpdate{Phase: curation.PhaseDone, Message: "Saved"}
	}

	m.view = DoneView
	return tea.Tick(m.opts.DoneHold, func(time.Time) tea.Msg { return tea.Quit() })
}

// loadArtwork renders the current track's cover art without touching the loop.
func (m *Model) loadArtwork() tea.Cmd {
	if !m.hasTrack || m.opts.Artwork == nil || m.track.Artwork.Empty() {
		m.art, m.artID = "", ""
		return nil
	}
	if m.track.ID == m.artID {
		return nil
	}

	m.art, m.artID = "", ""
	loader, track, ctx := m.opts.Artwork, m.track, m.ctx
	return func() tea.Msg {
		art, err := loader.Render(ctx, track.Artwork)
		return artworkMsg{trackID: track.ID, art: art, err: err}
	}
}

func (m *Model) snapshot() {
	m.track, m.hasTrack = m.opts.Loop.Current()
	m.state = m.opts.Loop.State()
	m.pos = m.opts.Loop.Position()
	m.stats = m.opts.Loop.Stats()
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case SavingView:
		body = m.renderSaving()
	case DoneView:
		body = m.renderDone()
	default:
		body = m.renderCurating()
	}
	return styles.frame.Render(body)
}

func (m *Model) renderHeader() string {
	title := fmt.Sprintf("cull · %s", m.opts.Playlist)
	if m.opts.DryRun {
		title += " (dry run)"
	}

	if m.opts.Rule == "" {
		return styles.title.Render(title)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.title.UnsetMarginBottom().Render(title),
		styles.help.Render("keep if "+m.opts.Rule),
		"",
	)
}

func (m *Model) renderCurating() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	switch {
	case m.state == curation.AwaitingNextBatch:
		b.WriteString(styles.warn.Render("Could not fetch the next page."))
		b.WriteString("\n")
		b.WriteString(styles.help.Render("Press r to retry or q to save what you have."))
	case m.hasTrack:
		b.WriteString(m.renderTrack())
	}

	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("kept %d · dropped %d", m.stats.Accepted, m.stats.Rejected))
	if m.busy {
		b.WriteString("  " + m.spinner.View() + " working...")
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderTrack() string {
	t := m.track

	lines := []string{styles.ok.Render(t.Name), styles.artist.Render(t.Artist)}
	if t.Album != "" {
		lines = append(lines, t.Album)
	}
	lines = append(lines, "", styles.help.Render(fmt.Sprintf("popularity %d", t.Popularity)))
	if t.Explicit {
		lines = append(lines, styles.warn.Render("explicit"))
	}
	lines = append(lines, "", styles.help.Render(fmt.Sprintf("track %d of %d · page %d", m.pos.Index+1, m.pos.Len, m.pos.Batch)))
	info := lipgloss.JoinVertical(lipgloss.Left, lines...)

	if m.opts.Artwork == nil {
		return info
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.renderArt(), "   ", info)
}

func (m *Model) renderArt() string {
	if m.art != "" && m.artID == m.track.ID {
		return m.art
	}
	w := m.opts.Artwork.Width()
	return lipgloss.Place(w, w/2, lipgloss.Center, lipgloss.Center, styles.help.Render("♪"))
}

func (m *Model) renderSaving() string {
	title := styles.title.Render("Saving")

	percent := 0.0
	if m.progress.Total > 0 {
		percent = float64(m.progress.Step) / float64(m.progress.Total)
	}

	message := m.progress.Message
	if message == "" {
		message = "Finishing up..."
	}

	return fmt.Sprintf("%s\n%s\n\n%s", title, m.bar.ViewAs(percent), message)
}

func (m *Model) renderDone() string {
	title := styles.ok.Render("✓ " + m.progress.Message)
	stats := fmt.Sprintf("\nkept %d · dropped %d · surfaced %d", m.stats.Accepted, m.stats.Rejected, m.stats.Surfaced)
	if !m.finished {
		return fmt.Sprintf("%s\n%s", title, stats)
	}
	return fmt.Sprintf("%s\n%s\n\n%s", title, stats, styles.help.Render("press any key to exit"))
}
