package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/readaloud/internal/app/playback"
	"github.com/osa030/readaloud/internal/domain/speech"
)

// Controls are the playback actions bound to keys.
type Controls interface {
	Select(path string) error
	Play() error
	Pause() error
	Stop() error
	Next() error
	Prev() error
	Faster() int
	Slower() int
	Status() playback.Status
}

// Options configures the terminal UI.
type Options struct {
	Extension string           // Only files with this extension can be picked
	StartDir  string           // Directory the file picker opens in
	RateRange speech.RateRange // Bounds of the rate slider
}

const (
	controlHeight = 8
	minTextHeight = 3
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	enabledStyle  = lipgloss.NewStyle().Bold(true)
	disabledStyle = lipgloss.NewStyle().Faint(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// Model is the bubbletea model of the terminal UI.
type Model struct {
	controls Controls
	options  Options
	keys     keyMap
	attach   tea.Cmd

	subscription string
	status       playback.Status
	lastSeq      uint64

	message string
	isError bool

	picking bool
	picker  filepicker.Model
	text    viewport.Model
	rate    progress.Model

	width  int
	height int
}

// caseVariants returns every upper/lower case spelling of ext. The file
// picker matches suffixes case-sensitively while documents are accepted
// regardless of case.
func caseVariants(ext string) []string {
	variants := []string{""}
	for _, r := range ext {
		lower, upper := strings.ToLower(string(r)), strings.ToUpper(string(r))
		next := make([]string, 0, len(variants)*2)
		for _, v := range variants {
			next = append(next, v+lower)
			if upper != lower {
				next = append(next, v+upper)
			}
		}
		variants = next
	}
	return variants
}

// New creates the model. attach subscribes the surface when the program starts.
func New(controls Controls, opts Options, attach tea.Cmd) Model {
	picker := filepicker.New()
	picker.AllowedTypes = caseVariants(opts.Extension)
	if opts.StartDir != "" {
		picker.CurrentDirectory = opts.StartDir
	}

	text := viewport.New(80, minTextHeight)
	text.KeyMap = scrollKeys()

	return Model{
		controls: controls,
		options:  opts,
		keys:     defaultKeyMap(),
		attach:   attach,
		status:   controls.Status(),
		picker:   picker,
		text:     text,
		rate:     progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(30)),
		width:    80,
		height:   controlHeight + minTextHeight + 4,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.attach
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd

	case attachedMsg:
		if msg.err != nil {
			m.showError(msg.err)
			return m, nil
		}
		m.subscription = msg.id
		return m, nil

	case updateMsg:
		m.apply(msg)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) && (!m.picking || msg.String() == "ctrl+c") {
			return m, tea.Quit
		}
		if m.picking {
			return m.updatePicker(msg)
		}
		return m.handleKey(msg)
	}

	if m.picking {
		return m.updatePicker(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Open):
		if !m.status.CanSelect() {
			m.showInfo("stop narration before opening another document")
			return m, nil
		}
		m.picking = true
		m.message = ""
		return m, m.picker.Init()

	case key.Matches(msg, m.keys.Play):
		m.run(m.controls.Play)
	case key.Matches(msg, m.keys.Pause):
		m.run(m.controls.Pause)
	case key.Matches(msg, m.keys.Stop):
		m.run(m.controls.Stop)
	case key.Matches(msg, m.keys.Next):
		m.run(m.controls.Next)
	case key.Matches(msg, m.keys.Prev):
		m.run(m.controls.Prev)
	case key.Matches(msg, m.keys.Faster):
		m.status.Rate = m.controls.Faster()
	case key.Matches(msg, m.keys.Slower):
		m.status.Rate = m.controls.Slower()

	default:
		var cmd tea.Cmd
		m.text, cmd = m.text.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updatePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && key.Matches(k, m.keys.Cancel) {
		m.picking = false
		return m, nil
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)

	if ok, path := m.picker.DidSelectFile(msg); ok {
		m.picking = false
		zlog.Debug().Msgf("tui: file picked: path=%s", path)
		m.run(func() error { return m.controls.Select(path) })
		return m, cmd
	}
	if ok, path := m.picker.DidSelectDisabledFile(msg); ok {
		m.showError(errors.Newf("%s is not a %s file", filepath.Base(path), m.options.Extension))
	}
	return m, cmd
}

// run performs an action and reports its error on the status line.
func (m *Model) run(action func() error) {
	if err := action(); err != nil {
		m.showError(err)
		return
	}
	m.message = ""
	m.isError = false
}

// apply renders an update from the controller.
func (m *Model) apply(u updateMsg) {
	if u.SequenceNo != 0 && u.SequenceNo <= m.lastSeq {
		return
	}
	m.lastSeq = u.SequenceNo
	m.status = u.Status

	switch u.Kind {
	case playback.EventDocumentOpened, playback.EventDocumentReloaded, playback.EventPageShown:
		m.setText(u.Status.Text)
	case playback.EventFinished:
		m.showInfo("finished reading " + filepath.Base(u.Status.Path))
	case playback.EventFailed:
		if u.Err != nil {
			m.showError(u.Err)
		}
	}
}

func (m *Model) setText(text string) {
	wrapped := lipgloss.NewStyle().Width(m.text.Width).Render(text)
	m.text.SetContent(wrapped)
	m.text.GotoTop()
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	inner := max(width-4, 10)
	m.text.Width = inner
	m.text.Height = max(height-controlHeight-6, minTextHeight)
	m.rate.Width = min(inner/2, 40)
	m.setText(m.status.Text)
}

func (m *Model) showError(err error) {
	m.message = err.Error()
	m.isError = true
}

func (m *Model) showInfo(text string) {
	m.message = text
	m.isError = false
}

// View implements tea.Model.
func (m Model) View() string {
	width := max(m.width-2, 20)

	controls := panelStyle.Width(width).Render(m.controlsView())

	var body string
	if m.picking {
		body = panelStyle.Width(width).Render(
			titleStyle.Render("Open "+m.options.Extension+" file") + "  " + labelStyle.Render("(esc to cancel)") + "\n" + m.picker.View())
	} else {
		body = panelStyle.Width(width).Render(m.text.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left, controls, body, m.statusLine())
}

func (m Model) controlsView() string {
	s := m.status

	file := "(no document)"
	if s.HasDocument() {
		file = filepath.Base(s.Path)
	}
	page := "-"
	if s.Pages > 0 {
		page = fmt.Sprintf("%d/%d", s.Page+1, s.Pages)
	}

	lines := []string{
		titleStyle.Render("readaloud"),
		labelStyle.Render("file:  ") + file,
		labelStyle.Render("state: ") + s.State.String() + "   " + labelStyle.Render("page: ") + page,
		labelStyle.Render("rate:  ") + m.rate.ViewAs(m.ratePercent()) + fmt.Sprintf(" %d wpm", s.Rate),
		"",
		m.helpView(),
	}
	return strings.Join(lines, "\n")
}

func (m Model) ratePercent() float64 {
	r := m.options.RateRange
	if r.Max <= r.Min {
		return 0
	}
	return float64(m.status.Rate-r.Min) / float64(r.Max-r.Min)
}

// helpView lists the keys, dimming the ones that currently do nothing.
func (m Model) helpView() string {
	s := m.status
	r := m.options.RateRange
	items := []struct {
		binding key.Binding
		enabled bool
	}{
		{m.keys.Open, s.CanSelect()},
		{m.keys.Play, s.CanPlay()},
		{m.keys.Pause, s.CanPause()},
		{m.keys.Stop, s.CanStop()},
		{m.keys.Next, s.CanNext()},
		{m.keys.Prev, s.CanPrev()},
		{m.keys.Faster, r.Max == 0 || s.Rate < r.Max},
		{m.keys.Slower, s.Rate > r.Min},
		{m.keys.Quit, true},
	}

	parts := make([]string, 0, len(items))
	for _, it := range items {
		h := it.binding.Help()
		style := enabledStyle
		if !it.enabled {
			style = disabledStyle
		}
		parts = append(parts, style.Render(h.Key)+" "+labelStyle.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}

func (m Model) statusLine() string {
	if m.message == "" {
		return ""
	}
	if m.isError {
		return errorStyle.Render("error: " + m.message)
	}
	return infoStyle.Render(m.message)
}
