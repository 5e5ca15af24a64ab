package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/isruplay/internal/playback"
	"github.com/san-kum/isruplay/internal/view"
)

const (
	refreshInterval = 100 * time.Millisecond
	logHeight       = 6
	defaultWidth    = 100
	defaultHeight   = 32
)

// Controller is the part of playback.Controller the dashboard drives.
type Controller interface {
	Start(ctx context.Context, p playback.Params) error
	Pause()
	SetView(id view.ID) error
	Status() playback.Status
}

// Source supplies the latest rendered chart.
type Source interface {
	String() string
}

type resizer interface {
	Resize(width, height int)
}

type refreshMsg time.Time

type startedMsg struct{ err error }

type Options struct {
	Params    playback.Params
	Theme     string
	AutoStart bool
}

// Model is the bubbletea model of the playback dashboard.
type Model struct {
	ctx      context.Context
	ctrl     Controller
	chart    Source
	logs     *playback.MemoryLog
	params   playback.Params
	auto     bool
	keys     KeyMap
	help     help.Model
	log      viewport.Model
	theme    Theme
	st       styles
	status   playback.Status
	logTotal int
	starting bool
	err      error
	width    int
	height   int
}

func New(ctx context.Context, ctrl Controller, chart Source, logs *playback.MemoryLog, opts Options) Model {
	theme := GetTheme(opts.Theme)
	return Model{
		ctx:    ctx,
		ctrl:   ctrl,
		chart:  chart,
		logs:   logs,
		params: opts.Params,
		auto:   opts.AutoStart,
		keys:   DefaultKeyMap(),
		help:   help.New(),
		log:    viewport.New(defaultWidth-4, logHeight),
		theme:  theme,
		st:     newStyles(theme),
		status: ctrl.Status(),
		width:  defaultWidth,
		height: defaultHeight,
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{refresh()}
	if m.auto {
		cmds = append(cmds, m.start())
	}
	return tea.Batch(cmds...)
}

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m Model) start() tea.Cmd {
	ctx, ctrl, p := m.ctx, m.ctrl, m.params
	return func() tea.Msg {
		return startedMsg{err: ctrl.Start(ctx, p)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.log.Width = msg.Width - 4
		m.help.Width = msg.Width
		if r, ok := m.chart.(resizer); ok {
			r.Resize(msg.Width-16, msg.Height-logHeight-14)
		}
		return m, nil
	case refreshMsg:
		m.sync()
		return m, refresh()
	case startedMsg:
		m.starting = false
		// a newer start replaced this one; its own result will arrive
		if errors.Is(msg.err, playback.ErrSuperseded) {
			return m, nil
		}
		m.err = msg.err
		m.sync()
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Start):
		m.err, m.starting = nil, true
		return m, m.start()
	case key.Matches(msg, m.keys.Pause):
		m.ctrl.Pause()
	case key.Matches(msg, m.keys.NextView):
		m.err = m.ctrl.SetView(m.status.View.Next())
	case key.Matches(msg, m.keys.PrevView):
		m.err = m.ctrl.SetView(m.status.View.Prev())
	case key.Matches(msg, m.keys.PickView):
		m.err = m.ctrl.SetView(view.ID(msg.String()[0] - '1'))
	case key.Matches(msg, m.keys.LogUp):
		m.log.LineUp(1)
		return m, nil
	case key.Matches(msg, m.keys.LogDown):
		m.log.LineDown(1)
		return m, nil
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	m.sync()
	return m, nil
}

// sync pulls controller status and new log lines.
func (m *Model) sync() {
	m.status = m.ctrl.Status()
	if m.logs == nil {
		return
	}
	if total := m.logs.Total(); total != m.logTotal {
		m.logTotal = total
		m.log.SetContent(m.logs.String())
		m.log.GotoBottom()
	}
}

func (m Model) View() string {
	var b strings.Builder

	d, _ := view.Lookup(m.status.View)
	b.WriteString(m.header(d))
	b.WriteString("\n")

	chart := m.chart.String()
	if chart == "" {
		chart = m.st.subtle.Render("  press s to start a simulation")
	}
	b.WriteString(m.st.panel.Width(m.width - 2).Render(chart))
	b.WriteString("\n")
	b.WriteString(m.statusBar())
	b.WriteString("\n")
	b.WriteString(m.st.separator(m.width - 2))
	b.WriteString("\n")
	b.WriteString(m.log.View())
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(m.st.err.Render("  " + m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) header(d view.Descriptor) string {
	tabs := make([]string, 0, len(view.IDs()))
	for _, id := range view.IDs() {
		label := fmt.Sprintf("%d %s", int(id)+1, id)
		if id == m.status.View {
			tabs = append(tabs, m.st.title.Render(label))
		} else {
			tabs = append(tabs, m.st.subtle.Render(label))
		}
	}
	title := m.st.title.Render("ISRU PLAYBACK") + m.st.subtle.Render("  "+d.Title)
	return lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(tabs, m.st.subtle.Render(" │ ")))
}

func (m Model) statusBar() string {
	s := m.status
	state := m.st.state(s.State)
	if m.starting || s.Pending {
		state += m.st.subtle.Render(" (fetching)")
	}

	parts := []string{
		state,
		m.st.label.Render("step ") + m.st.value.Render(fmt.Sprintf("%d/%d", s.Step, s.Len)),
		m.st.progress(s.Step, s.Len, 24),
		m.st.label.Render("speed ") + m.st.value.Render(fmt.Sprintf("%g", m.params.Speed)),
		m.st.label.Render("duration ") + m.st.value.Render(fmt.Sprintf("%g", m.params.Duration)),
	}
	if id := s.SessionID; id != "" {
		if len(id) > 8 {
			id = id[:8]
		}
		parts = append(parts, m.st.subtle.Render(id))
	}
	return "  " + strings.Join(parts, "  ")
}

// Run drives the dashboard until the user quits.
func Run(ctx context.Context, ctrl Controller, chart Source, logs *playback.MemoryLog, opts Options) error {
	_, err := tea.NewProgram(New(ctx, ctrl, chart, logs, opts), tea.WithAltScreen()).Run()
	return err
}
