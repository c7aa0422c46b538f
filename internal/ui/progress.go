package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Event is a status change pushed by the orchestrator.
type Event struct {
	Status string
	// Error carries a tool failure message.
	Error string
}

type statusModel struct {
	target  string
	events  <-chan Event
	spinner spinner.Model
	status  string
	errMsg  string
	started time.Time
	now     func() time.Time
	width   int
	done    bool
}

type eventMsg Event
type doneMsg struct{}

// NewStatusModel returns a Bubble Tea model that shows a spinner next to
// the latest status for target until events is closed.
func NewStatusModel(target string, events <-chan Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	return &statusModel{
		target:  target,
		events:  events,
		spinner: sp,
		status:  "[phpstan] starting...",
		started: time.Now(),
		now:     time.Now,
		width:   80,
	}
}

func (m *statusModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		if msg.Status != "" {
			m.status = msg.Status
		}
		if msg.Error != "" {
			m.errMsg = msg.Error
		}
		return m, m.listenForEvent()
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *statusModel) View() string {
	elapsed := m.now().Sub(m.started).Round(100 * time.Millisecond)
	lead := m.spinner.View()
	if m.done {
		lead = "•"
	}
	status := styleStatus(m.status).Render(m.status)
	suffix := fmt.Sprintf(" %s", elapsed)
	nameWidth := m.width - runewidth.StringWidth(m.status) - runewidth.StringWidth(suffix) - 6
	if nameWidth < 20 {
		nameWidth = 20
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  %s%s\n", lead, status, truncate(m.target, nameWidth), dim.Render(suffix))
	if m.errMsg != "" {
		firstLine, _, _ := strings.Cut(strings.TrimSpace(m.errMsg), "\n")
		b.WriteString(errStyle.Render("  " + truncate(firstLine, m.width-2)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *statusModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

var (
	dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func styleStatus(status string) lipgloss.Style {
	switch {
	case strings.HasSuffix(status, " passed"):
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case strings.HasSuffix(status, " failed"), strings.Contains(status, " error "):
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case strings.HasSuffix(status, " unknown"):
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	// keep the file name end of long paths
	return "..." + truncateLeft(value, width-3)
}

func truncateLeft(value string, width int) string {
	runes := []rune(value)
	w := 0
	i := len(runes)
	for i > 0 {
		rw := runewidth.RuneWidth(runes[i-1])
		if w+rw > width {
			break
		}
		w += rw
		i--
	}
	return string(runes[i:])
}

// ChannelUI forwards orchestrator status updates to a status model.
// Sends never block; a full channel drops the update.
type ChannelUI struct {
	Ch chan<- Event
}

func (c ChannelUI) ShowStatus(text string) { c.send(Event{Status: text}) }
func (c ChannelUI) HideStatus()            {}
func (c ChannelUI) ShowError(msg string)   { c.send(Event{Error: msg}) }

func (c ChannelUI) send(ev Event) {
	select {
	case c.Ch <- ev:
	default:
	}
}
