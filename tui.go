package main

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"duck/config"
	"duck/detector"
	"duck/ducking"
)

// TUI message types
type StateMsg struct{ State ducking.State }
type EnabledMsg struct{ On bool }
type ConfigMsg struct{ Config *config.Config }
type LogMsg struct{ Text string }
type tickMsg time.Time

const (
	maxLogLines = 6
	meterWidth  = 24
)

type tuiModel struct {
	state    ducking.State
	enabled  bool
	cfg      *config.Config
	apps     []detector.ActivityState
	logs     []string
	width    int
	activity func() []detector.ActivityState
	toggle   func() bool
	reload   func()
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("231"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	meterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	offStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	stateStyles = map[ducking.State]lipgloss.Style{
		ducking.Normal:            lipgloss.NewStyle().Foreground(lipgloss.Color("35")),
		ducking.TransitioningDown: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		ducking.TransitioningUp:   lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		ducking.Ducked:            lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
	}
)

// tuiSink forwards ducking events into the running program.
type tuiSink struct{}

func (tuiSink) StateChanged(s ducking.State) { tuiSend(StateMsg{State: s}) }
func (tuiSink) EnabledChanged(on bool)       { tuiSend(EnabledMsg{On: on}) }
func (tuiSink) Error(msg string)             { tuiSend(LogMsg{Text: "error: " + msg}) }

func NewTUIProgram(d *ducking.Ducker, reload func()) *tea.Program {
	m := tuiModel{
		state:    d.State(),
		enabled:  d.IsEnabled(),
		cfg:      d.Config(),
		activity: d.Activity,
		toggle:   d.Toggle,
		reload:   reload,
	}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "e", " ":
			if m.toggle != nil {
				m.enabled = m.toggle()
			}
		case "r":
			if m.reload != nil {
				go m.reload()
			}
		}

	case tickMsg:
		if m.activity != nil {
			m.apps = m.activity()
		}
		return m, tuiTick()

	case StateMsg:
		m.state = msg.State

	case EnabledMsg:
		m.enabled = msg.On

	case ConfigMsg:
		m.cfg = msg.Config

	case LogMsg:
		m.logs = append(m.logs, time.Now().Format("15:04:05")+" "+msg.Text)
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("duck"))
	b.WriteString("  ")
	if m.enabled {
		st, ok := stateStyles[m.state]
		if !ok {
			st = dimStyle
		}
		b.WriteString(st.Render(m.state.String()))
	} else {
		b.WriteString(offStyle.Render("disabled"))
	}
	b.WriteString("\n\n")

	if m.cfg != nil {
		b.WriteString(dimStyle.Render(fmt.Sprintf("music: %s  %.0f%% -> %.0f%%  fade %.1fs",
			strings.Join(m.cfg.MusicApps, ", "),
			m.cfg.NormalLevel*100, m.cfg.DuckLevel*100, m.cfg.FadeDuration)))
		b.WriteString("\n\n")
	}

	nameW := 8
	for _, a := range m.apps {
		if len(a.App) > nameW {
			nameW = len(a.App)
		}
	}
	for _, a := range m.apps {
		name := fmt.Sprintf("%-*s", nameW, a.App)
		if a.Active {
			name = activeStyle.Render(name)
		}
		fmt.Fprintf(&b, "%s %s %s\n", name, renderMeter(a.Peak), dimStyle.Render(sessionLabel(a.Sessions)))
	}

	if len(m.logs) > 0 {
		b.WriteString("\n")
		for _, l := range m.logs {
			if m.width > 0 && len(l) > m.width {
				l = l[:m.width]
			}
			if strings.Contains(l, "error:") {
				b.WriteString(errorStyle.Render(l))
			} else {
				b.WriteString(dimStyle.Render(l))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("e toggle · r reload · q quit"))
	return b.String()
}

// renderMeter draws peak on a square-root scale so quiet sessions still
// show movement.
func renderMeter(peak float64) string {
	if peak < 0 {
		peak = 0
	}
	n := int(math.Round(math.Sqrt(math.Min(peak, 1)) * meterWidth))
	return meterStyle.Render(strings.Repeat("█", n)) + dimStyle.Render(strings.Repeat("·", meterWidth-n))
}

func sessionLabel(n int) string {
	switch n {
	case 0:
		return "not running"
	case 1:
		return "1 session"
	}
	return fmt.Sprintf("%d sessions", n)
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()

	if p != nil {
		p.Send(msg)
	}
}

func logToTUI(format string, args ...interface{}) {
	tuiSend(LogMsg{Text: fmt.Sprintf(format, args...)})
}
