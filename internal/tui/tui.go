// Package tui renders live pipeline progress in the terminal.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	activeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

type stageMsg core.Stage

type finishMsg struct{ err error }

type tickMsg time.Time

// model tracks which pipeline stage is running.
type model struct {
	source   string
	stages   []core.Stage
	current  int // Index into stages, -1 before the first stage
	started  time.Time
	elapsed  time.Duration
	finished bool
	err      error
}

func newModel(source string, now time.Time) model {
	var stages []core.Stage
	for _, s := range core.Stages() {
		if s == core.StageAssembled {
			continue
		}
		stages = append(stages, s)
	}
	return model{source: source, stages: stages, current: -1, started: now}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stageMsg:
		if core.Stage(msg) == core.StageAssembled {
			m.current = len(m.stages)
			break
		}
		for i, s := range m.stages {
			if s == core.Stage(msg) {
				m.current = i
			}
		}
	case finishMsg:
		m.finished = true
		m.err = msg.err
		m.elapsed = time.Since(m.started)
		if msg.err == nil {
			m.current = len(m.stages)
		}
		return m, tea.Quit
	case tickMsg:
		if m.finished {
			return m, nil
		}
		m.elapsed = time.Time(msg).Sub(m.started)
		return m, tick()
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Generating blog from " + m.source))
	b.WriteString(fmt.Sprintf(" %s\n", pendingStyle.Render(fmt.Sprintf("(%.1fs)", m.elapsed.Seconds()))))

	for i, s := range m.stages {
		switch {
		case i < m.current:
			b.WriteString(doneStyle.Render("  ✓ " + string(s)))
		case i == m.current && m.err != nil:
			b.WriteString(failStyle.Render("  ✗ " + string(s)))
		case i == m.current:
			b.WriteString(activeStyle.Render("  ● " + string(s)))
		default:
			b.WriteString(pendingStyle.Render("  · " + string(s)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Progress is a running progress display. Stage and Finish may be called
// from any goroutine.
type Progress struct {
	program *tea.Program
	done    chan struct{}
}

// StartProgress starts drawing progress for source on out. Input is not
// read, so interrupts reach the caller's signal handling.
func StartProgress(ctx context.Context, out io.Writer, source string) *Progress {
	p := &Progress{
		program: tea.NewProgram(newModel(source, time.Now()),
			tea.WithContext(ctx),
			tea.WithOutput(out),
			tea.WithInput(nil),
			tea.WithoutSignalHandler(),
		),
		done: make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		_, _ = p.program.Run()
	}()
	return p
}

// Stage reports that the pipeline entered s.
func (p *Progress) Stage(s core.Stage) {
	p.program.Send(stageMsg(s))
}

// Finish marks the run complete and waits for the final frame.
func (p *Progress) Finish(err error) {
	p.program.Send(finishMsg{err: err})
	<-p.done
}
