// Package live renders an in-flight integration run in the terminal. It
// hooks the solver's step observer and feeds a bubbletea model: progress
// through the span, current step size, counters, and a trail of the first
// state component. Quitting the view cancels the run cooperatively.
package live

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/diffeq/internal/problem"
	"github.com/san-kum/diffeq/internal/solver"
)

const trailLen = 120

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	borderStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// StepMsg reports one accepted step.
type StepMsg struct {
	T float64
	U problem.State
	H float64
}

// DoneMsg reports run completion.
type DoneMsg struct {
	Sol *solver.Solution
	Err error
}

type Model struct {
	problemName string
	algorithm   string
	t0, tf      float64
	cancel      context.CancelFunc

	t, h   float64
	steps  int
	trail  []float64
	done   bool
	result DoneMsg
}

func NewModel(problemName, algorithm string, t0, tf float64, cancel context.CancelFunc) Model {
	return Model{
		problemName: problemName,
		algorithm:   algorithm,
		t0:          t0,
		tf:          tf,
		cancel:      cancel,
		t:           t0,
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StepMsg:
		m.t = msg.T
		m.h = msg.H
		m.steps++
		if len(msg.U) > 0 {
			m.trail = append(m.trail, msg.U[0])
			if len(m.trail) > trailLen {
				m.trail = m.trail[len(m.trail)-trailLen:]
			}
		}
		return m, nil
	case DoneMsg:
		m.done = true
		m.result = msg
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.cancel()
			return m, nil
		}
	}
	return m, nil
}

func (m Model) View() string {
	frac := 0.0
	if m.tf > m.t0 {
		frac = (m.t - m.t0) / (m.tf - m.t0)
	}
	if frac > 1 {
		frac = 1
	}
	width := 40
	filled := int(frac * float64(width))
	bar := barStyle.Render(repeat("█", filled)) + repeat("░", width-filled)

	body := titleStyle.Render(fmt.Sprintf("diffeq · %s · %s", m.problemName, m.algorithm)) + "\n\n"
	body += fmt.Sprintf("%s %s  %5.1f%%\n", labelStyle.Render("progress"), bar, 100*frac)
	body += fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("t"), valueStyle.Render(fmt.Sprintf("%-12.5g", m.t)),
		labelStyle.Render("dt"), valueStyle.Render(fmt.Sprintf("%-10.3g", m.h)),
		labelStyle.Render("steps"), valueStyle.Render(fmt.Sprintf("%d", m.steps)),
	)
	if len(m.trail) > 2 {
		body += "\n" + asciigraph.Plot(m.trail, asciigraph.Height(8), asciigraph.Width(50)) + "\n"
	}
	body += "\n" + labelStyle.Render("q to cancel")
	return borderStyle.Render(body) + "\n"
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}

// Run integrates spec while rendering progress, returning the solution
// once the run (or the user) finishes.
func Run(ctx context.Context, spec *problem.Spec, opts solver.Options, problemName string) (*solver.Solution, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	algorithm := opts.Algorithm
	if algorithm == "" {
		algorithm = "default"
	}
	p := tea.NewProgram(NewModel(problemName, algorithm, spec.TSpan[0], spec.TSpan[1], cancel))

	var last time.Time
	prev := opts.Observer
	opts.Observer = func(t float64, u problem.State, h float64) {
		if prev != nil {
			prev(t, u, h)
		}
		// Frame-rate limit so the renderer is not flooded by small steps.
		if time.Since(last) < 30*time.Millisecond && t < spec.TSpan[1] {
			return
		}
		last = time.Now()
		p.Send(StepMsg{T: t, U: u.Clone(), H: h})
	}

	var sol *solver.Solution
	var solveErr error
	go func() {
		sol, solveErr = solver.Solve(ctx, spec, opts)
		p.Send(DoneMsg{Sol: sol, Err: solveErr})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		return nil, err
	}
	return sol, solveErr
}
