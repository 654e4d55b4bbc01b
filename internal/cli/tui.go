package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/gearlayout/pkg/core/solver"
)

var (
	tuiHeaderStyle = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	tuiFixedStyle  = lipgloss.NewStyle().Foreground(colorDim)
	tuiDimStyle    = lipgloss.NewStyle().Foreground(colorDim)
)

// stepTick drives auto-run mode.
const stepTick = 50 * time.Millisecond

type tickMsg time.Time

// =============================================================================
// StepModel - Interactive relaxation stepping
// =============================================================================

// StepModel is the bubbletea model for stepping a system one sweep at a time.
type StepModel struct {
	Sys       *solver.System
	Tolerance float64
	Budget    int // sweeps allowed, from MaxIterations

	Iteration int
	Residual  float64
	History   []float64 // most recent residuals, newest last
	Running   bool
	Converged bool
}

// NewStepModel wraps a built system.
func NewStepModel(sys *solver.System) StepModel {
	o := sys.Options()
	return StepModel{
		Sys:       sys,
		Tolerance: o.Tolerance,
		Budget:    o.MaxIterations,
		Residual:  -1,
	}
}

func (m StepModel) Init() tea.Cmd {
	return nil
}

// Exhausted reports whether the sweep budget is spent.
func (m StepModel) Exhausted() bool {
	return m.Iteration >= m.Budget
}

// step runs one sweep unless the model is finished.
func (m StepModel) step() StepModel {
	if m.Converged || m.Exhausted() {
		m.Running = false
		return m
	}
	m.Residual = m.Sys.Sweep()
	m.Iteration++
	m.History = append(m.History, m.Residual)
	if len(m.History) > 40 {
		m.History = m.History[len(m.History)-40:]
	}
	if m.Residual < m.Tolerance {
		m.Converged = true
		m.Running = false
	}
	return m
}

func tick() tea.Cmd {
	return tea.Tick(stepTick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m StepModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "n", " ", "right", "l":
			return m.step(), nil
		case "f":
			for range 10 {
				m = m.step()
			}
			return m, nil
		case "s":
			for !m.Converged && !m.Exhausted() {
				m = m.step()
			}
			return m, nil
		case "r":
			m.Running = !m.Running
			if m.Running {
				return m, tick()
			}
		}
	case tickMsg:
		if !m.Running {
			return m, nil
		}
		m = m.step()
		if m.Running {
			return m, tick()
		}
	}
	return m, nil
}

func (m StepModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Relaxation"))
	b.WriteString("\n")
	b.WriteString(tuiDimStyle.Render("n/space sweep  f ×10  s solve  r run/pause  q quit"))
	b.WriteString("\n\n")

	rows := [][]string{}
	entities := m.Sys.Entities()
	for _, e := range entities {
		fixed := ""
		if e.Fixed {
			fixed = "pinned"
		}
		rows = append(rows, []string{
			strconv.Itoa(e.ID),
			fmtCoord(e.Position.X),
			fmtCoord(e.Position.Y),
			fmtCoord(e.Position.Z),
			fmtCoord(e.Radius),
			fixed,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("ID", "X", "Y", "Z", "R", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return tuiHeaderStyle
			}
			if row < len(entities) && entities[row].Fixed {
				return tuiFixedStyle
			}
			return lipgloss.NewStyle()
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	if len(m.History) > 1 {
		b.WriteString(tuiDimStyle.Render("  " + sparkline(m.History)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m StepModel) statusLine() string {
	residual := "-"
	if m.Residual >= 0 {
		residual = strconv.FormatFloat(m.Residual, 'g', 4, 64)
	}
	line := fmt.Sprintf("  sweep %s/%d · residual %s · tolerance %g",
		StyleNumber.Render(strconv.Itoa(m.Iteration)), m.Budget, StyleValue.Render(residual), m.Tolerance)

	switch {
	case m.Converged:
		line += " · " + StyleSuccess.Render(solver.StatusConverged.String())
	case m.Exhausted():
		line += " · " + StyleWarning.Render(solver.StatusNotConverged.String())
	case m.Running:
		line += " · " + StyleDim.Render("running")
	}
	return line
}

// =============================================================================
// Helpers
// =============================================================================

var sparkBars = []rune("▁▂▃▄▅▆▇█")

// sparkline draws values scaled between their min and max.
func sparkline(values []float64) string {
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	var b strings.Builder
	for _, v := range values {
		i := 0
		if hi > lo {
			i = int((v - lo) / (hi - lo) * float64(len(sparkBars)-1))
		}
		b.WriteRune(sparkBars[i])
	}
	return b.String()
}

func fmtCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
