package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/invlab/internal/invert"
)

const (
	plotCols = 64
	plotRows = 22
	maxShown = 8
)

type TickMsg time.Time

// RunFunc starts an inversion with the given observer attached and
// returns the final result. The live view owns the context.
type RunFunc func(ctx context.Context, obs invert.Observer) (*invert.Result, error)

type outcome struct {
	res *invert.Result
	err error
}

// chanObserver forwards accepted iterations into a channel. The channel
// is sized to hold a whole run so the engine never blocks on the UI.
type chanObserver struct {
	ch chan invert.Iteration
}

func (o chanObserver) OnIteration(it invert.Iteration) { o.ch <- it }

// FitView replays a running inversion iteration by iteration: the fit
// against the data on the left, convergence metrics on the right. The
// engine runs in its own goroutine and the view drains one iteration
// per tick, so fast runs still animate.
type FitView struct {
	fop     invert.ForwardModel
	x       invert.Vector
	data    invert.Vector
	run     RunFunc
	maxIter int

	ctx    context.Context
	cancel context.CancelFunc
	iters  chan invert.Iteration
	done   chan outcome

	current   *invert.Iteration
	response  invert.Vector
	chiTrace  []float64
	stepTrace []float64
	paused    bool
	drained   bool
	finished  bool
	result    *invert.Result
	runErr    error
	width     int
	height    int
}

// NewFitView prepares a live view for one inversion run. An empty
// abscissa falls back to sample indices.
func NewFitView(fop invert.ForwardModel, x, data invert.Vector, maxIter int, run RunFunc) FitView {
	if len(x) == 0 {
		x = make(invert.Vector, len(data))
		for i := range x {
			x[i] = float64(i)
		}
	}
	if maxIter < 1 {
		maxIter = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return FitView{
		fop:     fop,
		x:       x,
		data:    data,
		run:     run,
		maxIter: maxIter,
		ctx:     ctx,
		cancel:  cancel,
		iters:   make(chan invert.Iteration, maxIter+4),
		done:    make(chan outcome, 1),
	}
}

// Start runs the view in the alternate screen until the user quits.
func (m FitView) Start() error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m FitView) Init() tea.Cmd {
	go m.runEngine()
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/15, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m FitView) runEngine() {
	res, err := m.run(m.ctx, chanObserver{ch: m.iters})
	close(m.iters)
	m.done <- outcome{res: res, err: err}
}

func (m FitView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case TickMsg:
		if !m.paused {
			m.advance()
		}
		return m, tick()
	}
	return m, nil
}

// advance consumes at most one buffered iteration, then the final
// outcome once the iteration channel is closed and empty.
func (m *FitView) advance() {
	if m.finished {
		return
	}
	if !m.drained {
		select {
		case it, ok := <-m.iters:
			if !ok {
				m.drained = true
			} else {
				m.apply(it)
				return
			}
		default:
			return
		}
	}
	select {
	case out := <-m.done:
		m.result = out.res
		m.runErr = out.err
		m.finished = true
	default:
	}
}

func (m *FitView) apply(it invert.Iteration) {
	m.current = &it
	m.chiTrace = append(m.chiTrace, it.ChiSq)
	m.stepTrace = append(m.stepTrace, it.StepNorm)
	if resp, err := m.fop.Response(it.Model); err == nil {
		m.response = resp
	}
}

func (m FitView) View() string {
	var plot string
	if m.response != nil {
		plot = FitPlot(plotCols, plotRows, m.x, m.data, m.response, "data · fit")
	} else {
		p := NewPlot(plotCols, plotRows)
		p.Scatter(m.x, m.data)
		plot = p.Render("data")
	}
	canvasView := CanvasStyle.Render(plot)

	var s strings.Builder
	s.WriteString(HeaderStyle.Render("LIVE FIT") + "\n")
	s.WriteString(m.statusLine() + "\n\n")

	if len(m.chiTrace) > 1 {
		chart := asciigraph.Plot(m.chiTrace,
			asciigraph.Height(5),
			asciigraph.Width(30),
			asciigraph.Caption("chi-square"))
		s.WriteString(GraphStyle.Render(chart) + "\n\n")
	}

	iter := 0
	if m.current != nil {
		iter = m.current.Index + 1
	}
	s.WriteString(MetricLabel.Render("Iteration") +
		MetricValue.Render(fmt.Sprintf("%d/%d", iter, m.maxIter)) + "\n")
	s.WriteString(ProgressBar(float64(iter)/float64(m.maxIter), 26) + "\n\n")

	if m.current != nil {
		s.WriteString(MetricLabel.Render("Chi-square") +
			MetricValue.Render(fmt.Sprintf("%.4f", m.current.ChiSq)) + "\n")
		s.WriteString(MetricLabel.Render("Lambda") +
			MetricValue.Render(fmt.Sprintf("%.4g", m.current.Lambda)) + "\n")
		s.WriteString(MetricLabel.Render("Step norm") +
			MetricValue.Render(fmt.Sprintf("%.3g", m.current.StepNorm)) + "\n")
	}
	if len(m.stepTrace) > 1 {
		s.WriteString(MetricLabel.Render("Steps") + SparklineChart(m.stepTrace, 26) + "\n")
	}

	if m.current != nil {
		s.WriteString("\nMODEL\n")
		for i, v := range m.current.Model {
			if i == maxShown {
				s.WriteString(Subtle.Render(fmt.Sprintf("  … %d more", len(m.current.Model)-maxShown)) + "\n")
				break
			}
			s.WriteString(fmt.Sprintf("  p%-3d %12.5g\n", i, v))
		}
	}

	s.WriteString(KeyHint.Render("space pause · q quit"))
	statsView := PanelStyle.Render(s.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsView)
}

func (m FitView) statusLine() string {
	switch {
	case m.runErr != nil:
		return StatusFailed.Render("FAILED ") + Subtle.Render(m.runErr.Error())
	case m.finished && m.result != nil:
		return StatusDone.Render(strings.ToUpper(m.result.Status.String())) +
			Subtle.Render("  " + m.result.Stop.String())
	case m.paused:
		return StatusPaused.Render("PAUSED")
	default:
		return StatusRunning.Render("RUNNING")
	}
}
