// pattern: Imperative Shell

// Package tui hosts an interactive resolution of one reconciliation pass.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"projsync/internal/reconcile"
)

// ErrAborted is returned by Run when the user quits without applying.
var ErrAborted = errors.New("resolution aborted")

// Engine computes a result and applies a completed resolution.
// *session.Engine implements it.
type Engine interface {
	Reconcile(ctx context.Context) (*reconcile.Result, error)
	Apply(ctx context.Context, res *reconcile.Resolution) ([]reconcile.Outcome, error)
}

// Options configures a Model.
type Options struct {
	Theme  string
	DryRun bool
}

type phase int

const (
	phaseScanning phase = iota
	phaseResolving
	phaseApplying
	phaseDone
	phaseFailed
	phaseAborted
)

// Model is the bubbletea model for one reconciliation pass.
type Model struct {
	width  int
	height int
	styles *Styles
	keys   keyMap
	help   help.Model
	spin   spinner.Model

	ctx    context.Context
	engine Engine
	dryRun bool
	start  time.Time

	phase    phase
	res      *reconcile.Resolution
	req      reconcile.Request
	cursor   int
	outcomes []reconcile.Outcome
	err      error
}

// NewModel creates a model that reconciles through engine once started.
func NewModel(ctx context.Context, engine Engine, opts Options) Model {
	styles := NewStyles(opts.Theme)
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SelectedStyle()

	return Model{
		styles: styles,
		keys:   defaultKeyMap(),
		help:   help.New(),
		spin:   s,
		ctx:    ctx,
		engine: engine,
		dryRun: opts.DryRun,
		start:  time.Now(),
	}
}

// Init starts the scan.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spin.Tick,
		m.reconcile(),
	)
}

func (m Model) reconcile() tea.Cmd {
	return func() tea.Msg {
		result, err := m.engine.Reconcile(m.ctx)
		return resultMsg{result: result, err: err}
	}
}

func (m Model) apply() tea.Cmd {
	res := m.res
	return func() tea.Msg {
		outcomes, err := m.engine.Apply(m.ctx, res)
		return appliedMsg{outcomes: outcomes, err: err}
	}
}

// Report describes the pass once the model has finished.
func (m Model) Report() *reconcile.Report {
	report := &reconcile.Report{
		DryRun:   m.dryRun,
		Outcomes: m.outcomes,
		Summary:  reconcile.Summarize(m.outcomes),
		Duration: time.Since(m.start),
	}
	if m.res != nil {
		report.Result = m.res.Result()
		report.Mutations = m.res.Mutations()
	}
	return report
}

// Aborted reports whether the user quit before the pass completed.
func (m Model) Aborted() bool {
	return m.phase == phaseAborted
}

// Err returns the error that stopped the pass, if any.
func (m Model) Err() error {
	return m.err
}

// Run drives a full interactive pass and returns its report.
func Run(ctx context.Context, engine Engine, opts Options) (*reconcile.Report, error) {
	p := tea.NewProgram(NewModel(ctx, engine, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("run resolution: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return nil, fmt.Errorf("unexpected model %T", final)
	}
	switch {
	case m.Aborted():
		return m.Report(), ErrAborted
	case m.Err() != nil:
		return m.Report(), m.Err()
	}
	return m.Report(), nil
}
