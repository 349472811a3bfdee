// pattern: Imperative Shell

package tui

import (
	"slices"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"projsync/internal/reconcile"
)

// resultMsg carries the outcome of the scan.
type resultMsg struct {
	result *reconcile.Result
	err    error
}

// appliedMsg carries the outcome of applying the mutations.
type appliedMsg struct {
	outcomes []reconcile.Outcome
	err      error
}

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if m.phase != phaseScanning && m.phase != phaseApplying {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case resultMsg:
		if msg.err != nil {
			m.phase = phaseFailed
			m.err = msg.err
			return m, tea.Quit
		}
		m.res = reconcile.NewResolution(msg.result)
		return m.advance()

	case appliedMsg:
		m.outcomes = msg.outcomes
		if msg.err != nil {
			m.phase = phaseFailed
			m.err = msg.err
			return m, tea.Quit
		}
		m.phase = phaseDone
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Abort) {
		if m.phase == phaseApplying {
			// Mutations already in flight are not interrupted.
			return m, nil
		}
		m.phase = phaseAborted
		return m, tea.Quit
	}
	if m.phase != phaseResolving {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.req.Options)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Choose):
		return m.answer(m.req.Options[m.cursor])
	case key.Matches(msg, m.keys.Default):
		return m.answer(m.req.Default)
	case key.Matches(msg, m.keys.Finish):
		for !m.res.Done() {
			if err := m.res.AnswerDefault(); err != nil {
				m.phase = phaseFailed
				m.err = err
				return m, tea.Quit
			}
		}
		return m.advance()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m Model) answer(c reconcile.Choice) (tea.Model, tea.Cmd) {
	if err := m.res.Answer(c); err != nil {
		m.phase = phaseFailed
		m.err = err
		return m, tea.Quit
	}
	return m.advance()
}

// advance shows the next request or, once the resolution is complete,
// applies it.
func (m Model) advance() (tea.Model, tea.Cmd) {
	if req, ok := m.res.Next(); ok {
		m.phase = phaseResolving
		m.req = req
		m.cursor = max(slices.Index(req.Options, req.Default), 0)
		return m, nil
	}
	if m.dryRun || len(m.res.Mutations()) == 0 {
		m.phase = phaseDone
		return m, tea.Quit
	}
	m.phase = phaseApplying
	return m, tea.Batch(m.spin.Tick, m.apply())
}
