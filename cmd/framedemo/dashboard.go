// Copyright 2026 The frameloop Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/shadedpath/frameloop"
)

// refreshInterval is how often the dashboard samples engine statistics.
const refreshInterval = 250 * time.Millisecond

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle = lipgloss.NewStyle().Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// statsSource is the part of the engine the dashboard reads.
type statsSource interface {
	Stats() frameloop.Stats
	ShouldClose() bool
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// dashboard is the bubbletea model showing live engine statistics.
type dashboard struct {
	src           statsSource
	requestUpdate func()
	stats         frameloop.Stats
	width         int
	quitting      bool
}

func newDashboard(src statsSource, requestUpdate func()) dashboard {
	return dashboard{src: src, requestUpdate: requestUpdate, stats: src.Stats()}
}

func (m dashboard) Init() tea.Cmd { return tick() }

func (m dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "u":
			if m.requestUpdate != nil {
				m.requestUpdate()
			}
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		m.stats = m.src.Stats()
		if m.src.ShouldClose() {
			m.quitting = true
			return m, tea.Quit
		}
		return m, tick()
	}
	return m, nil
}

func (m dashboard) View() string {
	s := m.stats
	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
	}

	rows := []string{
		titleStyle.Render("frameloop"),
		"",
		row("in flight", fmt.Sprintf("%d", s.FramesInFlight)),
		row("drawn", fmt.Sprintf("%d", s.FramesDrawn)),
		row("presented", fmt.Sprintf("%d", s.FramesPresented)),
		row("rate", fmt.Sprintf("%.1f fps", s.PresentRate)),
		row("frame time", s.FrameTime.Round(time.Microsecond).String()),
		row("updates", fmt.Sprintf("%d applied, %d coalesced, %d queued", s.UpdatesApplied, s.UpdatesCoalesced, s.UpdatesQueued)),
		row("uptime", s.Uptime.Round(time.Second).String()),
	}
	if s.AsyncPresentations > 0 {
		rows = append(rows, warnStyle.Render(fmt.Sprintf("%d frames presented out of order", s.AsyncPresentations)))
	}
	for _, r := range s.Resources {
		rows = append(rows, row(string(r.ID), resourceLine(r)))
	}
	if s.Stopping {
		rows = append(rows, warnStyle.Render("stopping"))
	}

	box := boxStyle
	if m.width > 4 {
		box = box.Width(m.width - 4)
	}
	view := box.Render(strings.Join(rows, "\n"))
	if m.quitting {
		return view + "\n"
	}
	return view + "\n" + helpStyle.Render("q quit • u request update") + "\n"
}

// resourceLine summarises both update sets of a resource.
func resourceLine(r frameloop.ResourceStats) string {
	current := "-"
	if r.Current >= 0 {
		current = r.Current.String()
	}
	parts := []string{"current " + current}
	for i, slot := range r.Slots {
		parts = append(parts, fmt.Sprintf("%s:%s#%d/%d", frameloop.Designator(i), slot.State, slot.UpdateNumber, slot.Users))
	}
	return strings.Join(parts, "  ")
}

// runDashboard shows the dashboard until the user quits, ctx is done or
// the engine closes.
func runDashboard(ctx context.Context, src statsSource, requestUpdate func()) error {
	p := tea.NewProgram(newDashboard(src, requestUpdate), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
