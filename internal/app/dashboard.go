// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/relabs-tech/envlogger/internal/config"
	"github.com/relabs-tech/envlogger/internal/env"
	"github.com/relabs-tech/envlogger/internal/store"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(20)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// dashboardRows is the display order and unit of each measurement.
var dashboardRows = []struct {
	name string
	unit string
}{
	{env.MeasurementTemperature, "°C"},
	{env.MeasurementHumidity, "%RH"},
	{env.MeasurementPressure, "hPa"},
	{env.MeasurementSeaLevelPressure, "hPa"},
	{env.MeasurementCPUTemperature, "°C"},
}

type pointMsg struct {
	msg store.Message
	at  time.Time
}

// tickMsg re-renders the view so sample ages stay current.
type tickMsg time.Time

func tickEverySecond() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type sample struct {
	value float64
	tags  map[string]string
	at    time.Time
}

type dashboardModel struct {
	topic  string
	latest map[string]sample
	width  int
	now    func() time.Time
}

func newDashboardModel(topic string) dashboardModel {
	return dashboardModel{topic: topic, latest: map[string]sample{}, now: time.Now}
}

func (m dashboardModel) Init() tea.Cmd { return tickEverySecond() }

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		return m, tickEverySecond()
	case pointMsg:
		m.latest[msg.msg.Measurement] = sample{
			value: msg.msg.Fields["value"],
			tags:  msg.msg.Tags,
			at:    msg.at,
		}
	}
	return m, nil
}

func (m dashboardModel) View() string {
	title := titleStyle.Render("envlogger") + dimStyle.Render("  "+m.topic)

	rows := make([]string, 0, len(dashboardRows)+2)
	var tags map[string]string
	for _, r := range dashboardRows {
		s, ok := m.latest[r.name]
		if !ok {
			rows = append(rows, labelStyle.Render(r.name)+dimStyle.Render("--"))
			continue
		}
		tags = s.tags
		age := m.now().Sub(s.at).Round(time.Second)
		rows = append(rows, labelStyle.Render(r.name)+
			valueStyle.Render(fmt.Sprintf("%9.2f %s", s.value, r.unit))+
			dimStyle.Render(fmt.Sprintf("  %s ago", age)))
	}
	if len(tags) > 0 {
		rows = append(rows, "", dimStyle.Render(formatTags(tags)))
	}

	footer := dimStyle.Render("q: quit")
	if m.width > 0 {
		footer = dimStyle.Render(strings.Repeat("─", m.width)) + "\n" + footer
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, "", strings.Join(rows, "\n"), "", footer)
}

// RunDashboard shows the latest value of every measurement published under
// the configured prefix in a full-screen terminal view.
func RunDashboard(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	p := tea.NewProgram(newDashboardModel(store.Topic(cfg.MQTTTopicPrefix, "#")), tea.WithAltScreen())

	client, err := subscribePoints(cfg, logger, func(m store.Message) {
		p.Send(pointMsg{msg: m, at: time.Now()})
	})
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	return runProgram(ctx, p)
}

// runProgram runs p until it quits or ctx is done.
func runProgram(ctx context.Context, p *tea.Program) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			p.Quit()
		case <-done:
		}
	}()

	_, err := p.Run()
	return err
}
