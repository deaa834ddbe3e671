// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/envlogger/internal/env"
	"github.com/relabs-tech/envlogger/internal/store"
)

func TestDashboardShowsLatestPoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newDashboardModel("environment/#")
	m.now = func() time.Time { return at.Add(3 * time.Second) }

	view := m.View()
	assert.Contains(t, view, "environment/#")
	assert.Contains(t, view, "--")

	next, cmd := m.Update(pointMsg{
		msg: store.Message{
			Measurement: env.MeasurementSeaLevelPressure,
			Tags:        map[string]string{"host": "rpi4-68a7f889"},
			Fields:      map[string]float64{"value": 1008.4211176559312},
		},
		at: at,
	})
	assert.Nil(t, cmd)

	view = next.View()
	assert.Contains(t, view, env.MeasurementSeaLevelPressure)
	assert.Contains(t, view, "1008.42 hPa")
	assert.Contains(t, view, "3s ago")
	assert.Contains(t, view, "host=rpi4-68a7f889")
}

func TestDashboardQuitKeys(t *testing.T) {
	m := newDashboardModel("environment/#")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.Nil(t, cmd)
}

func TestDashboardTracksWidth(t *testing.T) {
	next, _ := newDashboardModel("t").Update(tea.WindowSizeMsg{Width: 12, Height: 5})
	assert.Equal(t, 12, next.(dashboardModel).width)
	assert.Contains(t, next.View(), "────────────")
}

func TestDashboardTicksEverySecond(t *testing.T) {
	m := newDashboardModel("t")
	assert.NotNil(t, m.Init())

	_, cmd := m.Update(tickMsg(time.Now()))
	assert.NotNil(t, cmd)
}

func TestDashboardAgeAdvancesWithoutNewPoints(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := at.Add(time.Second)
	m := newDashboardModel("t")
	m.now = func() time.Time { return now }

	next, _ := m.Update(pointMsg{
		msg: store.Message{Measurement: env.MeasurementHumidity, Fields: map[string]float64{"value": 45}},
		at:  at,
	})
	assert.Contains(t, next.View(), "1s ago")

	now = at.Add(7 * time.Second)
	next, _ = next.Update(tickMsg(now))
	assert.Contains(t, next.View(), "7s ago")
}

// quitModel exits as soon as the program starts.
type quitModel struct{}

func (quitModel) Init() tea.Cmd                       { return tea.Quit }
func (quitModel) Update(tea.Msg) (tea.Model, tea.Cmd) { return quitModel{}, nil }
func (quitModel) View() string                        { return "" }

// idleModel runs until told to quit.
type idleModel struct{}

func (idleModel) Init() tea.Cmd                       { return nil }
func (idleModel) Update(tea.Msg) (tea.Model, tea.Cmd) { return idleModel{}, nil }
func (idleModel) View() string                        { return "" }

func headlessProgram(m tea.Model) *tea.Program {
	return tea.NewProgram(m, tea.WithInput(new(bytes.Buffer)), tea.WithOutput(io.Discard))
}

func TestRunProgramReturnsWhenModelQuits(t *testing.T) {
	done := make(chan error, 1)
	go func() { done <- runProgram(context.Background(), headlessProgram(quitModel{})) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("program did not exit after quitting")
	}
}

func TestRunProgramStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runProgram(ctx, headlessProgram(idleModel{})) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("program did not exit after cancel")
	}
}
