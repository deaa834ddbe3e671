// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/relabs-tech/envlogger/internal/collector"
	"github.com/relabs-tech/envlogger/internal/env"
	"github.com/relabs-tech/envlogger/internal/fault"
	"github.com/relabs-tech/envlogger/internal/metrics"
)

func newStatusFixture(t *testing.T) (*StatusServer, *httptest.Server, *metrics.PromObs) {
	t.Helper()
	reg := prometheus.NewRegistry()
	prom, err := metrics.NewPromObs(reg)
	require.NoError(t, err)

	s := NewStatusServer(reg, zaptest.NewLogger(t).Sugar())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv, prom
}

func sampleTick(t *testing.T) collector.Tick {
	t.Helper()
	r := env.Reading{Temperature: 20.0, Humidity: 45.0, Pressure: 1000.0, CPUTemperature: 45.23}
	points, err := env.Transformer{Altitude: 72, Tags: env.Tags{"host": "rpi4-68a7f889"}}.Points(r)
	require.NoError(t, err)
	return collector.Tick{Reading: r, Points: points, Holdoff: time.Second, Elapsed: 12 * time.Millisecond}
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHealthCheckFollowsSession(t *testing.T) {
	s, srv, _ := newStatusFixture(t)

	code, body := get(t, srv.URL+"/healthcheck")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.JSONEq(t, `{"status":"unavailable","state":"IDLE","holdoff":"0s"}`, body)

	s.StateChanged(collector.StateConnecting)
	s.StateChanged(collector.StatePublishing)
	code, _ = get(t, srv.URL+"/healthcheck")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	s.Published(sampleTick(t))
	code, body = get(t, srv.URL+"/healthcheck")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok","state":"PUBLISHING","holdoff":"1s"}`, body)

	s.StateChanged(collector.StateBackoff)
	s.Failed(collector.Failure{Err: fault.Write("write points", errors.New("timeout")), Kind: fault.KindWrite, Holdoff: 2 * time.Second})
	code, body = get(t, srv.URL+"/healthcheck")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, "BACKOFF", resp.State)
	assert.Equal(t, "2s", resp.Holdoff)
	assert.Equal(t, "write: write points: timeout", resp.LastError)
}

func TestHealthCheckRejectsPost(t *testing.T) {
	_, srv, _ := newStatusFixture(t)

	resp, err := http.Post(srv.URL+"/healthcheck", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestEnvironmentEndpoint(t *testing.T) {
	s, srv, _ := newStatusFixture(t)

	code, body := get(t, srv.URL+"/api/environment")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "no data yet\n", body)

	s.Published(sampleTick(t))
	code, body = get(t, srv.URL+"/api/environment")
	require.Equal(t, http.StatusOK, code)

	var resp EnvironmentResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, 45.23, resp.Reading.CPUTemperature)
	require.Len(t, resp.Points, 5)
	assert.Equal(t, "cpu_temperature", resp.Points[0].Name)
	assert.Equal(t, env.Tags{"host": "rpi4-68a7f889"}, resp.Points[0].Tags)
	assert.Equal(t, 12.0, resp.ElapsedMS)
}

func TestMetricsEndpoint(t *testing.T) {
	_, srv, prom := newStatusFixture(t)
	prom.Published(sampleTick(t))

	code, body := get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "envlogger_ticks_total 1")
	assert.Contains(t, body, `envlogger_measurement{name="humidity"} 45`)
}

func TestStreamPushesBatches(t *testing.T) {
	s, srv, _ := newStatusFixture(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.count() == 1 }, time.Second, 5*time.Millisecond)
	s.Published(sampleTick(t))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var resp EnvironmentResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, 20.0, resp.Reading.Temperature)
	assert.Len(t, resp.Points, 5)

	conn.Close()
	assert.Eventually(t, func() bool { return s.hub.count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubDropsWhenClientIsSlow(t *testing.T) {
	h := newHub()
	ch := h.add()
	for i := 0; i < 20; i++ {
		h.broadcast([]byte("x"))
	}
	assert.Len(t, ch, cap(ch))

	h.remove(ch)
	assert.Zero(t, h.count())
}
