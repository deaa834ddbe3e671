// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"context"
	"errors"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"

	"github.com/relabs-tech/envlogger/internal/env"
	"github.com/relabs-tech/envlogger/internal/fault"
)

var errConnBroken = errors.New("connection invalidated by earlier write failure")

// InfluxConfig addresses an InfluxDB 1.x HTTP endpoint.
type InfluxConfig struct {
	Addr     string // e.g. "http://localhost:8086"
	Username string
	Password string
	Database string
	Timeout  time.Duration
}

// InfluxStore connects to InfluxDB over its HTTP API.
type InfluxStore struct {
	cfg InfluxConfig
}

// NewInfluxStore returns a store for cfg. No I/O happens until Connect.
func NewInfluxStore(cfg InfluxConfig) *InfluxStore {
	return &InfluxStore{cfg: cfg}
}

// Connect builds the HTTP client and pings the server so that network and
// auth failures surface here rather than on the first write.
func (s *InfluxStore) Connect(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fault.Connection("connect "+s.cfg.Addr, err)
	}

	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     s.cfg.Addr,
		Username: s.cfg.Username,
		Password: s.cfg.Password,
		Timeout:  s.cfg.Timeout,
	})
	if err != nil {
		return nil, fault.Connection("connect "+s.cfg.Addr, err)
	}

	if _, _, err := c.Ping(s.cfg.Timeout); err != nil {
		c.Close()
		return nil, fault.Connection("ping "+s.cfg.Addr, err)
	}

	return &influxConn{c: c, database: s.cfg.Database}, nil
}

type influxConn struct {
	c        client.Client
	database string
	broken   bool
}

func (ic *influxConn) SwitchDatabase(name string) {
	ic.database = name
}

// Write sends all points as one batch without timestamps; the server
// assigns write time.
func (ic *influxConn) Write(ctx context.Context, points []env.Point) error {
	if ic.broken {
		return fault.Write("write points", errConnBroken)
	}
	if err := ctx.Err(); err != nil {
		return fault.Write("write points", err)
	}

	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database: ic.database,
	})
	if err != nil {
		return fault.Write("new batch", err)
	}

	for _, p := range points {
		pt, err := client.NewPoint(p.Name, p.Tags, p.Fields())
		if err != nil {
			return fault.Write("new point "+p.Name, err)
		}
		bp.AddPoint(pt)
	}

	if err := ic.c.Write(bp); err != nil {
		ic.broken = true
		return fault.Write("write points", err)
	}
	return nil
}

func (ic *influxConn) Close() error {
	return ic.c.Close()
}
