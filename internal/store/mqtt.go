// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/envlogger/internal/env"
	"github.com/relabs-tech/envlogger/internal/fault"
)

// MQTTConfig addresses an MQTT broker.
type MQTTConfig struct {
	Broker      string // e.g. "tcp://localhost:1883"
	ClientID    string
	TopicPrefix string
	Timeout     time.Duration
}

// Message is the JSON document published for each point.
type Message struct {
	Measurement string             `json:"measurement"`
	Tags        map[string]string  `json:"tags"`
	Fields      map[string]float64 `json:"fields"`
}

// MQTTStore publishes points to an MQTT broker, one topic per measurement.
type MQTTStore struct {
	cfg       MQTTConfig
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

// NewMQTTStore returns a store for cfg. No I/O happens until Connect.
func NewMQTTStore(cfg MQTTConfig) *MQTTStore {
	return &MQTTStore{cfg: cfg, newClient: mqtt.NewClient}
}

// Connect opens a session with the broker.
func (s *MQTTStore) Connect(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fault.Connection("connect "+s.cfg.Broker, err)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(false)
	if s.cfg.Timeout > 0 {
		opts.SetConnectTimeout(s.cfg.Timeout)
	}

	client := s.newClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fault.Connection("connect "+s.cfg.Broker, token.Error())
	}

	return &mqttConn{client: client, prefix: s.cfg.TopicPrefix}, nil
}

type mqttConn struct {
	client mqtt.Client
	prefix string
	broken bool
}

// SwitchDatabase replaces the topic prefix.
func (mc *mqttConn) SwitchDatabase(name string) {
	if name != "" {
		mc.prefix = name
	}
}

func (mc *mqttConn) Write(ctx context.Context, points []env.Point) error {
	if mc.broken {
		return fault.Write("publish points", errConnBroken)
	}
	if err := ctx.Err(); err != nil {
		return fault.Write("publish points", err)
	}

	for _, p := range points {
		payload, err := EncodePoint(p)
		if err != nil {
			return fault.Write("encode "+p.Name, err)
		}

		token := mc.client.Publish(Topic(mc.prefix, p.Name), 0, false, payload)
		token.Wait()
		if token.Error() != nil {
			mc.broken = true
			return fault.Write("publish "+p.Name, token.Error())
		}
	}
	return nil
}

func (mc *mqttConn) Close() error {
	mc.client.Disconnect(250)
	return nil
}

// Topic returns the topic a measurement is published on.
func Topic(prefix, measurement string) string {
	if prefix == "" {
		return measurement
	}
	return prefix + "/" + measurement
}

// EncodePoint renders p as a Message.
func EncodePoint(p env.Point) ([]byte, error) {
	return json.Marshal(Message{
		Measurement: p.Name,
		Tags:        p.Tags,
		Fields:      map[string]float64{"value": p.Value},
	})
}
