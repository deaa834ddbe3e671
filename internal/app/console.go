// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/envlogger/internal/config"
	"github.com/relabs-tech/envlogger/internal/store"
)

// RunConsole subscribes to every measurement topic under the configured
// prefix and prints each point to out until ctx is done.
func RunConsole(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.SugaredLogger) error {
	client, err := subscribePoints(cfg, logger, func(m store.Message) {
		fmt.Fprintln(out, FormatMessage(m))
	})
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	<-ctx.Done()
	logger.Info("console: shutting down")
	return nil
}

// subscribePoints connects to the broker and calls handle for every point
// published under the configured prefix.
func subscribePoints(cfg *config.Config, logger *zap.SugaredLogger, handle func(store.Message)) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID + "-console")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	logger.Infof("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	topic := store.Topic(cfg.MQTTTopicPrefix, "#")
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		m, err := DecodeMessage(msg.Payload())
		if err != nil {
			logger.Warnf("console: %s unmarshal error: %v", msg.Topic(), err)
			return
		}
		handle(m)
	})
	token.Wait()
	if token.Error() != nil {
		client.Disconnect(250)
		return nil, token.Error()
	}
	logger.Infof("console: subscribed to %s", topic)
	return client, nil
}

// DecodeMessage parses one published point.
func DecodeMessage(payload []byte) (store.Message, error) {
	var m store.Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return store.Message{}, err
	}
	if _, ok := m.Fields["value"]; !ok {
		return store.Message{}, fmt.Errorf("measurement %q has no value field", m.Measurement)
	}
	return m, nil
}

// FormatMessage renders one point as a console line.
func FormatMessage(m store.Message) string {
	return fmt.Sprintf("[%-18s] %10.2f  %s", m.Measurement, m.Fields["value"], formatTags(m.Tags))
}

func formatTags(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+tags[k])
	}
	return strings.Join(pairs, " ")
}
