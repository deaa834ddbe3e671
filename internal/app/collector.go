// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/relabs-tech/envlogger/internal/collector"
	"github.com/relabs-tech/envlogger/internal/config"
	"github.com/relabs-tech/envlogger/internal/display"
	"github.com/relabs-tech/envlogger/internal/env"
	"github.com/relabs-tech/envlogger/internal/metrics"
	"github.com/relabs-tech/envlogger/internal/sensors"
	"github.com/relabs-tech/envlogger/internal/store"
)

const storeTimeout = 10 * time.Second

// RunCollector opens the sensor and store named by cfg and runs the recovery
// loop, plus the status server and display when enabled, until ctx is done.
func RunCollector(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	sensor, err := OpenSensor(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sensor.Close(); err != nil {
			logger.Warnf("closing sensor: %v", err)
		}
	}()
	logger.Infof("sensor %s ready", cfg.SensorDriver)

	st, loopCfg := NewStore(cfg)

	reg := prometheus.NewRegistry()
	prom, err := metrics.NewPromObs(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	opts := []collector.Option{
		collector.WithLogger(logger),
		collector.WithObserver(prom),
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.StatusAddr != "" {
		status := NewStatusServer(reg, logger)
		opts = append(opts, collector.WithObserver(status))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := status.Run(ctx, cfg.StatusAddr); err != nil {
				logger.Errorf("status server: %v", err)
			}
		}()
	}

	if cfg.DisplayEnabled {
		panel, err := display.Open(cfg.DisplayI2CBus, cfg.DisplayI2CAddr, logger)
		if err != nil {
			logger.Warnf("display disabled: %v", err)
		} else {
			opts = append(opts, collector.WithObserver(panel))
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := panel.Run(ctx, time.Duration(cfg.DisplayUpdateInterval)*time.Millisecond); err != nil {
					logger.Warnf("display: %v", err)
				}
			}()
		}
	}

	loop := collector.New(
		loopCfg,
		sensors.NewSampler(sensor, sensors.ThermalZone{Path: cfg.CPUTempPath}),
		env.Transformer{Altitude: cfg.Altitude(), Tags: cfg.Tags},
		st,
		opts...,
	)

	err = loop.Run(ctx)
	cancel()
	return err
}

// OpenSensor opens the configured sensor backend.
func OpenSensor(cfg *config.Config) (sensors.Sensor, error) {
	switch cfg.SensorDriver {
	case "xdr":
		x, err := sensors.OpenXDR(cfg.SensorSerialPort, cfg.SensorBaudRate)
		if err != nil {
			return nil, err
		}
		return x, nil
	case "bme280":
		b, err := sensors.OpenBME280(sensors.BME280Options{
			Bus:       cfg.SensorBus,
			SPIDevice: cfg.SensorSPIDevice,
			I2CBus:    cfg.SensorI2CBus,
			I2CAddr:   cfg.SensorI2CAddr,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown sensor driver %q", cfg.SensorDriver)
	}
}

// NewStore builds the configured store and the loop settings that go with it.
func NewStore(cfg *config.Config) (store.Store, collector.Config) {
	loopCfg := collector.Config{
		TickInterval:      time.Duration(cfg.TickInterval) * time.Millisecond,
		HoldoffInitial:    time.Duration(cfg.HoldoffInitial) * time.Millisecond,
		BackoffMultiplier: cfg.BackoffMultiplier,
		BackoffMax:        time.Duration(cfg.BackoffMax) * time.Millisecond,
	}

	if cfg.Store == "mqtt" {
		loopCfg.Target = cfg.MQTTBroker
		loopCfg.Database = cfg.MQTTTopicPrefix
		return store.NewMQTTStore(store.MQTTConfig{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
			Timeout:     storeTimeout,
		}), loopCfg
	}

	addr := "http://" + net.JoinHostPort(cfg.InfluxHost, strconv.Itoa(cfg.InfluxPort))
	loopCfg.Target = addr
	loopCfg.Database = cfg.InfluxDatabase
	return store.NewInfluxStore(store.InfluxConfig{
		Addr:     addr,
		Username: cfg.InfluxUser,
		Password: cfg.InfluxPassword,
		Database: cfg.InfluxDatabase,
		Timeout:  storeTimeout,
	}), loopCfg
}
