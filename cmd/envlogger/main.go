// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/relabs-tech/envlogger/internal/app"
	"github.com/relabs-tech/envlogger/internal/config"
)

func main() {
	configPath := flag.String("config", "./envlogger_config.txt", "path to configuration file")
	validate := flag.Bool("validate", false, "load and validate the configuration, then exit")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log.Println("starting envlogger (BME280 → time-series store)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	if *validate {
		fmt.Printf("config %s OK: sensor=%s store=%s altitude=%.1fm tags=%v\n",
			*configPath, cfg.SensorDriver, cfg.Store, cfg.Altitude(), cfg.Tags)
		return
	}

	zcfg := zap.NewProductionConfig()
	if *debug {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	base, err := zcfg.Build()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer base.Sync()
	logger := base.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunCollector(ctx, cfg, logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}

	fmt.Println("program ended")
}
