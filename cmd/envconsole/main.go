// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/relabs-tech/envlogger/internal/app"
	"github.com/relabs-tech/envlogger/internal/config"
)

func main() {
	configPath := flag.String("config", "./envlogger_config.txt", "path to configuration file")
	dashboard := flag.Bool("dashboard", false, "show a live full-screen dashboard instead of a log")
	flag.Parse()

	log.Println("starting envlogger console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	base, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer base.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *dashboard {
		err = app.RunDashboard(ctx, config.Get(), base.Sugar())
	} else {
		err = app.RunConsole(ctx, config.Get(), os.Stdout, base.Sugar())
	}
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
