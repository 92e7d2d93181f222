// Copyright 2024 The vault-plugin-secrets-vector-dpe Authors
// SPDX-License-Identifier: Apache-2.0

// Package main bootstraps the tiptoe retrieval service: load config, build
// a server, run the refresh ticker, serve HTTP. Deliberately thin, per the
// teacher's own main.go (parse just enough to construct dependencies, then
// hand off) — this is a service bootstrap, not a CLI tool, so there is no
// subcommand or flag surface beyond a config path.
package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/lpassig/tiptoe-pir/internal/config"
	"github.com/lpassig/tiptoe-pir/internal/httpapi"
	"github.com/lpassig/tiptoe-pir/internal/tiptoe"
)

func main() {
	configPath := flag.String("config", "tiptoe-server.toml", "path to server configuration")
	flag.Parse()

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "tiptoe-server",
		Level: hclog.LevelFromString(cfg.LogLevel),
	})

	base := tiptoe.BaseParams{
		SecretDim:  cfg.SecretDimension,
		ModPower:   cfg.ModPower,
		Sigma:      6.4,
		Compressed: cfg.Compressed,
	}
	corpus := tiptoe.FileCorpus{Path: cfg.CorpusPath}
	server := tiptoe.NewServer(base, corpus, logger.Named("server"))

	if err := server.Refresh(); err != nil {
		logger.Warn("initial refresh failed, starting with no published epoch", "error", err)
	}

	go runRefreshLoop(server, cfg.RefreshInterval, logger.Named("refresh"))

	handler := httpapi.NewHandler(server, logger.Named("http"))
	logger.Info("listening", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		logger.Error("server exited", "error", err)
		log.Fatal(err)
	}
}

// runRefreshLoop republishes the database on a fixed interval, logging
// (never panicking) on failure — spec.md §4.7: "a rebuild failure leaves
// the previous epoch installed and logs the error".
func runRefreshLoop(server *tiptoe.Server, interval time.Duration, logger hclog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if err := server.Refresh(); err != nil {
			logger.Error("refresh failed", "error", err)
		}
	}
}
