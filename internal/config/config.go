// Copyright 2024 The vault-plugin-secrets-vector-dpe Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads server and client configuration from TOML files.
// Grounded on allinbits-labs/projects/sidechain/internal/config/config.go's
// LoadGlobalConfig (os.Open, toml.NewDecoder(file).Decode, then apply
// defaults for zero-valued fields).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// ServerConfig is the tiptoe-server process's full configuration surface
// (SPEC_FULL.md §4.9 "ambient stack" + spec.md §6's enumerated constants).
type ServerConfig struct {
	ListenAddr      string        `toml:"listen_addr"`
	RefreshInterval time.Duration `toml:"-"`
	RefreshSeconds  int           `toml:"refresh_interval_seconds"`
	SecretDimension uint64        `toml:"secret_dimension"`
	ModPower        uint64        `toml:"mod_power"`
	EmbeddingDim    int           `toml:"embedding_dim"`
	EmbeddingScale  float64       `toml:"embedding_scale"`
	CorpusPath      string        `toml:"corpus_path"`
	Compressed      bool          `toml:"compressed"`
	LogLevel        string        `toml:"log_level"`
}

// ClientConfig is what a standalone tiptoe client needs: where the server
// lives and how many distinct epochs' hints to retain.
type ClientConfig struct {
	ServerURL     string `toml:"server_url"`
	HintCacheSize int    `toml:"hint_cache_size"`
	LogLevel      string `toml:"log_level"`
}

// LoadServerConfig reads a ServerConfig from path, applying the same
// defaults-after-decode pattern as allinbits-labs/projects/sidechain's
// LoadGlobalConfig. It does not call Validate; callers do that separately.
func LoadServerConfig(path string) (*ServerConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer file.Close()

	var cfg ServerConfig
	if _, err := toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	applyServerDefaults(&cfg)
	cfg.RefreshInterval = time.Duration(cfg.RefreshSeconds) * time.Second
	return &cfg, nil
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.RefreshSeconds == 0 {
		cfg.RefreshSeconds = 60 // spec.md §6: "default 60 seconds"
	}
	if cfg.SecretDimension == 0 {
		cfg.SecretDimension = 2048 // spec.md §6: "default 2048"
	}
	if cfg.ModPower == 0 {
		cfg.ModPower = 17
	}
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 384 // spec.md §6: "default 384"
	}
	if cfg.EmbeddingScale == 0 {
		cfg.EmbeddingScale = 100 // spec.md §9: fixed scale, not a tunable in practice
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// LoadClientConfig reads a ClientConfig from path and applies defaults; no
// further validation is done.
func LoadClientConfig(path string) (*ClientConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer file.Close()

	var cfg ClientConfig
	if _, err := toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if cfg.HintCacheSize == 0 {
		cfg.HintCacheSize = 8
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return &cfg, nil
}

// Validate checks ServerConfig against simplepir's parameter preconditions
// (spec.md §3: m_p in [17,20]) before it's used to construct a server.
func (c *ServerConfig) Validate() error {
	if c.ModPower < 17 || c.ModPower > 20 {
		return fmt.Errorf("config: mod_power=%d outside valid range [17,20]", c.ModPower)
	}
	if c.Compressed && c.ModPower >= 21 {
		return fmt.Errorf("config: compressed requires mod_power < 21")
	}
	if c.CorpusPath == "" {
		return fmt.Errorf("config: corpus_path is required")
	}
	return nil
}
