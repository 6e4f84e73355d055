// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Package appconfig reads the process-wide configuration file once at
// startup. A failure here is fatal; there is no runtime reload of this file.
package appconfig

import (
	"encoding/json"
	"fmt"
	"os"
)

// AppConfig is the top-level startup configuration.
type AppConfig struct {
	Global  Global   `json:"global"`
	Cluster *Cluster `json:"hazelcast,omitempty"`
	Alert   *Alert   `json:"alert,omitempty"`
}

// Global holds paths and intervals used by the configuration update manager.
type Global struct {
	ConfigurationsPath                string `json:"configurationsPath"`
	ConnectorsPath                    string `json:"connectorsPath"`
	RunOnce                           bool   `json:"runOnce,omitempty"`
	UpdateConfigurationIntervalMillis int64  `json:"updateConfigurationIntervalMillis"`
}

// Cluster controls cluster coordination. The JSON section keeps its
// historical "hazelcast" name; Config is the coordination backend address
// (a redis URL).
type Cluster struct {
	Enabled bool   `json:"enabled"`
	Config  string `json:"config,omitempty"`
}

// Alert configures meter threshold monitoring.
type Alert struct {
	Enabled             bool               `json:"enabled"`
	CheckIntervalMillis int64              `json:"checkIntervalMillis"`
	Thresholds          map[string]float64 `json:"thresholds,omitempty"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*AppConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read app config %q: %w", path, err)
	}

	var cfg AppConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse app config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid app config %q: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks required fields.
func (c *AppConfig) Validate() error {
	if c.Global.ConfigurationsPath == "" {
		return fmt.Errorf("global.configurationsPath is required")
	}
	if c.Global.ConnectorsPath == "" {
		return fmt.Errorf("global.connectorsPath is required")
	}
	if c.Global.UpdateConfigurationIntervalMillis <= 0 {
		return fmt.Errorf("global.updateConfigurationIntervalMillis must be positive")
	}
	if c.Cluster != nil && c.Cluster.Enabled && c.Cluster.Config == "" {
		return fmt.Errorf("hazelcast.config is required when clustering is enabled")
	}
	if c.Alert != nil && c.Alert.Enabled && c.Alert.CheckIntervalMillis <= 0 {
		return fmt.Errorf("alert.checkIntervalMillis must be positive when alerting is enabled")
	}
	return nil
}

// ClusterEnabled reports whether cluster coordination is on.
func (c *AppConfig) ClusterEnabled() bool {
	return c.Cluster != nil && c.Cluster.Enabled
}
