// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Package connector manages named endpoint credentials and the per-endpoint
// client/cache pairs built from them. Passwords are never held in long-lived
// memory: they are re-read from the source file on demand and the buffers
// zeroed after each use.
package connector

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Connector describes one remote service endpoint: address, credentials and
// timeout profile. The password field is only populated transiently during
// deserialization; Registry zeroes it before publishing the record.
type Connector struct {
	ID             string `json:"id"`
	Endpoint       string `json:"endpoint"`
	Username       string `json:"username"`
	Password       []byte `json:"password,omitempty"`
	ConnectTimeout int64  `json:"connectTimeout"`
	ReadTimeout    int64  `json:"readTimeout"`
	WriteTimeout   int64  `json:"writeTimeout"`
	ProxyHost      string `json:"proxyHost,omitempty"`
	ProxyPort      int    `json:"proxyPort,omitempty"`

	// source is the registry file passwords are re-read from
	source string
}

// ProxyEnabled reports whether requests should flow through a proxy.
func (c *Connector) ProxyEnabled() bool {
	return c.ProxyHost != "" && c.ProxyPort > 0
}

// ConnectTimeoutDuration returns the connect timeout; timeouts are declared
// in seconds.
func (c *Connector) ConnectTimeoutDuration() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Second
}

func (c *Connector) ReadTimeoutDuration() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Second
}

func (c *Connector) WriteTimeoutDuration() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Second
}

// PasswordBytes reads a fresh copy of this connector's password from the
// source file. The caller owns the returned slice and must zero it with
// ZeroBytes immediately after use.
func (c *Connector) PasswordBytes() ([]byte, error) {
	return ReadPasswordBytes(c.source, c.ID)
}

// ZeroBytes overwrites every byte of b.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ReadPasswordBytes deserializes the connector file and returns a copy of the
// password bytes for id. The intermediate buffers are zeroed before
// returning. Returns an error if the id is unknown.
func ReadPasswordBytes(file, id string) ([]byte, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read connectors file %q: %w", file, err)
	}
	defer ZeroBytes(raw)

	var insecure []struct {
		ID       string `json:"id"`
		Password []byte `json:"password"`
	}
	if err := json.Unmarshal(raw, &insecure); err != nil {
		return nil, fmt.Errorf("failed to parse connectors file %q: %w", file, err)
	}

	var password []byte
	for i := range insecure {
		if insecure[i].ID == id && password == nil {
			password = make([]byte, len(insecure[i].Password))
			copy(password, insecure[i].Password)
		}
		ZeroBytes(insecure[i].Password)
	}

	if password == nil {
		return nil, fmt.Errorf("connector %q not found in %q", id, file)
	}
	return password, nil
}
