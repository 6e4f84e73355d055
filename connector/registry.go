// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package connector

import (
	"encoding/json"
	"fmt"
	"os"
)

// Registry holds the connector records declared in the connectors file,
// keyed by id. Records are published without password bytes; consumers call
// Connector.PasswordBytes for a fresh copy when authenticating.
type Registry struct {
	source     string
	connectors map[string]*Connector
}

// LoadRegistry reads the connectors file. Duplicate ids are an error.
func LoadRegistry(file string) (*Registry, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read connectors file %q: %w", file, err)
	}
	defer ZeroBytes(raw)

	var connectors []*Connector
	if err := json.Unmarshal(raw, &connectors); err != nil {
		return nil, fmt.Errorf("failed to parse connectors file %q: %w", file, err)
	}

	r := &Registry{
		source:     file,
		connectors: make(map[string]*Connector, len(connectors)),
	}
	for _, c := range connectors {
		// drop password bytes right away; they are re-read on demand
		ZeroBytes(c.Password)
		c.Password = nil
		c.source = file

		if c.ID == "" {
			return nil, fmt.Errorf("connector with empty id in %q", file)
		}
		if c.Endpoint == "" {
			return nil, fmt.Errorf("connector %q has no endpoint", c.ID)
		}
		if _, dup := r.connectors[c.ID]; dup {
			return nil, fmt.Errorf("duplicate connector id %q in %q", c.ID, file)
		}
		r.connectors[c.ID] = c
	}
	return r, nil
}

// Get returns the connector for id.
func (r *Registry) Get(id string) (*Connector, error) {
	c, ok := r.connectors[id]
	if !ok {
		return nil, fmt.Errorf("unknown connector %q", id)
	}
	return c, nil
}

// IDs lists the registered connector ids.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.connectors))
	for id := range r.connectors {
		out = append(out, id)
	}
	return out
}
