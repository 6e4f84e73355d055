// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package structs

import (
	"fmt"
	"sync"

	"github.com/mitchellh/hashstructure"
)

// Configuration is one declarative ETL job. Identity is the structural hash
// of all fields: two configurations with identical content are the same job.
// Configurations are immutable once published by the loader.
type Configuration struct {
	Extracts             []Extract   `json:"extracts"`
	Transforms           []Transform `json:"transforms"`
	Loads                []Load      `json:"loads"`
	RepeatIntervalMillis int64       `json:"repeatIntervalMillis"`
	Disabled             bool        `json:"disabled,omitempty"`

	hashOnce sync.Once
	hash     uint64
}

// Validate checks every stage definition.
func (c *Configuration) Validate() error {
	if len(c.Extracts) == 0 {
		return fmt.Errorf("configuration: at least one extract is required")
	}
	for i := range c.Extracts {
		if err := c.Extracts[i].Validate(); err != nil {
			return fmt.Errorf("extract %d: %w", i, err)
		}
	}
	for i := range c.Transforms {
		if err := c.Transforms[i].Validate(); err != nil {
			return fmt.Errorf("transform %d: %w", i, err)
		}
	}
	for i := range c.Loads {
		if err := c.Loads[i].Validate(); err != nil {
			return fmt.Errorf("load %d: %w", i, err)
		}
	}
	return nil
}

// Hash returns the structural identity of the configuration. The hash is
// computed once; configurations must not be mutated after first use.
func (c *Configuration) Hash() uint64 {
	c.hashOnce.Do(func() {
		// hashstructure only fails on values it cannot walk (funcs,
		// channels); this struct is plain data
		c.hash, _ = hashstructure.Hash(struct {
			Extracts             []Extract
			Transforms           []Transform
			Loads                []Load
			RepeatIntervalMillis int64
			Disabled             bool
		}{c.Extracts, c.Transforms, c.Loads, c.RepeatIntervalMillis, c.Disabled}, nil)
	})
	return c.hash
}

// Equal reports structural equality.
func (c *Configuration) Equal(o *Configuration) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.Hash() == o.Hash()
}
