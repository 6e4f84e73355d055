// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package structs

import (
	"fmt"
	"strings"
)

// Extract is a closed sum of extract stage definitions. Exactly one arm must
// be set; dispatch to processors is by arm.
type Extract struct {
	Refocus *RefocusExtract `json:"Refocus,omitempty"`
}

// Validate enforces the exactly-one-arm rule.
func (e *Extract) Validate() error {
	if e.Refocus == nil {
		return fmt.Errorf("extract: no variant set")
	}
	return nil
}

// EndpointID returns the endpoint the set arm targets.
func (e *Extract) EndpointID() string {
	if e.Refocus != nil {
		return e.Refocus.Endpoint
	}
	return ""
}

// RefocusExtract pulls samples for one subject|aspect pair from a Refocus
// endpoint.
type RefocusExtract struct {
	Endpoint     string   `json:"endpoint"`
	Subject      string   `json:"subject"`
	Aspect       string   `json:"aspect"`
	DefaultValue *float64 `json:"defaultValue,omitempty"`
	CacheMillis  int64    `json:"cacheMillis,omitempty"`
}

// Name is the sample name pattern sent to the remote; it may contain
// wildcards.
func (r *RefocusExtract) Name() string {
	return r.Subject + "|" + r.Aspect
}

// FilteredName is the sample name with wildcard tokens removed; it identifies
// the one sample this extract selects out of the remote's response.
func (r *RefocusExtract) FilteredName() string {
	return strings.ReplaceAll(r.Name(), "*", "")
}

// CacheKey uniquely identifies this extract's sample within its endpoint.
func (r *RefocusExtract) CacheKey() string {
	return r.FilteredName()
}
