// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package structs

import "fmt"

// Load is a closed sum of load stage definitions. Exactly one arm must be
// set.
type Load struct {
	Refocus *RefocusLoad `json:"Refocus,omitempty"`
}

// Validate enforces the exactly-one-arm rule.
func (l *Load) Validate() error {
	if l.Refocus == nil {
		return fmt.Errorf("load: no variant set")
	}
	return nil
}

// ID identifies the sink for logging and result correlation.
func (l *Load) ID() string {
	if l.Refocus != nil {
		return l.Refocus.ID()
	}
	return ""
}

// RefocusLoad pushes pipeline results as samples onto a Refocus endpoint.
type RefocusLoad struct {
	Endpoint string `json:"endpoint"`
	Subject  string `json:"subject"`
	Aspect   string `json:"aspect"`
}

func (r *RefocusLoad) ID() string {
	return r.Endpoint + "/" + r.Subject + "|" + r.Aspect
}

// Name is the sample name written to the sink.
func (r *RefocusLoad) Name() string {
	return r.Subject + "|" + r.Aspect
}
