// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Package refocus integrates with the Refocus monitoring service: an
// authenticated API client plus the extract and load processors that speak
// it.
package refocus

// ResponseTimeout is the sentinel the remote uses for a sample whose value
// never arrived.
const ResponseTimeout = "Timeout"

// Sample is one raw measurement returned by the remote. Value is a string by
// contract; the extract processor parses it.
type Sample struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	UpdatedAt   string `json:"updatedAt"`
	MessageBody string `json:"messageBody,omitempty"`
}

// CacheKey identifies the sample within one endpoint's cache.
func (s Sample) CacheKey() string {
	return s.Name
}

// TimedOut reports whether the sample carries the timeout sentinel.
func (s Sample) TimedOut() bool {
	return s.Value == ResponseTimeout
}
