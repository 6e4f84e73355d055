// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Package structs holds the data model shared by every pipeline stage:
// measurement points, the row matrix they flow through, the tagged-variant
// stage definitions, and the Configuration that ties them together.
package structs

import "time"

// Metadata carries ordered human-readable messages plus free-form tags
// attached to a point as it moves through the pipeline.
type Metadata struct {
	Messages []string          `json:"messages,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
}

func (m Metadata) copy() Metadata {
	out := Metadata{}
	if len(m.Messages) > 0 {
		out.Messages = make([]string, len(m.Messages))
		copy(out.Messages, m.Messages)
	}
	if len(m.Tags) > 0 {
		out.Tags = make(map[string]string, len(m.Tags))
		for k, v := range m.Tags {
			out.Tags[k] = v
		}
	}
	return out
}

// Transmutation is one immutable measurement point. OriginalValue is set once
// by the extract processor and must never be altered by transforms; Value is
// what transforms rewrite.
type Transmutation struct {
	Time          time.Time `json:"time"`
	Name          string    `json:"name"`
	Value         float64   `json:"value"`
	OriginalValue float64   `json:"originalValue"`
	Metadata      Metadata  `json:"metadata"`
}

// WithValue returns a copy with a new value, preserving time, name, original
// value and metadata.
func (t Transmutation) WithValue(v float64) Transmutation {
	t.Value = v
	t.Metadata = t.Metadata.copy()
	return t
}

// WithMessage returns a copy with msg appended to the metadata messages.
func (t Transmutation) WithMessage(msg string) Transmutation {
	t.Metadata = t.Metadata.copy()
	t.Metadata.Messages = append(t.Metadata.Messages, msg)
	return t
}

// WithTags returns a copy with the given tags merged into the metadata.
func (t Transmutation) WithTags(tags map[string]string) Transmutation {
	t.Metadata = t.Metadata.copy()
	if t.Metadata.Tags == nil {
		t.Metadata.Tags = make(map[string]string, len(tags))
	}
	for k, v := range tags {
		t.Metadata.Tags[k] = v
	}
	return t
}

// Row is the ordered time series produced by one extract, columns ordered by
// time ascending.
type Row []Transmutation

// Matrix is the unit of data flowing through a pipeline: one row per extract.
// Transforms may shorten or drop rows but must preserve row ordering.
type Matrix []Row
