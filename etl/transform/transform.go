// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Package transform implements the pure Matrix functions behind the
// Transform stage variants. Every function is deterministic, side-effect
// free and preserves each retained point's original value.
package transform

import "github.com/salesforce/pyplyn/structs"

// Status values a point can be reduced to.
const (
	StatusOK   = 0.0
	StatusInfo = 1.0
	StatusWarn = 2.0
	StatusCrit = 3.0
)

const (
	codeOK   = "OK"
	codeInfo = "INFO"
	codeWarn = "WARN"
	codeCrit = "CRIT"
)

// Apply dispatches the set variant arm over the matrix.
func Apply(t structs.Transform, m structs.Matrix) structs.Matrix {
	switch {
	case t.LastDatapoint != nil:
		return lastDatapoint(m)
	case t.InfoStatus != nil:
		return infoStatus(m)
	case t.Threshold != nil:
		return threshold(t.Threshold, m)
	case t.ThresholdMetForDuration != nil:
		return thresholdMetForDuration(t.ThresholdMetForDuration, m)
	case t.Metadata != nil:
		return metadata(t.Metadata, m)
	default:
		// unreachable for validated configurations
		return m
	}
}
