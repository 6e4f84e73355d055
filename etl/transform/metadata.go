// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package transform

import "github.com/salesforce/pyplyn/structs"

// metadata merges the configured tags into every point. Existing tags with
// the same key are overwritten.
func metadata(t *structs.MetadataTransform, m structs.Matrix) structs.Matrix {
	if len(t.Tags) == 0 {
		return m
	}
	out := make(structs.Matrix, 0, len(m))
	for _, row := range m {
		newRow := make(structs.Row, 0, len(row))
		for _, point := range row {
			newRow = append(newRow, point.WithTags(t.Tags))
		}
		out = append(out, newRow)
	}
	return out
}
