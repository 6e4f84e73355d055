// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package transform

import "github.com/salesforce/pyplyn/structs"

// infoStatus clamps OK statuses to INFO, so downstream consumers never see a
// fully green status for a metric that was explicitly checked. Apply it
// after a threshold transform, when values are in the 0-3 status range.
func infoStatus(m structs.Matrix) structs.Matrix {
	out := make(structs.Matrix, 0, len(m))
	for _, row := range m {
		newRow := make(structs.Row, 0, len(row))
		for _, point := range row {
			if int64(point.Value) == 0 {
				point = point.WithValue(StatusInfo)
			}
			newRow = append(newRow, point)
		}
		out = append(out, newRow)
	}
	return out
}
