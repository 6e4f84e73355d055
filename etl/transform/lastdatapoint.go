// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package transform

import "github.com/salesforce/pyplyn/structs"

// lastDatapoint reduces every row to its newest point and drops empty rows,
// turning an ExN matrix into Ex1.
func lastDatapoint(m structs.Matrix) structs.Matrix {
	out := make(structs.Matrix, 0, len(m))
	for _, row := range m {
		if len(row) == 0 {
			continue
		}
		out = append(out, structs.Row{row[len(row)-1]})
	}
	return out
}
