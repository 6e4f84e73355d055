// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package transform

import (
	"fmt"

	"github.com/salesforce/pyplyn/helper"
	"github.com/salesforce/pyplyn/structs"
)

// threshold maps each point to a status value by testing it against the
// critical, warning and info thresholds in severity order. Points that
// trigger a threshold carry an explanatory message.
func threshold(t *structs.Threshold, m structs.Matrix) structs.Matrix {
	out := make(structs.Matrix, 0, len(m))
	for _, row := range m {
		newRow := make(structs.Row, 0, len(row))
		for _, point := range row {
			newRow = append(newRow, applyThreshold(t, point))
		}
		out = append(out, newRow)
	}
	return out
}

func applyThreshold(t *structs.Threshold, point structs.Transmutation) structs.Transmutation {
	switch {
	case t.CriticalThreshold != nil && t.Type.Matches(point.Value, *t.CriticalThreshold):
		return withThresholdMessage(point.WithValue(StatusCrit), codeCrit, t.Type, *t.CriticalThreshold)
	case t.WarnThreshold != nil && t.Type.Matches(point.Value, *t.WarnThreshold):
		return withThresholdMessage(point.WithValue(StatusWarn), codeWarn, t.Type, *t.WarnThreshold)
	case t.InfoThreshold != nil && t.Type.Matches(point.Value, *t.InfoThreshold):
		return withThresholdMessage(point.WithValue(StatusInfo), codeInfo, t.Type, *t.InfoThreshold)
	default:
		return point.WithValue(StatusOK)
	}
}

func withThresholdMessage(point structs.Transmutation, code string, typ structs.ThresholdType, threshold float64) structs.Transmutation {
	return point.WithMessage(fmt.Sprintf("%s threshold hit by %s, with value=%s %s %.2f",
		code, point.Name, helper.FormatNumber(point.OriginalValue), typ, threshold))
}
