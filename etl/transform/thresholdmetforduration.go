// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package transform

import (
	"fmt"
	"time"

	"github.com/salesforce/pyplyn/helper"
	"github.com/salesforce/pyplyn/structs"
)

// thresholdMetForDuration reduces each row to a single status point based on
// how long the threshold has been continuously met, scanning from the newest
// point backwards. Empty rows are dropped.
func thresholdMetForDuration(t *structs.ThresholdMetForDuration, m structs.Matrix) structs.Matrix {
	out := make(structs.Matrix, 0, len(m))
	for _, row := range m {
		if reduced, ok := applyDurationThreshold(t, row); ok {
			out = append(out, reduced)
		}
	}
	return out
}

func applyDurationThreshold(t *structs.ThresholdMetForDuration, points structs.Row) (structs.Row, bool) {
	if len(points) == 0 {
		return nil, false
	}

	lastPoint := points[len(points)-1]
	lastTS := lastPoint.Time

	infoTS := lastTS.Add(-time.Duration(t.InfoDurationMillis) * time.Millisecond)
	warnTS := lastTS.Add(-time.Duration(t.WarnDurationMillis) * time.Millisecond)
	criticalTS := lastTS.Add(-time.Duration(t.CriticalDurationMillis) * time.Millisecond)

	atWarningLevel := false
	atInfoLevel := false

	for i := len(points) - 1; i >= 0; i-- {
		point := points[i]
		pointTS := point.Time

		if t.Type.Matches(point.Value, t.Threshold) {
			switch {
			case !pointTS.After(criticalTS):
				// the threshold has been met for the full critical
				// duration; report it on the newest point
				return single(appendDurationMessage(t, lastPoint.WithValue(StatusCrit), codeCrit, t.CriticalDurationMillis)), true
			case !pointTS.After(warnTS):
				atWarningLevel = true
			case !pointTS.After(infoTS):
				atInfoLevel = true
			}
			continue
		}

		switch {
		case !pointTS.After(warnTS):
			return single(appendDurationMessage(t, point.WithValue(StatusWarn), codeWarn, t.WarnDurationMillis)), true
		case !pointTS.After(infoTS):
			// the INFO message reports the warn duration; this mirrors
			// the historical behavior and is relied on downstream
			return single(appendDurationMessage(t, point.WithValue(StatusInfo), codeInfo, t.WarnDurationMillis)), true
		default:
			return single(point.WithValue(StatusOK)), true
		}
	}

	// the duration thresholds reach further back than the available series
	switch {
	case atWarningLevel:
		return single(appendDurationMessage(t, lastPoint.WithValue(StatusWarn), codeWarn, t.WarnDurationMillis)), true
	case atInfoLevel:
		return single(appendDurationMessage(t, lastPoint.WithValue(StatusInfo), codeInfo, t.WarnDurationMillis)), true
	default:
		return single(lastPoint.WithValue(StatusOK)), true
	}
}

func single(point structs.Transmutation) structs.Row {
	return structs.Row{point}
}

func appendDurationMessage(t *structs.ThresholdMetForDuration, point structs.Transmutation, code string, durationMillis int64) structs.Transmutation {
	return point.WithMessage(fmt.Sprintf("%s threshold hit by %s, with value=%s %s %.2f, duration longer than %s",
		code, point.Name, helper.FormatNumber(point.OriginalValue), t.Type, t.Threshold,
		formatTimeDuration(durationMillis)))
}

// formatTimeDuration renders a duration as "xxh:xxm:xxs", prefixed with
// "xxdays " when at least one day long. Sub-second remainders are dropped.
func formatTimeDuration(milliseconds int64) string {
	d := time.Duration(milliseconds) * time.Millisecond
	days := int64(d.Hours()) / 24
	hms := fmt.Sprintf("%02dh:%02dm:%02ds",
		int64(d.Hours())%24,
		int64(d.Minutes())%60,
		int64(d.Seconds())%60)
	if days > 0 {
		return fmt.Sprintf("%02ddays %s", days, hms)
	}
	return hms
}
