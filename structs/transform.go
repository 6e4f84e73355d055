// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package structs

import "fmt"

// Transform is a closed sum of transform stage definitions. Exactly one arm
// must be set. Each arm is a pure, deterministic Matrix function; the
// application logic lives in etl/transform.
type Transform struct {
	LastDatapoint           *LastDatapoint           `json:"LastDatapoint,omitempty"`
	InfoStatus              *InfoStatus              `json:"InfoStatus,omitempty"`
	Threshold               *Threshold               `json:"Threshold,omitempty"`
	ThresholdMetForDuration *ThresholdMetForDuration `json:"ThresholdMetForDuration,omitempty"`
	Metadata                *MetadataTransform       `json:"Metadata,omitempty"`
}

// Validate enforces the exactly-one-arm rule.
func (t *Transform) Validate() error {
	count := 0
	if t.LastDatapoint != nil {
		count++
	}
	if t.InfoStatus != nil {
		count++
	}
	if t.Threshold != nil {
		count++
	}
	if t.ThresholdMetForDuration != nil {
		count++
	}
	if t.Metadata != nil {
		count++
	}
	if count != 1 {
		return fmt.Errorf("transform: expected exactly one variant, found %d", count)
	}
	return nil
}

// LastDatapoint keeps only the newest point of each row.
type LastDatapoint struct{}

// InfoStatus clamps OK statuses to INFO.
type InfoStatus struct{}

// ThresholdType selects the comparison applied between a point value and a
// threshold.
type ThresholdType string

const (
	GreaterThan ThresholdType = "GREATER_THAN"
	LessThan    ThresholdType = "LESS_THAN"
	EqualTo     ThresholdType = "EQUAL_TO"
)

// Matches reports whether value triggers the threshold under this comparison.
func (t ThresholdType) Matches(value, threshold float64) bool {
	switch t {
	case GreaterThan:
		return value > threshold
	case LessThan:
		return value < threshold
	case EqualTo:
		return value == threshold
	default:
		return false
	}
}

// Threshold maps each point to a status value by comparing it against the
// critical/warning/info thresholds in severity order.
type Threshold struct {
	Type              ThresholdType `json:"type"`
	CriticalThreshold *float64      `json:"criticalThreshold,omitempty"`
	WarnThreshold     *float64      `json:"warnThreshold,omitempty"`
	InfoThreshold     *float64      `json:"infoThreshold,omitempty"`
}

// ThresholdMetForDuration reduces each row to a single status point based on
// how long the threshold has been continuously met.
type ThresholdMetForDuration struct {
	Threshold              float64       `json:"threshold"`
	Type                   ThresholdType `json:"type"`
	CriticalDurationMillis int64         `json:"criticalDurationMillis"`
	WarnDurationMillis     int64         `json:"warnDurationMillis"`
	InfoDurationMillis     int64         `json:"infoDurationMillis"`
}

// Equal compares all fields. Note the info duration compares against the
// other's info duration; the historical implementation compared it against
// the warn duration by mistake.
func (t *ThresholdMetForDuration) Equal(o *ThresholdMetForDuration) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.Threshold == o.Threshold &&
		t.Type == o.Type &&
		t.CriticalDurationMillis == o.CriticalDurationMillis &&
		t.WarnDurationMillis == o.WarnDurationMillis &&
		t.InfoDurationMillis == o.InfoDurationMillis
}

// MetadataTransform merges static tags into every point's metadata.
type MetadataTransform struct {
	Tags map[string]string `json:"tags"`
}
