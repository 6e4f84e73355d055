// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package helper

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatNumber renders a metric value without trailing zeros, so messages
// read "value=200" rather than "value=200.000000".
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseNumber parses a sample value as a float.
func ParseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value %q: %w", s, err)
	}
	return v, nil
}

// ParseUTCTime parses an ISO-8601 timestamp and normalizes it to UTC.
func ParseUTCTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
