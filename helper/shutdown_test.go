// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package helper

import (
	"testing"

	"github.com/shoenig/test/must"
)

func TestShutdownSignal(t *testing.T) {
	s := NewShutdownSignal()
	must.False(t, s.IsDraining())

	select {
	case <-s.C():
		t.Fatal("signal channel closed before Shutdown")
	default:
	}

	s.Shutdown()
	s.Shutdown() // idempotent

	must.True(t, s.IsDraining())
	select {
	case <-s.C():
	default:
		t.Fatal("signal channel not closed after Shutdown")
	}
}

func TestFormatNumber(t *testing.T) {
	must.Eq(t, "200", FormatNumber(200))
	must.Eq(t, "1.5", FormatNumber(1.5))
	must.Eq(t, "0", FormatNumber(0))
}

func TestParseNumber(t *testing.T) {
	v, err := ParseNumber(" 42.5 ")
	must.NoError(t, err)
	must.Eq(t, 42.5, v)

	_, err = ParseNumber("Timeout")
	must.Error(t, err)
}

func TestParseUTCTime(t *testing.T) {
	ts, err := ParseUTCTime("2017-03-01T12:00:00.000Z")
	must.NoError(t, err)
	must.Eq(t, 2017, ts.Year())
	must.Eq(t, "UTC", ts.Location().String())

	_, err = ParseUTCTime("not-a-time")
	must.Error(t, err)
}
