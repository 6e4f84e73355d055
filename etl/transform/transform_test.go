// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package transform

import (
	"testing"
	"time"

	"github.com/shoenig/test/must"

	"github.com/salesforce/pyplyn/structs"
)

var epoch = time.Date(2017, 3, 1, 12, 0, 0, 0, time.UTC)

func point(offset time.Duration, value float64) structs.Transmutation {
	return structs.Transmutation{
		Time:          epoch.Add(offset),
		Name:          "usa.east|latency",
		Value:         value,
		OriginalValue: value,
	}
}

func TestLastDatapoint(t *testing.T) {
	in := structs.Matrix{
		{point(0, 10), point(time.Second, 20), point(2*time.Second, 30)},
		{point(0, 5)},
	}

	out := Apply(structs.Transform{LastDatapoint: &structs.LastDatapoint{}}, in)
	must.Len(t, 2, out)
	must.Len(t, 1, out[0])
	must.Eq(t, 30.0, out[0][0].Value)
	must.Len(t, 1, out[1])
	must.Eq(t, 5.0, out[1][0].Value)
}

func TestLastDatapointDropsEmptyRows(t *testing.T) {
	in := structs.Matrix{{}, {point(0, 1)}}
	out := Apply(structs.Transform{LastDatapoint: &structs.LastDatapoint{}}, in)
	must.Len(t, 1, out)
}

func TestLastDatapointIdempotent(t *testing.T) {
	in := structs.Matrix{
		{point(0, 10), point(time.Second, 20)},
		{},
	}
	tr := structs.Transform{LastDatapoint: &structs.LastDatapoint{}}
	once := Apply(tr, in)
	twice := Apply(tr, once)
	must.Eq(t, once, twice)
}

func TestInfoStatusClamp(t *testing.T) {
	in := structs.Matrix{{point(0, 0), point(0, 1), point(0, 2), point(0, 3)}}
	out := Apply(structs.Transform{InfoStatus: &structs.InfoStatus{}}, in)

	must.Len(t, 4, out[0])
	must.Eq(t, 1.0, out[0][0].Value)
	must.Eq(t, 1.0, out[0][1].Value)
	must.Eq(t, 2.0, out[0][2].Value)
	must.Eq(t, 3.0, out[0][3].Value)

	// original values survive the clamp
	must.Eq(t, 0.0, out[0][0].OriginalValue)
}

func TestInfoStatusIdempotent(t *testing.T) {
	in := structs.Matrix{{point(0, 0), point(0, 2)}}
	tr := structs.Transform{InfoStatus: &structs.InfoStatus{}}
	once := Apply(tr, in)
	twice := Apply(tr, once)
	must.Eq(t, once, twice)
}

func TestEmptyMatrixPassesThroughAllTransforms(t *testing.T) {
	transforms := []structs.Transform{
		{LastDatapoint: &structs.LastDatapoint{}},
		{InfoStatus: &structs.InfoStatus{}},
		{Threshold: &structs.Threshold{Type: structs.GreaterThan}},
		{ThresholdMetForDuration: &structs.ThresholdMetForDuration{Type: structs.GreaterThan}},
		{Metadata: &structs.MetadataTransform{Tags: map[string]string{"a": "b"}}},
	}
	for _, tr := range transforms {
		out := Apply(tr, structs.Matrix{})
		must.Len(t, 0, out)
	}
}

func TestThresholdSeverityOrder(t *testing.T) {
	crit, warn, info := 100.0, 50.0, 10.0
	tr := structs.Transform{Threshold: &structs.Threshold{
		Type:              structs.GreaterThan,
		CriticalThreshold: &crit,
		WarnThreshold:     &warn,
		InfoThreshold:     &info,
	}}

	in := structs.Matrix{{point(0, 150), point(0, 60), point(0, 20), point(0, 5)}}
	out := Apply(tr, in)

	must.Eq(t, StatusCrit, out[0][0].Value)
	must.Eq(t, StatusWarn, out[0][1].Value)
	must.Eq(t, StatusInfo, out[0][2].Value)
	must.Eq(t, StatusOK, out[0][3].Value)

	must.StrContains(t, out[0][0].Metadata.Messages[0], "CRIT threshold hit")
	must.Eq(t, 150.0, out[0][0].OriginalValue)
	must.Len(t, 0, out[0][3].Metadata.Messages)
}

func durationTransform() structs.Transform {
	return structs.Transform{ThresholdMetForDuration: &structs.ThresholdMetForDuration{
		Threshold:              100,
		Type:                   structs.GreaterThan,
		CriticalDurationMillis: 60_000,
		WarnDurationMillis:     30_000,
		InfoDurationMillis:     10_000,
	}}
}

func TestThresholdMetForDurationCrit(t *testing.T) {
	in := structs.Matrix{{
		point(0, 200),
		point(30*time.Second, 150),
		point(60*time.Second, 120),
		point(90*time.Second, 110),
	}}

	out := Apply(durationTransform(), in)
	must.Len(t, 1, out)
	must.Len(t, 1, out[0])

	got := out[0][0]
	must.Eq(t, StatusCrit, got.Value)
	must.Eq(t, epoch.Add(90*time.Second), got.Time)
	must.Eq(t, 110.0, got.OriginalValue)
	must.Len(t, 1, got.Metadata.Messages)
	must.StrContains(t, got.Metadata.Messages[0], "CRIT threshold hit")
	must.StrContains(t, got.Metadata.Messages[0], "duration longer than 00h:01m:00s")
}

func TestThresholdMetForDurationBreakout(t *testing.T) {
	// newest matches, the point before it does not; the non-matching
	// point is older than the warn cutoff so the row reduces to WARN
	// with the warn-duration message
	in := structs.Matrix{{
		point(0, 50),
		point(90*time.Second, 150),
	}}

	out := Apply(durationTransform(), in)
	must.Len(t, 1, out)

	got := out[0][0]
	must.Eq(t, StatusWarn, got.Value)
	must.Eq(t, epoch, got.Time)
	must.Eq(t, 50.0, got.OriginalValue)
	must.StrContains(t, got.Metadata.Messages[0], "WARN threshold hit")
	must.StrContains(t, got.Metadata.Messages[0], "duration longer than 00h:00m:30s")
}

func TestThresholdMetForDurationInfoBreakoutUsesWarnDurationMessage(t *testing.T) {
	// the non-matching point falls between the info and warn cutoffs;
	// status is INFO but the message still reports the warn duration
	in := structs.Matrix{{
		point(70*time.Second, 50),
		point(90*time.Second, 150),
	}}

	out := Apply(durationTransform(), in)
	got := out[0][0]
	must.Eq(t, StatusInfo, got.Value)
	must.StrContains(t, got.Metadata.Messages[0], "INFO threshold hit")
	must.StrContains(t, got.Metadata.Messages[0], "duration longer than 00h:00m:30s")
}

func TestThresholdMetForDurationRecentBreakoutIsOK(t *testing.T) {
	// the non-matching point is newer than every cutoff
	in := structs.Matrix{{
		point(85*time.Second, 50),
		point(90*time.Second, 150),
	}}

	out := Apply(durationTransform(), in)
	got := out[0][0]
	must.Eq(t, StatusOK, got.Value)
	must.Len(t, 0, got.Metadata.Messages)
}

func TestThresholdMetForDurationExhaustedSeries(t *testing.T) {
	// every point matches but the series is shorter than the critical
	// duration; the deepest cutoff reached wins
	in := structs.Matrix{{
		point(50*time.Second, 150),
		point(90*time.Second, 150),
	}}

	out := Apply(durationTransform(), in)
	got := out[0][0]
	must.Eq(t, StatusWarn, got.Value)
	must.Eq(t, epoch.Add(90*time.Second), got.Time)
	must.StrContains(t, got.Metadata.Messages[0], "WARN threshold hit")
}

func TestThresholdMetForDurationDropsEmptyRows(t *testing.T) {
	in := structs.Matrix{{}, {point(0, 150)}}
	out := Apply(durationTransform(), in)
	must.Len(t, 1, out)
}

func TestThresholdMetForDurationPreservesOriginalValue(t *testing.T) {
	in := structs.Matrix{{
		point(0, 200),
		point(90*time.Second, 110),
	}}
	out := Apply(durationTransform(), in)
	for _, row := range out {
		for _, p := range row {
			must.Eq(t, 110.0, p.OriginalValue)
		}
	}
}

func TestFormatTimeDuration(t *testing.T) {
	must.Eq(t, "00h:01m:00s", formatTimeDuration(60_000))
	must.Eq(t, "01h:00m:30s", formatTimeDuration(3_630_000))
	must.Eq(t, "02days 03h:00m:00s", formatTimeDuration((51*time.Hour).Milliseconds()))
}

func TestMetadataTransformAddsTags(t *testing.T) {
	in := structs.Matrix{{point(0, 1)}}
	out := Apply(structs.Transform{Metadata: &structs.MetadataTransform{
		Tags: map[string]string{"datacenter": "east"},
	}}, in)

	must.Eq(t, "east", out[0][0].Metadata.Tags["datacenter"])
	// input untouched
	must.MapEmpty(t, in[0][0].Metadata.Tags)
}

func TestTransformsNeverAlterOriginalValue(t *testing.T) {
	in := structs.Matrix{{point(0, 0), point(time.Second, 150)}}
	transforms := []structs.Transform{
		{InfoStatus: &structs.InfoStatus{}},
		{Metadata: &structs.MetadataTransform{Tags: map[string]string{"a": "b"}}},
		durationTransform(),
		{LastDatapoint: &structs.LastDatapoint{}},
	}
	m := in
	for _, tr := range transforms {
		m = Apply(tr, m)
		for _, row := range m {
			for _, p := range row {
				orig := p.OriginalValue
				must.True(t, orig == 0 || orig == 150,
					must.Sprintf("unexpected original value %v", orig))
			}
		}
	}
}
