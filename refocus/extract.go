// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package refocus

import (
	"context"
	"fmt"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/salesforce/pyplyn/cache"
	"github.com/salesforce/pyplyn/client"
	"github.com/salesforce/pyplyn/connector"
	"github.com/salesforce/pyplyn/helper"
	"github.com/salesforce/pyplyn/status"
	"github.com/salesforce/pyplyn/structs"
)

// meterName labels every meter and timer recorded by the Refocus processors.
const meterName = "Refocus"

// ExtractProcessor pulls samples for Refocus extract definitions. Endpoints
// are processed in parallel; rows within one endpoint keep the declared
// extract order. Row order between endpoints is unspecified.
type ExtractProcessor struct {
	logger        hclog.Logger
	appConnectors *connector.AppConnectors
	status        *status.SystemStatus
	shutdown      *helper.ShutdownSignal
	clock         clockwork.Clock
}

func NewExtractProcessor(appConnectors *connector.AppConnectors, st *status.SystemStatus, shutdown *helper.ShutdownSignal, clock clockwork.Clock, logger hclog.Logger) *ExtractProcessor {
	return &ExtractProcessor{
		logger:        logger.Named("refocus.extract"),
		appConnectors: appConnectors,
		status:        st,
		shutdown:      shutdown,
		clock:         clock,
	}
}

// Name returns the processor's meter name.
func (p *ExtractProcessor) Name() string { return meterName }

// Matches reports whether this processor handles the extract definition.
func (p *ExtractProcessor) Matches(e structs.Extract) bool {
	return e.Refocus != nil
}

// Process resolves every Refocus extract into a single-column row of the
// result matrix. Extracts that fail or have no data yield no row; the
// corresponding meters record the outcome.
func (p *ExtractProcessor) Process(ctx context.Context, extracts []structs.Extract) (structs.Matrix, error) {
	// partition by endpoint, preserving declared order within each group
	groups := make(map[string][]*structs.RefocusExtract)
	order := make([]string, 0)
	for _, e := range extracts {
		if e.Refocus == nil {
			continue
		}
		if _, seen := groups[e.Refocus.Endpoint]; !seen {
			order = append(order, e.Refocus.Endpoint)
		}
		groups[e.Refocus.Endpoint] = append(groups[e.Refocus.Endpoint], e.Refocus)
	}

	results := make([]structs.Matrix, len(order))
	g, ctx := errgroup.WithContext(ctx)
	for i, endpointID := range order {
		i, endpointID := i, endpointID
		g.Go(func() error {
			results[i] = p.processEndpoint(ctx, endpointID, groups[endpointID])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var matrix structs.Matrix
	for _, rows := range results {
		matrix = append(matrix, rows...)
	}
	return matrix, nil
}

// processEndpoint handles one endpoint's group of extracts sequentially.
func (p *ExtractProcessor) processEndpoint(ctx context.Context, endpointID string, group []*structs.RefocusExtract) structs.Matrix {
	cl, sampleCache, err := connector.ClientAndCacheFor[*Client, Sample](
		p.appConnectors, endpointID, ServiceName,
		func(conn *connector.Connector) (*Client, error) {
			return NewClient(conn, p.logger.With("endpoint", conn.ID))
		})
	if err != nil {
		p.logger.Error("no client for endpoint", "endpoint", endpointID, "error", err)
		p.status.Meter(meterName, status.MeterFailure)
		return nil
	}

	if err := cl.Authenticate(ctx); err != nil {
		p.status.Meter(meterName, status.MeterAuthFailure)
		p.status.Meter(meterName, status.MeterFailure)
		p.logger.Warn("failed to authenticate", "endpoint", endpointID, "error", err)
		return nil
	}

	var rows structs.Matrix
	for _, extract := range group {
		if point, ok := p.processExtract(ctx, cl, sampleCache, endpointID, extract); ok {
			rows = append(rows, structs.Row{point})
		}
	}
	return rows
}

// processExtract resolves one extract to a point, consulting the endpoint
// cache first.
func (p *ExtractProcessor) processExtract(ctx context.Context, cl *Client, sampleCache *cache.Cache[Sample], endpointID string, extract *structs.RefocusExtract) (structs.Transmutation, bool) {
	var zero structs.Transmutation
	isDefault := false

	sample, cached := sampleCache.Get(extract.CacheKey())
	if !cached {
		// short circuit when the app is draining
		if p.shutdown.IsDraining() {
			return zero, false
		}

		timer := p.status.Timer(meterName, "get-samples."+endpointID)
		samples, err := cl.GetSamples(ctx, extract.Name())
		timer.Stop()

		if err != nil {
			p.logger.Error("could not complete samples request",
				"endpoint", endpointID, "name", extract.Name(), "error", err)
			if client.IsUnauthorized(err) {
				p.status.Meter(meterName, status.MeterAuthFailure)
			}
			p.status.Meter(meterName, status.MeterFailure)
			return zero, false
		}
		if len(samples) == 0 {
			p.status.Meter(meterName, status.MeterFailure)
			return zero, false
		}

		if extract.CacheMillis > 0 {
			cachedCount := 0
			for _, s := range samples {
				if s.TimedOut() {
					continue
				}
				sampleCache.Put(s, extract.CacheMillis)
				cachedCount++
			}
			p.logger.Info("cached samples", "count", cachedCount,
				"name", extract.Name(), "endpoint", endpointID)
		}

		found := false
		for _, s := range samples {
			if s.CacheKey() == extract.CacheKey() {
				sample, found = s, true
				break
			}
		}

		if (!found || sample.TimedOut()) && extract.DefaultValue != nil {
			sample = Sample{
				Name:      extract.FilteredName(),
				Value:     helper.FormatNumber(*extract.DefaultValue),
				UpdatedAt: p.clock.Now().UTC().Format(time.RFC3339Nano),
			}
			found = true
			isDefault = true
			p.logger.Info("default data provided for sample",
				"name", sample.Name, "value", sample.Value, "endpoint", endpointID)
		}

		if !found {
			p.logger.Error("no data for sample; null response",
				"name", extract.FilteredName(), "endpoint", endpointID)
			p.status.Meter(meterName, status.MeterNoData)
			return zero, false
		}
	} else {
		p.logger.Debug("sample loaded from cache",
			"name", sample.Name, "endpoint", endpointID)
	}

	point, ok := p.createResult(sample, endpointID)
	if !ok {
		// createResult already metered the no-data outcome
		return zero, false
	}

	if isDefault {
		point = point.WithMessage(fmt.Sprintf("Default value=%s used for metric=%s",
			helper.FormatNumber(*extract.DefaultValue), extract.Name()))
	}

	p.status.Meter(meterName, status.MeterSuccess)
	p.logger.Debug("loaded data for sample", "name", extract.Name(), "endpoint", endpointID)
	return point, true
}

// createResult parses a sample into a measurement point. Unparseable time or
// value counts as no-data and drops the point.
func (p *ExtractProcessor) createResult(sample Sample, endpointID string) (structs.Transmutation, bool) {
	var zero structs.Transmutation

	parsedTime, err := helper.ParseUTCTime(sample.UpdatedAt)
	if err != nil {
		p.logger.Warn("no data for sample; invalid time",
			"name", sample.Name, "endpoint", endpointID, "error", err)
		p.status.Meter(meterName, status.MeterNoData)
		return zero, false
	}

	value, err := helper.ParseNumber(sample.Value)
	if err != nil {
		if sample.TimedOut() {
			p.logger.Warn("no data for sample; timed out",
				"name", sample.Name, "endpoint", endpointID)
		} else {
			p.logger.Warn("no data for sample; invalid value",
				"name", sample.Name, "endpoint", endpointID, "error", err)
		}
		p.status.Meter(meterName, status.MeterNoData)
		return zero, false
	}

	return structs.Transmutation{
		Time:          parsedTime,
		Name:          sample.Name,
		Value:         value,
		OriginalValue: value,
	}, true
}
