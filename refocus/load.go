// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package refocus

import (
	"context"
	"strings"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	multierror "github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/salesforce/pyplyn/client"
	"github.com/salesforce/pyplyn/connector"
	"github.com/salesforce/pyplyn/helper"
	"github.com/salesforce/pyplyn/status"
	"github.com/salesforce/pyplyn/structs"
)

// LoadProcessor pushes the final matrix to Refocus sinks. Every sink
// receives the full matrix; sinks run in parallel and report success
// individually.
type LoadProcessor struct {
	logger        hclog.Logger
	appConnectors *connector.AppConnectors
	status        *status.SystemStatus
	shutdown      *helper.ShutdownSignal
}

func NewLoadProcessor(appConnectors *connector.AppConnectors, st *status.SystemStatus, shutdown *helper.ShutdownSignal, logger hclog.Logger) *LoadProcessor {
	return &LoadProcessor{
		logger:        logger.Named("refocus.load"),
		appConnectors: appConnectors,
		status:        st,
		shutdown:      shutdown,
	}
}

// Name returns the processor's meter name.
func (p *LoadProcessor) Name() string { return meterName }

// Matches reports whether this processor handles the load definition.
func (p *LoadProcessor) Matches(l structs.Load) bool {
	return l.Refocus != nil
}

// Process writes the matrix to each matching sink and returns one success
// flag per sink, in declared order. Loads of other types are skipped.
func (p *LoadProcessor) Process(ctx context.Context, matrix structs.Matrix, loads []structs.Load) ([]bool, error) {
	var sinks []*structs.RefocusLoad
	for _, l := range loads {
		if l.Refocus != nil {
			sinks = append(sinks, l.Refocus)
		}
	}
	if len(sinks) == 0 {
		return nil, nil
	}

	results := make([]bool, len(sinks))
	var errMu sync.Mutex
	var mErr *multierror.Error

	g, ctx := errgroup.WithContext(ctx)
	for i, sink := range sinks {
		i, sink := i, sink
		g.Go(func() error {
			ok, err := p.processSink(ctx, sink, matrix)
			results[i] = ok
			if err != nil {
				errMu.Lock()
				mErr = multierror.Append(mErr, err)
				errMu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	if err := mErr.ErrorOrNil(); err != nil {
		p.logger.Warn("some loads failed", "error", err)
	}
	return results, nil
}

// processSink upserts one sample per matrix row onto a single sink.
func (p *LoadProcessor) processSink(ctx context.Context, sink *structs.RefocusLoad, matrix structs.Matrix) (bool, error) {
	if p.shutdown.IsDraining() {
		return false, nil
	}

	cl, _, err := connector.ClientAndCacheFor[*Client, Sample](
		p.appConnectors, sink.Endpoint, ServiceName,
		func(conn *connector.Connector) (*Client, error) {
			return NewClient(conn, p.logger.With("endpoint", conn.ID))
		})
	if err != nil {
		p.logger.Error("no client for endpoint", "endpoint", sink.Endpoint, "error", err)
		p.status.Meter(meterName, status.MeterFailure)
		return false, err
	}

	if err := cl.Authenticate(ctx); err != nil {
		p.status.Meter(meterName, status.MeterAuthFailure)
		p.status.Meter(meterName, status.MeterFailure)
		return false, err
	}

	timer := p.status.Timer(meterName, "upsert-samples."+sink.Endpoint)
	defer timer.Stop()

	allOk := true
	for _, row := range matrix {
		if len(row) == 0 {
			continue
		}
		// rows are reduced by the time they reach a load; take the
		// newest point
		point := row[len(row)-1]

		ok, err := cl.UpsertSample(ctx, Sample{
			Name:        sink.Name(),
			Value:       helper.FormatNumber(point.Value),
			UpdatedAt:   point.Time.UTC().Format(time.RFC3339Nano),
			MessageBody: strings.Join(point.Metadata.Messages, "\n"),
		})
		if err != nil {
			if client.IsUnauthorized(err) {
				p.status.Meter(meterName, status.MeterAuthFailure)
			}
			p.status.Meter(meterName, status.MeterFailure)
			return false, err
		}
		if !ok {
			allOk = false
		}
	}

	if allOk {
		p.status.Meter(meterName, status.MeterSuccess)
	} else {
		p.status.Meter(meterName, status.MeterFailure)
	}
	return allOk, nil
}
