// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Package etl runs configurations through the extract, transform and load
// stages. Processors register for the source and sink variants they handle;
// the engine only dispatches and enforces stage-boundary cancellation.
package etl

import (
	"context"
	"fmt"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/salesforce/pyplyn/etl/transform"
	"github.com/salesforce/pyplyn/helper"
	"github.com/salesforce/pyplyn/status"
	"github.com/salesforce/pyplyn/structs"
)

// ExtractProcessor turns a batch of extract definitions into a matrix of
// datapoint rows, one row per definition that produced data.
type ExtractProcessor interface {
	Name() string
	Matches(structs.Extract) bool
	Process(ctx context.Context, extracts []structs.Extract) (structs.Matrix, error)
}

// LoadProcessor pushes a transformed matrix to every sink it handles,
// reporting one outcome per sink.
type LoadProcessor interface {
	Name() string
	Matches(structs.Load) bool
	Process(ctx context.Context, matrix structs.Matrix, loads []structs.Load) ([]bool, error)
}

// Engine executes one configuration at a time. It is safe for concurrent use
// as long as the registered processors are.
type Engine struct {
	logger     hclog.Logger
	status     *status.SystemStatus
	shutdown   *helper.ShutdownSignal
	extractors []ExtractProcessor
	loaders    []LoadProcessor
}

func NewEngine(st *status.SystemStatus, shutdown *helper.ShutdownSignal, logger hclog.Logger, extractors []ExtractProcessor, loaders []LoadProcessor) *Engine {
	return &Engine{
		logger:     logger.Named("etl"),
		status:     st,
		shutdown:   shutdown,
		extractors: extractors,
		loaders:    loaders,
	}
}

// Process runs the full pipeline for one configuration. A draining shutdown
// signal or a canceled context stops the run at the next stage boundary; a
// partial run never reaches the load stage.
func (e *Engine) Process(ctx context.Context, cfg *structs.Configuration) error {
	timer := e.status.Timer("Configuration", "process")
	defer timer.Stop()

	if err := e.checkpoint(ctx); err != nil {
		return err
	}

	matrix, err := e.extract(ctx, cfg.Extracts)
	if err != nil {
		return err
	}

	if err := e.checkpoint(ctx); err != nil {
		return err
	}

	for _, t := range cfg.Transforms {
		matrix = transform.Apply(t, matrix)
	}

	if err := e.checkpoint(ctx); err != nil {
		return err
	}

	return e.load(ctx, matrix, cfg.Loads)
}

// extract partitions the definitions across registered processors, runs each
// batch and concatenates the rows in processor registration order.
func (e *Engine) extract(ctx context.Context, extracts []structs.Extract) (structs.Matrix, error) {
	var matrix structs.Matrix
	claimed := make([]bool, len(extracts))

	for _, proc := range e.extractors {
		var batch []structs.Extract
		for i, ex := range extracts {
			if !claimed[i] && proc.Matches(ex) {
				claimed[i] = true
				batch = append(batch, ex)
			}
		}
		if len(batch) == 0 {
			continue
		}
		rows, err := proc.Process(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("extract processor %s: %w", proc.Name(), err)
		}
		matrix = append(matrix, rows...)
	}

	for i, ex := range extracts {
		if !claimed[i] {
			return nil, fmt.Errorf("no extract processor for endpoint %q", ex.EndpointID())
		}
	}
	return matrix, nil
}

func (e *Engine) load(ctx context.Context, matrix structs.Matrix, loads []structs.Load) error {
	claimed := make([]bool, len(loads))

	for _, proc := range e.loaders {
		var batch []structs.Load
		for i, l := range loads {
			if !claimed[i] && proc.Matches(l) {
				claimed[i] = true
				batch = append(batch, l)
			}
		}
		if len(batch) == 0 {
			continue
		}
		results, err := proc.Process(ctx, matrix, batch)
		if err != nil {
			return fmt.Errorf("load processor %s: %w", proc.Name(), err)
		}
		for _, ok := range results {
			if !ok {
				e.logger.Warn("load sink did not accept all samples", "processor", proc.Name())
			}
		}
	}

	for i, l := range loads {
		if !claimed[i] {
			e.logger.Warn("no load processor for sink, skipping", "sink", l.ID())
		}
	}
	return nil
}

func (e *Engine) checkpoint(ctx context.Context) error {
	if e.shutdown.IsDraining() {
		return fmt.Errorf("process shutting down")
	}
	return ctx.Err()
}
