// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Package scheduler owns the periodic execution of configurations. Each
// scheduled configuration gets one timer loop; actual pipeline runs go
// through a bounded worker pool. A configuration never runs concurrently
// with itself, and ticks that find the pool full are dropped, not queued.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"

	"github.com/salesforce/pyplyn/helper"
	"github.com/salesforce/pyplyn/status"
	"github.com/salesforce/pyplyn/structs"
)

// DefaultPoolSize bounds concurrent pipeline runs across all configurations.
const DefaultPoolSize = 10

// Runner executes one pipeline pass. Run errors are the runner's problem;
// the scheduler only cares that the pass finished.
type Runner interface {
	Process(ctx context.Context, cfg *structs.Configuration) error
}

// TaskScheduler maps configurations to periodic tasks.
type TaskScheduler struct {
	logger   hclog.Logger
	clock    clockwork.Clock
	status   *status.SystemStatus
	shutdown *helper.ShutdownSignal
	runner   Runner
	slots    chan struct{}

	mu    sync.Mutex
	tasks map[uint64]*task

	wg sync.WaitGroup
}

type task struct {
	cfg     *structs.Configuration
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
}

func New(runner Runner, st *status.SystemStatus, shutdown *helper.ShutdownSignal, clock clockwork.Clock, logger hclog.Logger, poolSize int) *TaskScheduler {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	return &TaskScheduler{
		logger:   logger.Named("scheduler"),
		clock:    clock,
		status:   st,
		shutdown: shutdown,
		runner:   runner,
		slots:    make(chan struct{}, poolSize),
		tasks:    make(map[uint64]*task),
	}
}

// Schedule registers the configuration and fires its first run immediately.
// Disabled configurations and non-positive intervals are tracked but never
// fire. Returns false if an identical configuration is already scheduled.
func (s *TaskScheduler) Schedule(cfg *structs.Configuration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := cfg.Hash()
	if _, ok := s.tasks[hash]; ok {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{cfg: cfg, ctx: ctx, cancel: cancel}
	s.tasks[hash] = t

	if cfg.Disabled || cfg.RepeatIntervalMillis <= 0 {
		s.logger.Debug("configuration tracked but not firing",
			"hash", hash, "disabled", cfg.Disabled, "intervalMs", cfg.RepeatIntervalMillis)
		return true
	}

	s.wg.Add(1)
	go s.loop(t)
	return true
}

// Unschedule cancels the configuration's task. An in-flight run observes the
// cancellation at its next stage boundary; Unschedule does not wait for it.
func (s *TaskScheduler) Unschedule(cfg *structs.Configuration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := cfg.Hash()
	t, ok := s.tasks[hash]
	if !ok {
		return false
	}
	t.cancel()
	delete(s.tasks, hash)
	return true
}

// IsScheduled reports whether a structurally identical configuration is
// currently tracked.
func (s *TaskScheduler) IsScheduled(cfg *structs.Configuration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[cfg.Hash()]
	return ok
}

// Scheduled returns the tracked configurations, in no particular order.
func (s *TaskScheduler) Scheduled() []*structs.Configuration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*structs.Configuration, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.cfg)
	}
	return out
}

// Drain cancels every task and waits for in-flight runs to finish.
func (s *TaskScheduler) Drain() {
	s.shutdown.Shutdown()
	s.mu.Lock()
	for hash, t := range s.tasks {
		t.cancel()
		delete(s.tasks, hash)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *TaskScheduler) loop(t *task) {
	defer s.wg.Done()

	s.fire(t)

	ticker := s.clock.NewTicker(time.Duration(t.cfg.RepeatIntervalMillis) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			s.fire(t)
		case <-t.ctx.Done():
			return
		case <-s.shutdown.C():
			return
		}
	}
}

// fire starts one run in a pool slot. Skips if the previous run of the same
// configuration is still in flight; drops the tick if the pool is full.
func (s *TaskScheduler) fire(t *task) {
	if t.ctx.Err() != nil || s.shutdown.IsDraining() {
		return
	}
	if !t.running.CompareAndSwap(false, true) {
		s.logger.Debug("previous run still in flight, skipping tick", "hash", t.cfg.Hash())
		return
	}

	select {
	case s.slots <- struct{}{}:
	default:
		t.running.Store(false)
		s.logger.Warn("worker pool saturated, dropping tick", "hash", t.cfg.Hash())
		s.status.Meter("Scheduler", status.MeterFailure)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			<-s.slots
			t.running.Store(false)
		}()
		if err := s.runner.Process(t.ctx, t.cfg); err != nil {
			s.logger.Warn("pipeline run did not complete", "hash", t.cfg.Hash(), "error", err)
		}
	}()
}
