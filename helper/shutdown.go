// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package helper

import "sync"

// ShutdownSignal broadcasts the one-way transition from running to draining.
// In-flight pipeline runs observe it at stage boundaries and stop early;
// long waits select on C instead of polling.
type ShutdownSignal struct {
	ch   chan struct{}
	once sync.Once
}

func NewShutdownSignal() *ShutdownSignal {
	return &ShutdownSignal{ch: make(chan struct{})}
}

// Shutdown flips the signal to draining. Safe to call more than once.
func (s *ShutdownSignal) Shutdown() {
	s.once.Do(func() { close(s.ch) })
}

// IsDraining returns true once Shutdown has been called.
func (s *ShutdownSignal) IsDraining() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// C is closed when the process begins draining.
func (s *ShutdownSignal) C() <-chan struct{} {
	return s.ch
}
