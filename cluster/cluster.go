// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Package cluster answers two questions for the rest of the process: is this
// node the master, and where do masters publish the active configuration set
// for slaves to read. With clustering disabled every node is its own master
// and the set lives in process memory.
package cluster

import (
	"context"
	"sync"

	"github.com/salesforce/pyplyn/structs"
)

// ConfigurationSet is a named, cluster-visible set of configurations. Put
// replaces the whole set.
type ConfigurationSet interface {
	Put(ctx context.Context, configurations []*structs.Configuration) error
	Get(ctx context.Context) ([]*structs.Configuration, error)
}

// Cluster provides master election and replicated sets.
type Cluster interface {
	IsMaster() bool
	ReplicatedSet(name string) ConfigurationSet
	Close() error
}

// Standalone is the degenerate cluster used when coordination is disabled.
type Standalone struct {
	mu   sync.Mutex
	sets map[string]*localSet
}

func NewStandalone() *Standalone {
	return &Standalone{sets: make(map[string]*localSet)}
}

func (s *Standalone) IsMaster() bool { return true }

func (s *Standalone) ReplicatedSet(name string) ConfigurationSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[name]
	if !ok {
		set = &localSet{}
		s.sets[name] = set
	}
	return set
}

func (s *Standalone) Close() error { return nil }

type localSet struct {
	mu             sync.Mutex
	configurations []*structs.Configuration
}

func (l *localSet) Put(_ context.Context, configurations []*structs.Configuration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.configurations = append([]*structs.Configuration(nil), configurations...)
	return nil
}

func (l *localSet) Get(_ context.Context) ([]*structs.Configuration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*structs.Configuration(nil), l.configurations...), nil
}
