// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package connector

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/salesforce/pyplyn/cache"
)

type key struct {
	endpointID string
	service    string
}

// AppConnectors memoizes one client and one sample cache per
// (endpointID, service) pair. The same pair is returned for the lifetime of
// the process and shared by every pipeline touching that endpoint.
type AppConnectors struct {
	registry      *Registry
	clock         clockwork.Clock
	sweepInterval time.Duration

	mu      sync.Mutex
	entries map[key]any
}

func NewAppConnectors(registry *Registry, clock clockwork.Clock, sweepInterval time.Duration) *AppConnectors {
	return &AppConnectors{
		registry:      registry,
		clock:         clock,
		sweepInterval: sweepInterval,
		entries:       make(map[key]any),
	}
}

type clientAndCache[C any, S cache.Cacheable] struct {
	client C
	cache  *cache.Cache[S]
}

// ClientAndCacheFor returns the memoized client and cache for the endpoint,
// building them on first request. The build happens under the memoization
// lock, so concurrent first access never constructs a second client.
// A missing connector is a configuration error.
func ClientAndCacheFor[C any, S cache.Cacheable](a *AppConnectors, endpointID, service string, build func(*Connector) (C, error)) (C, *cache.Cache[S], error) {
	var zero C

	a.mu.Lock()
	defer a.mu.Unlock()

	k := key{endpointID: endpointID, service: service}
	if e, ok := a.entries[k]; ok {
		cc, ok := e.(*clientAndCache[C, S])
		if !ok {
			return zero, nil, fmt.Errorf("internal: service %q for endpoint %q registered under a different type", service, endpointID)
		}
		return cc.client, cc.cache, nil
	}

	conn, err := a.registry.Get(endpointID)
	if err != nil {
		return zero, nil, err
	}
	client, err := build(conn)
	if err != nil {
		return zero, nil, fmt.Errorf("failed to build %s client for endpoint %q: %w", service, endpointID, err)
	}

	cc := &clientAndCache[C, S]{
		client: client,
		cache:  cache.New[S](a.clock, a.sweepInterval),
	}
	a.entries[k] = cc
	return cc.client, cc.cache, nil
}

// Close stops the background sweeps of all built caches.
func (a *AppConnectors) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.entries {
		if closer, ok := e.(interface{ closeCache() }); ok {
			closer.closeCache()
		}
	}
}

func (cc *clientAndCache[C, S]) closeCache() {
	cc.cache.Close()
}
