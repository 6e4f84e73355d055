// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shoenig/test/must"
)

type fakeSample struct {
	key   string
	value string
}

func (s fakeSample) CacheKey() string { return s.key }

func TestCachePutGet(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New[fakeSample](clock, time.Hour)
	defer c.Close()

	c.Put(fakeSample{key: "a", value: "1"}, 1000)

	got, ok := c.Get("a")
	must.True(t, ok)
	must.Eq(t, "1", got.value)

	// still valid just before expiry
	clock.Advance(999 * time.Millisecond)
	_, ok = c.Get("a")
	must.True(t, ok)

	// miss at exactly t+ttl
	clock.Advance(1 * time.Millisecond)
	_, ok = c.Get("a")
	must.False(t, ok)
}

func TestCacheZeroTTLIsNoop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New[fakeSample](clock, time.Hour)
	defer c.Close()

	c.Put(fakeSample{key: "a"}, 0)
	c.Put(fakeSample{key: "b"}, -5)

	must.Eq(t, 0, c.Len())
}

func TestCacheLastWriteWins(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New[fakeSample](clock, time.Hour)
	defer c.Close()

	c.Put(fakeSample{key: "a", value: "old"}, 1000)
	c.Put(fakeSample{key: "a", value: "new"}, 1000)

	got, ok := c.Get("a")
	must.True(t, ok)
	must.Eq(t, "new", got.value)
}

func TestCacheSweepRemovesExpired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New[fakeSample](clock, time.Minute)
	defer c.Close()

	c.Put(fakeSample{key: "a"}, 1000)
	c.Put(fakeSample{key: "b"}, int64((2 * time.Minute).Milliseconds()))

	// let the sweep goroutine block on its ticker before advancing
	clock.BlockUntil(1)
	clock.Advance(time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	must.Eq(t, 1, c.Len())

	_, ok := c.Get("b")
	must.True(t, ok)
}

func TestCacheConcurrentAccess(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New[fakeSample](clock, time.Hour)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", j%10)
				c.Put(fakeSample{key: key, value: fmt.Sprintf("%d", n)}, 60_000)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	must.Eq(t, 10, c.Len())
}
