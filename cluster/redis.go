// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-uuid"
	"github.com/jonboulle/clockwork"

	"github.com/salesforce/pyplyn/structs"
)

const (
	leaderKey    = "pyplyn:leader"
	setKeyPrefix = "pyplyn:replicated:"

	// LeaderTTL bounds how long a crashed master blocks a takeover.
	LeaderTTL = 15 * time.Second
)

// kvStore is the slice of redis this package uses. Factored out so election
// and set behavior can be tested without a server.
type kvStore interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (value string, found bool, err error)
	PExpire(ctx context.Context, key string, ttl time.Duration) error
	Set(ctx context.Context, key, value string) error
	Close() error
}

// RedisCluster coordinates nodes through a shared redis instance: a leader
// lease under a single key and replicated sets as JSON values. Mastership is
// re-evaluated on a timer at a third of the lease TTL.
type RedisCluster struct {
	logger hclog.Logger
	clock  clockwork.Clock
	kv     kvStore
	nodeID string

	master   atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewRedisCluster connects to the redis URL from the cluster config section
// and starts the election loop. The first election round runs before this
// returns, so IsMaster is meaningful immediately.
func NewRedisCluster(redisURL string, clock clockwork.Clock, logger hclog.Logger) (*RedisCluster, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cluster: invalid redis url: %w", err)
	}
	nodeID, err := nodeIdentity()
	if err != nil {
		return nil, err
	}

	c := newRedisCluster(&redisStore{client: redis.NewClient(opts)}, nodeID, clock, logger)
	return c, nil
}

func newRedisCluster(kv kvStore, nodeID string, clock clockwork.Clock, logger hclog.Logger) *RedisCluster {
	c := &RedisCluster{
		logger: logger.Named("cluster"),
		clock:  clock,
		kv:     kv,
		nodeID: nodeID,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	c.elect(context.Background())
	go c.run()
	return c
}

func (c *RedisCluster) IsMaster() bool { return c.master.Load() }

func (c *RedisCluster) ReplicatedSet(name string) ConfigurationSet {
	return &redisSet{kv: c.kv, key: setKeyPrefix + name}
}

// Close stops the election loop and releases the connection. A held lease is
// left to expire on its own.
func (c *RedisCluster) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	<-c.doneCh
	return c.kv.Close()
}

func (c *RedisCluster) run() {
	defer close(c.doneCh)
	ticker := c.clock.NewTicker(LeaderTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			c.elect(context.Background())
		case <-c.stopCh:
			return
		}
	}
}

// elect takes the lease if free, renews it if held by this node, and demotes
// otherwise. Redis errors demote; a stale belief in mastership is worse than
// a missed cycle.
func (c *RedisCluster) elect(ctx context.Context) {
	acquired, err := c.kv.SetNX(ctx, leaderKey, c.nodeID, LeaderTTL)
	if err != nil {
		c.logger.Warn("leader election failed, demoting", "error", err)
		c.setMaster(false)
		return
	}
	if acquired {
		c.setMaster(true)
		return
	}

	holder, found, err := c.kv.Get(ctx, leaderKey)
	if err != nil {
		c.logger.Warn("leader check failed, demoting", "error", err)
		c.setMaster(false)
		return
	}
	if found && holder == c.nodeID {
		if err := c.kv.PExpire(ctx, leaderKey, LeaderTTL); err != nil {
			c.logger.Warn("lease renewal failed, demoting", "error", err)
			c.setMaster(false)
			return
		}
		c.setMaster(true)
		return
	}
	c.setMaster(false)
}

func (c *RedisCluster) setMaster(master bool) {
	if c.master.Swap(master) != master {
		c.logger.Info("cluster role changed", "master", master, "node", c.nodeID)
	}
}

func nodeIdentity() (string, error) {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", fmt.Errorf("cluster: generating node id: %w", err)
	}
	return host + "-" + id, nil
}

// redisSet stores the whole configuration set as one JSON value. Writes are
// atomic at the key level, which is all the update manager needs: slaves
// always observe a complete set.
type redisSet struct {
	kv  kvStore
	key string
}

func (r *redisSet) Put(ctx context.Context, configurations []*structs.Configuration) error {
	buf, err := json.Marshal(configurations)
	if err != nil {
		return fmt.Errorf("cluster: encoding replicated set: %w", err)
	}
	return r.kv.Set(ctx, r.key, string(buf))
}

func (r *redisSet) Get(ctx context.Context) ([]*structs.Configuration, error) {
	raw, found, err := r.kv.Get(ctx, r.key)
	if err != nil {
		return nil, fmt.Errorf("cluster: reading replicated set: %w", err)
	}
	if !found {
		return nil, nil
	}
	var configurations []*structs.Configuration
	if err := json.Unmarshal([]byte(raw), &configurations); err != nil {
		return nil, fmt.Errorf("cluster: decoding replicated set: %w", err)
	}
	return configurations, nil
}

// redisStore adapts the go-redis client to kvStore.
type redisStore struct {
	client *redis.Client
}

func (s *redisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *redisStore) PExpire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.PExpire(ctx, key, ttl).Err()
}

func (s *redisStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *redisStore) Close() error { return s.client.Close() }
