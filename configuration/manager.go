// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package configuration

import (
	"context"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-set/v3"
	"github.com/jonboulle/clockwork"

	"github.com/salesforce/pyplyn/cluster"
	"github.com/salesforce/pyplyn/helper"
	"github.com/salesforce/pyplyn/status"
	"github.com/salesforce/pyplyn/structs"
)

// ReplicatedSetName is the cluster-wide key under which the master publishes
// the active configuration set.
const ReplicatedSetName = "configurations"

// TaskManager is the slice of the scheduler the update manager drives.
type TaskManager interface {
	Schedule(cfg *structs.Configuration) bool
	Unschedule(cfg *structs.Configuration) bool
}

// UpdateManager periodically reconciles the scheduled workload against the
// configuration source. Only the cluster master reads the source; it
// publishes the result to the replicated set, which is where every other
// node picks it up.
type UpdateManager struct {
	logger     hclog.Logger
	status     *status.SystemStatus
	clock      clockwork.Clock
	shutdown   *helper.ShutdownSignal
	loader     Loader
	cluster    cluster.Cluster
	replicated cluster.ConfigurationSet
	tasks      TaskManager

	active *set.HashSet[*structs.Configuration, uint64]
}

func NewUpdateManager(loader Loader, cl cluster.Cluster, tasks TaskManager, st *status.SystemStatus, shutdown *helper.ShutdownSignal, clock clockwork.Clock, logger hclog.Logger) *UpdateManager {
	return &UpdateManager{
		logger:     logger.Named("update-manager"),
		status:     st,
		clock:      clock,
		shutdown:   shutdown,
		loader:     loader,
		cluster:    cl,
		replicated: cl.ReplicatedSet(ReplicatedSetName),
		tasks:      tasks,
		active:     set.NewHashSet[*structs.Configuration, uint64](8),
	}
}

// Run performs one reconciliation pass. On the master it reads the source
// and publishes the result; on slaves it reads the replicated set. Either
// way the diff against the currently scheduled set drives the scheduler.
func (u *UpdateManager) Run(ctx context.Context) error {
	timer := u.status.Timer("UpdateManager", "update")
	defer timer.Stop()

	var latest []*structs.Configuration
	var err error

	if u.cluster.IsMaster() {
		latest, err = u.loader.Load(ctx)
		if err != nil {
			u.status.Meter("UpdateManager", status.MeterFailure)
			return err
		}
		if perr := u.replicated.Put(ctx, latest); perr != nil {
			// the local diff below still applies; slaves catch up on the
			// next successful publish
			u.logger.Warn("publishing configuration set failed", "error", perr)
		}
	} else {
		latest, err = u.replicated.Get(ctx)
		if err != nil {
			u.status.Meter("UpdateManager", status.MeterFailure)
			return err
		}
	}

	u.apply(latest)
	u.status.Meter("UpdateManager", status.MeterSuccess)
	return nil
}

func (u *UpdateManager) apply(latest []*structs.Configuration) {
	next := set.HashSetFrom[*structs.Configuration, uint64](latest)

	removed := u.active.Difference(next).Slice()
	added := next.Difference(u.active).Slice()

	for _, cfg := range removed {
		u.tasks.Unschedule(cfg)
	}
	for _, cfg := range added {
		u.tasks.Schedule(cfg)
	}
	u.active = next

	if len(added) > 0 || len(removed) > 0 {
		u.logger.Info("configuration set updated",
			"active", next.Size(), "added", len(added), "removed", len(removed))
	}
}

// Start runs reconciliation passes until the context is canceled or the
// process drains. The first pass runs before Start returns so the workload
// is live as soon as bootstrap completes.
func (u *UpdateManager) Start(ctx context.Context, intervalMillis int64) error {
	if err := u.Run(ctx); err != nil {
		return err
	}

	go func() {
		ticker := u.clock.NewTicker(time.Duration(intervalMillis) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				if err := u.Run(ctx); err != nil {
					u.logger.Warn("configuration update failed", "error", err)
				}
			case <-ctx.Done():
				return
			case <-u.shutdown.C():
				return
			}
		}
	}()
	return nil
}
