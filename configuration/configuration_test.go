// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package configuration

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"github.com/shoenig/test/must"

	"github.com/salesforce/pyplyn/cluster"
	"github.com/salesforce/pyplyn/helper"
	"github.com/salesforce/pyplyn/status"
	"github.com/salesforce/pyplyn/structs"
)

const validConfiguration = `{
  "extracts": [{"Refocus": {"endpoint": "prod", "subject": "usa.east", "aspect": "latency"}}],
  "transforms": [{"LastDatapoint": {}}],
  "loads": [{"Refocus": {"endpoint": "prod", "subject": "usa.east", "aspect": "latency-status"}}],
  "repeatIntervalMillis": 60000
}`

const configurationArray = `[
  {"extracts": [{"Refocus": {"endpoint": "prod", "subject": "usa.west", "aspect": "latency"}}], "repeatIntervalMillis": 60000},
  {"extracts": [{"Refocus": {"endpoint": "prod", "subject": "eu.west", "aspect": "latency"}}], "repeatIntervalMillis": 60000}
]`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	must.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestFileLoaderLoadsValidConfigurations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "latency.json", validConfiguration)
	writeFile(t, dir, "regions.json", configurationArray)
	writeFile(t, dir, "broken.json", `{"extracts": [`)
	writeFile(t, dir, "no-extracts.json", `{"repeatIntervalMillis": 1000}`)
	writeFile(t, dir, "readme.txt", "not a configuration")

	loader := NewFileLoader(dir, hclog.NewNullLogger())
	configurations, err := loader.Load(context.Background())
	must.NoError(t, err)

	// one from the single-object file, two from the array; the broken and
	// invalid files are skipped
	must.Len(t, 3, configurations)
	for _, cfg := range configurations {
		must.NoError(t, cfg.Validate())
	}
}

func TestFileLoaderMissingDirectoryIsError(t *testing.T) {
	loader := NewFileLoader(filepath.Join(t.TempDir(), "nope"), hclog.NewNullLogger())
	_, err := loader.Load(context.Background())
	must.Error(t, err)
}

type fakeLoader struct {
	mu             sync.Mutex
	calls          int
	configurations []*structs.Configuration
	err            error
}

func (f *fakeLoader) Load(_ context.Context) ([]*structs.Configuration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.configurations, f.err
}

func (f *fakeLoader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTasks struct {
	mu          sync.Mutex
	scheduled   map[uint64]*structs.Configuration
	schedules   int
	unschedules int
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{scheduled: make(map[uint64]*structs.Configuration)}
}

func (f *fakeTasks) Schedule(cfg *structs.Configuration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.scheduled[cfg.Hash()]; ok {
		return false
	}
	f.scheduled[cfg.Hash()] = cfg
	f.schedules++
	return true
}

func (f *fakeTasks) Unschedule(cfg *structs.Configuration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.scheduled[cfg.Hash()]; !ok {
		return false
	}
	delete(f.scheduled, cfg.Hash())
	f.unschedules++
	return true
}

func (f *fakeTasks) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scheduled)
}

func cfgFor(subject string) *structs.Configuration {
	return &structs.Configuration{
		Extracts: []structs.Extract{{Refocus: &structs.RefocusExtract{
			Endpoint: "prod",
			Subject:  subject,
			Aspect:   "latency",
		}}},
		RepeatIntervalMillis: 60_000,
	}
}

func newManager(t *testing.T, loader Loader, cl cluster.Cluster, tasks TaskManager) *UpdateManager {
	t.Helper()
	logger := hclog.NewNullLogger()
	return NewUpdateManager(loader, cl, tasks, status.New(logger),
		helper.NewShutdownSignal(), clockwork.NewFakeClock(), logger)
}

func TestUpdateManagerSchedulesNewConfigurations(t *testing.T) {
	loader := &fakeLoader{configurations: []*structs.Configuration{cfgFor("usa.east"), cfgFor("usa.west")}}
	tasks := newFakeTasks()
	m := newManager(t, loader, cluster.NewStandalone(), tasks)

	must.NoError(t, m.Run(context.Background()))
	must.Eq(t, 2, tasks.size())
	must.Eq(t, 2, tasks.schedules)
}

func TestUpdateManagerIsIdempotentOnUnchangedSet(t *testing.T) {
	loader := &fakeLoader{configurations: []*structs.Configuration{cfgFor("usa.east")}}
	tasks := newFakeTasks()
	m := newManager(t, loader, cluster.NewStandalone(), tasks)

	must.NoError(t, m.Run(context.Background()))
	must.NoError(t, m.Run(context.Background()))

	// a structurally identical configuration is never rescheduled
	must.Eq(t, 1, tasks.schedules)
	must.Eq(t, 0, tasks.unschedules)
}

func TestUpdateManagerUnschedulesRemovedConfigurations(t *testing.T) {
	loader := &fakeLoader{configurations: []*structs.Configuration{cfgFor("usa.east"), cfgFor("usa.west")}}
	tasks := newFakeTasks()
	m := newManager(t, loader, cluster.NewStandalone(), tasks)
	must.NoError(t, m.Run(context.Background()))

	loader.configurations = []*structs.Configuration{cfgFor("usa.west")}
	must.NoError(t, m.Run(context.Background()))

	must.Eq(t, 1, tasks.size())
	must.Eq(t, 1, tasks.unschedules)
	must.True(t, tasks.Schedule(cfgFor("usa.east")))
}

func TestUpdateManagerLoadErrorLeavesWorkloadUntouched(t *testing.T) {
	loader := &fakeLoader{configurations: []*structs.Configuration{cfgFor("usa.east")}}
	tasks := newFakeTasks()
	m := newManager(t, loader, cluster.NewStandalone(), tasks)
	must.NoError(t, m.Run(context.Background()))

	loader.err = os.ErrPermission
	must.Error(t, m.Run(context.Background()))
	must.Eq(t, 1, tasks.size())
}

// fakeCluster pins the master flag and shares one replicated set across
// nodes, standing in for two processes against the same redis.
type fakeCluster struct {
	master bool
	shared cluster.ConfigurationSet
}

func (f *fakeCluster) IsMaster() bool { return f.master }

func (f *fakeCluster) ReplicatedSet(string) cluster.ConfigurationSet { return f.shared }

func (f *fakeCluster) Close() error { return nil }

func TestUpdateManagerMasterLoadsSlaveReads(t *testing.T) {
	shared := cluster.NewStandalone().ReplicatedSet(ReplicatedSetName)

	masterLoader := &fakeLoader{configurations: []*structs.Configuration{cfgFor("usa.east")}}
	masterTasks := newFakeTasks()
	master := newManager(t, masterLoader, &fakeCluster{master: true, shared: shared}, masterTasks)

	slaveLoader := &fakeLoader{}
	slaveTasks := newFakeTasks()
	slave := newManager(t, slaveLoader, &fakeCluster{master: false, shared: shared}, slaveTasks)

	must.NoError(t, master.Run(context.Background()))
	must.NoError(t, slave.Run(context.Background()))

	// the master loaded once and published; the slave never touched the
	// source but runs the same workload
	must.Eq(t, 1, masterLoader.callCount())
	must.Eq(t, 0, slaveLoader.callCount())
	must.Eq(t, 1, masterTasks.size())
	must.Eq(t, 1, slaveTasks.size())
}
