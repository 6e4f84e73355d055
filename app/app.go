// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Package app wires the process together: configuration, connectors,
// processors, cluster membership, the update manager and the scheduler.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	metrics "github.com/hashicorp/go-metrics"
	"github.com/jonboulle/clockwork"

	"github.com/salesforce/pyplyn/appconfig"
	"github.com/salesforce/pyplyn/cache"
	"github.com/salesforce/pyplyn/cluster"
	"github.com/salesforce/pyplyn/configuration"
	"github.com/salesforce/pyplyn/connector"
	"github.com/salesforce/pyplyn/etl"
	"github.com/salesforce/pyplyn/helper"
	"github.com/salesforce/pyplyn/refocus"
	"github.com/salesforce/pyplyn/scheduler"
	"github.com/salesforce/pyplyn/status"
)

// App is one fully wired pyplyn process.
type App struct {
	logger        hclog.Logger
	clock         clockwork.Clock
	config        *appconfig.AppConfig
	shutdown      *helper.ShutdownSignal
	appConnectors *connector.AppConnectors
	cluster       cluster.Cluster
	systemStatus  *status.SystemStatus
	alertMonitor  *status.AlertMonitor
	loader        configuration.Loader
	engine        *etl.Engine
	updateManager *configuration.UpdateManager
	scheduler     *scheduler.TaskScheduler
}

// New builds the process from the app configuration file. Any error here is
// a startup failure; nothing has been scheduled yet.
func New(configPath string, logger hclog.Logger) (*App, error) {
	cfg, err := appconfig.Load(configPath)
	if err != nil {
		return nil, err
	}

	if _, err := metrics.NewGlobal(metrics.DefaultConfig("pyplyn"),
		metrics.NewInmemSink(10*time.Second, 5*time.Minute)); err != nil {
		return nil, fmt.Errorf("initializing metrics sink: %w", err)
	}

	registry, err := connector.LoadRegistry(cfg.Global.ConnectorsPath)
	if err != nil {
		return nil, err
	}

	clock := clockwork.NewRealClock()
	shutdown := helper.NewShutdownSignal()
	systemStatus := status.New(logger)
	appConnectors := connector.NewAppConnectors(registry, clock, cache.DefaultSweepInterval)

	var cl cluster.Cluster
	if cfg.ClusterEnabled() {
		cl, err = cluster.NewRedisCluster(cfg.Cluster.Config, clock, logger)
		if err != nil {
			return nil, err
		}
	} else {
		cl = cluster.NewStandalone()
	}

	extractors := []etl.ExtractProcessor{
		refocus.NewExtractProcessor(appConnectors, systemStatus, shutdown, clock, logger),
	}
	loaders := []etl.LoadProcessor{
		refocus.NewLoadProcessor(appConnectors, systemStatus, shutdown, logger),
	}
	engine := etl.NewEngine(systemStatus, shutdown, logger, extractors, loaders)

	taskScheduler := scheduler.New(engine, systemStatus, shutdown, clock, logger, scheduler.DefaultPoolSize)
	loader := configuration.NewFileLoader(cfg.Global.ConfigurationsPath, logger)
	updateManager := configuration.NewUpdateManager(loader, cl, taskScheduler,
		systemStatus, shutdown, clock, logger)

	var alertMonitor *status.AlertMonitor
	if cfg.Alert != nil && cfg.Alert.Enabled {
		alertMonitor = status.NewAlertMonitor(systemStatus, cfg.Alert.Thresholds,
			time.Duration(cfg.Alert.CheckIntervalMillis)*time.Millisecond, clock, logger)
	}

	return &App{
		logger:        logger,
		clock:         clock,
		config:        cfg,
		shutdown:      shutdown,
		appConnectors: appConnectors,
		cluster:       cl,
		systemStatus:  systemStatus,
		alertMonitor:  alertMonitor,
		loader:        loader,
		engine:        engine,
		updateManager: updateManager,
		scheduler:     taskScheduler,
	}, nil
}

// Run blocks until the process is told to stop. In runOnce mode it performs
// a single reconciliation pass, waits for the resulting first runs to settle
// and exits.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.close()

	if a.alertMonitor != nil {
		go a.alertMonitor.Run(ctx)
	}

	if a.config.Global.RunOnce {
		return a.runOnce(ctx)
	}

	if err := a.updateManager.Start(ctx, a.config.Global.UpdateConfigurationIntervalMillis); err != nil {
		return err
	}
	a.logger.Info("pyplyn started",
		"configurations", a.config.Global.ConfigurationsPath,
		"cluster", a.config.ClusterEnabled())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.logger.Info("signal received, draining", "signal", sig.String())
	case <-ctx.Done():
	case <-a.shutdown.C():
	}

	a.scheduler.Drain()
	return nil
}

// runOnce runs every enabled configuration through the pipeline exactly
// once, without the scheduler. A failed run is logged and does not stop the
// pass.
func (a *App) runOnce(ctx context.Context) error {
	configurations, err := a.loader.Load(ctx)
	if err != nil {
		return err
	}
	for _, cfg := range configurations {
		if cfg.Disabled {
			continue
		}
		if err := a.engine.Process(ctx, cfg); err != nil {
			a.logger.Warn("pipeline run did not complete", "hash", cfg.Hash(), "error", err)
		}
	}
	a.logger.Info("single pass complete", "configurations", len(configurations))
	return nil
}

func (a *App) close() {
	a.shutdown.Shutdown()
	a.appConnectors.Close()
	if err := a.cluster.Close(); err != nil {
		a.logger.Warn("closing cluster connection", "error", err)
	}
}
