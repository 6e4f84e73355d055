// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package appconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const correctConfig = `{
  "global": {
    "configurationsPath": "/etc/pyplyn/configurations",
    "connectorsPath": "/etc/pyplyn/connectors.json",
    "runOnce": false,
    "updateConfigurationIntervalMillis": 60000
  },
  "hazelcast": {
    "enabled": true,
    "config": "redis://localhost:6379/0"
  },
  "alert": {
    "enabled": true,
    "checkIntervalMillis": 30000,
    "thresholds": {"Refocus.failure": 4.0}
  }
}`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app-config.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadCorrectConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, correctConfig))
	require.NoError(t, err)

	require.Equal(t, "/etc/pyplyn/configurations", cfg.Global.ConfigurationsPath)
	require.Equal(t, "/etc/pyplyn/connectors.json", cfg.Global.ConnectorsPath)
	require.False(t, cfg.Global.RunOnce)
	require.Equal(t, int64(60000), cfg.Global.UpdateConfigurationIntervalMillis)

	require.True(t, cfg.ClusterEnabled())
	require.Equal(t, "redis://localhost:6379/0", cfg.Cluster.Config)

	require.NotNil(t, cfg.Alert)
	require.Equal(t, int64(30000), cfg.Alert.CheckIntervalMillis)
	require.Equal(t, 4.0, cfg.Alert.Thresholds["Refocus.failure"])
}

func TestLoadInvalidJSON(t *testing.T) {
	_, err := Load(writeConfig(t, `{"global": `))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestValidateRejectsIncomplete(t *testing.T) {
	_, err := Load(writeConfig(t, `{"global": {"configurationsPath": "x"}}`))
	require.Error(t, err)

	_, err = Load(writeConfig(t, `{
	  "global": {"configurationsPath": "x", "connectorsPath": "y", "updateConfigurationIntervalMillis": 100},
	  "hazelcast": {"enabled": true}
	}`))
	require.Error(t, err)
}

func TestClusterDisabledByDefault(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
	  "global": {"configurationsPath": "x", "connectorsPath": "y", "updateConfigurationIntervalMillis": 100}
	}`))
	require.NoError(t, err)
	require.False(t, cfg.ClusterEnabled())
}
