// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Package configuration loads ETL configurations from their source and keeps
// the scheduled workload in sync with it.
package configuration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/salesforce/pyplyn/structs"
)

// Loader produces the full configuration set from an external source. A
// returned error means the source could not be read at all; individually
// broken configurations are the loader's business to skip.
type Loader interface {
	Load(ctx context.Context) ([]*structs.Configuration, error)
}

// FileLoader reads every *.json file in a directory. A file holds either one
// configuration object or an array of them. Files that fail to parse or
// validate are skipped with a warning so one bad edit cannot take down the
// whole workload.
type FileLoader struct {
	logger hclog.Logger
	dir    string
}

func NewFileLoader(dir string, logger hclog.Logger) *FileLoader {
	return &FileLoader{
		logger: logger.Named("configuration"),
		dir:    dir,
	}
}

func (f *FileLoader) Load(ctx context.Context) ([]*structs.Configuration, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("configuration: reading %s: %w", f.dir, err)
	}

	var out []*structs.Configuration
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(f.dir, entry.Name())
		configurations, err := f.loadFile(path)
		if err != nil {
			f.logger.Warn("skipping unparseable configuration file", "file", path, "error", err)
			continue
		}
		for _, cfg := range configurations {
			if err := cfg.Validate(); err != nil {
				f.logger.Warn("skipping invalid configuration", "file", path, "error", err)
				continue
			}
			out = append(out, cfg)
		}
	}
	return out, nil
}

func (f *FileLoader) loadFile(path string) ([]*structs.Configuration, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimLeftFunc(buf, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\r' || r == '\n'
	})
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var configurations []*structs.Configuration
		if err := json.Unmarshal(buf, &configurations); err != nil {
			return nil, err
		}
		return configurations, nil
	}

	var cfg structs.Configuration
	if err := json.Unmarshal(buf, &cfg); err != nil {
		return nil, err
	}
	return []*structs.Configuration{&cfg}, nil
}
