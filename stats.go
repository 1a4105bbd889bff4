/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"os"
)

type statsFile struct {
	Current int64 `json:"current"`
	AllTime int64 `json:"all_time"`
}

// newStatsSaver returns a best-effort engine.StatsSaver persisting the
// (current, all_time) pair to path. Failures are logged, never returned:
// losing the last update is acceptable (spec §5 "Shared resources").
func newStatsSaver(cfg *Config, path string) func(current, allTime int64) {
	if path == "" {
		return nil
	}

	return func(current, allTime int64) {
		data, err := json.Marshal(statsFile{Current: current, AllTime: allTime})
		if err != nil {
			return
		}

		if err := os.WriteFile(path, data, 0o644); err != nil {
			logf(cfg, "STATS: failed to persist counters: %v", err)
		}
	}
}

// loadStats reads a previously persisted counter pair, returning zeros if
// path is empty, missing, or unreadable.
func loadStats(path string) (current, allTime int64) {
	if path == "" {
		return 0, 0
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0
	}

	var sf statsFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return 0, 0
	}

	return sf.Current, sf.AllTime
}
