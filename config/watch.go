package config

import (
	"context"
	"os"
	"time"
)

// Watcher is a lightweight alternative to the fsnotify-based reloader in
// internal/config, used by batch runs that stay resident. It polls the file
// mtime and invokes the callback when a change touches the detection or
// evaluation settings; edits to unrelated sections are ignored.
type Watcher struct {
	Path     string
	Interval time.Duration
	OnError  func(err error) // nil drops load errors silently
}

// Start begins polling; callback receives the latest config on a relevant
// change. Blocks until ctx is done.
func (w Watcher) Start(ctx context.Context, onUpdate func(AppConfig)) error {
	if w.Interval <= 0 {
		w.Interval = 2 * time.Second
	}
	var lastMod time.Time
	var last AppConfig
	havePrev := false
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			info, err := readFileInfo(w.Path)
			if err != nil {
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			lastMod = info.ModTime()
			cfg, err := LoadWithEnvOverrides(w.Path)
			if err != nil {
				if w.OnError != nil {
					w.OnError(err)
				}
				continue
			}
			if havePrev && !thresholdsChanged(last, cfg) {
				continue
			}
			last, havePrev = cfg, true
			if onUpdate != nil {
				onUpdate(cfg)
			}
		}
	}
}

// thresholdsChanged reports whether the settings that affect detection or
// evaluation output differ between two configs.
func thresholdsChanged(a, b AppConfig) bool {
	return a.Signals != b.Signals ||
		a.Backtest != b.Backtest ||
		a.Features != b.Features
}

// readFileInfo is extracted for testing/mocking.
var readFileInfo = func(path string) (info interface{ ModTime() time.Time }, err error) {
	return os.Stat(path)
}
