package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

type fakeInfo struct{ mod time.Time }

func (f fakeInfo) ModTime() time.Time { return f.mod }

func TestWatcherSkipsOnStatError(t *testing.T) {
	orig := readFileInfo
	defer func() { readFileInfo = orig }()
	readFileInfo = func(string) (interface{ ModTime() time.Time }, error) {
		return nil, errors.New("boom")
	}
	w := Watcher{Path: "noop", Interval: 10 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately
	if err := w.Start(ctx, nil); err == nil {
		t.Fatalf("expected context cancellation")
	}
}

func TestWatcherTriggersOnChange(t *testing.T) {
	path := writeTempConfig(t, validYAML)

	now := time.Now()
	orig := readFileInfo
	defer func() { readFileInfo = orig }()
	tick := 0
	readFileInfo = func(string) (interface{ ModTime() time.Time }, error) {
		tick++
		if tick == 1 {
			return fakeInfo{mod: now}, nil
		}
		return fakeInfo{mod: now.Add(time.Second)}, nil
	}

	w := Watcher{Path: path, Interval: 5 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan AppConfig, 1)
	go func() {
		_ = w.Start(ctx, func(cfg AppConfig) { ch <- cfg })
	}()
	select {
	case cfg := <-ch:
		if cfg.Features.SpreadWindow != 30 {
			t.Fatalf("callback got stale config: %+v", cfg.Features)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("expected update callback")
	}
}

func TestWatcherIgnoresIrrelevantChange(t *testing.T) {
	path := writeTempConfig(t, validYAML)

	now := time.Now()
	orig := readFileInfo
	defer func() { readFileInfo = orig }()
	tick := 0
	readFileInfo = func(string) (interface{ ModTime() time.Time }, error) {
		tick++
		return fakeInfo{mod: now.Add(time.Duration(tick) * time.Second)}, nil
	}

	w := Watcher{Path: path, Interval: 5 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan AppConfig, 4)
	go func() {
		_ = w.Start(ctx, func(cfg AppConfig) { ch <- cfg })
	}()

	// First observation always fires.
	select {
	case <-ch:
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("expected initial callback")
	}

	// New mtime but identical thresholds: no further callbacks.
	select {
	case cfg := <-ch:
		t.Fatalf("unexpected callback for unchanged thresholds: %+v", cfg.Signals)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatcherFiresOnThresholdChange(t *testing.T) {
	path := writeTempConfig(t, validYAML)

	now := time.Now()
	orig := readFileInfo
	defer func() { readFileInfo = orig }()
	tick := 0
	readFileInfo = func(string) (interface{ ModTime() time.Time }, error) {
		tick++
		return fakeInfo{mod: now.Add(time.Duration(tick) * time.Second)}, nil
	}

	w := Watcher{Path: path, Interval: 5 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan AppConfig, 4)
	go func() {
		_ = w.Start(ctx, func(cfg AppConfig) { ch <- cfg })
	}()

	select {
	case <-ch:
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("expected initial callback")
	}

	// Rewrite the file with a different spike threshold.
	updated := strings.Replace(validYAML, "spikeThreshold: 2.5", "spikeThreshold: 4.5", 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-ch:
		if cfg.Signals.SpikeThreshold != 4.5 {
			t.Fatalf("callback got wrong thresholds: %+v", cfg.Signals)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("expected callback after threshold change")
	}
}
