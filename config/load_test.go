package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const validYAML = `
env: dev
data:
  ticks: data/ticks.csv
  features: data/features.csv
  alerts: data/alerts.csv
  summary: data/summary.csv
features:
  spreadWindow: 30
  depthWindow: 300
  vwapMode: rolling
  vwapWindow: 45
signals:
  spikeThreshold: 2.5
  gapFraction: 0.25
backtest:
  horizonSeconds: 10
`

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Env != "dev" || cfg.Features.SpreadWindow != 30 || cfg.Signals.SpikeThreshold != 2.5 {
		t.Fatalf("unexpected cfg values: %+v", cfg)
	}
	if cfg.Backtest.HorizonSeconds != 10 {
		t.Fatalf("unexpected horizon: %d", cfg.Backtest.HorizonSeconds)
	}
}

func TestLoadKeepsDefaultsForOmittedKeys(t *testing.T) {
	path := writeTempConfig(t, "env: prod\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Features.SpreadWindow != 60 || cfg.Features.DepthWindow != 600 {
		t.Fatalf("feature defaults lost: %+v", cfg.Features)
	}
	if cfg.Signals.SpikeThreshold != 3.0 || cfg.Signals.GapFraction != 0.3 {
		t.Fatalf("signal defaults lost: %+v", cfg.Signals)
	}
	if cfg.Backtest.HorizonSeconds != 5 {
		t.Fatalf("backtest default lost: %+v", cfg.Backtest)
	}
	if cfg.Data.Ticks == "" {
		t.Fatal("data path defaults lost")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, validYAML+`
alerting:
  channels: [webhook]
  webhookURL: https://hooks.test/x
`)
	t.Setenv("MA_WEBHOOK_URL", "https://hooks.test/override")
	t.Setenv("MA_METRICS_ADDR", ":9200")
	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Alerting.WebhookURL != "https://hooks.test/override" {
		t.Errorf("webhook override lost: %q", cfg.Alerting.WebhookURL)
	}
	if cfg.MetricsAddr != ":9200" {
		t.Errorf("metrics addr override lost: %q", cfg.MetricsAddr)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"missing env", func(c *AppConfig) { c.Env = "" }},
		{"missing data path", func(c *AppConfig) { c.Data.Summary = "" }},
		{"tiny spread window", func(c *AppConfig) { c.Features.SpreadWindow = 1 }},
		{"bad vwap mode", func(c *AppConfig) { c.Features.VWAPMode = "windowed" }},
		{"zero spike threshold", func(c *AppConfig) { c.Signals.SpikeThreshold = 0 }},
		{"gap fraction above one", func(c *AppConfig) { c.Signals.GapFraction = 1.2 }},
		{"zero horizon", func(c *AppConfig) { c.Backtest.HorizonSeconds = 0 }},
		{"unknown channel", func(c *AppConfig) { c.Alerting.Channels = []string{"pager"} }},
		{"webhook without url", func(c *AppConfig) { c.Alerting.Channels = []string{"webhook"} }},
		{"log without file", func(c *AppConfig) { c.Alerting.Channels = []string{"log"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := Validate(cfg); err == nil {
				t.Errorf("Validate accepted %s", tt.name)
			}
		})
	}
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}
