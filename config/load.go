package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"micro-analyzer-go/backtest"
	"micro-analyzer-go/features"
	"micro-analyzer-go/infrastructure/logger"
	"micro-analyzer-go/signal"
)

// AppConfig holds the full pipeline configuration.
type AppConfig struct {
	Env         string          `yaml:"env"`
	Data        DataConfig      `yaml:"data"`
	Features    features.Config `yaml:"features"`
	Signals     signal.Config   `yaml:"signals"`
	Backtest    backtest.Config `yaml:"backtest"`
	Logger      logger.Config   `yaml:"logger"`
	Alerting    AlertingConfig  `yaml:"alerting"`
	MetricsAddr string          `yaml:"metricsAddr"` // prometheus listen addr, empty disables
	Dashboard   DashboardConfig `yaml:"dashboard"`
}

// DataConfig holds the table paths each stage reads and writes.
type DataConfig struct {
	Ticks    string `yaml:"ticks"`
	Features string `yaml:"features"`
	Alerts   string `yaml:"alerts"`
	Summary  string `yaml:"summary"`
}

// AlertingConfig configures the notification channels fed by the detector.
type AlertingConfig struct {
	ThrottleSeconds int      `yaml:"throttleSeconds"`
	Channels        []string `yaml:"channels"` // console, log, webhook
	LogFile         string   `yaml:"logFile"`
	WebhookURL      string   `yaml:"webhookURL"`
}

// DashboardConfig configures the dashboard daemon.
type DashboardConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the standard configuration; Load unmarshals on top of it
// so omitted keys keep their defaults.
func Default() AppConfig {
	return AppConfig{
		Env: "dev",
		Data: DataConfig{
			Ticks:    "data/synthetic_ticks.csv",
			Features: "data/features.csv",
			Alerts:   "data/alerts.csv",
			Summary:  "data/summary.csv",
		},
		Features: features.DefaultConfig(),
		Signals:  signal.DefaultConfig(),
		Backtest: backtest.DefaultConfig(),
		Logger:   logger.DefaultConfig(),
		Alerting: AlertingConfig{
			ThrottleSeconds: 30,
			Channels:        []string{"console"},
		},
		Dashboard: DashboardConfig{Addr: ":8080"},
	}
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides selected fields from env
// vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("MA_WEBHOOK_URL"); v != "" {
		cfg.Alerting.WebhookURL = v
	}
	if v := os.Getenv("MA_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("MA_DATA_DIR"); v != "" {
		cfg.Data = DataConfig{
			Ticks:    v + "/synthetic_ticks.csv",
			Features: v + "/features.csv",
			Alerts:   v + "/alerts.csv",
			Summary:  v + "/summary.csv",
		}
	}
	return cfg, Validate(cfg)
}

// Validate ensures required fields are present and thresholds are sane.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Data.Ticks == "" || cfg.Data.Features == "" || cfg.Data.Alerts == "" || cfg.Data.Summary == "" {
		return errors.New("data paths are required")
	}
	if err := cfg.Features.Validate(); err != nil {
		return err
	}
	if err := cfg.Signals.Validate(); err != nil {
		return err
	}
	if err := cfg.Backtest.Validate(); err != nil {
		return err
	}
	if cfg.Alerting.ThrottleSeconds < 0 {
		return errors.New("alerting.throttleSeconds must be >= 0")
	}
	for _, ch := range cfg.Alerting.Channels {
		switch ch {
		case "console", "log", "webhook":
		default:
			return fmt.Errorf("unknown alerting channel %q", ch)
		}
		if ch == "webhook" && cfg.Alerting.WebhookURL == "" {
			return errors.New("alerting.webhookURL is required for the webhook channel (or MA_WEBHOOK_URL)")
		}
		if ch == "log" && cfg.Alerting.LogFile == "" {
			return errors.New("alerting.logFile is required for the log channel")
		}
	}
	return nil
}
