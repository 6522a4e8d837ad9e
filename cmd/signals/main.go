package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"micro-analyzer-go/config"
	"micro-analyzer-go/infrastructure/alert"
	"micro-analyzer-go/infrastructure/logger"
	"micro-analyzer-go/signal"
	"micro-analyzer-go/store"
)

// 读取特征表，应用事件规则并写入告警表。
// 用法：
//
//	go run ./cmd/signals -config configs/config.yaml
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	in := flag.String("in", "", "输入特征表路径，默认取 data.features")
	out := flag.String("out", "", "输出告警表路径，默认取 data.alerts")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	zlog, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zlog.Close()

	inPath, outPath := cfg.Data.Features, cfg.Data.Alerts
	if *in != "" {
		inPath = *in
	}
	if *out != "" {
		outPath = *out
	}

	detector, err := signal.NewDetector(cfg.Signals)
	if err != nil {
		log.Fatalf("初始化检测器失败: %v", err)
	}
	manager, err := buildAlertManager(cfg.Alerting)
	if err != nil {
		log.Fatalf("初始化告警通道失败: %v", err)
	}

	start := time.Now()
	recs, err := store.ReadFeatures(inPath)
	if err != nil {
		zlog.LogError(err, map[string]interface{}{"stage": "signals", "path": inPath})
		log.Fatalf("读取特征表失败: %v", err)
	}
	alerts := detector.Detect(recs)
	if err := store.WriteAlerts(outPath, alerts); err != nil {
		zlog.LogError(err, map[string]interface{}{"stage": "signals", "path": outPath})
		log.Fatalf("写入告警表失败: %v", err)
	}
	zlog.LogStage("signals", len(recs), time.Since(start), map[string]interface{}{
		"in":              inPath,
		"out":             outPath,
		"n_alerts":        len(alerts),
		"spike_threshold": cfg.Signals.SpikeThreshold,
		"gap_fraction":    cfg.Signals.GapFraction,
	})

	for _, a := range alerts {
		r := a.Record
		if a.IsSpreadSpike {
			zlog.LogAlert("spread_spike", r.Tick.Timestamp, map[string]interface{}{
				"spread_z": r.SpreadZ.V,
			})
			if err := manager.SendSpreadSpike(r.Tick.Timestamp, r.SpreadZ.V, map[string]interface{}{
				"spread": r.Spread,
				"mid":    r.Mid,
			}); err != nil {
				zlog.LogError(err, map[string]interface{}{"stage": "notify"})
			}
		}
		if a.IsLiquidityGap {
			zlog.LogAlert("liquidity_gap", r.Tick.Timestamp, map[string]interface{}{
				"top_depth": r.TopDepth,
			})
			if err := manager.SendLiquidityGap(r.Tick.Timestamp, r.TopDepth, r.DepthMed.V, map[string]interface{}{
				"mid": r.Mid,
			}); err != nil {
				zlog.LogError(err, map[string]interface{}{"stage": "notify"})
			}
		}
	}
}

func buildAlertManager(cfg config.AlertingConfig) (*alert.Manager, error) {
	var channels []alert.Channel
	for _, name := range cfg.Channels {
		switch name {
		case "console":
			channels = append(channels, alert.NewConsoleChannel("console"))
		case "log":
			f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open alert log: %w", err)
			}
			channels = append(channels, alert.NewLogChannel("log", f))
		case "webhook":
			channels = append(channels, alert.NewWebhookChannel("webhook", cfg.WebhookURL))
		}
	}
	return alert.NewManager(channels, time.Duration(cfg.ThrottleSeconds)*time.Second), nil
}
