package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"micro-analyzer-go/backtest"
	"micro-analyzer-go/config"
	"micro-analyzer-go/features"
	"micro-analyzer-go/infrastructure/alert"
	"micro-analyzer-go/infrastructure/logger"
	"micro-analyzer-go/infrastructure/monitor"
	"micro-analyzer-go/market"
	"micro-analyzer-go/signal"
	"micro-analyzer-go/sim"
	"micro-analyzer-go/store"
)

// 完整流水线：tick -> 特征 -> 告警 -> 回测汇总，单次批处理。
// -watch 模式下常驻，配置文件变化时用新阈值重算告警与汇总。
// 用法：
//
//	go run ./cmd/pipeline -config configs/config.yaml [-generate] [-watch]
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	generate := flag.Bool("generate", false, "tick 表不存在时先生成合成行情")
	seed := flag.Int64("seed", 1, "生成合成行情时的随机种子")
	watch := flag.Bool("watch", false, "常驻并在配置变化时重算告警与汇总")
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

	mon := monitor.New(monitor.DefaultConfig())
	serveMetrics(cfg.MetricsAddr, mon, zlog)

	manager, err := buildAlertManager(cfg.Alerting)
	if err != nil {
		log.Fatalf("初始化告警通道失败: %v", err)
	}

	// 阶段一：行情
	ticks, err := loadOrGenerateTicks(cfg, *generate, *seed, zlog, mon)
	if err != nil {
		log.Fatalf("行情阶段失败: %v", err)
	}

	// 阶段二：特征
	engine, err := features.NewEngine(cfg.Features)
	if err != nil {
		log.Fatalf("初始化特征引擎失败: %v", err)
	}
	start := time.Now()
	recs, err := engine.Compute(ticks)
	if err != nil {
		mon.RecordStageError("features")
		var malformed *market.MalformedInputError
		if errors.As(err, &malformed) {
			mon.RecordMalformedRow()
		}
		zlog.LogError(err, map[string]interface{}{"stage": "features"})
		log.Fatalf("特征计算失败: %v", err)
	}
	if err := store.WriteFeatures(cfg.Data.Features, recs); err != nil {
		log.Fatalf("写入特征表失败: %v", err)
	}
	mon.RecordStage("features", time.Since(start).Seconds())
	zlog.LogStage("features", len(recs), time.Since(start), nil)

	// 阶段三、四：告警 + 回测汇总
	if err := runDetection(cfg, recs, manager, mon, zlog); err != nil {
		log.Fatalf("检测阶段失败: %v", err)
	}

	if !*watch {
		return
	}

	// 常驻：配置变化时用新阈值重算（特征不变）
	watcher := config.Watcher{
		Path:     *cfgPath,
		Interval: 2 * time.Second,
		OnError: func(err error) {
			zlog.LogError(err, map[string]interface{}{"stage": "watch"})
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	err = watcher.Start(ctx, func(next config.AppConfig) {
		if err := runDetection(next, recs, manager, mon, zlog); err != nil {
			zlog.LogError(err, map[string]interface{}{"stage": "rerun"})
			return
		}
		mon.RecordConfigReload()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("监听配置失败: %v", err)
	}
}

// runDetection 在已计算的特征上执行告警检测与回测汇总并落盘。
func runDetection(cfg config.AppConfig, recs []features.Record,
	manager *alert.Manager, mon *monitor.Monitor, zlog *logger.Logger) error {

	detector, err := signal.NewDetector(cfg.Signals)
	if err != nil {
		return err
	}
	start := time.Now()
	alerts := detector.Detect(recs)
	if err := store.WriteAlerts(cfg.Data.Alerts, alerts); err != nil {
		return fmt.Errorf("write alerts: %w", err)
	}
	mon.RecordStage("signals", time.Since(start).Seconds())
	zlog.LogStage("signals", len(recs), time.Since(start), map[string]interface{}{
		"n_alerts": len(alerts),
	})
	notify(manager, mon, zlog, alerts)

	start = time.Now()
	sum, err := backtest.Evaluate(recs, alerts, cfg.Backtest)
	if err != nil {
		mon.RecordStageError("eval")
		return err
	}
	if err := store.WriteSummary(cfg.Data.Summary, sum); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	mon.RecordStage("eval", time.Since(start).Seconds())
	bps := 0.0
	if sum.MeanReturnBps.Defined {
		bps = sum.MeanReturnBps.V
	}
	mon.UpdateSummary(bps, sum.PctAlerts, sum.NSamples)
	zlog.LogStage("eval", sum.TotalRows, time.Since(start), map[string]interface{}{
		"n_alerts":  sum.NAlerts,
		"n_samples": sum.NSamples,
	})

	fmt.Printf("rows=%d alerts=%d (%.4f%%) samples=%d\n",
		sum.TotalRows, sum.NAlerts, sum.PctAlerts*100, sum.NSamples)
	if sum.MeanReturnBps.Defined {
		fmt.Printf("mean forward return: %.4f bps over %ds\n",
			sum.MeanReturnBps.V, cfg.Backtest.HorizonSeconds)
	}
	return nil
}

func loadOrGenerateTicks(cfg config.AppConfig, generate bool, seed int64,
	zlog *logger.Logger, mon *monitor.Monitor) ([]market.TickSnapshot, error) {

	if generate {
		if _, err := os.Stat(cfg.Data.Ticks); os.IsNotExist(err) {
			simCfg := sim.DefaultConfig()
			simCfg.Seed = seed
			ticks, err := sim.MakeSyntheticDay(simCfg, time.Now().Truncate(time.Second))
			if err != nil {
				return nil, err
			}
			if err := store.WriteTicks(cfg.Data.Ticks, ticks); err != nil {
				return nil, err
			}
			mon.RecordTicksGenerated(len(ticks))
			zlog.LogStage("generate", len(ticks), 0, map[string]interface{}{"seed": seed})
		}
	}

	start := time.Now()
	ticks, err := store.ReadTicks(cfg.Data.Ticks)
	if err != nil {
		mon.RecordStageError("ingest")
		var malformed *market.MalformedInputError
		if errors.As(err, &malformed) {
			mon.RecordMalformedRow()
		}
		return nil, err
	}
	mon.RecordRowsIngested(len(ticks))
	mon.RecordStage("ingest", time.Since(start).Seconds())
	zlog.LogStage("ingest", len(ticks), time.Since(start), map[string]interface{}{
		"path": cfg.Data.Ticks,
	})
	return ticks, nil
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

func notify(manager *alert.Manager, mon *monitor.Monitor, zlog *logger.Logger, alerts []signal.AlertRecord) {
	for _, a := range alerts {
		r := a.Record
		if a.IsSpreadSpike {
			mon.RecordAlert("spread_spike")
			zlog.LogAlert("spread_spike", r.Tick.Timestamp, map[string]interface{}{
				"spread_z": r.SpreadZ.V,
				"spread":   r.Spread,
			})
			if err := manager.SendSpreadSpike(r.Tick.Timestamp, r.SpreadZ.V, map[string]interface{}{
				"spread": r.Spread,
				"mid":    r.Mid,
			}); err != nil {
				zlog.LogError(err, map[string]interface{}{"stage": "notify"})
			}
		}
		if a.IsLiquidityGap {
			mon.RecordAlert("liquidity_gap")
			zlog.LogAlert("liquidity_gap", r.Tick.Timestamp, map[string]interface{}{
				"top_depth": r.TopDepth,
				"depth_med": r.DepthMed.V,
			})
			if err := manager.SendLiquidityGap(r.Tick.Timestamp, r.TopDepth, r.DepthMed.V, map[string]interface{}{
				"mid": r.Mid,
			}); err != nil {
				zlog.LogError(err, map[string]interface{}{"stage": "notify"})
			}
		}
	}
}

func serveMetrics(addr string, mon *monitor.Monitor, zlog *logger.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", mon.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			zlog.LogError(err, map[string]interface{}{"stage": "metrics"})
		}
	}()
}
