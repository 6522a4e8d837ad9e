package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"micro-analyzer-go/backtest"
	"micro-analyzer-go/config"
	"micro-analyzer-go/infrastructure/logger"
	"micro-analyzer-go/store"
)

// 读取特征表与告警表，计算告警后前向收益并写入汇总表。
// 用法：
//
//	go run ./cmd/eval -config configs/config.yaml
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	featuresIn := flag.String("features", "", "特征表路径，默认取 data.features")
	alertsIn := flag.String("alerts", "", "告警表路径，默认取 data.alerts")
	out := flag.String("out", "", "汇总表路径，默认取 data.summary")
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

	fPath, aPath, sPath := cfg.Data.Features, cfg.Data.Alerts, cfg.Data.Summary
	if *featuresIn != "" {
		fPath = *featuresIn
	}
	if *alertsIn != "" {
		aPath = *alertsIn
	}
	if *out != "" {
		sPath = *out
	}

	start := time.Now()
	recs, err := store.ReadFeatures(fPath)
	if err != nil {
		zlog.LogError(err, map[string]interface{}{"stage": "eval", "path": fPath})
		log.Fatalf("读取特征表失败: %v", err)
	}
	alerts, err := store.ReadAlerts(aPath, recs)
	if err != nil {
		zlog.LogError(err, map[string]interface{}{"stage": "eval", "path": aPath})
		log.Fatalf("读取告警表失败: %v", err)
	}
	sum, err := backtest.Evaluate(recs, alerts, cfg.Backtest)
	if err != nil {
		zlog.LogError(err, map[string]interface{}{"stage": "eval"})
		log.Fatalf("回测评估失败: %v", err)
	}
	if err := store.WriteSummary(sPath, sum); err != nil {
		zlog.LogError(err, map[string]interface{}{"stage": "eval", "path": sPath})
		log.Fatalf("写入汇总表失败: %v", err)
	}

	zlog.LogStage("eval", sum.TotalRows, time.Since(start), map[string]interface{}{
		"n_alerts":  sum.NAlerts,
		"n_samples": sum.NSamples,
		"horizon_s": cfg.Backtest.HorizonSeconds,
	})

	fmt.Printf("rows=%d alerts=%d (%.4f%%) samples=%d\n",
		sum.TotalRows, sum.NAlerts, sum.PctAlerts*100, sum.NSamples)
	if sum.MeanReturnBps.Defined {
		fmt.Printf("mean forward return: %.4f bps over %ds\n",
			sum.MeanReturnBps.V, cfg.Backtest.HorizonSeconds)
	} else {
		fmt.Println("mean forward return: n/a (no resolvable alerts)")
	}
}
