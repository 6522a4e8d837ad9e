package main

import (
	"flag"
	"log"
	"time"

	"micro-analyzer-go/config"
	"micro-analyzer-go/features"
	"micro-analyzer-go/infrastructure/logger"
	"micro-analyzer-go/store"
)

// 读取 tick 表，计算微结构特征并写入特征表。
// 用法：
//
//	go run ./cmd/features -config configs/config.yaml
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	in := flag.String("in", "", "输入 tick 表路径，默认取 data.ticks")
	out := flag.String("out", "", "输出特征表路径，默认取 data.features")
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

	inPath, outPath := cfg.Data.Ticks, cfg.Data.Features
	if *in != "" {
		inPath = *in
	}
	if *out != "" {
		outPath = *out
	}

	engine, err := features.NewEngine(cfg.Features)
	if err != nil {
		log.Fatalf("初始化特征引擎失败: %v", err)
	}

	start := time.Now()
	ticks, err := store.ReadTicks(inPath)
	if err != nil {
		zlog.LogError(err, map[string]interface{}{"stage": "features", "path": inPath})
		log.Fatalf("读取 tick 表失败: %v", err)
	}
	recs, err := engine.Compute(ticks)
	if err != nil {
		zlog.LogError(err, map[string]interface{}{"stage": "features"})
		log.Fatalf("特征计算失败: %v", err)
	}
	if err := store.WriteFeatures(outPath, recs); err != nil {
		zlog.LogError(err, map[string]interface{}{"stage": "features", "path": outPath})
		log.Fatalf("写入特征表失败: %v", err)
	}
	zlog.LogStage("features", len(recs), time.Since(start), map[string]interface{}{
		"in":            inPath,
		"out":           outPath,
		"spread_window": cfg.Features.SpreadWindow,
		"depth_window":  cfg.Features.DepthWindow,
	})
}
