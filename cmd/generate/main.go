package main

import (
	"flag"
	"log"
	"time"

	"micro-analyzer-go/config"
	"micro-analyzer-go/infrastructure/logger"
	"micro-analyzer-go/sim"
	"micro-analyzer-go/store"
)

// 生成一天合成行情并写入 tick 表。
// 用法：
//
//	go run ./cmd/generate -config configs/config.yaml -seconds 7200 -seed 1
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	out := flag.String("out", "", "输出路径，默认取配置中的 data.ticks")
	seconds := flag.Int("seconds", 7200, "生成的tick数量（每秒一条）")
	seed := flag.Int64("seed", 1, "随机种子")
	startPrice := flag.Float64("startPrice", 100.0, "起始中间价")
	gapAt := flag.Int("gapAt", -1, "注入深度塌缩的起始下标，-1 关闭")
	gapLen := flag.Int("gapLen", 30, "深度塌缩持续tick数")
	spikeAt := flag.Int("spikeAt", -1, "注入价差尖峰的起始下标，-1 关闭")
	spikeLen := flag.Int("spikeLen", 10, "价差尖峰持续tick数")
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

	path := cfg.Data.Ticks
	if *out != "" {
		path = *out
	}

	simCfg := sim.Config{
		Seconds:    *seconds,
		StartPrice: *startPrice,
		Seed:       *seed,
	}
	if *gapAt >= 0 {
		simCfg.GapSegment = &sim.Segment{Start: *gapAt, End: *gapAt + *gapLen}
		simCfg.GapDepthScale = 0.05
	}
	if *spikeAt >= 0 {
		simCfg.SpikeSegment = &sim.Segment{Start: *spikeAt, End: *spikeAt + *spikeLen}
		simCfg.SpikeScale = 8
	}

	start := time.Now()
	ticks, err := sim.MakeSyntheticDay(simCfg, time.Now().Truncate(time.Second))
	if err != nil {
		zlog.LogError(err, map[string]interface{}{"stage": "generate"})
		log.Fatalf("生成失败: %v", err)
	}
	if err := store.WriteTicks(path, ticks); err != nil {
		zlog.LogError(err, map[string]interface{}{"stage": "generate", "path": path})
		log.Fatalf("写入失败: %v", err)
	}
	zlog.LogStage("generate", len(ticks), time.Since(start), map[string]interface{}{
		"path": path,
		"seed": *seed,
	})
}
