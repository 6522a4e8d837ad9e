package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"

	"micro-analyzer-go/config"
	"micro-analyzer-go/dashboard"
	"micro-analyzer-go/features"
	"micro-analyzer-go/infrastructure/logger"
	"micro-analyzer-go/infrastructure/monitor"
	internalconfig "micro-analyzer-go/internal/config"
	"micro-analyzer-go/store"
)

// 面板守护进程：加载特征表，暴露 REST/WebSocket 面板，
// 配置文件变化时热加载阈值并就地重算告警与汇总。
// 用法：
//
//	go run ./cmd/dashboard -config configs/config.yaml
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	addr := flag.String("addr", "", "监听地址，默认取配置中的 dashboard.addr")
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

	listenAddr := cfg.Dashboard.Addr
	if *addr != "" {
		listenAddr = *addr
	}

	mon := monitor.New(monitor.DefaultConfig())

	recs, err := loadRecords(cfg)
	if err != nil {
		zlog.LogError(err, map[string]interface{}{"stage": "dashboard_load"})
		log.Fatalf("加载特征数据失败: %v", err)
	}
	mon.RecordRowsIngested(len(recs))

	srv, err := dashboard.New(recs, cfg.Signals, cfg.Backtest, zlog, mon)
	if err != nil {
		log.Fatalf("初始化面板失败: %v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 配置热加载：阈值变化时就地重算
	reloader, err := internalconfig.NewHotReloader(*cfgPath, internalconfig.DefaultHotReloadConfig())
	if err != nil {
		log.Fatalf("初始化热加载失败: %v", err)
	}
	reloader.SetErrorHandler(func(err error) {
		zlog.LogError(err, map[string]interface{}{"stage": "hot_reload"})
	})
	reloader.SetReloadHandler(func(next config.AppConfig) error {
		if err := srv.Recompute(next.Signals, next.Backtest); err != nil {
			return err
		}
		mon.RecordConfigReload()
		return nil
	})
	if err := reloader.Start(ctx); err != nil {
		log.Fatalf("启动热加载失败: %v", err)
	}
	defer reloader.Stop()

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("dashboard_listen")
		errCh <- httpServer.ListenAndServe()
	}()

	// systemd 就绪通知与看门狗
	if _, err := sd.SdNotify(false, sd.SdNotifyReady); err != nil {
		zlog.LogError(err, map[string]interface{}{"stage": "sdnotify"})
	}
	if interval, err := sd.SdWatchdogEnabled(false); err == nil && interval > 0 {
		go func() {
			ticker := time.NewTicker(interval / 2)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					sd.SdNotify(false, sd.SdNotifyWatchdog)
				}
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务失败: %v", err)
		}
	case <-sigCh:
		sd.SdNotify(false, sd.SdNotifyStopping)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			zlog.LogError(err, map[string]interface{}{"stage": "shutdown"})
		}
	}
}

// loadRecords 优先读取特征表；不存在时从 tick 表重新计算。
func loadRecords(cfg config.AppConfig) ([]features.Record, error) {
	if _, err := os.Stat(cfg.Data.Features); err == nil {
		return store.ReadFeatures(cfg.Data.Features)
	}
	ticks, err := store.ReadTicks(cfg.Data.Ticks)
	if err != nil {
		return nil, err
	}
	engine, err := features.NewEngine(cfg.Features)
	if err != nil {
		return nil, err
	}
	return engine.Compute(ticks)
}
