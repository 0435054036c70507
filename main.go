package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/Hertuq0910/roulette-backend/common"
	"github.com/Hertuq0910/roulette-backend/common/logger"
	"github.com/Hertuq0910/roulette-backend/internal/config"
	infmysql "github.com/Hertuq0910/roulette-backend/internal/infra/mysql"
	infrds "github.com/Hertuq0910/roulette-backend/internal/infra/redis"
	"github.com/Hertuq0910/roulette-backend/internal/worker"
	_ "github.com/Hertuq0910/roulette-backend/routers"

	beego "github.com/beego/beego/v2/server/web"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// 日志先行，后续初始化错误都打到结构化日志
	logger.InitLogger()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 配置：Nacos 优先，本地文件兜底
	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatalf("load config failed", zap.Error(err))
	}
	config.Set(cfg)
	config.SetCurrent(cfg)

	// 配置热更新（仅 Nacos 模式生效）
	if err := config.StartWatch(ctx, func(oldCfg, newCfg *config.Config) {
		config.Set(newCfg)
		logger.Info("config reloaded")
	}); err != nil {
		logger.Warn("config watch not started", zap.Error(err))
	}

	// MySQL
	db := common.InitDB(cfg.Database.DSN, cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns)
	infmysql.UseDB(db.DB)

	// Redis（可选）
	infrds.Init(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := infrds.Ping(ctx, 2*time.Second); err != nil {
		logger.Warn("redis ping failed, continue without cache", zap.Error(err))
	}

	// Prometheus /metrics 独立端口（与业务端口隔离）
	if cfg.Observability.EnableProm && cfg.Observability.PromAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics server listening", zap.String("addr", cfg.Observability.PromAddr))
			if err := http.ListenAndServe(cfg.Observability.PromAddr, mux); err != nil {
				logger.Warn("metrics server exit", zap.Error(err))
			}
		}()
	}

	// Outbox 分发器（MQ 未配置时不启动）
	var wg sync.WaitGroup
	worker.StartOutboxDispatcher(ctx, &wg)

	// HTTP
	if cfg.Server.Port > 0 {
		beego.BConfig.Listen.HTTPPort = cfg.Server.Port
	}
	beego.BConfig.CopyRequestBody = true

	go func() {
		fmt.Printf("[Main] 服务启动: port=%s\n", strconv.Itoa(beego.BConfig.Listen.HTTPPort))
		beego.Run()
	}()

	// 优雅退出：等待信号，停 worker 再退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")

	cancel()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn("shutdown timeout, force exit")
	}
	logger.Info("server stopped")
}
