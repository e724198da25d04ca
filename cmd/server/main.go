package main

import (
	"context"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"token-risk/internal/server"
	"token-risk/internal/server/config"
	"token-risk/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	// 初始化配置文件
	cfg := config.InitConfig()

	// 初始化 trace provider
	shutdownTrace := logger.InitTrace("token-risk", "server")
	ctx, span := logger.StartSpan(context.Background(), "main", "main")
	defer span.End()

	rootLogger := logger.NewLogger("server", logger.Options{Dir: cfg.Log.Dir})
	logger.SetLogLevel(cfg.Log.Level)
	tl := logger.WithTrace(ctx, rootLogger)

	core, err := server.New(cfg, tl)
	if err != nil {
		tl.Fatal("init server failed", zap.Error(err))
	}

	// 配置热加载：日志级别与风险分级表
	config.WatchConfig(tl, core.Reload)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := core.Start(ctx); err != nil {
			tl.Error("server exited", zap.Error(err))
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		tl.Info("Received shutdown signal, starting graceful shutdown...")
	case <-ctx.Done():
	}

	core.Stop(context.Background())
	_ = shutdownTrace(context.Background())
	_ = rootLogger.Sync()
}
