package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"token-risk/internal/server/classifier"
	"token-risk/internal/server/composer"
	"token-risk/internal/server/config"
	"token-risk/internal/server/handler"
	"token-risk/internal/server/monitor"
	"token-risk/pkg/openai"
	"token-risk/pkg/solana_client"
	"token-risk/pkg/solscan"

	"go.uber.org/zap"
)

type Core struct {
	cfg      config.Config
	tl       *zap.Logger
	composer *composer.Composer
	server   *http.Server
	metrics  *monitor.MetricsServer
}

func New(cfg config.Config, logger *zap.Logger) (*Core, error) {
	cls, err := classifier.FromConfig(cfg.Risk)
	if err != nil {
		return nil, fmt.Errorf("risk table: %w", err)
	}

	market := solscan.NewClient(cfg.Solscan, logger)

	// 接口值只在启用时赋值，保持 nil 语义
	var supply composer.SupplyReader
	if cfg.Analysis.SupplyFallback {
		supply = solana_client.NewSupplyReader(cfg.SolanaClientRawUrl)
	}
	var chat composer.Responder
	if oc := openai.NewClient(cfg.OpenAI, logger); oc.Enabled() {
		chat = oc
	} else {
		logger.Warn("openai api key not set, chat replies use the fallback line")
	}

	comp, err := composer.New(composer.OptionsFromConfig(cfg), market, supply, chat, cls, logger)
	if err != nil {
		return nil, err
	}

	h := handler.NewHandler(cfg.Server, logger, comp)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &Core{
		cfg:      cfg,
		tl:       logger,
		composer: comp,
		server:   srv,
		metrics:  monitor.NewMetricsServer(cfg.Monitor, logger),
	}, nil
}

// Start 阻塞直到 ctx 取消或监听失败
func (c *Core) Start(ctx context.Context) error {
	c.tl.Info("Starting token-risk server...", zap.String("addr", c.cfg.Server.Addr))
	c.metrics.Run()

	ln, err := net.Listen("tcp", c.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", c.server.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := c.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	c.tl.Info("Server started successfully")

	select {
	case <-ctx.Done():
		c.tl.Info("Shutting down server due to context cancellation...")
		return nil
	case err := <-errCh:
		return err
	}
}

// Reload 应用热更新的配置，目前只替换风险分级表
func (c *Core) Reload(cfg config.Config) {
	cls, err := classifier.FromConfig(cfg.Risk)
	if err != nil {
		c.tl.Warn("ignoring invalid risk table from reloaded config", zap.Error(err))
		return
	}
	c.composer.SetClassifier(cls)
	c.tl.Info("risk table reloaded", zap.Int("bands", len(cls.Bands())))
}

// Stop 优雅关闭所有资源
func (c *Core) Stop(ctx context.Context) {
	c.tl.Info("Stopping server core...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.server.Shutdown(shutdownCtx); err != nil {
		c.tl.Warn("http server shutdown", zap.Error(err))
	}

	if err := c.metrics.Stop(ctx); err != nil {
		c.tl.Warn("metrics server shutdown", zap.Error(err))
	}

	c.tl.Info("Server core stopped.")
}
