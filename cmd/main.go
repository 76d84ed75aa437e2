package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Uuq114/JanusBedrock/internal/balancer"
	"github.com/Uuq114/JanusBedrock/internal/bedrock"
	"github.com/Uuq114/JanusBedrock/internal/config"
	"github.com/Uuq114/JanusBedrock/internal/proxy"
	"github.com/Uuq114/JanusBedrock/internal/spend"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "path to the yaml config file")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 创建代理
	b, err := balancer.New(cfg.Provider.Strategy)
	if err != nil {
		logger.Fatal("invalid balancing strategy", zap.Error(err))
	}
	p := proxy.NewProxy(b, &cfg.Catalog, logger)

	// 每个接入点一个长期存活的 Bedrock 客户端
	opts := bedrock.Options{
		ModelID:          cfg.Provider.ModelID,
		SystemPrompt:     cfg.Provider.SystemPrompt,
		AnthropicVersion: cfg.Provider.AnthropicVersion,
	}
	for i := range cfg.Provider.Endpoints {
		endpoint := &cfg.Provider.Endpoints[i]
		client, err := bedrock.NewFromEndpoint(ctx, endpoint, opts)
		if err != nil {
			logger.Error("skipping endpoint, failed to create bedrock client",
				zap.String("endpoint", endpoint.Name), zap.Error(err))
			continue
		}
		p.RegisterEndpoint(endpoint, client)
		logger.Info("registered endpoint",
			zap.String("endpoint", endpoint.Name),
			zap.String("region", endpoint.Region),
			zap.Int("weight", endpoint.Weight))
	}

	if p.EndpointCount() == 0 {
		logger.Fatal("no usable bedrock endpoints")
	}

	// 用量记录 (可选)
	if cfg.Database.DSN != "" {
		db, err := spend.OpenDatabase(cfg.Database.DSN)
		if err != nil {
			logger.Fatal("failed to open usage ledger", zap.Error(err))
		}
		recorder := spend.NewRecorder(db, spend.Options{
			BatchSize:     cfg.Database.BatchSize,
			FlushInterval: cfg.Database.FlushInterval,
			QueueSize:     cfg.Database.QueueSize,
		}, logger)
		defer func() {
			recorder.Close()
			if err := spend.CloseDatabase(db); err != nil {
				logger.Warn("failed to close database", zap.Error(err))
			}
		}()
		p.SetRecorder(recorder)
	}

	// 设置路由
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	r, err := proxy.NewRouter(p, cfg.Server, cfg.Metrics, logger)
	if err != nil {
		logger.Fatal("failed to build router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	go func() {
		logger.Info("server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("model_id", cfg.Provider.ModelID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
