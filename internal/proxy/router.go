package proxy

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Uuq114/JanusBedrock/internal/config"
	"github.com/Uuq114/JanusBedrock/internal/metrics"
	"github.com/Uuq114/JanusBedrock/internal/middleware"
)

// NewRouter wires the proxy's handlers and the middleware chain.
func NewRouter(p *Proxy, server config.ServerConfig, metricsCfg config.MetricsConfig, logger *zap.Logger) (*gin.Engine, error) {
	r := gin.New()
	// nil trusts no forwarding headers, so ClientIP is the peer address
	if err := r.SetTrustedProxies(server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
	)

	r.GET("/", p.HandleRoot)
	r.GET("/health", p.HandleHealth)
	r.GET("/models", p.HandleModels)

	chat := []gin.HandlerFunc{p.HandleChat}
	if rl := server.RateLimit; rl.RequestsPerMinute > 0 {
		chat = append([]gin.HandlerFunc{middleware.RateLimit(rl.RequestsPerMinute, rl.Burst, rl.IdleTTL, logger)}, chat...)
	}
	r.POST("/chat", chat...)

	if metricsCfg.Enabled {
		metrics.Register()
		r.GET(metricsCfg.Path, gin.WrapH(promhttp.Handler()))
	}

	return r, nil
}
