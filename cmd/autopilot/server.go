package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lumifin/autopilot/api"
	"github.com/lumifin/autopilot/api/handlers"
	"github.com/lumifin/autopilot/config"
	"github.com/lumifin/autopilot/internal/metrics"
	"github.com/lumifin/autopilot/internal/server"
	"github.com/lumifin/autopilot/internal/telemetry"
	"github.com/lumifin/autopilot/llm/providers/ollama"
	"github.com/lumifin/autopilot/pipeline"
	"github.com/lumifin/autopilot/registry"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 Autopilot 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 核心组件
	registry registry.Registry
	invoker  *ollama.Provider
	runner   *pipeline.Runner

	// 指标收集器
	metricsCollector *metrics.Collector

	// OTel providers
	otelProviders *telemetry.Providers

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) *Server {
	return &Server{
		cfg:           cfg,
		logger:        logger,
		otelProviders: otelProviders,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("autopilot", nil, s.logger)

	// 2. 初始化核心组件
	s.initComponents()

	// 3. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 4. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("engine_host", s.cfg.Engine.Host),
		zap.String("engine_model", s.cfg.Engine.Model),
	)

	return nil
}

// initComponents 初始化注册表、生成引擎与流水线
func (s *Server) initComponents() {
	s.registry = registry.NewMemory()

	s.invoker = ollama.New(ollama.Config{
		Host:              s.cfg.Engine.Host,
		Model:             s.cfg.Engine.Model,
		Timeout:           s.cfg.Engine.Timeout,
		Temperature:       s.cfg.Engine.Temperature,
		TopK:              s.cfg.Engine.TopK,
		TopP:              s.cfg.Engine.TopP,
		RequestsPerSecond: s.cfg.Engine.RequestsPerSecond,
	}, s.logger)

	s.runner = pipeline.NewRunner(s.registry, s.invoker, pipeline.Config{
		MaxConcurrent: s.cfg.Pipeline.MaxConcurrent,
	}, s.logger, pipeline.WithMetrics(s.metricsCollector))

	s.logger.Info("Pipeline components initialized",
		zap.Int("max_concurrent", s.cfg.Pipeline.MaxConcurrent),
	)
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := api.NewRouter(api.Deps{
		Registry: s.registry,
		Runner:   s.runner,
		Metrics:  s.metricsCollector,
		Logger:   s.logger,
		HealthChecks: []handlers.HealthCheck{
			handlers.NewPingHealthCheck("engine", s.invoker.Ping),
		},
	})

	// 构建中间件链
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		OTelTracing(),
		RateLimiter(rateLimiterCtx, 50, 100, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.ReadTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	// 0. 停止 rate limiter 清理 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 1. 关闭 HTTP 服务器，停止接受新任务
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 2. 等待在途运行结束
	if s.runner != nil {
		s.runner.Wait()
	}

	// 3. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 4. 刷新遥测数据
	if s.otelProviders != nil {
		if err := s.otelProviders.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown complete")
}
