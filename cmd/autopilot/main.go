// =============================================================================
// Autopilot 主入口
// =============================================================================
// 完整服务入口点，包含 HTTP 服务、健康检查、Prometheus 指标
//
// 使用方法:
//
//	autopilot serve                       # 启动服务
//	autopilot serve --config config.yaml  # 指定配置文件
//	autopilot run "research X"            # 单次运行一个任务并打印结果
//	autopilot version                     # 显示版本信息
//	autopilot health                      # 健康检查
// =============================================================================

// @title Autopilot API
// @version 1.0.0
// @description Autopilot drives goal-oriented agent tasks through a fixed
// @description plan/research/analyze/conclude pipeline against a local
// @description generation endpoint.

// @host localhost:8080
// @BasePath /
// @schemes http

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lumifin/autopilot/config"
	"github.com/lumifin/autopilot/internal/telemetry"
	"github.com/lumifin/autopilot/llm/providers/ollama"
	"github.com/lumifin/autopilot/pipeline"
	"github.com/lumifin/autopilot/registry"
	"github.com/lumifin/autopilot/types"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "run":
		runOnce(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting Autopilot",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	server := NewServer(cfg, logger, otelProviders)
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	server.WaitForShutdown()
	logger.Info("Autopilot stopped")
}

// =============================================================================
// 🚀 run 命令（单次任务）
// =============================================================================

func runOnce(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Overall run timeout")
	fs.Parse(args)

	goal := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if goal == "" {
		fmt.Fprintln(os.Stderr, "Usage: autopilot run [--config <path>] <goal>")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	reg := registry.NewMemory()
	invoker := ollama.New(ollama.Config{
		Host:              cfg.Engine.Host,
		Model:             cfg.Engine.Model,
		Timeout:           cfg.Engine.Timeout,
		Temperature:       cfg.Engine.Temperature,
		TopK:              cfg.Engine.TopK,
		TopP:              cfg.Engine.TopP,
		RequestsPerSecond: cfg.Engine.RequestsPerSecond,
	}, logger)
	runner := pipeline.NewRunner(reg, invoker, pipeline.Config{
		MaxConcurrent: cfg.Pipeline.MaxConcurrent,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	task, err := reg.Create(ctx, goal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create task: %v\n", err)
		os.Exit(1)
	}
	if err := runner.Run(ctx, task.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run task: %v\n", err)
		os.Exit(1)
	}

	settled, err := reg.Get(ctx, task.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Task disappeared: %v\n", err)
		os.Exit(1)
	}

	for _, record := range settled.Actions {
		fmt.Printf("## %s\n%s\n\n", record.Kind, record.Result)
	}
	if settled.Result != "" {
		fmt.Printf("# Result\n%s\n", settled.Result)
	}
	if settled.Status != types.StatusCompleted {
		fmt.Fprintf(os.Stderr, "Run ended %s at %d%%\n", settled.Status, settled.Progress)
		os.Exit(1)
	}
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("Autopilot %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`Autopilot - goal-driven agent pipeline

Usage:
  autopilot <command> [options]

Commands:
  serve     Start the Autopilot server
  run       Run a single goal to completion and print the result
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'serve' and 'run':
  --config <path>   Path to configuration file (YAML)

Examples:
  autopilot serve
  autopilot serve --config /etc/autopilot/config.yaml
  autopilot run "research renewable energy trends"
  autopilot health --addr http://localhost:8080
  autopilot version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
