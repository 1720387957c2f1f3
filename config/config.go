// =============================================================================
// Autopilot 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是 Autopilot 的完整配置结构
type Config struct {
	// Server 服务器配置
	Server ServerConfig `yaml:"server"`

	// Engine 生成引擎配置
	Engine EngineConfig `yaml:"engine"`

	// Pipeline 流水线调度配置
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Log 日志配置
	Log LogConfig `yaml:"log"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// EngineConfig configures the external text-generation endpoint.
// Host and Model may change between runs; a single run reads them once.
type EngineConfig struct {
	// Host 生成服务地址
	Host string `yaml:"host"`
	// Model 模型名称
	Model string `yaml:"model"`
	// Timeout 单次生成调用超时
	Timeout time.Duration `yaml:"timeout"`
	// Temperature 采样温度
	Temperature float32 `yaml:"temperature"`
	// TopK 采样候选数
	TopK int `yaml:"top_k"`
	// TopP 核采样阈值
	TopP float32 `yaml:"top_p"`
	// RequestsPerSecond 客户端限流（0 表示不限流）
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// PipelineConfig 流水线调度配置
type PipelineConfig struct {
	// MaxConcurrent 全局并发运行上限（0 表示不限制）
	MaxConcurrent int `yaml:"max_concurrent"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level"`
	// Format: json, console
	Format string `yaml:"format"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled"`
	// OTLP gRPC 端点
	Endpoint string `yaml:"endpoint"`
	// 采样率 0.0-1.0
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Load reads configuration with the precedence defaults → YAML file →
// environment. path may be empty, in which case only defaults and
// environment apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config fields from AUTOPILOT_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("AUTOPILOT_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.HTTPPort = port
		}
	}
	if v := os.Getenv("AUTOPILOT_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = port
		}
	}
	if v := os.Getenv("AUTOPILOT_ENGINE_HOST"); v != "" {
		cfg.Engine.Host = v
	}
	if v := os.Getenv("AUTOPILOT_ENGINE_MODEL"); v != "" {
		cfg.Engine.Model = v
	}
	if v := os.Getenv("AUTOPILOT_ENGINE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.Timeout = d
		}
	}
	if v := os.Getenv("AUTOPILOT_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.MaxConcurrent = n
		}
	}
	if v := os.Getenv("AUTOPILOT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("AUTOPILOT_TELEMETRY_ENDPOINT"); v != "" {
		cfg.Telemetry.Endpoint = v
		cfg.Telemetry.Enabled = true
	}
}

// Validate 校验配置合法性
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.Server.HTTPPort)
	}
	if c.Engine.Host == "" {
		return fmt.Errorf("engine host must not be empty")
	}
	if c.Engine.Model == "" {
		return fmt.Errorf("engine model must not be empty")
	}
	if c.Pipeline.MaxConcurrent < 0 {
		return fmt.Errorf("max_concurrent must be >= 0, got %d", c.Pipeline.MaxConcurrent)
	}
	return nil
}
