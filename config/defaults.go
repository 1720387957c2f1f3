// =============================================================================
// Autopilot 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Engine:    DefaultEngineConfig(),
		Pipeline:  DefaultPipelineConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultEngineConfig 返回默认生成引擎配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Host:        "http://localhost:11434",
		Model:       "llama3.2:3b",
		Timeout:     2 * time.Minute,
		Temperature: 0.7,
		TopK:        40,
		TopP:        0.9,
	}
}

// DefaultPipelineConfig 返回默认流水线配置
func DefaultPipelineConfig() PipelineConfig {
	// 0 = per-task concurrency without a global cap
	return PipelineConfig{MaxConcurrent: 0}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "json",
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:     false,
		Endpoint:    "localhost:4317",
		SampleRatio: 1.0,
	}
}
