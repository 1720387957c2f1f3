// autopilot 是服务的命令行入口。
//
// serve 启动 HTTP 服务与 Prometheus 指标服务；run 在进程内执行
// 单个目标并打印各阶段结果；health 对运行中的实例做存活探测。
package main
