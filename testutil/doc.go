/*
Package testutil 提供 Autopilot 测试的共享工具和辅助函数。

# 概述

testutil 包为整个项目的单元测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。所有测试应优先使用此包
中的工具函数和 Mock 实现。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 异步断言: AssertEventuallyTrue / WaitFor / WaitForChannel，
    支持超时轮询等待条件满足
  - 任务辅助: MustCreate / WaitTerminal，覆盖注册表驱动的常见流程
  - Mock 实现: mocks.MockInvoker，支持按阶段响应与错误注入

# 使用示例

	reg := registry.NewMemory()
	task := testutil.MustCreate(t, reg, "some goal")
	runner.Start(ctx, task.ID)
	settled := testutil.WaitTerminal(t, reg, task.ID, 5*time.Second)
*/
package testutil
