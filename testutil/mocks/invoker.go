// MockInvoker 的生成端点测试模拟实现。
//
// 支持固定响应、按阶段响应与错误注入场景。
package mocks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lumifin/autopilot/llm"
	"github.com/lumifin/autopilot/types"
)

// --- MockInvoker 结构 ---

// MockInvoker 是 llm.Invoker 的模拟实现
type MockInvoker struct {
	mu sync.RWMutex

	// 响应配置
	response  string
	responses map[types.StageKind]string // 按阶段覆盖默认响应
	err       error
	errAt     map[types.StageKind]error // 指定阶段失败

	// 调用记录
	calls      []InvokerCall
	invokeFunc func(ctx context.Context, role, prompt string) (string, error)

	// 行为控制
	delay     time.Duration // 模拟延迟
	failAfter int           // 在第 N 次调用后失败
	callCount int
}

// InvokerCall 记录单次调用
type InvokerCall struct {
	Role   string
	Prompt string
	Result string
	Err    error
}

var _ llm.Invoker = (*MockInvoker)(nil)

// --- 构造函数和 Builder 方法 ---

// NewMockInvoker 创建新的 MockInvoker
func NewMockInvoker() *MockInvoker {
	return &MockInvoker{
		response:  "mock output",
		responses: make(map[types.StageKind]string),
		errAt:     make(map[types.StageKind]error),
	}
}

// WithResponse 设置固定响应内容
func (m *MockInvoker) WithResponse(response string) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithStageResponse 为指定阶段设置响应内容
func (m *MockInvoker) WithStageResponse(kind types.StageKind, response string) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[kind] = response
	return m
}

// WithError 设置所有调用返回错误
func (m *MockInvoker) WithError(err error) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithErrorAt 设置指定阶段返回错误
func (m *MockInvoker) WithErrorAt(kind types.StageKind, err error) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errAt[kind] = err
	return m
}

// WithDelay 设置响应延迟
func (m *MockInvoker) WithDelay(d time.Duration) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithFailAfter 设置在第 N 次调用后失败
func (m *MockInvoker) WithFailAfter(n int) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	return m
}

// WithInvokeFunc 设置自定义 Invoke 函数
func (m *MockInvoker) WithInvokeFunc(fn func(ctx context.Context, role, prompt string) (string, error)) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invokeFunc = fn
	return m
}

// --- Invoker 接口实现 ---

// Name 返回 Invoker 名称
func (m *MockInvoker) Name() string {
	return "mock"
}

// Invoke 根据配置返回响应或错误，并记录本次调用。
// 阶段匹配基于 role 指令中出现的阶段关键字。
func (m *MockInvoker) Invoke(ctx context.Context, role, prompt string) (string, error) {
	m.mu.Lock()
	m.callCount++
	count := m.callCount
	delay := m.delay
	fn := m.invokeFunc
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return m.record(role, prompt, "", ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return m.record(role, prompt, "", err)
	}

	if fn != nil {
		result, err := fn(ctx, role, prompt)
		return m.record(role, prompt, result, err)
	}

	m.mu.RLock()
	result, invokeErr := m.resolve(role, count)
	m.mu.RUnlock()

	return m.record(role, prompt, result, invokeErr)
}

// resolve 根据当前配置决定本次调用的结果，调用方需持有读锁
func (m *MockInvoker) resolve(role string, count int) (string, error) {
	if m.failAfter > 0 && count > m.failAfter {
		return "", types.NewConnectionError("mock invoker: configured to fail after N calls", nil)
	}
	if m.err != nil {
		return "", m.err
	}

	kind := stageOf(role)
	if err, ok := m.errAt[kind]; ok {
		return "", err
	}
	if resp, ok := m.responses[kind]; ok {
		return resp, nil
	}
	return m.response, nil
}

func (m *MockInvoker) record(role, prompt, result string, err error) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, InvokerCall{Role: role, Prompt: prompt, Result: result, Err: err})
	return result, err
}

// stageOf 从 role 指令推断阶段类型。
// 匹配角色开头的限定短语，避免正文中出现的同类词误判。
func stageOf(role string) types.StageKind {
	lower := strings.ToLower(role)
	switch {
	case strings.Contains(lower, "planning assistant"):
		return types.StagePlan
	case strings.Contains(lower, "research assistant"):
		return types.StageResearch
	case strings.Contains(lower, "report writer"):
		return types.StageConclude
	case strings.Contains(lower, "analyst"):
		return types.StageAnalyze
	default:
		return ""
	}
}

// --- 查询方法 ---

// GetCalls 获取所有调用记录
func (m *MockInvoker) GetCalls() []InvokerCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]InvokerCall{}, m.calls...)
}

// GetCallCount 获取调用次数
func (m *MockInvoker) GetCallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callCount
}

// GetLastCall 获取最后一次调用
func (m *MockInvoker) GetLastCall() *InvokerCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}

// Reset 重置所有状态
func (m *MockInvoker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.callCount = 0
	m.err = nil
}

// --- 预设 Invoker 工厂 ---

// NewSuccessInvoker 创建总是成功的 Invoker
func NewSuccessInvoker(response string) *MockInvoker {
	return NewMockInvoker().WithResponse(response)
}

// NewErrorInvoker 创建总是失败的 Invoker
func NewErrorInvoker(err error) *MockInvoker {
	return NewMockInvoker().WithError(err)
}

// NewScriptedInvoker 创建按阶段返回预设响应的 Invoker
func NewScriptedInvoker(responses map[types.StageKind]string) *MockInvoker {
	m := NewMockInvoker()
	for kind, resp := range responses {
		m.WithStageResponse(kind, resp)
	}
	return m
}
