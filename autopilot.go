// =============================================================================
// Package autopilot — One-Line Engine Construction
// =============================================================================
// Provides a convenience entry point for embedding the task pipeline in
// another program with minimal boilerplate. Wires the in-memory task
// registry, the Ollama invoker and the pipeline runner.
//
// Usage:
//
//	import "github.com/lumifin/autopilot"
//
//	eng, err := autopilot.New(autopilot.WithModel("llama3.2:3b"))
//	task, err := eng.Submit(ctx, "research renewable energy trends")
//	settled, err := eng.Await(ctx, task.ID)
//
// =============================================================================
package autopilot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lumifin/autopilot/llm"
	"github.com/lumifin/autopilot/llm/providers/ollama"
	"github.com/lumifin/autopilot/pipeline"
	"github.com/lumifin/autopilot/registry"
	"github.com/lumifin/autopilot/types"
)

// Option configures the engine created by New.
type Option func(*options)

type options struct {
	host          string
	model         string
	timeout       time.Duration
	maxConcurrent int
	invoker       llm.Invoker
	registry      registry.Registry
	logger        *zap.Logger
}

// WithHost sets the generation endpoint base URL.
func WithHost(host string) Option {
	return func(o *options) { o.host = host }
}

// WithModel sets the model name used for every stage call.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithMaxConcurrent caps the number of runs in flight across the engine.
func WithMaxConcurrent(n int) Option {
	return func(o *options) { o.maxConcurrent = n }
}

// WithInvoker sets a pre-built invoker, replacing the Ollama default.
func WithInvoker(inv llm.Invoker) Option {
	return func(o *options) { o.invoker = inv }
}

// WithRegistry sets a pre-built task registry, replacing the in-memory
// default.
func WithRegistry(reg registry.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Engine bundles a registry, an invoker and a runner into one handle.
type Engine struct {
	registry registry.Registry
	runner   *pipeline.Runner
}

// New creates a wired engine. With no options it targets a local Ollama
// instance with the default model.
func New(opts ...Option) (*Engine, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	reg := o.registry
	if reg == nil {
		reg = registry.NewMemory()
	}

	invoker := o.invoker
	if invoker == nil {
		invoker = ollama.New(ollama.Config{
			Host:    o.host,
			Model:   o.model,
			Timeout: o.timeout,
		}, o.logger)
	}

	runner := pipeline.NewRunner(reg, invoker, pipeline.Config{
		MaxConcurrent: o.maxConcurrent,
	}, o.logger)

	return &Engine{registry: reg, runner: runner}, nil
}

// Registry exposes the task registry for direct inspection.
func (e *Engine) Registry() registry.Registry { return e.registry }

// Events exposes the runner's event hub for progress subscriptions.
func (e *Engine) Events() *pipeline.Hub { return e.runner.Hub() }

// Submit creates a task for the goal and starts its run in the
// background. The returned snapshot reflects the task at creation.
func (e *Engine) Submit(ctx context.Context, goal string) (*types.Task, error) {
	task, err := e.registry.Create(ctx, goal)
	if err != nil {
		return nil, err
	}
	if err := e.runner.Start(ctx, task.ID); err != nil {
		return nil, err
	}
	return task, nil
}

// Run drives a goal to a terminal state and returns the settled task.
func (e *Engine) Run(ctx context.Context, goal string) (*types.Task, error) {
	task, err := e.registry.Create(ctx, goal)
	if err != nil {
		return nil, err
	}
	if err := e.runner.Run(ctx, task.ID); err != nil {
		return nil, err
	}
	return e.registry.Get(ctx, task.ID)
}

// Await blocks until the task settles, polling the registry, and
// returns the terminal snapshot.
func (e *Engine) Await(ctx context.Context, taskID string) (*types.Task, error) {
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()

	for {
		task, err := e.registry.Get(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if task.IsTerminal() {
			return task, nil
		}

		select {
		case <-ctx.Done():
			return nil, types.NewError(types.ErrCancelled, "await interrupted").WithCause(ctx.Err())
		case <-ticker.C:
		}
	}
}

// Cancel stops an in-flight run.
func (e *Engine) Cancel(taskID string) { e.runner.Cancel(taskID) }

// Close waits for all in-flight runs to settle.
func (e *Engine) Close() { e.runner.Wait() }
