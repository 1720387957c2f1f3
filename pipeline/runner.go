// Package pipeline drives one agent run through the ordered stage
// sequence plan → research → analyze → conclude, persisting every
// transition through the task registry and emitting live events.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/lumifin/autopilot/internal/metrics"
	"github.com/lumifin/autopilot/llm"
	"github.com/lumifin/autopilot/registry"
	"github.com/lumifin/autopilot/types"
)

// Config 流水线调度配置
type Config struct {
	// MaxConcurrent caps the number of runs in flight across the whole
	// runner. 0 means per-task concurrency with no global cap. Use a cap
	// when the downstream generation endpoint is rate limited.
	MaxConcurrent int
}

// Runner is the state machine driving tasks through their stages.
// Each Run is an independent drive; only the drive that owns a task
// writes that task's fields, always through the registry.
type Runner struct {
	reg     registry.Registry
	invoker llm.Invoker
	hub     *Hub
	sem     *semaphore.Weighted // nil when MaxConcurrent == 0
	metrics *metrics.Collector  // optional
	logger  *zap.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc // task id -> drive cancel
	wg     sync.WaitGroup
}

// Option configures the Runner.
type Option func(*Runner)

// WithHub sets the event hub that receives transition events.
func WithHub(hub *Hub) Option {
	return func(r *Runner) { r.hub = hub }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Runner) { r.metrics = c }
}

// NewRunner creates a pipeline runner.
func NewRunner(reg registry.Registry, invoker llm.Invoker, cfg Config, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		reg:     reg,
		invoker: invoker,
		hub:     NewHub(),
		logger:  logger.With(zap.String("component", "pipeline_runner")),
		active:  make(map[string]context.CancelFunc),
	}
	if cfg.MaxConcurrent > 0 {
		r.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Hub returns the event hub for progress subscriptions.
func (r *Runner) Hub() *Hub { return r.hub }

// Start launches the drive for a task in a background goroutine.
// It fails fast when the task is unknown, already driven, or terminal;
// once the drive is launched, stage failures are never returned — they
// surface only through the task's status.
func (r *Runner) Start(ctx context.Context, taskID string) error {
	if err := r.claim(ctx, taskID); err != nil {
		return err
	}

	driveCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.mu.Lock()
	r.active[taskID] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(taskID)
		r.drive(driveCtx, taskID)
	}()
	return nil
}

// Run drives a task to a terminal state synchronously. Semantics match
// Start; it exists for callers that want to block until the run ends.
func (r *Runner) Run(ctx context.Context, taskID string) error {
	if err := r.claim(ctx, taskID); err != nil {
		return err
	}

	driveCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.active[taskID] = cancel
	r.mu.Unlock()
	defer r.release(taskID)

	r.drive(driveCtx, taskID)
	return nil
}

// Cancel stops the in-flight drive for a task, if any. The drive ends
// Failed with a cancellation thought; progress stays at the last
// successful checkpoint. Cancelling an unknown or settled task is a no-op.
func (r *Runner) Cancel(taskID string) {
	r.mu.Lock()
	cancel, ok := r.active[taskID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

// Wait blocks until all in-flight drives have settled. Used on shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// claim validates the task and marks it active so a task is driven at
// most once at a time.
func (r *Runner) claim(ctx context.Context, taskID string) error {
	task, err := r.reg.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if task.IsTerminal() {
		return types.NewError(types.ErrTaskTerminal, "task already settled: "+taskID)
	}
	if task.Status != types.StatusIdle {
		return types.NewError(types.ErrTaskAlreadyActive, "task already running: "+taskID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.active[taskID]; exists {
		return types.NewError(types.ErrTaskAlreadyActive, "task already running: "+taskID)
	}
	// Reserve the slot before the goroutine exists so a double Start
	// cannot race past the status check.
	r.active[taskID] = func() {}
	return nil
}

// release removes the drive's cancel registration.
func (r *Runner) release(taskID string) {
	r.mu.Lock()
	delete(r.active, taskID)
	r.mu.Unlock()
}

// drive executes the full stage sequence for one task. It never
// returns an error: every failure is recorded on the task itself.
func (r *Runner) drive(ctx context.Context, taskID string) {
	logger := r.logger.With(zap.String("task_id", taskID))
	tracer := otel.Tracer("autopilot/pipeline")

	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			r.fail(context.WithoutCancel(ctx), taskID,
				types.NewError(types.ErrCancelled, "cancelled while waiting for a run slot").WithCause(err))
			return
		}
		defer r.sem.Release(1)
	}

	task, err := r.reg.Get(ctx, taskID)
	if err != nil {
		// Deleted between claim and acquire; nothing left to drive.
		logger.Warn("task vanished before drive started", zap.Error(err))
		return
	}
	goal := task.Goal

	start := time.Now()
	if r.metrics != nil {
		r.metrics.RunStarted()
	}

	ctx, span := tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("task.id", taskID)),
	)
	defer span.End()

	logger.Info("run started", zap.String("goal", goal))
	r.transition(ctx, taskID, func(t *types.Task) {
		t.Status = types.StatusPlanning
		t.Progress = Checkpoint(0)
	}, Event{TaskID: taskID, Status: types.StatusPlanning, Progress: Checkpoint(0)})

	outputs := make(map[types.StageKind]string, len(types.StageOrder))

	for i, kind := range types.StageOrder {
		if err := ctx.Err(); err != nil {
			r.finishFailed(logger, start, taskID,
				types.NewError(types.ErrCancelled, "run cancelled").WithCause(err))
			return
		}

		spec := stageSpecs[kind]
		stageCtx, stageSpan := tracer.Start(ctx, "pipeline.stage",
			trace.WithAttributes(attribute.String("stage", string(kind))),
		)

		stageStart := time.Now()
		result, err := r.invoker.Invoke(stageCtx, spec.Role, spec.Prompt(goal, outputs))
		if r.metrics != nil {
			r.metrics.ObserveStage(string(kind), time.Since(stageStart), err)
		}

		if err != nil {
			stageSpan.RecordError(err)
			stageSpan.SetStatus(codes.Error, "stage failed")
			stageSpan.End()
			span.SetStatus(codes.Error, "run failed")
			r.finishFailed(logger, start, taskID,
				types.NewError(codeFor(err), string(kind)+" stage failed").WithCause(err))
			return
		}
		stageSpan.End()

		outputs[kind] = result
		record := types.StageRecord{
			Kind:        kind,
			Description: spec.Description,
			Result:      result,
			Timestamp:   time.Now(),
		}

		completed := i + 1
		progress := Checkpoint(completed)
		last := completed == len(types.StageOrder)

		r.transition(ctx, taskID, func(t *types.Task) {
			t.Actions = append(t.Actions, record)
			t.Progress = progress
			if last {
				t.Status = types.StatusCompleted
				t.Result = result
			} else {
				t.Status = types.StatusExecuting
				t.Thoughts = append(t.Thoughts, spec.Thought)
			}
		}, Event{
			TaskID:   taskID,
			Status:   statusAfter(last),
			Progress: progress,
			Stage:    kind,
			Message:  spec.Thought,
			Terminal: last,
		})

		logger.Info("stage completed",
			zap.String("stage", string(kind)),
			zap.Int("progress", progress),
			zap.Duration("elapsed", time.Since(stageStart)),
		)
	}

	span.SetStatus(codes.Ok, "")
	logger.Info("run completed", zap.Duration("duration", time.Since(start)))
	if r.metrics != nil {
		r.metrics.RunFinished(string(types.StatusCompleted), time.Since(start))
	}
}

func statusAfter(last bool) types.TaskStatus {
	if last {
		return types.StatusCompleted
	}
	return types.StatusExecuting
}

// codeFor classifies a stage error for the failure record.
func codeFor(err error) types.ErrorCode {
	if code := types.GetErrorCode(err); code != "" {
		return code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return types.ErrCancelled
	}
	return types.ErrInternalError
}

// finishFailed settles the task as Failed after a started run.
// Progress stays at the last successful checkpoint; exactly one
// terminal event is published.
func (r *Runner) finishFailed(logger *zap.Logger, start time.Time, taskID string, cause *types.Error) {
	r.fail(context.Background(), taskID, cause)
	logger.Warn("run failed", zap.Error(cause), zap.Duration("duration", time.Since(start)))
	if r.metrics != nil {
		r.metrics.RunFinished(string(types.StatusFailed), time.Since(start))
	}
}

// fail transitions the task to Failed with a human-readable thought.
// The task's progress is deliberately left at its last checkpoint.
// When the task was deleted mid-drive there is nothing to settle and
// no terminal event is published.
func (r *Runner) fail(ctx context.Context, taskID string, cause *types.Error) {
	progress := 0
	found := false
	_ = r.reg.Update(ctx, taskID, func(t *types.Task) {
		found = true
		t.Status = types.StatusFailed
		t.Thoughts = append(t.Thoughts, "Run failed: "+cause.Error())
		progress = t.Progress
	})
	if !found {
		return
	}
	r.hub.Publish(Event{
		TaskID:    taskID,
		Status:    types.StatusFailed,
		Progress:  progress,
		Message:   cause.Error(),
		Terminal:  true,
		Timestamp: time.Now(),
	})
}

// transition persists one mutation through the registry and publishes
// the matching event so concurrent observers see live progress.
func (r *Runner) transition(ctx context.Context, taskID string, mutate func(*types.Task), ev Event) {
	// Update is deliberately tolerant of a concurrently deleted task.
	_ = r.reg.Update(ctx, taskID, mutate)
	ev.Timestamp = time.Now()
	r.hub.Publish(ev)
}
