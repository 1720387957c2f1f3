package types

import (
	"time"
)

// TaskStatus 任务生命周期状态
type TaskStatus string

const (
	StatusIdle      TaskStatus = "idle"      // Created, not yet driven
	StatusPlanning  TaskStatus = "planning"  // Plan stage in flight
	StatusExecuting TaskStatus = "executing" // Research/Analyze/Conclude stages
	StatusCompleted TaskStatus = "completed" // Terminal: all stages succeeded
	StatusFailed    TaskStatus = "failed"    // Terminal: a stage failed or the run was cancelled
)

// IsTerminal returns true if the status is a terminal state.
// Terminal tasks accept no further mutation.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// validTransitions 定义合法的状态转换
var validTransitions = map[TaskStatus][]TaskStatus{
	StatusIdle:      {StatusPlanning, StatusFailed},
	StatusPlanning:  {StatusExecuting, StatusFailed},
	StatusExecuting: {StatusExecuting, StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

// CanTransition 检查状态转换是否合法
func CanTransition(from, to TaskStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StageKind identifies one of the four pipeline stages.
type StageKind string

const (
	StagePlan     StageKind = "plan"
	StageResearch StageKind = "research"
	StageAnalyze  StageKind = "analyze"
	StageConclude StageKind = "conclude"
)

// StageOrder is the fixed execution order of the pipeline.
var StageOrder = [4]StageKind{StagePlan, StageResearch, StageAnalyze, StageConclude}

// StageRecord is an immutable record of one completed stage.
type StageRecord struct {
	Kind        StageKind `json:"kind"`
	Description string    `json:"description"`
	Result      string    `json:"result"`
	Timestamp   time.Time `json:"timestamp"`
}

// Task represents one agent run. The registry is the sole owner of the
// mutable record; snapshots handed out by Get/List are deep copies.
type Task struct {
	// ID is the unique identifier, generated at creation, immutable.
	ID string `json:"id"`

	// Goal is the free-text objective, set once at creation.
	Goal string `json:"goal"`

	// Status is the current lifecycle state.
	Status TaskStatus `json:"status"`

	// Progress is the percent complete, one of the fixed checkpoints
	// 0, 10, 25, 50, 75, 100. Monotonically non-decreasing per run.
	Progress int `json:"progress"`

	// Actions is the append-only sequence of completed stage records.
	Actions []StageRecord `json:"actions"`

	// Thoughts is the append-only sequence of short progress notes.
	Thoughts []string `json:"thoughts"`

	// Result is the conclude-stage output, set only on completion.
	Result string `json:"result,omitempty"`

	// CreatedAt is when the task was created, immutable.
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Actions = append([]StageRecord(nil), t.Actions...)
	c.Thoughts = append([]string(nil), t.Thoughts...)
	return &c
}

// IsTerminal returns true if the task is in a terminal state.
func (t *Task) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// LastStage returns the kind of the most recently completed stage,
// or "" if no stage has completed yet.
func (t *Task) LastStage() StageKind {
	if len(t.Actions) == 0 {
		return ""
	}
	return t.Actions[len(t.Actions)-1].Kind
}
