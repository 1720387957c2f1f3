package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to TaskStatus
		want     bool
	}{
		{StatusIdle, StatusPlanning, true},
		{StatusIdle, StatusFailed, true},
		{StatusIdle, StatusExecuting, false},
		{StatusPlanning, StatusExecuting, true},
		{StatusPlanning, StatusCompleted, false},
		{StatusExecuting, StatusExecuting, true},
		{StatusExecuting, StatusCompleted, true},
		{StatusExecuting, StatusFailed, true},
		{StatusCompleted, StatusPlanning, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusPlanning, false},
		{StatusFailed, StatusIdle, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to),
			"transition %s -> %s", tt.from, tt.to)
	}
}

func TestTaskStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusIdle.IsTerminal())
	assert.False(t, StatusPlanning.IsTerminal())
	assert.False(t, StatusExecuting.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestTaskClone(t *testing.T) {
	orig := &Task{
		ID:        "t1",
		Goal:      "research something",
		Status:    StatusExecuting,
		Progress:  50,
		Actions:   []StageRecord{{Kind: StagePlan, Result: "a plan", Timestamp: time.Now()}},
		Thoughts:  []string{"planning complete"},
		CreatedAt: time.Now(),
	}

	c := orig.Clone()
	require.NotSame(t, orig, c)
	assert.Equal(t, orig, c)

	// Mutating the clone's slices must not leak into the original.
	c.Actions = append(c.Actions, StageRecord{Kind: StageResearch})
	c.Thoughts[0] = "changed"
	assert.Len(t, orig.Actions, 1)
	assert.Equal(t, "planning complete", orig.Thoughts[0])
}

func TestTaskLastStage(t *testing.T) {
	task := &Task{}
	assert.Equal(t, StageKind(""), task.LastStage())

	task.Actions = append(task.Actions, StageRecord{Kind: StagePlan})
	assert.Equal(t, StagePlan, task.LastStage())

	task.Actions = append(task.Actions, StageRecord{Kind: StageResearch})
	assert.Equal(t, StageResearch, task.LastStage())
}

func TestStageOrder(t *testing.T) {
	assert.Equal(t, [4]StageKind{StagePlan, StageResearch, StageAnalyze, StageConclude}, StageOrder)
}

func TestErrorWrapping(t *testing.T) {
	cause := assert.AnError
	err := NewConnectionError("ollama unreachable", cause)

	assert.Equal(t, ErrConnection, err.Code)
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "CONNECTION")

	assert.Equal(t, ErrConnection, GetErrorCode(err))
	assert.Equal(t, ErrorCode(""), GetErrorCode(assert.AnError))
}
