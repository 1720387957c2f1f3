// Package registry owns the collection of Task records. It is the sole
// owner of every mutable Task; callers only ever receive snapshots.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumifin/autopilot/types"
)

// Registry is the injectable task store. Implementations must be safe
// for concurrent use. There is deliberately no module-level instance:
// tests and servers construct their own.
type Registry interface {
	// Create allocates a fresh task in Idle state with a unique id and
	// the goal stored verbatim. Returns a snapshot.
	Create(ctx context.Context, goal string) (*types.Task, error)

	// Get returns a snapshot of the task, or a TASK_NOT_FOUND error.
	Get(ctx context.Context, id string) (*types.Task, error)

	// List returns snapshots of all tasks, newest-created first.
	List(ctx context.Context) ([]*types.Task, error)

	// Update applies mutate to the stored task under the registry lock.
	// It is a no-op if the id is absent: the only writer, the pipeline
	// runner, always holds an id obtained from this same registry, and a
	// concurrent delete must not fail the in-flight drive.
	Update(ctx context.Context, id string, mutate func(*types.Task)) error

	// Delete removes the task. Removing a task does not stop an
	// in-flight drive; cancellation is the runner's job.
	Delete(ctx context.Context, id string) error
}

// Memory is the in-memory Registry implementation. Task state lives
// only for the lifetime of the hosting process.
type Memory struct {
	mu    sync.RWMutex
	tasks map[string]*types.Task
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		tasks: make(map[string]*types.Task),
	}
}

var _ Registry = (*Memory)(nil)

// Create allocates a fresh Idle task.
func (m *Memory) Create(ctx context.Context, goal string) (*types.Task, error) {
	task := &types.Task{
		ID:        uuid.New().String(),
		Goal:      goal,
		Status:    types.StatusIdle,
		Progress:  0,
		Actions:   []types.StageRecord{},
		Thoughts:  []string{},
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task

	return task.Clone(), nil
}

// Get returns a snapshot of the task.
func (m *Memory) Get(ctx context.Context, id string) (*types.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, types.NewNotFoundError("task not found: " + id)
	}
	return task.Clone(), nil
}

// List returns snapshots of all tasks, newest-created first.
func (m *Memory) List(ctx context.Context) ([]*types.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*types.Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		result = append(result, task.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Update applies mutate under the lock; no-op if id is absent.
func (m *Memory) Update(ctx context.Context, id string, mutate func(*types.Task)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil
	}
	mutate(task)
	return nil
}

// Delete removes the task.
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return types.NewNotFoundError("task not found: " + id)
	}
	delete(m.tasks, id)
	return nil
}
