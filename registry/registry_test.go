package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumifin/autopilot/types"
)

func TestCreate(t *testing.T) {
	reg := NewMemory()
	ctx := context.Background()

	task, err := reg.Create(ctx, "Research renewable energy trends")
	require.NoError(t, err)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "Research renewable energy trends", task.Goal)
	assert.Equal(t, types.StatusIdle, task.Status)
	assert.Equal(t, 0, task.Progress)
	assert.Empty(t, task.Actions)
	assert.Empty(t, task.Thoughts)
	assert.False(t, task.CreatedAt.IsZero())
}

func TestCreateUniqueIDs(t *testing.T) {
	reg := NewMemory()
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		task, err := reg.Create(ctx, "goal")
		require.NoError(t, err)
		assert.False(t, seen[task.ID], "duplicate id %s", task.ID)
		seen[task.ID] = true
	}
}

func TestGetNotFound(t *testing.T) {
	reg := NewMemory()

	_, err := reg.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, types.ErrTaskNotFound, types.GetErrorCode(err))
}

func TestGetReturnsSnapshot(t *testing.T) {
	reg := NewMemory()
	ctx := context.Background()

	task, err := reg.Create(ctx, "goal")
	require.NoError(t, err)

	snap, err := reg.Get(ctx, task.ID)
	require.NoError(t, err)

	// Mutating the snapshot must not affect the stored record.
	snap.Status = types.StatusCompleted
	snap.Thoughts = append(snap.Thoughts, "rogue write")

	fresh, err := reg.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusIdle, fresh.Status)
	assert.Empty(t, fresh.Thoughts)
}

func TestListNewestFirst(t *testing.T) {
	reg := NewMemory()
	ctx := context.Background()

	first, err := reg.Create(ctx, "first")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := reg.Create(ctx, "second")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	third, err := reg.Create(ctx, "third")
	require.NoError(t, err)

	tasks, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, third.ID, tasks[0].ID)
	assert.Equal(t, second.ID, tasks[1].ID)
	assert.Equal(t, first.ID, tasks[2].ID)
}

func TestUpdate(t *testing.T) {
	reg := NewMemory()
	ctx := context.Background()

	task, err := reg.Create(ctx, "goal")
	require.NoError(t, err)

	err = reg.Update(ctx, task.ID, func(t *types.Task) {
		t.Status = types.StatusPlanning
		t.Progress = 10
		t.Thoughts = append(t.Thoughts, "starting plan")
	})
	require.NoError(t, err)

	got, err := reg.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPlanning, got.Status)
	assert.Equal(t, 10, got.Progress)
	assert.Equal(t, []string{"starting plan"}, got.Thoughts)
}

func TestUpdateAbsentIsNoop(t *testing.T) {
	reg := NewMemory()

	called := false
	err := reg.Update(context.Background(), "missing", func(t *types.Task) { called = true })
	require.NoError(t, err)
	assert.False(t, called)
}

func TestDelete(t *testing.T) {
	reg := NewMemory()
	ctx := context.Background()

	task, err := reg.Create(ctx, "goal")
	require.NoError(t, err)

	require.NoError(t, reg.Delete(ctx, task.ID))

	_, err = reg.Get(ctx, task.ID)
	assert.Equal(t, types.ErrTaskNotFound, types.GetErrorCode(err))

	err = reg.Delete(ctx, task.ID)
	assert.Equal(t, types.ErrTaskNotFound, types.GetErrorCode(err))
}

func TestConcurrentAccess(t *testing.T) {
	reg := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := reg.Create(ctx, "goal")
			if err != nil {
				t.Error(err)
				return
			}
			for j := 0; j < 50; j++ {
				reg.Update(ctx, task.ID, func(t *types.Task) {
					t.Thoughts = append(t.Thoughts, "note")
				})
				reg.Get(ctx, task.ID)
				reg.List(ctx)
			}
		}()
	}
	wg.Wait()

	tasks, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 16)
	for _, task := range tasks {
		assert.Len(t, task.Thoughts, 50)
	}
}
