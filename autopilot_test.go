package autopilot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumifin/autopilot/testutil/mocks"
	"github.com/lumifin/autopilot/types"
)

func TestEngineRunToCompletion(t *testing.T) {
	eng, err := New(WithInvoker(mocks.NewSuccessInvoker("final answer")))
	require.NoError(t, err)
	defer eng.Close()

	task, err := eng.Run(context.Background(), "some goal")
	require.NoError(t, err)

	assert.Equal(t, types.StatusCompleted, task.Status)
	assert.Equal(t, 100, task.Progress)
	assert.Equal(t, "final answer", task.Result)
	assert.Len(t, task.Actions, 4)
}

func TestEngineSubmitAndAwait(t *testing.T) {
	eng, err := New(WithInvoker(mocks.NewSuccessInvoker("ok")))
	require.NoError(t, err)
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	task, err := eng.Submit(ctx, "some goal")
	require.NoError(t, err)
	assert.Equal(t, types.StatusIdle, task.Status)

	settled, err := eng.Await(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, settled.Status)
}

func TestEngineEventsExposeProgress(t *testing.T) {
	eng, err := New(WithInvoker(mocks.NewSuccessInvoker("ok")))
	require.NoError(t, err)
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	task, err := eng.Registry().Create(ctx, "some goal")
	require.NoError(t, err)

	events, unsubscribe := eng.Events().Subscribe(task.ID)
	defer unsubscribe()

	require.NoError(t, eng.runner.Run(ctx, task.ID))

	sawTerminal := false
	for !sawTerminal {
		select {
		case ev := <-events:
			sawTerminal = ev.Terminal
		case <-ctx.Done():
			t.Fatal("no terminal event observed")
		}
	}
}

func TestEngineAwaitCancelled(t *testing.T) {
	eng, err := New(WithInvoker(mocks.NewSuccessInvoker("ok").WithDelay(time.Second)))
	require.NoError(t, err)
	defer eng.Close()

	task, err := eng.Submit(context.Background(), "slow goal")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = eng.Await(ctx, task.ID)
	require.Error(t, err)
	assert.Equal(t, types.ErrCancelled, types.GetErrorCode(err))

	eng.Cancel(task.ID)
}
