package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumifin/autopilot/types"
)

func TestHubDeliversToTaskSubscribers(t *testing.T) {
	hub := NewHub()

	ch, cancel := hub.Subscribe("task-1")
	defer cancel()
	other, otherCancel := hub.Subscribe("task-2")
	defer otherCancel()

	hub.Publish(Event{TaskID: "task-1", Status: types.StatusPlanning, Progress: 10})

	select {
	case ev := <-ch:
		assert.Equal(t, "task-1", ev.TaskID)
		assert.Equal(t, 10, ev.Progress)
	case <-time.After(time.Second):
		t.Fatal("subscriber received nothing")
	}

	select {
	case ev := <-other:
		t.Fatalf("unrelated subscriber received %+v", ev)
	default:
	}
}

func TestHubCancelClosesChannel(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("task-1")

	cancel()
	cancel() // idempotent

	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel must not panic or deliver.
	hub.Publish(Event{TaskID: "task-1"})
}

func TestHubPublishNeverBlocks(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe("task-1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Far more events than the subscription buffer holds; the
		// slow subscriber loses events instead of stalling publishers.
		for i := 0; i < 100; i++ {
			hub.Publish(Event{TaskID: "task-1", Progress: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestHubFanOut(t *testing.T) {
	hub := NewHub()

	const subs = 3
	chans := make([]<-chan Event, subs)
	for i := 0; i < subs; i++ {
		ch, cancel := hub.Subscribe("task-1")
		defer cancel()
		chans[i] = ch
	}

	hub.Publish(Event{TaskID: "task-1", Terminal: true})

	for i, ch := range chans {
		select {
		case ev := <-ch:
			require.True(t, ev.Terminal, "subscriber %d", i)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}
