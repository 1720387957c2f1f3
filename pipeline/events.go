package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumifin/autopilot/types"
)

// Event is the live progress/status signal emitted on every task
// transition. Exactly one event per run carries Terminal=true.
type Event struct {
	TaskID    string           `json:"task_id"`
	Status    types.TaskStatus `json:"status"`
	Progress  int              `json:"progress"`
	Stage     types.StageKind  `json:"stage,omitempty"`
	Message   string           `json:"message,omitempty"`
	Terminal  bool             `json:"terminal"`
	Timestamp time.Time        `json:"timestamp"`
}

// subscriptionCounter 用于生成唯一订阅 ID
var subscriptionCounter int64

// Hub fans task events out to per-task subscribers. Publishing never
// blocks: a subscriber that stops draining loses events, it does not
// stall the drive.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[int64]chan Event // task id -> subscription id -> channel
}

// NewHub creates an empty event hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[int64]chan Event),
	}
}

// Subscribe registers interest in one task's events. The returned
// cancel function must be called to release the subscription; the
// channel is closed on cancel.
func (h *Hub) Subscribe(taskID string) (<-chan Event, func()) {
	ch := make(chan Event, 16)
	id := atomic.AddInt64(&subscriptionCounter, 1)

	h.mu.Lock()
	if h.subs[taskID] == nil {
		h.subs[taskID] = make(map[int64]chan Event)
	}
	h.subs[taskID][id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[taskID], id)
			if len(h.subs[taskID]) == 0 {
				delete(h.subs, taskID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers the event to all subscribers of its task.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[ev.TaskID] {
		select {
		case ch <- ev:
		default:
			// 订阅者未及时消费，丢弃事件
		}
	}
}
