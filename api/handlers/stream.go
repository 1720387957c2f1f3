package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/lumifin/autopilot/pipeline"
	"github.com/lumifin/autopilot/registry"
	"github.com/lumifin/autopilot/types"
)

// =============================================================================
// 📡 进度流 Handler
// =============================================================================

// streamWriteTimeout bounds a single event write to a slow client.
const streamWriteTimeout = 10 * time.Second

// StreamHandler upgrades to WebSocket and relays a task's live
// transition events until the run reaches a terminal state.
type StreamHandler struct {
	registry registry.Registry
	hub      *pipeline.Hub
	logger   *zap.Logger
}

// NewStreamHandler creates a progress stream handler.
func NewStreamHandler(reg registry.Registry, hub *pipeline.Hub, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{
		registry: reg,
		hub:      hub,
		logger:   logger.With(zap.String("component", "stream_handler")),
	}
}

// HandleStream streams one task's progress events
// @Summary Stream task progress
// @Description WebSocket feed of status/progress events for one task
// @Tags task
// @Param id path string true "Task ID"
// @Success 101 "Switching protocols"
// @Failure 404 {object} Response "Task not found"
// @Router /api/v1/tasks/{id}/stream [get]
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	if taskID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "task ID is required", h.logger)
		return
	}

	task, err := h.registry.Get(r.Context(), taskID)
	if err != nil {
		WriteErrorFrom(w, err, h.logger)
		return
	}

	// Subscribe before the upgrade so no transition lands in the gap.
	events, cancel := h.hub.Subscribe(taskID)
	defer cancel()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	logger := h.logger.With(zap.String("task_id", taskID))
	logger.Debug("stream opened")

	// Send the current snapshot first so late subscribers see where the
	// run already is.
	snapshot := pipeline.Event{
		TaskID:    task.ID,
		Status:    task.Status,
		Progress:  task.Progress,
		Terminal:  task.IsTerminal(),
		Timestamp: time.Now(),
	}
	if stage := task.LastStage(); stage != "" {
		snapshot.Stage = stage
	}
	if err := h.writeEvent(r.Context(), conn, snapshot); err != nil {
		return
	}
	if snapshot.Terminal {
		conn.Close(websocket.StatusNormalClosure, "task settled")
		return
	}

	for {
		select {
		case <-r.Context().Done():
			conn.Close(websocket.StatusGoingAway, "client context done")
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "subscription closed")
				return
			}
			if err := h.writeEvent(r.Context(), conn, ev); err != nil {
				logger.Debug("stream write failed", zap.Error(err))
				return
			}
			if ev.Terminal {
				conn.Close(websocket.StatusNormalClosure, "task settled")
				return
			}
		}
	}
}

func (h *StreamHandler) writeEvent(ctx context.Context, conn *websocket.Conn, ev pipeline.Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, ev)
}
