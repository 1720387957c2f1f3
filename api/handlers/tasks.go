package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/lumifin/autopilot/internal/metrics"
	"github.com/lumifin/autopilot/pipeline"
	"github.com/lumifin/autopilot/registry"
	"github.com/lumifin/autopilot/types"
)

// =============================================================================
// Task Management Handler
// =============================================================================

// TaskHandler handles the task lifecycle endpoints: create-and-run,
// inspect, list and delete.
type TaskHandler struct {
	registry registry.Registry
	runner   *pipeline.Runner
	metrics  *metrics.Collector // optional
	logger   *zap.Logger
}

// TaskInfo is the task view returned by the API.
type TaskInfo struct {
	ID        string            `json:"id"`
	Goal      string            `json:"goal"`
	Status    types.TaskStatus  `json:"status"`
	Progress  int               `json:"progress"`
	Actions   []StageRecordInfo `json:"actions"`
	Thoughts  []string          `json:"thoughts"`
	Result    string            `json:"result,omitempty"`
	CreatedAt string            `json:"created_at"`
}

// StageRecordInfo is one completed stage in the API view.
type StageRecordInfo struct {
	Kind        types.StageKind `json:"kind"`
	Description string          `json:"description"`
	Result      string          `json:"result"`
	Timestamp   string          `json:"timestamp"`
}

// CreateTaskRequest is the create-and-run request body.
type CreateTaskRequest struct {
	Goal string `json:"goal"`
}

// NewTaskHandler creates a task handler.
func NewTaskHandler(reg registry.Registry, runner *pipeline.Runner, collector *metrics.Collector, logger *zap.Logger) *TaskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskHandler{
		registry: reg,
		runner:   runner,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "task_handler")),
	}
}

// =============================================================================
// HTTP Handlers
// =============================================================================

// HandleCreateTask creates a task and starts its run
// @Summary Create task
// @Description Create a task for the given goal and start the pipeline run
// @Tags task
// @Accept json
// @Produce json
// @Param request body CreateTaskRequest true "Task goal"
// @Success 201 {object} Response{data=TaskInfo} "Created task"
// @Failure 400 {object} Response "Invalid request"
// @Router /api/v1/tasks [post]
func (h *TaskHandler) HandleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if strings.TrimSpace(req.Goal) == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "goal is required", h.logger)
		return
	}

	task, err := h.registry.Create(r.Context(), req.Goal)
	if err != nil {
		WriteErrorFrom(w, err, h.logger)
		return
	}
	if h.metrics != nil {
		h.metrics.TaskCreated()
	}

	if err := h.runner.Start(r.Context(), task.ID); err != nil {
		WriteErrorFrom(w, err, h.logger)
		return
	}

	h.logger.Info("task created",
		zap.String("task_id", task.ID),
		zap.String("goal", task.Goal),
	)
	WriteCreated(w, toTaskInfo(task))
}

// HandleListTasks lists all tasks, newest first
// @Summary List tasks
// @Description Get all tasks ordered by creation time descending
// @Tags task
// @Produce json
// @Success 200 {object} Response{data=[]TaskInfo} "Task list"
// @Router /api/v1/tasks [get]
func (h *TaskHandler) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.registry.List(r.Context())
	if err != nil {
		WriteErrorFrom(w, err, h.logger)
		return
	}

	result := make([]TaskInfo, 0, len(tasks))
	for _, task := range tasks {
		result = append(result, toTaskInfo(task))
	}
	WriteSuccess(w, result)
}

// HandleGetTask gets one task's current snapshot
// @Summary Get task
// @Description Get the current state of one task
// @Tags task
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} Response{data=TaskInfo} "Task"
// @Failure 404 {object} Response "Task not found"
// @Router /api/v1/tasks/{id} [get]
func (h *TaskHandler) HandleGetTask(w http.ResponseWriter, r *http.Request) {
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
	WriteSuccess(w, toTaskInfo(task))
}

// HandleDeleteTask cancels any in-flight run, then removes the task
// @Summary Delete task
// @Description Cancel the task's run if still in flight and delete it
// @Tags task
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} Response "Deleted"
// @Failure 404 {object} Response "Task not found"
// @Router /api/v1/tasks/{id} [delete]
func (h *TaskHandler) HandleDeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	if taskID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "task ID is required", h.logger)
		return
	}

	h.runner.Cancel(taskID)

	if err := h.registry.Delete(r.Context(), taskID); err != nil {
		WriteErrorFrom(w, err, h.logger)
		return
	}

	h.logger.Info("task deleted", zap.String("task_id", taskID))
	WriteSuccess(w, map[string]string{"id": taskID})
}

// =============================================================================
// View Conversion
// =============================================================================

func toTaskInfo(task *types.Task) TaskInfo {
	actions := make([]StageRecordInfo, 0, len(task.Actions))
	for _, record := range task.Actions {
		actions = append(actions, StageRecordInfo{
			Kind:        record.Kind,
			Description: record.Description,
			Result:      record.Result,
			Timestamp:   record.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}

	thoughts := task.Thoughts
	if thoughts == nil {
		thoughts = []string{}
	}

	return TaskInfo{
		ID:        task.ID,
		Goal:      task.Goal,
		Status:    task.Status,
		Progress:  task.Progress,
		Actions:   actions,
		Thoughts:  thoughts,
		Result:    task.Result,
		CreatedAt: task.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}
