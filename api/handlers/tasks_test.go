package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lumifin/autopilot/pipeline"
	"github.com/lumifin/autopilot/registry"
	"github.com/lumifin/autopilot/testutil/mocks"
	"github.com/lumifin/autopilot/types"
)

func newTaskTestServer(t *testing.T, invoker *mocks.MockInvoker) (*httptest.Server, registry.Registry, *pipeline.Runner) {
	t.Helper()

	reg := registry.NewMemory()
	runner := pipeline.NewRunner(reg, invoker, pipeline.Config{}, zap.NewNop())

	mux := http.NewServeMux()
	handler := NewTaskHandler(reg, runner, nil, zap.NewNop())
	mux.HandleFunc("POST /api/v1/tasks", handler.HandleCreateTask)
	mux.HandleFunc("GET /api/v1/tasks", handler.HandleListTasks)
	mux.HandleFunc("GET /api/v1/tasks/{id}", handler.HandleGetTask)
	mux.HandleFunc("DELETE /api/v1/tasks/{id}", handler.HandleDeleteTask)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(runner.Wait)
	return srv, reg, runner
}

func decodeResponse(t *testing.T, resp *http.Response) Response {
	t.Helper()
	defer resp.Body.Close()

	var envelope Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope
}

func dataAs(t *testing.T, envelope Response, dst interface{}) {
	t.Helper()
	raw, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dst))
}

func TestCreateTaskStartsRun(t *testing.T) {
	srv, reg, _ := newTaskTestServer(t, mocks.NewSuccessInvoker("done"))

	body := bytes.NewBufferString(`{"goal":"summarize the quarterly report"}`)
	resp, err := http.Post(srv.URL+"/api/v1/tasks", "application/json", body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	envelope := decodeResponse(t, resp)
	require.True(t, envelope.Success)

	var info TaskInfo
	dataAs(t, envelope, &info)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "summarize the quarterly report", info.Goal)

	// The run proceeds in the background and settles.
	require.Eventually(t, func() bool {
		task, err := reg.Get(t.Context(), info.ID)
		return err == nil && task.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)

	task, err := reg.Get(t.Context(), info.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, task.Status)
	assert.Equal(t, "done", task.Result)
}

func TestCreateTaskRejectsMissingGoal(t *testing.T) {
	srv, _, _ := newTaskTestServer(t, mocks.NewSuccessInvoker("ok"))

	for _, body := range []string{`{}`, `{"goal":"   "}`, `not json`} {
		resp, err := http.Post(srv.URL+"/api/v1/tasks", "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)

		envelope := decodeResponse(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body %q", body)
		assert.False(t, envelope.Success)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, string(types.ErrInvalidRequest), envelope.Error.Code)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	srv, _, _ := newTaskTestServer(t, mocks.NewSuccessInvoker("ok"))

	resp, err := http.Get(srv.URL + "/api/v1/tasks/does-not-exist")
	require.NoError(t, err)

	envelope := decodeResponse(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, string(types.ErrTaskNotFound), envelope.Error.Code)
}

func TestGetTaskReturnsSnapshot(t *testing.T) {
	srv, reg, runner := newTaskTestServer(t, mocks.NewSuccessInvoker("output"))

	task, err := reg.Create(t.Context(), "a goal")
	require.NoError(t, err)
	require.NoError(t, runner.Run(t.Context(), task.ID))

	resp, err := http.Get(srv.URL + "/api/v1/tasks/" + task.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info TaskInfo
	dataAs(t, decodeResponse(t, resp), &info)
	assert.Equal(t, types.StatusCompleted, info.Status)
	assert.Equal(t, 100, info.Progress)
	assert.Len(t, info.Actions, 4)
	assert.Equal(t, "output", info.Result)
}

func TestListTasksNewestFirst(t *testing.T) {
	srv, reg, _ := newTaskTestServer(t, mocks.NewSuccessInvoker("ok"))

	first, err := reg.Create(t.Context(), "first goal")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := reg.Create(t.Context(), "second goal")
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/v1/tasks")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var infos []TaskInfo
	dataAs(t, decodeResponse(t, resp), &infos)
	require.Len(t, infos, 2)
	assert.Equal(t, second.ID, infos[0].ID)
	assert.Equal(t, first.ID, infos[1].ID)
}

func TestDeleteTaskRemovesIt(t *testing.T) {
	srv, reg, _ := newTaskTestServer(t, mocks.NewSuccessInvoker("ok"))

	task, err := reg.Create(t.Context(), "a goal")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/tasks/"+task.ID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	_, err = reg.Get(t.Context(), task.ID)
	require.Error(t, err)
	assert.Equal(t, types.ErrTaskNotFound, types.GetErrorCode(err))

	// Deleting again reports not found.
	req, err = http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/tasks/"+task.ID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
