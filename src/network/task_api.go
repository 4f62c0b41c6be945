package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"task-observer/src/helpers"
	"task-observer/src/logger"
	"task-observer/src/models"
)

// -----------------------------------------------------------------------------
// TaskAPI is the REST client for the task backend. Transport failures
// surface as FetchError, non-2xx responses as RemoteError carrying the
// server's `detail` text. No automatic retries: the reconciler owns the
// decision of what a failed call means.
// -----------------------------------------------------------------------------

type TaskAPI struct {
	BaseURL string
	Client  *http.Client
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewTaskAPI(cfg models.MAPIConfig, log *logger.Logger) *TaskAPI {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10
	}

	return &TaskAPI{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Client:  &http.Client{Timeout: time.Duration(timeout) * time.Second},
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

// ListTasks fetches the full task list.
func (a *TaskAPI) ListTasks(ctx context.Context) ([]models.MTask, error) {
	body, err := a.do(ctx, http.MethodGet, "/tasks", nil)
	if err != nil {
		return nil, err
	}

	var tasks []models.MTask
	if err := json.Unmarshal(body, &tasks); err != nil {
		return nil, helpers.NewFetchError("failed to decode task list", err)
	}
	return tasks, nil
}

// -----------------------------------------------------------------------------

// CreateTask creates a new task and returns the server-assigned record.
func (a *TaskAPI) CreateTask(ctx context.Context, name, symbol string) (models.MTask, error) {
	payload := models.MCreateTaskRequest{Name: name, Symbol: symbol}

	body, err := a.do(ctx, http.MethodPost, "/tasks", payload)
	if err != nil {
		return models.MTask{}, err
	}

	var task models.MTask
	if err := json.Unmarshal(body, &task); err != nil {
		return models.MTask{}, helpers.NewFetchError("failed to decode created task", err)
	}
	return task, nil
}

// -----------------------------------------------------------------------------

// ApplyAction starts or stops a task and returns the updated state.
func (a *TaskAPI) ApplyAction(ctx context.Context, taskID int64, action models.MTaskAction) (models.MTask, error) {
	path := fmt.Sprintf("/tasks/%d/%s", taskID, action)

	body, err := a.do(ctx, http.MethodPost, path, nil)
	if err != nil {
		return models.MTask{}, err
	}

	var task models.MTask
	if err := json.Unmarshal(body, &task); err != nil {
		return models.MTask{}, helpers.NewFetchError("failed to decode updated task", err)
	}
	return task, nil
}

// -----------------------------------------------------------------------------

// do executes one request and maps the outcome onto the error taxonomy.
func (a *TaskAPI) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, helpers.NewFetchError("failed to encode request body", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, reqBody)
	if err != nil {
		return nil, helpers.NewFetchError("failed to build request", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.Client.Do(req)
	if err != nil {
		a.Logger.Debug("%s %s transport error: %v", method, path, err)
		return nil, helpers.NewFetchError(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, helpers.NewFetchError("failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, helpers.NewRemoteError(resp.StatusCode, extractDetail(body))
	}

	return body, nil
}

// -----------------------------------------------------------------------------

// extractDetail pulls the `detail` message out of an error body. An empty
// return makes RemoteError fall back to the generic status message.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	return parsed.Detail
}
