package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"task-observer/src/logger"
	"task-observer/src/models"
	"task-observer/src/storage"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------

func newTestServer(t *testing.T) (*SimServer, *httptest.Server) {
	t.Helper()

	cfg := &models.MConfig{LogLevel: "ERROR"}
	cfg.Sim.Storage.DBType = "sqlite"
	cfg.Sim.Storage.DBPath = filepath.Join(t.TempDir(), "sim.db")

	l := logger.NewLogger("ERROR", "test")
	store, err := storage.NewSQLiteTaskStore(cfg, l)
	if err != nil {
		t.Fatalf("NewSQLiteTaskStore: %v", err)
	}
	if err := store.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := NewSimServer(cfg, store, l)
	srv.Run()

	ts := httptest.NewServer(srv.Engine())
	t.Cleanup(ts.Close)

	return srv, ts
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeDetail(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()

	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	return body.Detail
}

func decodeTask(t *testing.T, resp *http.Response) models.MTask {
	t.Helper()
	defer resp.Body.Close()

	var task models.MTask
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	return task
}

// -----------------------------------------------------------------------------

func TestCreateTaskValidation(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/tasks", models.MCreateTaskRequest{Name: "momentum"})
	if resp.StatusCode != 422 {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if detail := decodeDetail(t, resp); detail != "symbol is required" {
		t.Errorf("unexpected detail %q", detail)
	}
}

func TestTaskLifecycleOverREST(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/tasks", models.MCreateTaskRequest{Name: "momentum", Symbol: "AAPL"})
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	created := decodeTask(t, resp)
	if created.Status != models.TaskPending {
		t.Fatalf("expected PENDING, got %s", created.Status)
	}

	// Start
	resp = postJSON(t, fmt.Sprintf("%s/tasks/%d/start", ts.URL, created.ID), nil)
	if resp.StatusCode != 200 {
		t.Fatalf("start: expected 200, got %d", resp.StatusCode)
	}
	if task := decodeTask(t, resp); task.Status != models.TaskRunning {
		t.Fatalf("expected RUNNING, got %s", task.Status)
	}

	// Starting again conflicts
	resp = postJSON(t, fmt.Sprintf("%s/tasks/%d/start", ts.URL, created.ID), nil)
	if resp.StatusCode != 409 {
		t.Fatalf("double start: expected 409, got %d", resp.StatusCode)
	}
	if detail := decodeDetail(t, resp); detail != "task is already running" {
		t.Errorf("unexpected detail %q", detail)
	}

	// Stop
	resp = postJSON(t, fmt.Sprintf("%s/tasks/%d/stop", ts.URL, created.ID), nil)
	if resp.StatusCode != 200 {
		t.Fatalf("stop: expected 200, got %d", resp.StatusCode)
	}

	// Stopping a stopped task conflicts
	resp = postJSON(t, fmt.Sprintf("%s/tasks/%d/stop", ts.URL, created.ID), nil)
	if resp.StatusCode != 409 {
		t.Fatalf("double stop: expected 409, got %d", resp.StatusCode)
	}
}

func TestUnknownTaskReturns404(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/tasks/999/start", nil)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if detail := decodeDetail(t, resp); detail != "task not found" {
		t.Errorf("unexpected detail %q", detail)
	}
}

// -----------------------------------------------------------------------------

func TestQuoteFanOutRespectsRooms(t *testing.T) {
	srv, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	join, _ := json.Marshal(models.MRoomRequest{TaskID: 1})
	if err := conn.WriteJSON(models.MChannelMessage{Event: models.EventJoinTaskRoom, Data: join}); err != nil {
		t.Fatalf("join: %v", err)
	}

	// Room membership is applied by the read pump; give it a moment
	time.Sleep(100 * time.Millisecond)

	price := 101.25
	srv.PublishQuote(models.MQuoteSample{TaskID: 2, Symbol: "MSFT", LastPrice: &price, Datetime: "2026-01-05 10:00:00"})
	srv.PublishQuote(models.MQuoteSample{TaskID: 1, Symbol: "AAPL", LastPrice: &price, Datetime: "2026-01-05 10:00:00"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg models.MChannelMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Event != models.EventQuoteUpdate {
		t.Fatalf("expected quote_update, got %q", msg.Event)
	}

	var sample models.MQuoteSample
	if err := json.Unmarshal(msg.Data, &sample); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	// The task 2 quote must never reach this client
	if sample.TaskID != 1 {
		t.Fatalf("received quote for unjoined task %d", sample.TaskID)
	}
}
