package channel

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"task-observer/src/helpers"
	"task-observer/src/logger"
	"task-observer/src/models"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsTestServer accepts channel connections and records every message the
// client sends. Server-side conns are exposed so tests can push events or
// kill the transport.
type wsTestServer struct {
	srv      *httptest.Server
	incoming chan models.MChannelMessage
	conns    chan *websocket.Conn
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()
	ts := &wsTestServer{
		incoming: make(chan models.MChannelMessage, 64),
		conns:    make(chan *websocket.Conn, 8),
	}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.conns <- conn
		for {
			var msg models.MChannelMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			ts.incoming <- msg
		}
	}))
	return ts
}

func (ts *wsTestServer) url() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http")
}

func (ts *wsTestServer) close() {
	ts.srv.Close()
}

func newTestConnection(url string) *Connection {
	return NewConnection(models.MChannelConfig{
		URL:               url,
		ReconnectAttempts: 3,
		ReconnectDelaySec: 1,
	}, logger.NewLogger("INFO", "channel-test"))
}

func waitForPhase(t *testing.T, c *Connection, phase models.MConnectionPhase) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c.State().Phase == phase {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for phase %s, current %s", phase, c.State().Phase)
}

// -----------------------------------------------------------------------------

func TestConnectTransitionsToConnected(t *testing.T) {
	ts := newWSTestServer(t)
	defer ts.close()

	c := newTestConnection(ts.url())
	defer c.Shutdown()

	var mu sync.Mutex
	var phases []models.MConnectionPhase
	off := c.OnStateChange(func(s models.MConnectionState) {
		mu.Lock()
		phases = append(phases, s.Phase)
		mu.Unlock()
	})
	defer off()

	c.Connect()
	waitForPhase(t, c, models.PhaseConnected)

	mu.Lock()
	defer mu.Unlock()
	if len(phases) < 2 || phases[0] != models.PhaseConnecting {
		t.Errorf("expected CONNECTING then CONNECTED notifications, got %v", phases)
	}
	if phases[len(phases)-1] != models.PhaseConnected {
		t.Errorf("expected final phase CONNECTED, got %v", phases)
	}
}

func TestConnectIsNoOpWhenAlreadyConnected(t *testing.T) {
	ts := newWSTestServer(t)
	defer ts.close()

	c := newTestConnection(ts.url())
	defer c.Shutdown()

	c.Connect()
	waitForPhase(t, c, models.PhaseConnected)
	<-ts.conns // drain the first transport

	c.Connect() // must not reset the connection
	time.Sleep(50 * time.Millisecond)

	if got := c.State().Phase; got != models.PhaseConnected {
		t.Errorf("expected CONNECTED after redundant Connect, got %s", got)
	}

	select {
	case <-ts.conns:
		t.Error("redundant Connect opened a second transport")
	default:
	}
}

func TestSendWhileDisconnectedDropsSilently(t *testing.T) {
	c := newTestConnection("ws://127.0.0.1:1/ws")
	// Must not panic or block
	c.Send(models.EventJoinTaskRoom, models.MRoomRequest{TaskID: 1})

	if got := c.State().Phase; got != models.PhaseDisconnected {
		t.Errorf("expected DISCONNECTED, got %s", got)
	}
}

func TestSendDeliversEvent(t *testing.T) {
	ts := newWSTestServer(t)
	defer ts.close()

	c := newTestConnection(ts.url())
	defer c.Shutdown()

	c.Connect()
	waitForPhase(t, c, models.PhaseConnected)

	c.Send(models.EventJoinTaskRoom, models.MRoomRequest{TaskID: 42})

	select {
	case msg := <-ts.incoming:
		if msg.Event != models.EventJoinTaskRoom {
			t.Errorf("expected %s, got %s", models.EventJoinTaskRoom, msg.Event)
		}
		var req models.MRoomRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		if req.TaskID != 42 {
			t.Errorf("expected task_id 42, got %d", req.TaskID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server never received the join event")
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	ts := newWSTestServer(t)
	defer ts.close()

	c := newTestConnection(ts.url())
	c.Connect()
	waitForPhase(t, c, models.PhaseConnected)

	c.Disconnect()
	c.Disconnect()

	if got := c.State().Phase; got != models.PhaseDisconnected {
		t.Errorf("expected DISCONNECTED, got %s", got)
	}
}

func TestEventDispatchAndUnsubscribe(t *testing.T) {
	ts := newWSTestServer(t)
	defer ts.close()

	c := newTestConnection(ts.url())
	defer c.Shutdown()

	received := make(chan models.MQuoteSample, 8)
	off := c.OnEvent(models.EventQuoteUpdate, func(data json.RawMessage) {
		var s models.MQuoteSample
		if err := json.Unmarshal(data, &s); err == nil {
			received <- s
		}
	})

	c.Connect()
	waitForPhase(t, c, models.PhaseConnected)
	serverConn := <-ts.conns

	price := 100.5
	push := models.MChannelMessage{Event: models.EventQuoteUpdate}
	push.Data, _ = json.Marshal(models.MQuoteSample{TaskID: 1, LastPrice: &price, Datetime: "2026-01-05T10:00:00Z"})
	if err := serverConn.WriteJSON(push); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	select {
	case s := <-received:
		if s.TaskID != 1 || *s.LastPrice != 100.5 {
			t.Errorf("unexpected sample %+v", s)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("handler never received the pushed quote")
	}

	// After unsubscribe nothing more is delivered
	off()
	if err := serverConn.WriteJSON(push); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	select {
	case <-received:
		t.Error("handler invoked after unsubscribe")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestReconnectAfterServerDrop(t *testing.T) {
	ts := newWSTestServer(t)
	defer ts.close()

	c := newTestConnection(ts.url())
	defer c.Shutdown()

	c.Connect()
	waitForPhase(t, c, models.PhaseConnected)
	serverConn := <-ts.conns

	// Unilateral server-side drop
	serverConn.Close()

	// The transport retries on its own and lands back in CONNECTED
	waitForPhase(t, c, models.PhaseConnected)

	select {
	case <-ts.conns:
		// second transport established
	case <-time.After(3 * time.Second):
		t.Fatal("no reconnect observed on the server")
	}
}

func TestStaleDialLoopNeverInstallsTransport(t *testing.T) {
	ts := newWSTestServer(t)
	defer ts.close()

	c := newTestConnection(ts.url())
	defer c.Shutdown()

	// An abandoned retry cycle waking up mid-handshake of a newer one:
	// the connection is dialing (gen 2) while a loop from a superseded
	// cycle (gen 1) is still alive. The stale loop must exit without
	// dialing, no matter what phase flags it observes.
	c.mu.Lock()
	c.phase = models.PhaseConnecting
	c.dialGen = 2
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.dialLoop(1)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stale dial loop did not exit")
	}

	select {
	case <-ts.conns:
		t.Fatal("stale dial loop opened a transport")
	case <-time.After(200 * time.Millisecond):
	}

	if got := c.State().Phase; got != models.PhaseConnecting {
		t.Errorf("stale dial loop mutated phase to %s", got)
	}
}

func TestSendLiveAfterCancelledReconnectCycle(t *testing.T) {
	ts := newWSTestServer(t)
	defer ts.close()

	c := newTestConnection(ts.url())
	defer c.Shutdown()

	c.Connect()
	waitForPhase(t, c, models.PhaseConnected)
	serverConn := <-ts.conns

	// Server drop starts an automatic reconnect cycle; the owner cancels
	// it and reconnects by hand before it settles
	serverConn.Close()
	c.Disconnect()
	c.Connect()
	waitForPhase(t, c, models.PhaseConnected)

	// Past the cancelled cycle's retry delay, the installed transport is
	// the one Send uses: a join must still reach the server
	time.Sleep(1500 * time.Millisecond)
	if got := c.State().Phase; got != models.PhaseConnected {
		t.Fatalf("expected CONNECTED, got %s", got)
	}

	c.Send(models.EventJoinTaskRoom, models.MRoomRequest{TaskID: 7})
	select {
	case msg := <-ts.incoming:
		if msg.Event != models.EventJoinTaskRoom {
			t.Errorf("expected %s, got %s", models.EventJoinTaskRoom, msg.Event)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("send after reconnect never reached the server")
	}
}

func TestRetriesExhaustedEndsDisconnected(t *testing.T) {
	c := newTestConnection("ws://127.0.0.1:1/ws")
	c.Connect()

	// 3 retries with 1s fixed delay plus the immediate attempt
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if c.State().Phase == models.PhaseDisconnected {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("expected terminal DISCONNECTED, got %s", c.State().Phase)
}

func TestConnectFailureRecordsChannelError(t *testing.T) {
	ts := newWSTestServer(t)
	defer ts.close()

	c := newTestConnection("ws://127.0.0.1:1/ws")
	c.Connect()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.LastError() != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if !helpers.IsChannel(c.LastError()) {
		t.Fatalf("expected a ChannelError after a failed dial, got %v", c.LastError())
	}

	// A successful connect clears the recorded failure
	good := newTestConnection(ts.url())
	defer good.Shutdown()
	good.Connect()
	waitForPhase(t, good, models.PhaseConnected)
	if err := good.LastError(); err != nil {
		t.Errorf("expected no error while connected, got %v", err)
	}
}
