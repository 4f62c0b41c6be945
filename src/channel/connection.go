package channel

import (
	"encoding/json"
	"sync"
	"time"

	"task-observer/src/helpers"
	"task-observer/src/logger"
	"task-observer/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Connection owns the single push channel for the whole process. It is
// created once at startup and torn down at shutdown; dependents only ever
// see it through interfaces.IConnection. Reconnection and backoff live
// here and nowhere else.
// -----------------------------------------------------------------------------

type Connection struct {
	cfg    models.MChannelConfig
	Logger *logger.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	phase      models.MConnectionPhase
	retryCount int
	manual     bool  // Disconnect() was requested; suppresses retries
	generation int   // bumped on every (re)connect to invalidate old pumps
	dialGen    int   // bumped on every dial cycle to invalidate old dial loops
	lastErr    error // most recent connect failure, nil while connected

	handlers  map[string]map[int]func(json.RawMessage)
	stateObs  map[int]func(models.MConnectionState)
	nextObsID int

	send chan models.MChannelMessage
}

// -----------------------------------------------------------------------------

func NewConnection(cfg models.MChannelConfig, l *logger.Logger) *Connection {
	if cfg.ReconnectAttempts <= 0 {
		cfg.ReconnectAttempts = 5
	}
	if cfg.ReconnectDelaySec <= 0 {
		cfg.ReconnectDelaySec = 2
	}

	return &Connection{
		cfg:      cfg,
		Logger:   l,
		phase:    models.PhaseDisconnected,
		handlers: make(map[string]map[int]func(json.RawMessage)),
		stateObs: make(map[int]func(models.MConnectionState)),
	}
}

// -----------------------------------------------------------------------------

// State returns the current connection phase and retry count.
func (c *Connection) State() models.MConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.MConnectionState{Phase: c.phase, RetryCount: c.retryCount}
}

// -----------------------------------------------------------------------------

// LastError returns the most recent connect failure as a ChannelError,
// or nil while connected. Connect failures never propagate into
// application code paths; callers observing a DISCONNECTED phase may
// consult this for the reason.
func (c *Connection) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// -----------------------------------------------------------------------------

// Connect initiates the transport handshake. No-op when already
// connecting or connected. Does not block: completion is observed via a
// state-change notification, never a return value.
func (c *Connection) Connect() {
	c.mu.Lock()
	if c.phase != models.PhaseDisconnected {
		c.mu.Unlock()
		return
	}
	c.phase = models.PhaseConnecting
	c.retryCount = 0
	c.manual = false
	c.dialGen++
	gen := c.dialGen
	c.mu.Unlock()

	c.notifyStateChange()
	go c.dialLoop(gen)
}

// -----------------------------------------------------------------------------

// Disconnect closes the transport. Idempotent; no-op when already
// disconnected. Also cancels any in-flight retry cycle.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	if c.phase == models.PhaseDisconnected {
		c.mu.Unlock()
		return
	}
	c.manual = true
	conn := c.conn
	c.conn = nil
	c.phase = models.PhaseDisconnected
	c.generation++
	c.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
	}
	c.notifyStateChange()
}

// -----------------------------------------------------------------------------

// Send emits one event. The channel has no outbound queue: when not
// connected the message is logged and dropped.
func (c *Connection) Send(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.Logger.Error("Failed to marshal %s payload: %v", event, err)
		return
	}

	c.mu.Lock()
	connected := c.phase == models.PhaseConnected
	sendCh := c.send
	c.mu.Unlock()

	if !connected || sendCh == nil {
		c.Logger.Warning("Dropping %s: channel not connected", event)
		return
	}

	msg := models.MChannelMessage{Event: event, Data: data}
	select {
	case sendCh <- msg:
	default:
		// Writer stalled; dropping keeps callers from blocking
		c.Logger.Warning("Dropping %s: send queue full", event)
	}
}

// -----------------------------------------------------------------------------
// Observer registration
// -----------------------------------------------------------------------------

// OnEvent registers a handler for a named server event and returns the
// matching unregister function.
func (c *Connection) OnEvent(event string, fn func(data json.RawMessage)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handlers[event] == nil {
		c.handlers[event] = make(map[int]func(json.RawMessage))
	}
	id := c.nextObsID
	c.nextObsID++
	c.handlers[event][id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[event], id)
	}
}

// -----------------------------------------------------------------------------

// OnStateChange registers a phase observer and returns the matching
// unregister function.
func (c *Connection) OnStateChange(fn func(state models.MConnectionState)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextObsID
	c.nextObsID++
	c.stateObs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.stateObs, id)
	}
}

// -----------------------------------------------------------------------------

// Shutdown tears the channel down for good: all listeners detached, the
// transport closed if still open.
func (c *Connection) Shutdown() {
	c.Disconnect()

	c.mu.Lock()
	c.handlers = make(map[string]map[int]func(json.RawMessage))
	c.stateObs = make(map[int]func(models.MConnectionState))
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

func (c *Connection) notifyStateChange() {
	c.mu.Lock()
	state := models.MConnectionState{Phase: c.phase, RetryCount: c.retryCount}
	obs := make([]func(models.MConnectionState), 0, len(c.stateObs))
	for _, fn := range c.stateObs {
		obs = append(obs, fn)
	}
	c.mu.Unlock()

	for _, fn := range obs {
		fn(state)
	}
}

// -----------------------------------------------------------------------------

func (c *Connection) dispatch(event string, data json.RawMessage) {
	c.mu.Lock()
	fns := make([]func(json.RawMessage), 0, len(c.handlers[event]))
	for _, fn := range c.handlers[event] {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	if len(fns) == 0 {
		c.Logger.Debug("No handler for event %s", event)
		return
	}
	for _, fn := range fns {
		fn(data)
	}
}

// -----------------------------------------------------------------------------

// dialLoop performs the handshake with bounded retries and a fixed
// inter-attempt delay. Exhausting the attempts leaves the channel in a
// terminal DISCONNECTED phase requiring a manual Connect().
//
// myGen identifies this dial cycle. A Disconnect()/Connect() pair while
// the loop sleeps or dials starts a newer cycle; the stale loop must
// never install its transport or two live connections would exist for
// the one logical channel.
func (c *Connection) dialLoop(myGen int) {
	delay := time.Duration(c.cfg.ReconnectDelaySec) * time.Second

	for attempt := 0; attempt <= c.cfg.ReconnectAttempts; attempt++ {
		c.mu.Lock()
		if c.stale(myGen) {
			c.mu.Unlock()
			return
		}
		c.retryCount = attempt
		c.mu.Unlock()

		if attempt > 0 {
			c.Logger.Info("Reconnect attempt %d/%d to %s", attempt, c.cfg.ReconnectAttempts, c.cfg.URL)
			c.notifyStateChange()
			time.Sleep(delay)

			c.mu.Lock()
			aborted := c.stale(myGen)
			c.mu.Unlock()
			if aborted {
				return
			}
		}

		conn, _, err := websocket.DefaultDialer.Dial(c.cfg.URL, nil)
		if err != nil {
			c.mu.Lock()
			if !c.stale(myGen) {
				c.lastErr = helpers.NewChannelError("channel connect failed", err)
			}
			c.mu.Unlock()
			c.Logger.Warning("Channel connect failed: %v", err)
			continue
		}

		c.mu.Lock()
		if c.stale(myGen) {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		c.phase = models.PhaseConnected
		c.retryCount = 0
		c.lastErr = nil
		c.generation++
		gen := c.generation
		c.send = make(chan models.MChannelMessage, 256)
		sendCh := c.send
		c.mu.Unlock()

		c.Logger.Info("Channel connected to %s", c.cfg.URL)
		c.notifyStateChange()

		go c.writePump(conn, sendCh)
		go c.readPump(conn, gen)
		return
	}

	// Attempts exhausted: terminal until a manual Connect()
	c.mu.Lock()
	if c.stale(myGen) {
		c.mu.Unlock()
		return
	}
	c.phase = models.PhaseDisconnected
	c.mu.Unlock()
	c.Logger.Error("Channel reconnect attempts exhausted (%d)", c.cfg.ReconnectAttempts)
	c.notifyStateChange()
}

// stale reports whether the dial cycle identified by myGen has been
// superseded or cancelled. Caller holds c.mu.
func (c *Connection) stale(myGen int) bool {
	return c.manual || c.phase != models.PhaseConnecting || c.dialGen != myGen
}

// -----------------------------------------------------------------------------

// lost handles an unexpected transport drop observed by the read pump.
func (c *Connection) lost(gen int) {
	c.mu.Lock()
	if c.generation != gen || c.manual {
		// A newer connection took over, or the owner already disconnected
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.send = nil
	c.phase = models.PhaseConnecting
	c.generation++
	c.dialGen++
	dialGen := c.dialGen
	c.retryCount = 0
	c.mu.Unlock()

	c.Logger.Warning("Channel connection lost, reconnecting")
	c.notifyStateChange()
	go c.dialLoop(dialGen)
}
