package interfaces

import (
	"encoding/json"

	"task-observer/src/models"
)

// -----------------------------------------------------------------------------
// IConnection is the read/send access dependents get to the shared push
// channel. Only the owning Connection Manager may connect or disconnect;
// subscription managers use Send and the observer hooks exclusively.
// -----------------------------------------------------------------------------

type IConnection interface {

	// State returns the current connection phase and retry count.
	State() models.MConnectionState

	// -----------------------------------------------------------------------------

	// Send emits one event on the channel. Fire-and-forget: when the
	// channel is not connected the message is logged and dropped, never
	// queued. Callers must not assume delivery across reconnects.
	Send(event string, payload interface{})

	// -----------------------------------------------------------------------------

	// OnEvent registers a handler for a named server event. The returned
	// function unregisters it; every registration must be paired with a
	// deterministic unregister to avoid listener accumulation.
	OnEvent(event string, fn func(data json.RawMessage)) (off func())

	// -----------------------------------------------------------------------------

	// OnStateChange registers a phase-transition observer. State changes
	// are the only way dependents learn of transitions; there is no
	// polling. The returned function unregisters the observer.
	OnStateChange(fn func(state models.MConnectionState)) (off func())
}
