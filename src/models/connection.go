package models

// -----------------------------------------------------------------------------
// Connection State
// -----------------------------------------------------------------------------

// MConnectionPhase is the lifecycle phase of the push channel.
type MConnectionPhase string

const (
	PhaseDisconnected MConnectionPhase = "DISCONNECTED"
	PhaseConnecting   MConnectionPhase = "CONNECTING"
	PhaseConnected    MConnectionPhase = "CONNECTED"
)

// -----------------------------------------------------------------------------

// MConnectionState is the process-wide channel state exposed to observers.
// RetryCount is the number of reconnect attempts made since the last
// successful connect.
type MConnectionState struct {
	Phase      MConnectionPhase `json:"phase"`
	RetryCount int              `json:"retry_count"`
}
