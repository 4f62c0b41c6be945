package models

import "encoding/json"

// -----------------------------------------------------------------------------
// Push Channel Wire Format
// -----------------------------------------------------------------------------

// Channel event names. Client-to-server events carry an MRoomRequest,
// quote_update carries an MQuoteSample.
const (
	EventJoinTaskRoom  = "join_task_room"
	EventLeaveTaskRoom = "leave_task_room"
	EventQuoteUpdate   = "quote_update"
)

// -----------------------------------------------------------------------------

// MChannelMessage is the JSON envelope for every message on the push channel.
type MChannelMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// -----------------------------------------------------------------------------

// MRoomRequest is the payload of join_task_room / leave_task_room.
type MRoomRequest struct {
	TaskID int64 `json:"task_id"`
}

// -----------------------------------------------------------------------------

// MQuoteSample is one pushed tick for one task. Price and volume fields are
// pointers: the upstream feed omits them when it has nothing for that field.
type MQuoteSample struct {
	TaskID    int64    `json:"task_id"`
	Symbol    string   `json:"symbol"`
	LastPrice *float64 `json:"last_price,omitempty"`
	AskPrice1 *float64 `json:"ask_price1,omitempty"`
	BidPrice1 *float64 `json:"bid_price1,omitempty"`
	Volume    *float64 `json:"volume,omitempty"`
	Datetime  string   `json:"datetime"`
}

// -----------------------------------------------------------------------------

// MChartPoint is one rendered point of a task's price series.
type MChartPoint struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
}
