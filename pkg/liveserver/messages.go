package liveserver

// Message represents an outbound WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Outbound message types
const (
	TypeSnapshot     = "snapshot"
	TypeError        = "error"
	TypeErrorCleared = "error_cleared"
)

// NewMessage creates a Message
func NewMessage(msgType string, data interface{}) Message {
	return Message{Type: msgType, Data: data}
}

// NewSnapshotMessage wraps a published snapshot
func NewSnapshotMessage(data interface{}) Message {
	return NewMessage(TypeSnapshot, data)
}

// NewErrorMessage wraps a user-visible error
func NewErrorMessage(data interface{}) Message {
	return NewMessage(TypeError, data)
}

// Command is an inbound client request
type Command struct {
	Action      string `json:"action"`
	Symbol      string `json:"symbol,omitempty"`
	NewQuantity string `json:"new_quantity,omitempty"`
	Filter      string `json:"filter,omitempty"`
	Sort        string `json:"sort,omitempty"`
}

// Command actions
const (
	ActionLoadAll        = "load_all"
	ActionSetFilter      = "set_filter"
	ActionSetSort        = "set_sort"
	ActionClosePosition  = "close_position"
	ActionAdjustPosition = "adjust_position"
	ActionDismissError   = "dismiss_error"
)
