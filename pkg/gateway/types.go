package gateway

import "encoding/json"

// Gateway operation codes
const (
	OpDispatch     = 0
	OpHeartbeat    = 1
	OpIdentify     = 2
	OpHello        = 10
	OpHeartbeatAck = 11
)

// EventInteractionCreate is the dispatch event carrying an interaction payload
const EventInteractionCreate = "INTERACTION_CREATE"

// Frame is a single gateway message
type Frame struct {
	Op   int             `json:"op"`
	Data json.RawMessage `json:"d,omitempty"`
	Seq  int64           `json:"s,omitempty"`
	Type string          `json:"t,omitempty"`
}

// helloData is the payload of the server's hello frame
type helloData struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"` // milliseconds
}

// identifyData authenticates the session
type identifyData struct {
	Token string `json:"token"`
}

// heartbeatData carries the last seen sequence number
type heartbeatData int64
