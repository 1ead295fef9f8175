// Package protocol defines the agent's JSON wire messages: the orchestrator
// envelopes handled over HTTP and the observer stream framing.
package protocol

import "encoding/json"

const Version = "1.0"

// Observer stream message types.
const (
	TypeSubscribe = "SUBSCRIBE"
	TypeEvent     = "EVENT"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Ack statuses.
const (
	StatusAcknowledged  = "Acknowledged"
	StatusNoBody        = "Failed; no message body"
	StatusRoundInactive = "Failed; round not active"
	StatusMalformed     = "Failed; malformed message"
)

// MalformedStatus renders the status for a message that failed validation.
func MalformedStatus(err error) string {
	return StatusMalformed + ": " + err.Error()
}
