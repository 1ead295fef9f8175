// Package observerproto is the framing of the live negotiation stream served
// on /admin/v1/observer/ws.
package observerproto

import (
	"negotiator.ai/internal/negotiation"
	"negotiator.ai/internal/protocol"
)

// Version is the observer protocol version (separate from the orchestrator
// wire version).
const Version = "0.2"

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to change the filter. Empty filters match everything.
type SubscribeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Counterparty    string   `json:"counterparty,omitempty"`
	Kinds           []string `json:"kinds,omitempty"`
}

func NewSubscribe() SubscribeMsg {
	return SubscribeMsg{Type: protocol.TypeSubscribe, ProtocolVersion: Version}
}

// Matches reports whether ev passes the subscription filter.
func (s SubscribeMsg) Matches(ev negotiation.Event) bool {
	if s.Counterparty != "" && ev.Counterparty != s.Counterparty {
		return false
	}
	if len(s.Kinds) == 0 {
		return true
	}
	for _, k := range s.Kinds {
		if negotiation.EventKind(k) == ev.Kind {
			return true
		}
	}
	return false
}

// Server -> Client. One per negotiation event.
type EventMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	Seq             uint64            `json:"seq"`
	Event           negotiation.Event `json:"event"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string                 `json:"protocol_version"`
	Agent           string                 `json:"agent"`
	Round           negotiation.RoundState `json:"round"`
	Counterparties  []string               `json:"counterparties"`
	Subscribers     int                    `json:"subscribers"`
}
