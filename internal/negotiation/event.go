package negotiation

import "time"

type EventKind string

const (
	EventUtility    EventKind = "UTILITY"
	EventRoundStart EventKind = "ROUND_START"
	EventRoundEnd   EventKind = "ROUND_END"
	EventInbound    EventKind = "INBOUND"
	EventOutbound   EventKind = "OUTBOUND"
	EventDeal       EventKind = "DEAL"
	EventRejected   EventKind = "REJECTED"
)

// Event is one entry of the negotiation record: round control, an act seen
// or sent, or a closed deal.
type Event struct {
	Time         time.Time `json:"time"`
	Round        int       `json:"round"`
	Kind         EventKind `json:"kind"`
	Agent        string    `json:"agent,omitempty"`
	Counterparty string    `json:"counterparty,omitempty"`
	Act          *Act      `json:"act,omitempty"`
	Rule         Rule      `json:"rule,omitempty"`
	Text         string    `json:"text,omitempty"`
}

// EventSink receives negotiation events. Implementations must not block.
type EventSink interface {
	WriteEvent(Event) error
}

// MultiSink fans an event out to every non-nil sink, ignoring their errors.
type MultiSink []EventSink

func (m MultiSink) WriteEvent(ev Event) error {
	for _, s := range m {
		if s != nil {
			_ = s.WriteEvent(ev)
		}
	}
	return nil
}
