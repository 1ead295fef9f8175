package protocol

import (
	"sort"

	"negotiator.ai/internal/negotiation"
)

// Bid types as they appear on the wire.
const (
	BidAccept    = "Accept"
	BidReject    = "Reject"
	BidSellOffer = "SellOffer"
)

// Bid is the structured form of an outbound act attached to a message.
type Bid struct {
	Type     string             `json:"type"`
	Price    *negotiation.Price `json:"price,omitempty"`
	Quantity map[string]float64 `json:"quantity,omitempty"`
}

// BidFor returns the wire bid for an act the agent sends, or nil for kinds
// that carry no bid.
func BidFor(act negotiation.Act) *Bid {
	var typ string
	switch act.Kind {
	case negotiation.KindAcceptOffer:
		typ = BidAccept
	case negotiation.KindRejectOffer:
		typ = BidReject
	case negotiation.KindSellOffer:
		typ = BidSellOffer
	default:
		return nil
	}
	b := act.Bundle.Clone()
	return &Bid{Type: typ, Price: b.Price, Quantity: b.Quantity}
}

// Kind maps the bid type back to an act kind. Act kind names are accepted
// as well as the short wire names.
func (b Bid) Kind() (negotiation.Kind, bool) {
	switch b.Type {
	case BidAccept:
		return negotiation.KindAcceptOffer, true
	case BidReject:
		return negotiation.KindRejectOffer, true
	}
	k := negotiation.Kind(b.Type)
	return k, k.Valid()
}

// InboundMessage is a message relayed to the agent by the orchestrator.
type InboundMessage struct {
	ID              string  `json:"id,omitempty"`
	Text            string  `json:"text"`
	Speaker         string  `json:"speaker,omitempty"`
	Addressee       string  `json:"addressee,omitempty"`
	Role            string  `json:"role,omitempty"`
	EnvironmentUUID string  `json:"environmentUUID,omitempty"`
	Timestamp       float64 `json:"timestamp,omitempty"`
	Bid             *Bid    `json:"bid,omitempty"`
}

// OutboundMessage is what the agent asks the orchestrator to relay.
// Timestamp is milliseconds since the epoch.
type OutboundMessage struct {
	ID              string `json:"id"`
	Text            string `json:"text"`
	Speaker         string `json:"speaker"`
	Addressee       string `json:"addressee"`
	Role            string `json:"role"`
	EnvironmentUUID string `json:"environmentUUID"`
	Timestamp       int64  `json:"timestamp"`
	Bid             *Bid   `json:"bid,omitempty"`
}

// RejectionNotice tells the agent the orchestrator refused one of its
// messages. Rationale is also read from the legacy "rational" key.
type RejectionNotice struct {
	InboundMessage
	Rationale string `json:"rationale,omitempty"`
	Rational  string `json:"rational,omitempty"`
}

func (r RejectionNotice) Reason() string {
	if r.Rationale != "" {
		return r.Rationale
	}
	return r.Rational
}

const RationaleInsufficientBudget = "Insufficient budget"

// StartRoundRequest fields are optional; absent values keep the previous
// round's settings. RoundDuration is in seconds.
type StartRoundRequest struct {
	RoundDuration *float64 `json:"roundDuration,omitempty"`
	RoundNumber   *int     `json:"roundNumber,omitempty"`
}

// UtilityInfo is the wire form of the seller's cost model.
type UtilityInfo struct {
	Name         string                 `json:"name,omitempty"`
	CurrencyUnit string                 `json:"currencyUnit,omitempty"`
	Utility      map[string]GoodUtility `json:"utility"`
}

type GoodUtility struct {
	Type       string        `json:"type,omitempty"`
	Parameters UtilityParams `json:"parameters"`
}

type UtilityParams struct {
	UnitCost float64 `json:"unitcost"`
}

const UtilityTypeUnitCost = "unitcost"

func (u UtilityInfo) Model() negotiation.UtilityInfo {
	costs := make(map[string]float64, len(u.Utility))
	for good, g := range u.Utility {
		costs[good] = g.Parameters.UnitCost
	}
	return negotiation.UtilityInfo{Name: u.Name, CurrencyUnit: u.CurrencyUnit, UnitCosts: costs}
}

func UtilityFromModel(m negotiation.UtilityInfo) UtilityInfo {
	out := UtilityInfo{Name: m.Name, CurrencyUnit: m.CurrencyUnit, Utility: make(map[string]GoodUtility, len(m.UnitCosts))}
	for good, c := range m.UnitCosts {
		out.Utility[good] = GoodUtility{Type: UtilityTypeUnitCost, Parameters: UtilityParams{UnitCost: c}}
	}
	return out
}

// Ack is the synchronous reply to every control and message call.
type Ack struct {
	Status         string           `json:"status"`
	Code           string           `json:"code,omitempty"`
	Interpretation *InboundMessage  `json:"interpretation,omitempty"`
	Utility        *UtilityInfo     `json:"utility,omitempty"`
	Message        *RejectionNotice `json:"message,omitempty"`
}

// ExtractedBid is the interpreted form of a message, for diagnostics.
type ExtractedBid struct {
	Type     string             `json:"type"`
	Price    *negotiation.Price `json:"price,omitempty"`
	Quantity map[string]float64 `json:"quantity,omitempty"`
}

func ExtractedBidFor(act negotiation.Act) ExtractedBid {
	b := act.Bundle.Clone()
	return ExtractedBid{Type: string(act.Kind), Price: b.Price, Quantity: b.Quantity}
}

// Goods lists the utility's goods in name order.
func (u UtilityInfo) Goods() []string {
	out := make([]string, 0, len(u.Utility))
	for g := range u.Utility {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
