// Package negotiation holds the seller's decision state and policy: the round
// clock, the per-counterparty bid ledger, the utility model and the engine
// that turns an inbound offer into an outbound act.
//
// None of the types here are safe for concurrent use; the owning agent
// serializes every access behind one lock.
package negotiation

import "time"

// Kind identifies a negotiation act.
type Kind string

const (
	KindBuyOffer      Kind = "BuyOffer"
	KindSellOffer     Kind = "SellOffer"
	KindBuyRequest    Kind = "BuyRequest"
	KindSellRequest   Kind = "SellRequest"
	KindAcceptOffer   Kind = "AcceptOffer"
	KindRejectOffer   Kind = "RejectOffer"
	KindInformation   Kind = "Information"
	KindNotUnderstood Kind = "NotUnderstood"
)

var knownKinds = map[Kind]struct{}{
	KindBuyOffer:      {},
	KindSellOffer:     {},
	KindBuyRequest:    {},
	KindSellRequest:   {},
	KindAcceptOffer:   {},
	KindRejectOffer:   {},
	KindInformation:   {},
	KindNotUnderstood: {},
}

func (k Kind) Valid() bool {
	_, ok := knownKinds[k]
	return ok
}

// CarriesBundle reports whether acts of this kind carry goods and a price.
func (k Kind) CarriesBundle() bool {
	switch k {
	case KindBuyOffer, KindSellOffer, KindBuyRequest, KindSellRequest, KindAcceptOffer:
		return true
	default:
		return false
	}
}

// Closes reports whether recording this kind ends the negotiation with a
// counterparty.
func (k Kind) Closes() bool {
	return k == KindAcceptOffer || k == KindRejectOffer
}

// Roles.
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
)

type Price struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Bundle is a set of goods with quantities, optionally paired with a price.
type Bundle struct {
	Quantity map[string]float64 `json:"quantity,omitempty"`
	Price    *Price             `json:"price,omitempty"`
}

// HasPrice reports whether the bundle carries a usable price.
func (b Bundle) HasPrice() bool {
	return b.Price != nil && b.Price.Value != 0
}

func (b Bundle) Clone() Bundle {
	out := Bundle{}
	if b.Quantity != nil {
		out.Quantity = make(map[string]float64, len(b.Quantity))
		for g, q := range b.Quantity {
			out.Quantity[g] = q
		}
	}
	if b.Price != nil {
		p := *b.Price
		out.Price = &p
	}
	return out
}

type Metadata struct {
	Speaker       string    `json:"speaker,omitempty"`
	Addressee     string    `json:"addressee,omitempty"`
	Role          string    `json:"role,omitempty"`
	EnvironmentID string    `json:"environmentUUID,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Act is a single typed negotiation move.
type Act struct {
	ID   string `json:"id,omitempty"`
	Kind Kind   `json:"type"`
	Bundle
	Metadata Metadata `json:"metadata"`
}

func (a Act) Clone() Act {
	out := a
	out.Bundle = a.Bundle.Clone()
	return out
}
