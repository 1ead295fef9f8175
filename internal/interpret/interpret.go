// Package interpret maps classifier output onto negotiation acts.
package interpret

import (
	"time"

	"negotiator.ai/internal/classifier"
	"negotiator.ai/internal/negotiation"
)

// MinConfidence is the top-intent confidence an act needs to be taken at
// face value.
const MinConfidence = 0.2

// Intent names produced by the classifier workspace.
const (
	IntentOffer       = "Offer"
	IntentAccept      = "AcceptOffer"
	IntentReject      = "RejectOffer"
	IntentInformation = "Information"
)

// Entity names.
const (
	EntityNumber   = "sys-number"
	EntityCurrency = "sys-currency"
	EntityGood     = "good"
	EntityAvatar   = "avatarName"
)

// DefaultUnit is assumed for a bare number used as a price.
const DefaultUnit = "USD"

type Interpreter struct {
	// AgentName is preferred when several avatar names are mentioned.
	AgentName string
	Now       func() time.Time
}

// Interpret turns one classification into an act. It never fails: anything
// it cannot make sense of is NotUnderstood.
func (it *Interpreter) Interpret(c classifier.Classification) negotiation.Act {
	act := negotiation.Act{Kind: negotiation.KindNotUnderstood}

	if top, ok := c.TopIntent(); ok && top.Confidence > MinConfidence {
		switch top.Intent {
		case IntentOffer:
			b := ExtractOffer(c.Entities)
			act.Bundle = b
			act.Kind = offerKind(c.Input.Role, b.Price != nil)
		case IntentAccept:
			act.Kind = negotiation.KindAcceptOffer
		case IntentReject:
			act.Kind = negotiation.KindRejectOffer
		case IntentInformation:
			act.Kind = negotiation.KindInformation
		}
	}

	addressee := c.Input.Addressee
	if addressee == "" {
		addressee = ExtractAddressee(c.Entities, it.AgentName)
	}
	act.Metadata = negotiation.Metadata{
		Speaker:       c.Input.Speaker,
		Addressee:     addressee,
		Role:          c.Input.Role,
		EnvironmentID: c.Input.EnvironmentUUID,
		Timestamp:     it.now(),
	}
	return act
}

func (it *Interpreter) now() time.Time {
	if it.Now != nil {
		return it.Now()
	}
	return time.Now()
}

func offerKind(role string, priced bool) negotiation.Kind {
	switch {
	case role == negotiation.RoleBuyer && priced:
		return negotiation.KindBuyOffer
	case role == negotiation.RoleBuyer:
		return negotiation.KindBuyRequest
	case role == negotiation.RoleSeller && priced:
		return negotiation.KindSellOffer
	case role == negotiation.RoleSeller:
		return negotiation.KindSellRequest
	default:
		return negotiation.KindNotUnderstood
	}
}

// ExtractOffer pairs each number immediately followed by a good into a
// quantity, then looks for a price among the entities left over.
func ExtractOffer(entities []classifier.Entity) negotiation.Bundle {
	b := negotiation.Bundle{Quantity: map[string]float64{}}
	used := make([]bool, len(entities))
	for i := 1; i < len(entities); i++ {
		prev, cur := entities[i-1], entities[i]
		if used[i-1] || prev.Entity != EntityNumber || cur.Entity != EntityGood {
			continue
		}
		n, ok := prev.Numeric()
		if !ok {
			continue
		}
		b.Quantity[cur.Value] = n
		used[i-1], used[i] = true, true
	}

	rest := make([]classifier.Entity, 0, len(entities))
	for i, e := range entities {
		if !used[i] {
			rest = append(rest, e)
		}
	}
	b.Price = ExtractPrice(rest)
	return b
}

// ExtractPrice returns the last currency amount, or failing that the first
// bare number taken as DefaultUnit.
func ExtractPrice(entities []classifier.Entity) *negotiation.Price {
	var currency, number *negotiation.Price
	for _, e := range entities {
		switch e.Entity {
		case EntityCurrency:
			if v, ok := e.Numeric(); ok {
				unit := e.Unit()
				if unit == "" {
					unit = DefaultUnit
				}
				currency = &negotiation.Price{Value: v, Unit: unit}
			}
		case EntityNumber:
			if number != nil {
				continue
			}
			if v, ok := e.Numeric(); ok {
				number = &negotiation.Price{Value: v, Unit: DefaultUnit}
			}
		}
	}
	if currency != nil {
		return currency
	}
	return number
}

// ExtractAddressee picks self among the mentioned avatar names, else the
// first one mentioned.
func ExtractAddressee(entities []classifier.Entity, self string) string {
	first := ""
	for _, e := range entities {
		if e.Entity != EntityAvatar {
			continue
		}
		if self != "" && e.Value == self {
			return self
		}
		if first == "" {
			first = e.Value
		}
	}
	return first
}
