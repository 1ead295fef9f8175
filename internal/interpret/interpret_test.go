package interpret

import (
	"testing"
	"time"

	"negotiator.ai/internal/classifier"
	"negotiator.ai/internal/negotiation"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newInterpreter() *Interpreter {
	return &Interpreter{AgentName: "Celia", Now: func() time.Time { return fixedNow }}
}

func num(v float64, s string) classifier.Entity {
	return classifier.Entity{Entity: EntityNumber, Value: s, Metadata: &classifier.EntityMetadata{NumericValue: v}}
}

func good(name string) classifier.Entity {
	return classifier.Entity{Entity: EntityGood, Value: name}
}

func currency(v float64, unit string) classifier.Entity {
	return classifier.Entity{Entity: EntityCurrency, Value: "x", Metadata: &classifier.EntityMetadata{NumericValue: v, Unit: unit}}
}

func avatar(name string) classifier.Entity {
	return classifier.Entity{Entity: EntityAvatar, Value: name}
}

func offer(role string, entities ...classifier.Entity) classifier.Classification {
	return classifier.Classification{
		Intents:  []classifier.Intent{{Intent: IntentOffer, Confidence: 0.9}},
		Entities: entities,
		Input:    classifier.Input{Speaker: "Jeff", Role: role, EnvironmentUUID: "env-1"},
	}
}

func TestInterpret_BuyOfferWithCurrency(t *testing.T) {
	act := newInterpreter().Interpret(offer("buyer",
		avatar("Celia"), num(10, "10"), good("widget"), num(2, "2"), good("gadget"), currency(30, "USD")))
	if act.Kind != negotiation.KindBuyOffer {
		t.Fatalf("kind=%s", act.Kind)
	}
	if act.Quantity["widget"] != 10 || act.Quantity["gadget"] != 2 || len(act.Quantity) != 2 {
		t.Fatalf("quantity=%v", act.Quantity)
	}
	if act.Price == nil || act.Price.Value != 30 || act.Price.Unit != "USD" {
		t.Fatalf("price=%+v", act.Price)
	}
	md := act.Metadata
	if md.Speaker != "Jeff" || md.Addressee != "Celia" || md.Role != "buyer" || md.EnvironmentID != "env-1" || !md.Timestamp.Equal(fixedNow) {
		t.Fatalf("metadata=%+v", md)
	}
}

func TestInterpret_BareNumberIsPrice(t *testing.T) {
	act := newInterpreter().Interpret(offer("buyer", num(10, "10"), good("widget"), num(25, "25"), num(3, "3")))
	if act.Kind != negotiation.KindBuyOffer || act.Price.Value != 25 || act.Price.Unit != DefaultUnit {
		t.Fatalf("act=%+v price=%+v", act, act.Price)
	}
}

func TestInterpret_LastCurrencyWins(t *testing.T) {
	p := ExtractPrice([]classifier.Entity{num(4, "4"), currency(30, "USD"), currency(28, "EUR")})
	if p == nil || p.Value != 28 || p.Unit != "EUR" {
		t.Fatalf("price=%+v", p)
	}
}

func TestInterpret_RequestWithoutPrice(t *testing.T) {
	it := newInterpreter()
	act := it.Interpret(offer("buyer", num(5, "5"), good("widget")))
	if act.Kind != negotiation.KindBuyRequest || act.Price != nil || act.Quantity["widget"] != 5 {
		t.Fatalf("act=%+v", act)
	}
	act = it.Interpret(offer("seller", num(5, "5"), good("widget")))
	if act.Kind != negotiation.KindSellRequest {
		t.Fatalf("kind=%s", act.Kind)
	}
	act = it.Interpret(offer("seller", num(5, "5"), good("widget"), currency(9, "USD")))
	if act.Kind != negotiation.KindSellOffer {
		t.Fatalf("kind=%s", act.Kind)
	}
	act = it.Interpret(offer("auditor", num(5, "5"), good("widget"), currency(9, "USD")))
	if act.Kind != negotiation.KindNotUnderstood {
		t.Fatalf("unknown role kind=%s", act.Kind)
	}
}

func TestInterpret_QuantityNeedsAdjacentGood(t *testing.T) {
	b := ExtractOffer([]classifier.Entity{num(10, "10"), avatar("Celia"), good("widget"), currency(12, "USD")})
	if len(b.Quantity) != 0 {
		t.Fatalf("quantity=%v want none", b.Quantity)
	}
	// The unpaired number is not a price when a currency is present.
	if b.Price.Value != 12 {
		t.Fatalf("price=%+v", b.Price)
	}
}

func TestInterpret_OtherIntents(t *testing.T) {
	it := newInterpreter()
	cases := []struct {
		intents []classifier.Intent
		want    negotiation.Kind
	}{
		{[]classifier.Intent{{Intent: IntentAccept, Confidence: 0.8}}, negotiation.KindAcceptOffer},
		{[]classifier.Intent{{Intent: IntentReject, Confidence: 0.8}}, negotiation.KindRejectOffer},
		{[]classifier.Intent{{Intent: IntentInformation, Confidence: 0.21}}, negotiation.KindInformation},
		{[]classifier.Intent{{Intent: IntentAccept, Confidence: 0.2}}, negotiation.KindNotUnderstood},
		{[]classifier.Intent{{Intent: "Greeting", Confidence: 0.99}}, negotiation.KindNotUnderstood},
		{nil, negotiation.KindNotUnderstood},
	}
	for _, c := range cases {
		act := it.Interpret(classifier.Classification{Intents: c.intents, Input: classifier.Input{Speaker: "Jeff", Role: "buyer"}})
		if act.Kind != c.want {
			t.Fatalf("intents=%+v kind=%s want=%s", c.intents, act.Kind, c.want)
		}
	}
}

func TestExtractAddressee(t *testing.T) {
	ents := []classifier.Entity{avatar("Watson"), num(1, "1"), avatar("Celia")}
	if got := ExtractAddressee(ents, "Celia"); got != "Celia" {
		t.Fatalf("addressee=%q want Celia", got)
	}
	if got := ExtractAddressee(ents, "Other"); got != "Watson" {
		t.Fatalf("addressee=%q want Watson", got)
	}
	if got := ExtractAddressee(nil, "Celia"); got != "" {
		t.Fatalf("addressee=%q want empty", got)
	}

	// An explicit addressee on the input wins over mentions.
	c := offer("buyer", avatar("Celia"), num(1, "1"), good("widget"))
	c.Input.Addressee = "Watson"
	if act := newInterpreter().Interpret(c); act.Metadata.Addressee != "Watson" {
		t.Fatalf("addressee=%q", act.Metadata.Addressee)
	}
}
