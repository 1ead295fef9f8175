package negotiation

import "testing"

func sellOffer(id, speaker string, price float64) Act {
	return Act{
		ID:       id,
		Kind:     KindSellOffer,
		Bundle:   Bundle{Quantity: widgets(1), Price: &Price{Value: price, Unit: "USD"}},
		Metadata: Metadata{Speaker: speaker, Addressee: "Jeff", Role: RoleSeller},
	}
}

func TestLedger_RecordClearsOnClosingActs(t *testing.T) {
	l := NewLedger()
	l.Record("Jeff", sellOffer("a", "Celia", 40))
	l.Record("Jeff", sellOffer("b", "Celia", 38))
	l.Record("Mia", sellOffer("c", "Celia", 12))
	if l.Len("Jeff") != 2 || l.Len("Mia") != 1 {
		t.Fatalf("len Jeff=%d Mia=%d", l.Len("Jeff"), l.Len("Mia"))
	}

	l.Record("Jeff", Act{Kind: KindAcceptOffer})
	if _, ok := l.History("Jeff"); ok {
		t.Fatalf("history survived an accept")
	}
	l.Record("Mia", Act{Kind: KindRejectOffer})
	if got := l.Counterparties(); len(got) != 0 {
		t.Fatalf("counterparties=%v want none", got)
	}
}

func TestLedger_HistoryNeverContainsClosingActs(t *testing.T) {
	l := NewLedger()
	kinds := []Kind{KindBuyOffer, KindSellOffer, KindAcceptOffer, KindInformation, KindSellOffer, KindRejectOffer, KindBuyRequest}
	for i, k := range kinds {
		l.Record("Jeff", Act{ID: string(rune('a' + i)), Kind: k})
		acts, _ := l.History("Jeff")
		for _, a := range acts {
			if a.Kind.Closes() {
				t.Fatalf("closing act %s found in history after step %d", a.Kind, i)
			}
		}
	}
	if l.Len("Jeff") != 1 {
		t.Fatalf("len=%d want 1", l.Len("Jeff"))
	}
}

func TestLedger_LastSellOfferBySelf(t *testing.T) {
	l := NewLedger()
	if _, ok := l.LastSellPrice("Jeff", "Celia"); ok {
		t.Fatalf("empty ledger has a last price")
	}
	l.Append("Jeff", sellOffer("a", "Celia", 40))
	l.Append("Jeff", sellOffer("b", "Watson", 35))
	l.Append("Jeff", Act{ID: "c", Kind: KindBuyOffer, Metadata: Metadata{Speaker: "Jeff"}})

	a, ok := l.LastSellOffer("Jeff", "Celia")
	if !ok || a.ID != "a" {
		t.Fatalf("last=%+v ok=%v want id a", a, ok)
	}
	p, ok := l.LastSellPrice("Jeff", "Celia")
	if !ok || p.Value != 40 {
		t.Fatalf("last price=%+v ok=%v", p, ok)
	}
	if !l.Contains("Jeff", "b") || l.Contains("Jeff", "z") || l.Contains("Jeff", "") {
		t.Fatalf("Contains mismatch")
	}
}

func TestLedger_RecordedWithoutID(t *testing.T) {
	l := NewLedger()
	l.Append("Jeff", sellOffer("a", "Celia", 40))

	same := sellOffer("", "Celia", 40)
	if !l.Recorded("Jeff", same) {
		t.Fatalf("id-less repeat of the last act not recognized")
	}
	if l.Recorded("Jeff", sellOffer("", "Celia", 41)) {
		t.Fatalf("different price matched")
	}
	if l.Recorded("Jeff", sellOffer("", "Bob", 40)) {
		t.Fatalf("different speaker matched")
	}
	if l.Recorded("Mia", same) {
		t.Fatalf("matched against an empty history")
	}
	if !l.Recorded("Jeff", sellOffer("a", "Celia", 99)) || l.Recorded("Jeff", sellOffer("z", "Celia", 40)) {
		t.Fatalf("id match should decide when an id is present")
	}

	// Only the latest entry is compared, so a later identical re-offer after
	// the buyer spoke is kept.
	l.Append("Jeff", Act{Kind: KindBuyOffer, Metadata: Metadata{Speaker: "Jeff"}})
	if l.Recorded("Jeff", same) {
		t.Fatalf("matched an act that is not the latest entry")
	}
}

func TestLedger_HistoryIsACopy(t *testing.T) {
	l := NewLedger()
	l.Append("Jeff", sellOffer("a", "Celia", 40))
	acts, _ := l.History("Jeff")
	acts[0].Price.Value = 1
	acts[0].Quantity["widget"] = 99

	p, _ := l.LastSellPrice("Jeff", "Celia")
	if p.Value != 40 {
		t.Fatalf("ledger mutated through History: %v", p.Value)
	}
	snap := l.Snapshot()
	if len(snap["Jeff"]) != 1 || snap["Jeff"][0].Quantity["widget"] != 1 {
		t.Fatalf("snapshot=%+v", snap)
	}

	l.Reset()
	if l.Len("Jeff") != 0 {
		t.Fatalf("Reset left %d acts", l.Len("Jeff"))
	}
}
