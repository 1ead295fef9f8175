package negotiation

import "sort"

// Ledger is the per-counterparty history of acts exchanged during a round.
// Recording an accept or reject for a counterparty wipes its history, so the
// history never spans a completed deal.
type Ledger struct {
	history map[string][]Act
}

func NewLedger() *Ledger {
	return &Ledger{history: map[string][]Act{}}
}

// Append adds act to the counterparty's history, creating it if absent.
func (l *Ledger) Append(counterparty string, act Act) {
	l.history[counterparty] = append(l.history[counterparty], act.Clone())
}

// Clear removes the counterparty's history entirely.
func (l *Ledger) Clear(counterparty string) {
	delete(l.history, counterparty)
}

// Record appends act, or clears the history when act closes the negotiation.
func (l *Ledger) Record(counterparty string, act Act) {
	if act.Kind.Closes() {
		l.Clear(counterparty)
		return
	}
	l.Append(counterparty, act)
}

// History returns a copy of the counterparty's acts; ok is false when the
// counterparty has no history.
func (l *Ledger) History(counterparty string) ([]Act, bool) {
	acts, ok := l.history[counterparty]
	if !ok || len(acts) == 0 {
		return nil, false
	}
	out := make([]Act, len(acts))
	for i, a := range acts {
		out[i] = a.Clone()
	}
	return out, true
}

func (l *Ledger) Len(counterparty string) int {
	return len(l.history[counterparty])
}

// LastSellOffer returns the most recent SellOffer that self sent to the
// counterparty.
func (l *Ledger) LastSellOffer(counterparty, self string) (Act, bool) {
	acts := l.history[counterparty]
	for i := len(acts) - 1; i >= 0; i-- {
		a := acts[i]
		if a.Kind == KindSellOffer && a.Metadata.Speaker == self {
			return a.Clone(), true
		}
	}
	return Act{}, false
}

// LastSellPrice is the price of LastSellOffer, if any.
func (l *Ledger) LastSellPrice(counterparty, self string) (Price, bool) {
	a, ok := l.LastSellOffer(counterparty, self)
	if !ok || a.Price == nil {
		return Price{}, false
	}
	return *a.Price, true
}

// Contains reports whether an act with the given id is already recorded for
// the counterparty.
func (l *Ledger) Contains(counterparty, id string) bool {
	if id == "" {
		return false
	}
	for _, a := range l.history[counterparty] {
		if a.ID == id {
			return true
		}
	}
	return false
}

// Recorded reports whether act is already in the counterparty's history. Acts
// with an id match by id; without one, act matches when it repeats the most
// recent entry's kind, speaker and bundle.
func (l *Ledger) Recorded(counterparty string, act Act) bool {
	if act.ID != "" {
		return l.Contains(counterparty, act.ID)
	}
	acts := l.history[counterparty]
	if len(acts) == 0 {
		return false
	}
	last := acts[len(acts)-1]
	return last.Kind == act.Kind && last.Metadata.Speaker == act.Metadata.Speaker && sameBundle(last.Bundle, act.Bundle)
}

func sameBundle(a, b Bundle) bool {
	if (a.Price == nil) != (b.Price == nil) {
		return false
	}
	if a.Price != nil && *a.Price != *b.Price {
		return false
	}
	if len(a.Quantity) != len(b.Quantity) {
		return false
	}
	for g, q := range a.Quantity {
		if bq, ok := b.Quantity[g]; !ok || bq != q {
			return false
		}
	}
	return true
}

// Reset empties the whole ledger.
func (l *Ledger) Reset() {
	l.history = map[string][]Act{}
}

func (l *Ledger) Counterparties() []string {
	out := make([]string, 0, len(l.history))
	for cp := range l.history {
		out = append(out, cp)
	}
	sort.Strings(out)
	return out
}

func (l *Ledger) Snapshot() map[string][]Act {
	out := make(map[string][]Act, len(l.history))
	for cp := range l.history {
		if acts, ok := l.History(cp); ok {
			out[cp] = acts
		}
	}
	return out
}
