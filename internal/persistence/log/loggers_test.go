package log

import (
	"path/filepath"
	"testing"
	"time"

	"negotiator.ai/internal/negotiation"
)

func TestEventLogger_RotatesHourlyAndReadsBack(t *testing.T) {
	dir := t.TempDir()
	l := NewEventLogger(dir)
	now := time.Date(2026, 3, 1, 12, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return now }

	price := &negotiation.Price{Value: 45, Unit: "USD"}
	events := []negotiation.Event{
		{Kind: negotiation.EventRoundStart, Round: 1, Agent: "Celia"},
		{Kind: negotiation.EventOutbound, Round: 1, Counterparty: "Jeff", Rule: negotiation.RuleCounterOffer,
			Act: &negotiation.Act{ID: "m1", Kind: negotiation.KindSellOffer, Bundle: negotiation.Bundle{Quantity: map[string]float64{"widget": 10}, Price: price}}},
	}
	for _, ev := range events {
		if err := l.WriteEvent(ev); err != nil {
			t.Fatalf("WriteEvent: %v", err)
		}
	}
	now = now.Add(2 * time.Minute)
	if err := l.WriteEvent(negotiation.Event{Kind: negotiation.EventRoundEnd, Round: 1}); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := EventFiles(EventsDir(dir))
	if err != nil {
		t.Fatalf("EventFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files=%v want 2", files)
	}
	if got := filepath.Base(files[0]); got != "events-2026-03-01-12.jsonl.zst" {
		t.Fatalf("first file=%s", got)
	}

	var got []negotiation.Event
	for _, f := range files {
		if err := ReadEvents(f, func(ev negotiation.Event) error {
			got = append(got, ev)
			return nil
		}); err != nil {
			t.Fatalf("ReadEvents(%s): %v", f, err)
		}
	}
	if len(got) != 3 {
		t.Fatalf("events=%d want 3", len(got))
	}
	if got[1].Act == nil || got[1].Act.Price.Value != 45 || got[1].Act.Quantity["widget"] != 10 || got[1].Rule != negotiation.RuleCounterOffer {
		t.Fatalf("outbound event=%+v", got[1])
	}
	if got[2].Kind != negotiation.EventRoundEnd {
		t.Fatalf("last kind=%s", got[2].Kind)
	}
}

func TestEventLogger_ReopenAppends(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		l := NewEventLogger(dir)
		l.w.now = func() time.Time { return now }
		if err := l.WriteEvent(negotiation.Event{Kind: negotiation.EventDeal, Counterparty: "Jeff"}); err != nil {
			t.Fatalf("WriteEvent: %v", err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	files, err := EventFiles(EventsDir(dir))
	if err != nil || len(files) != 1 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	n := 0
	if err := ReadEvents(files[0], func(negotiation.Event) error { n++; return nil }); err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if n != 2 {
		t.Fatalf("events=%d want 2 across concatenated frames", n)
	}
}
