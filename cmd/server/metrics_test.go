package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"negotiator.ai/internal/agent"
	"negotiator.ai/internal/observerproto"
	"negotiator.ai/internal/persistence/indexdb"
	"negotiator.ai/internal/protocol"
	"negotiator.ai/internal/transport/observer"
)

func TestMetricsExposition(t *testing.T) {
	a, err := agent.New(agent.Config{Name: "Celia"})
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}
	a.StartRound(protocol.StartRoundRequest{})

	idx, err := indexdb.OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()
	obs := observer.NewServer(func() observerproto.BootstrapResponse { return observerproto.BootstrapResponse{} }, nil)

	var buf bytes.Buffer
	metricsSource{agent: a, index: idx, observer: obs}.write(&buf)
	out := buf.String()
	for _, want := range []string{
		`negotiator_round_active{agent="Celia"} 1`,
		`negotiator_events_total{agent="Celia",metric="messages_received"} 0`,
		`negotiator_observer_subscribers 0`,
		`negotiator_index_queue_capacity `,
		`negotiator_index_dropped_total{reason="write_error"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, `reason="flush_fail"`) {
		t.Fatalf("sqlite index reported ingest counters:\n%s", out)
	}
}

func TestMetricsWithoutIndex(t *testing.T) {
	a, err := agent.New(agent.Config{Name: "Celia"})
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}
	var buf bytes.Buffer
	metricsSource{agent: a}.write(&buf)
	out := buf.String()
	if !strings.Contains(out, `negotiator_round_active{agent="Celia"} 0`) {
		t.Fatalf("round gauge missing:\n%s", out)
	}
	if strings.Contains(out, "negotiator_index_") || strings.Contains(out, "negotiator_observer_") {
		t.Fatalf("unexpected optional metrics:\n%s", out)
	}
}
