package main

import (
	"fmt"
	"io"
	"net/http"

	"negotiator.ai/internal/agent"
	"negotiator.ai/internal/persistence/indexdb"
	"negotiator.ai/internal/transport/observer"
)

type metricsSource struct {
	agent    *agent.Agent
	index    runtimeIndex
	observer *observer.Server
}

func (m metricsSource) handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m.write(rw)
	}
}

// write renders the minimal Prometheus exposition format.
func (m metricsSource) write(w io.Writer) {
	st := m.agent.State()
	name := st.Name

	active := 0
	if st.Round.Active {
		active = 1
	}
	fmt.Fprintf(w, "# HELP negotiator_round_active Whether a round is in progress.\n")
	fmt.Fprintf(w, "# TYPE negotiator_round_active gauge\n")
	fmt.Fprintf(w, "negotiator_round_active{agent=%q} %d\n", name, active)

	fmt.Fprintf(w, "# HELP negotiator_round_number Current round number.\n")
	fmt.Fprintf(w, "# TYPE negotiator_round_number gauge\n")
	fmt.Fprintf(w, "negotiator_round_number{agent=%q} %d\n", name, st.Round.RoundNumber)

	fmt.Fprintf(w, "# HELP negotiator_round_remaining_seconds Seconds left in the current round.\n")
	fmt.Fprintf(w, "# TYPE negotiator_round_remaining_seconds gauge\n")
	fmt.Fprintf(w, "negotiator_round_remaining_seconds{agent=%q} %.3f\n", name, st.RemainingSec)

	fmt.Fprintf(w, "# HELP negotiator_counterparties Counterparties with an open negotiation.\n")
	fmt.Fprintf(w, "# TYPE negotiator_counterparties gauge\n")
	fmt.Fprintf(w, "negotiator_counterparties{agent=%q} %d\n", name, len(st.Ledger))

	am := m.agent.Metrics()
	counters := []struct {
		metric string
		v      uint64
	}{
		{"messages_received", am.MessagesReceived},
		{"messages_ignored", am.MessagesIgnored},
		{"replies", am.Replies},
		{"relay_sent", am.RelaySent},
		{"relay_failures", am.RelayFailures},
		{"classifier_failures", am.ClassifierFailures},
		{"deals", am.Deals},
		{"rejections", am.Rejections},
	}
	fmt.Fprintf(w, "# HELP negotiator_events_total Cumulative agent counters.\n")
	fmt.Fprintf(w, "# TYPE negotiator_events_total counter\n")
	for _, c := range counters {
		fmt.Fprintf(w, "negotiator_events_total{agent=%q,metric=%q} %d\n", name, c.metric, c.v)
	}

	if m.observer != nil {
		fmt.Fprintf(w, "# HELP negotiator_observer_subscribers Connected observer websockets.\n")
		fmt.Fprintf(w, "# TYPE negotiator_observer_subscribers gauge\n")
		fmt.Fprintf(w, "negotiator_observer_subscribers %d\n", m.observer.Subscribers())

		fmt.Fprintf(w, "# HELP negotiator_observer_dropped_total Events dropped for slow observers.\n")
		fmt.Fprintf(w, "# TYPE negotiator_observer_dropped_total counter\n")
		fmt.Fprintf(w, "negotiator_observer_dropped_total %d\n", m.observer.Dropped())
	}

	writeIndexMetrics(w, m.index)
}

func writeIndexMetrics(w io.Writer, idx runtimeIndex) {
	var depth, capacity int
	drops := map[string]uint64{}
	switch x := idx.(type) {
	case *indexdb.SQLiteIndex:
		s := x.Stats()
		depth, capacity = s.QueueDepth, s.QueueCapacity
		drops["round"] = s.DropRoundTotal
		drops["act"] = s.DropActTotal
		drops["deal"] = s.DropDealTotal
		drops["write_error"] = s.WriteErrorsTotal
	case *indexdb.IngestIndex:
		s := x.Stats()
		depth, capacity = s.QueueDepth, s.QueueCapacity
		drops["queue"] = s.QueueDroppedTotal
		drops["retain"] = s.RetainDroppedTotal
		drops["flush_fail"] = s.FlushFailTotal
	default:
		return
	}
	fmt.Fprintf(w, "# HELP negotiator_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(w, "# TYPE negotiator_index_queue_depth gauge\n")
	fmt.Fprintf(w, "negotiator_index_queue_depth %d\n", depth)
	fmt.Fprintf(w, "negotiator_index_queue_capacity %d\n", capacity)

	fmt.Fprintf(w, "# HELP negotiator_index_dropped_total Index events lost, by reason.\n")
	fmt.Fprintf(w, "# TYPE negotiator_index_dropped_total counter\n")
	for _, reason := range []string{"round", "act", "deal", "write_error", "queue", "retain", "flush_fail"} {
		if v, ok := drops[reason]; ok {
			fmt.Fprintf(w, "negotiator_index_dropped_total{reason=%q} %d\n", reason, v)
		}
	}
}
