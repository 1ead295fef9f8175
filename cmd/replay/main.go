package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/shopspring/decimal"

	"negotiator.ai/internal/negotiation"
	persistlog "negotiator.ai/internal/persistence/log"
)

func main() {
	var (
		dataDir   = flag.String("data", "./data", "runtime data directory")
		eventsDir = flag.String("events", "", "events dir containing events-*.jsonl.zst (defaults to <data>/events)")
		round     = flag.Int("round", 0, "only summarize this round (optional)")
		asJSON    = flag.Bool("json", false, "print the summary as JSON")
	)
	flag.Parse()

	dir := *eventsDir
	if dir == "" {
		dir = persistlog.EventsDir(*dataDir)
	}
	files, err := persistlog.EventFiles(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no event files in", dir)
		os.Exit(2)
	}

	s := newSummary(*round)
	for _, f := range files {
		if err := persistlog.ReadEvents(f, s.add); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(f), err)
			os.Exit(1)
		}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(s)
		return
	}
	s.print(os.Stdout)
}

type counterpartySummary struct {
	Inbound  map[negotiation.Kind]int `json:"inbound"`
	Outbound map[negotiation.Kind]int `json:"outbound"`
	Replies  int                      `json:"text_replies"`
	Deals    int                      `json:"deals"`
	Rejected int                      `json:"rejected"`
	Revenue  decimal.Decimal          `json:"revenue"`
}

type summary struct {
	Events         int                             `json:"events"`
	Rounds         []int                           `json:"rounds"`
	Counterparties map[string]*counterpartySummary `json:"counterparties"`
	Deals          int                             `json:"deals"`
	Revenue        decimal.Decimal                 `json:"revenue"`
	Unit           string                          `json:"unit,omitempty"`

	round  int
	rounds map[int]struct{}
}

func newSummary(round int) *summary {
	return &summary{
		Counterparties: map[string]*counterpartySummary{},
		round:          round,
		rounds:         map[int]struct{}{},
	}
}

func (s *summary) cp(name string) *counterpartySummary {
	c := s.Counterparties[name]
	if c == nil {
		c = &counterpartySummary{
			Inbound:  map[negotiation.Kind]int{},
			Outbound: map[negotiation.Kind]int{},
		}
		s.Counterparties[name] = c
	}
	return c
}

func (s *summary) add(ev negotiation.Event) error {
	if s.round > 0 && ev.Round != s.round {
		return nil
	}
	s.Events++
	if _, ok := s.rounds[ev.Round]; !ok && ev.Round > 0 {
		s.rounds[ev.Round] = struct{}{}
		s.Rounds = append(s.Rounds, ev.Round)
		sort.Ints(s.Rounds)
	}
	if ev.Counterparty == "" {
		return nil
	}
	c := s.cp(ev.Counterparty)
	switch ev.Kind {
	case negotiation.EventInbound:
		if ev.Act != nil {
			c.Inbound[ev.Act.Kind]++
		}
	case negotiation.EventOutbound:
		if ev.Act != nil {
			c.Outbound[ev.Act.Kind]++
		} else {
			c.Replies++
		}
	case negotiation.EventRejected:
		c.Rejected++
	case negotiation.EventDeal:
		c.Deals++
		s.Deals++
		if ev.Act != nil && ev.Act.Price != nil {
			v := decimal.NewFromFloat(ev.Act.Price.Value)
			c.Revenue = c.Revenue.Add(v)
			s.Revenue = s.Revenue.Add(v)
			if s.Unit == "" {
				s.Unit = ev.Act.Price.Unit
			}
		}
	}
	return nil
}

func (s *summary) print(w io.Writer) {
	fmt.Fprintf(w, "events=%d rounds=%v counterparties=%d deals=%d revenue=%s %s\n",
		s.Events, s.Rounds, len(s.Counterparties), s.Deals, s.Revenue.StringFixed(2), s.Unit)

	names := make([]string, 0, len(s.Counterparties))
	for n := range s.Counterparties {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		c := s.Counterparties[n]
		fmt.Fprintf(w, "  %s: in=%s out=%s replies=%d deals=%d rejected=%d revenue=%s\n",
			n, kindCounts(c.Inbound), kindCounts(c.Outbound), c.Replies, c.Deals, c.Rejected, c.Revenue.StringFixed(2))
	}
}

func kindCounts(m map[negotiation.Kind]int) string {
	kinds := make([]string, 0, len(m))
	for k := range m {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	out := "{"
	for i, k := range kinds {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s:%d", k, m[negotiation.Kind(k)])
	}
	return out + "}"
}
