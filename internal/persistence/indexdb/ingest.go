package indexdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"negotiator.ai/internal/negotiation"
)

// TokenHeader carries the ingest token.
const TokenHeader = "x-neg-index-token"

type IngestConfig struct {
	Endpoint      string
	Token         string
	Agent         string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	Logger        *log.Logger
}

// IngestIndex batches negotiation events and posts them to a remote ingest
// endpoint as {"events":[...]}. A failed batch is kept and retried with the
// next flush.
type IngestIndex struct {
	cfg        IngestConfig
	httpClient *http.Client

	ch   chan ingestEvent
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	queueDropped atomic.Uint64
	retainDrop   atomic.Uint64
	flushFail    atomic.Uint64
	sent         atomic.Uint64
}

type ingestEvent struct {
	Kind    string            `json:"kind"`
	Agent   string            `json:"agent"`
	Payload negotiation.Event `json:"payload"`
}

type IngestStats struct {
	QueueDepth         int
	QueueCapacity      int
	QueueDroppedTotal  uint64
	RetainDroppedTotal uint64
	FlushFailTotal     uint64
	SentTotal          uint64
}

func OpenIngest(cfg IngestConfig) (*IngestIndex, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty index ingest endpoint")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}

	d := &IngestIndex{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		ch:         make(chan ingestEvent, 8192),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()
	return d, nil
}

func (d *IngestIndex) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
	})
	return nil
}

func (d *IngestIndex) WriteEvent(ev negotiation.Event) error {
	if d == nil || d.closed.Load() {
		return nil
	}
	agent := ev.Agent
	if agent == "" {
		agent = d.cfg.Agent
	}
	select {
	case d.ch <- ingestEvent{Kind: strings.ToLower(string(ev.Kind)), Agent: agent, Payload: ev}:
	default:
		d.queueDropped.Add(1)
		d.printf("index ingest queue full; drop kind=%s", ev.Kind)
	}
	return nil
}

func (d *IngestIndex) Stats() IngestStats {
	if d == nil {
		return IngestStats{}
	}
	return IngestStats{
		QueueDepth:         len(d.ch),
		QueueCapacity:      cap(d.ch),
		QueueDroppedTotal:  d.queueDropped.Load(),
		RetainDroppedTotal: d.retainDrop.Load(),
		FlushFailTotal:     d.flushFail.Load(),
		SentTotal:          d.sent.Load(),
	}
}

func (d *IngestIndex) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	maxRetained := 4 * d.cfg.BatchSize
	batch := make([]ingestEvent, 0, d.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := d.sendBatch(batch); err != nil {
			d.flushFail.Add(1)
			d.printf("index ingest flush failed batch=%d err=%v", len(batch), err)
			if over := len(batch) - maxRetained; over > 0 {
				d.retainDrop.Add(uint64(over))
				batch = append(batch[:0], batch[over:]...)
			}
			return
		}
		d.sent.Add(uint64(len(batch)))
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *IngestIndex) sendBatch(events []ingestEvent) error {
	body := struct {
		Events []ingestEvent `json:"events"`
	}{Events: events}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	if d.cfg.Token != "" {
		req.Header.Set(TokenHeader, d.cfg.Token)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}

func (d *IngestIndex) printf(format string, args ...any) {
	if d != nil && d.cfg.Logger != nil {
		d.cfg.Logger.Printf(format, args...)
	}
}
