// Package indexdb keeps a queryable read-model of the negotiation record.
// The agent only writes to it; the JSONL event log stays the source of truth.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"negotiator.ai/internal/negotiation"
)

const SchemaVersion = "1"

// DefaultPath is where the server keeps the index under its data dir.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "index", "negotiation.sqlite")
}

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropRound   atomic.Uint64
	dropAct     atomic.Uint64
	dropDeal    atomic.Uint64
	writeErrors atomic.Uint64
}

type reqKind int

const (
	reqRound reqKind = iota + 1
	reqAct
	reqDeal
	reqMeta
)

type req struct {
	kind reqKind
	ev   negotiation.Event
}

// Stats reports queue pressure for /metrics.
type Stats struct {
	QueueDepth       int
	QueueCapacity    int
	DropRoundTotal   uint64
	DropActTotal     uint64
	DropDealTotal    uint64
	WriteErrorsTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS rounds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			round INTEGER NOT NULL,
			agent TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			end_reason TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_round ON rounds(round);`,
		`CREATE TABLE IF NOT EXISTS acts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			round INTEGER NOT NULL,
			direction TEXT NOT NULL,
			counterparty TEXT NOT NULL,
			act_id TEXT,
			kind TEXT,
			price REAL,
			unit TEXT,
			quantity_json TEXT,
			rule TEXT,
			text TEXT,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_acts_counterparty ON acts(counterparty, id);`,
		`CREATE TABLE IF NOT EXISTS deals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			round INTEGER NOT NULL,
			counterparty TEXT NOT NULL,
			act_id TEXT,
			price REAL,
			unit TEXT,
			quantity_json TEXT,
			rule TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_deals_counterparty ON deals(counterparty);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','` + SchemaVersion + `');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteEvent queues ev for the writer goroutine. It never blocks: when the
// writer falls behind the event is dropped and counted.
func (s *SQLiteIndex) WriteEvent(ev negotiation.Event) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	var kind reqKind
	var drops *atomic.Uint64
	switch ev.Kind {
	case negotiation.EventRoundStart, negotiation.EventRoundEnd:
		kind, drops = reqRound, &s.dropRound
	case negotiation.EventInbound, negotiation.EventOutbound, negotiation.EventRejected:
		kind, drops = reqAct, &s.dropAct
	case negotiation.EventDeal:
		kind, drops = reqDeal, &s.dropDeal
	case negotiation.EventUtility:
		kind, drops = reqMeta, &s.dropRound
	default:
		return nil
	}
	select {
	case s.ch <- req{kind: kind, ev: ev}:
	default:
		drops.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropRoundTotal:   s.dropRound.Load(),
		DropActTotal:     s.dropAct.Load(),
		DropDealTotal:    s.dropDeal.Load(),
		WriteErrorsTotal: s.writeErrors.Load(),
	}
}

func direction(k negotiation.EventKind) string {
	switch k {
	case negotiation.EventInbound:
		return "in"
	case negotiation.EventOutbound:
		return "out"
	default:
		return "rejected"
	}
}

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// actColumns flattens an optional act into its id, kind, price, unit and
// quantity columns.
func actColumns(a *negotiation.Act) (id, kind any, price, unit, qty any) {
	if a == nil {
		return nil, nil, nil, nil, nil
	}
	id, kind = a.ID, string(a.Kind)
	if a.Price != nil {
		price, unit = a.Price.Value, a.Price.Unit
	}
	if len(a.Quantity) > 0 {
		b, _ := json.Marshal(a.Quantity)
		qty = string(b)
	}
	return
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRound, _ := s.db.Prepare(`INSERT INTO rounds(round,agent,started_at) VALUES(?,?,?)`)
	endRound, _ := s.db.Prepare(`UPDATE rounds SET ended_at=?, end_reason=? WHERE id=(SELECT MAX(id) FROM rounds WHERE round=? AND ended_at IS NULL)`)
	insertAct, _ := s.db.Prepare(`INSERT INTO acts(ts,round,direction,counterparty,act_id,kind,price,unit,quantity_json,rule,text,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertDeal, _ := s.db.Prepare(`INSERT INTO deals(ts,round,counterparty,act_id,price,unit,quantity_json,rule) VALUES(?,?,?,?,?,?,?,?)`)
	upsertMeta, _ := s.db.Prepare(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertRound, endRound, insertAct, insertDeal, upsertMeta} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = 500 * time.Millisecond
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrors.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.writeErrors.Add(1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	// An idle writer still commits within commitMaxWait.
	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()

	for {
		select {
		case r, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			begin()
			if tx == nil {
				s.writeErrors.Add(1)
				continue
			}
			ev := r.ev
			switch r.kind {
			case reqRound:
				if ev.Kind == negotiation.EventRoundStart {
					exec(insertRound, ev.Round, ev.Agent, stamp(ev.Time))
				} else {
					reason := ev.Text
					if reason == "" {
						reason = "ended"
					}
					exec(endRound, stamp(ev.Time), reason, ev.Round)
				}
			case reqAct:
				raw, _ := json.Marshal(ev)
				id, kind, price, unit, qty := actColumns(ev.Act)
				exec(insertAct, stamp(ev.Time), ev.Round, direction(ev.Kind), ev.Counterparty,
					id, kind, price, unit, qty, string(ev.Rule), ev.Text, string(raw))
			case reqDeal:
				id, _, price, unit, qty := actColumns(ev.Act)
				exec(insertDeal, stamp(ev.Time), ev.Round, ev.Counterparty, id, price, unit, qty, string(ev.Rule))
			case reqMeta:
				exec(upsertMeta, "utility_goods", ev.Text)
				exec(upsertMeta, "agent_name", ev.Agent)
			}
			if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
				commit()
			}
		case <-ticker.C:
			commit()
		}
	}
}
