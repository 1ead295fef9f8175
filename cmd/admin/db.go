package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"negotiator.ai/internal/persistence/indexdb"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	round := fs.Int("round", 0, "round filter (acts, deals)")
	counterparty := fs.String("counterparty", "", "counterparty filter (acts, deals)")
	limit := fs.Int("limit", 50, "result limit")
	_ = fs.Parse(args)

	q := "rounds"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = indexdb.DefaultPath(*dataDir)
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if *limit <= 0 {
		*limit = 50
	}
	where, fargs := filters(*round, *counterparty)

	switch q {
	case "meta":
		rows, err := db.Query(`SELECT key,value FROM meta ORDER BY key`)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			}
			if err := rows.Scan(&r.Key, &r.Value); err != nil {
				fail("scan", err)
			}
			printJSON(r)
		}
		checkRows(rows)

	case "rounds":
		rows, err := db.Query(`SELECT round,agent,started_at,ended_at,end_reason FROM rounds ORDER BY id DESC LIMIT ?`, *limit)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				r struct {
					Round     int    `json:"round"`
					Agent     string `json:"agent"`
					StartedAt string `json:"started_at"`
					EndedAt   string `json:"ended_at,omitempty"`
					EndReason string `json:"end_reason,omitempty"`
				}
				ended, reason sql.NullString
			)
			if err := rows.Scan(&r.Round, &r.Agent, &r.StartedAt, &ended, &reason); err != nil {
				fail("scan", err)
			}
			r.EndedAt, r.EndReason = ended.String, reason.String
			printJSON(r)
		}
		checkRows(rows)

	case "acts":
		rows, err := db.Query(`SELECT ts,round,direction,counterparty,act_id,kind,price,unit,quantity_json,rule,text FROM acts`+where+` ORDER BY id DESC LIMIT ?`, append(fargs, *limit)...)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				r struct {
					TS           string          `json:"ts"`
					Round        int             `json:"round"`
					Direction    string          `json:"direction"`
					Counterparty string          `json:"counterparty"`
					ActID        string          `json:"act_id,omitempty"`
					Kind         string          `json:"kind,omitempty"`
					Price        *float64        `json:"price,omitempty"`
					Unit         string          `json:"unit,omitempty"`
					Quantity     json.RawMessage `json:"quantity,omitempty"`
					Rule         string          `json:"rule,omitempty"`
					Text         string          `json:"text,omitempty"`
				}
				actID, kind, unit, qty, rule, text sql.NullString
				price                              sql.NullFloat64
			)
			if err := rows.Scan(&r.TS, &r.Round, &r.Direction, &r.Counterparty, &actID, &kind, &price, &unit, &qty, &rule, &text); err != nil {
				fail("scan", err)
			}
			r.ActID, r.Kind, r.Unit, r.Rule, r.Text = actID.String, kind.String, unit.String, rule.String, text.String
			if price.Valid {
				r.Price = &price.Float64
			}
			if qty.Valid && qty.String != "" {
				r.Quantity = json.RawMessage(qty.String)
			}
			printJSON(r)
		}
		checkRows(rows)

	case "deals":
		rows, err := db.Query(`SELECT ts,round,counterparty,act_id,price,unit,quantity_json,rule FROM deals`+where+` ORDER BY id DESC LIMIT ?`, append(fargs, *limit)...)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				r struct {
					TS           string          `json:"ts"`
					Round        int             `json:"round"`
					Counterparty string          `json:"counterparty"`
					ActID        string          `json:"act_id,omitempty"`
					Price        *float64        `json:"price,omitempty"`
					Unit         string          `json:"unit,omitempty"`
					Quantity     json.RawMessage `json:"quantity,omitempty"`
					Rule         string          `json:"rule,omitempty"`
				}
				actID, unit, qty, rule sql.NullString
				price                  sql.NullFloat64
			)
			if err := rows.Scan(&r.TS, &r.Round, &r.Counterparty, &actID, &price, &unit, &qty, &rule); err != nil {
				fail("scan", err)
			}
			r.ActID, r.Unit, r.Rule = actID.String, unit.String, rule.String
			if price.Valid {
				r.Price = &price.Float64
			}
			if qty.Valid && qty.String != "" {
				r.Quantity = json.RawMessage(qty.String)
			}
			printJSON(r)
		}
		checkRows(rows)

	case "revenue":
		rows, err := db.Query(`SELECT counterparty,COUNT(*),COALESCE(SUM(price),0),COALESCE(MAX(unit),'') FROM deals`+where+` GROUP BY counterparty ORDER BY counterparty`, fargs...)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Counterparty string  `json:"counterparty"`
				Deals        int     `json:"deals"`
				Revenue      float64 `json:"revenue"`
				Unit         string  `json:"unit,omitempty"`
			}
			if err := rows.Scan(&r.Counterparty, &r.Deals, &r.Revenue, &r.Unit); err != nil {
				fail("scan", err)
			}
			printJSON(r)
		}
		checkRows(rows)

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data|-db PATH] [-round N] [-counterparty NAME] meta|rounds|acts|deals|revenue")
		os.Exit(2)
	}
}

func filters(round int, counterparty string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if round > 0 {
		conds = append(conds, "round=?")
		args = append(args, round)
	}
	if cp := strings.TrimSpace(counterparty); cp != "" {
		conds = append(conds, "counterparty=?")
		args = append(args, cp)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func checkRows(rows *sql.Rows) {
	if err := rows.Err(); err != nil {
		fail("rows", err)
	}
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
