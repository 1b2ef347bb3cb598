package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	itemType := fs.String("item", "", "item type filter (discards)")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(db, os.Stdout, q, *limit, strings.TrimSpace(*itemType)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if strings.HasPrefix(err.Error(), "unknown query") {
			fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-world WORLD|-db PATH] [-limit N] snapshots|ticks|sales|discards|runs")
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func runQuery(db *sql.DB, out io.Writer, q string, limit int, itemType string) error {
	if limit <= 0 {
		limit = 20
	}
	switch q {
	case "snapshots":
		rows, err := db.Query(`SELECT tick,path,seed,width,height,credits,machines,items,waste_queue FROM snapshots ORDER BY tick DESC LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick       int64  `json:"tick"`
				Path       string `json:"path"`
				Seed       int64  `json:"seed"`
				Width      int    `json:"width"`
				Height     int    `json:"height"`
				Credits    int    `json:"credits"`
				Machines   int    `json:"machines"`
				Items      int    `json:"items"`
				WasteQueue int    `json:"waste_queue"`
			}
			if err := rows.Scan(&r.Tick, &r.Path, &r.Seed, &r.Width, &r.Height, &r.Credits, &r.Machines, &r.Items, &r.WasteQueue); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(out, r)
		}
		return rows.Err()

	case "ticks":
		rows, err := db.Query(`SELECT tick,digest,credits,items,events,reconfigs FROM ticks ORDER BY tick DESC LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick      int64  `json:"tick"`
				Digest    string `json:"digest"`
				Credits   int    `json:"credits"`
				Items     int    `json:"items"`
				Events    int    `json:"events"`
				Reconfigs int    `json:"reconfigs"`
			}
			if err := rows.Scan(&r.Tick, &r.Digest, &r.Credits, &r.Items, &r.Events, &r.Reconfigs); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(out, r)
		}
		return rows.Err()

	case "sales":
		rows, err := db.Query(`SELECT COALESCE(item_type,''),COUNT(*),COALESCE(SUM(value),0) FROM audits WHERE type='ITEM_SOLD' GROUP BY item_type ORDER BY 3 DESC, 1 ASC LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				ItemType string `json:"item_type"`
				Count    int    `json:"count"`
				Credits  int    `json:"credits"`
			}
			if err := rows.Scan(&r.ItemType, &r.Count, &r.Credits); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(out, r)
		}
		return rows.Err()

	case "discards":
		query := `SELECT tick,item_id,item_type,x,y,reason FROM audits WHERE type='ITEM_DISCARDED' ORDER BY tick DESC, seq DESC LIMIT ?`
		args := []any{limit}
		if itemType != "" {
			query = `SELECT tick,item_id,item_type,x,y,reason FROM audits WHERE type='ITEM_DISCARDED' AND item_type=? ORDER BY tick DESC, seq DESC LIMIT ?`
			args = []any{itemType, limit}
		}
		rows, err := db.Query(query, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick     int64  `json:"tick"`
				ItemID   string `json:"item_id"`
				ItemType string `json:"item_type"`
				X        int    `json:"x"`
				Y        int    `json:"y"`
				Reason   string `json:"reason"`
			}
			var id, typ, reason sql.NullString
			if err := rows.Scan(&r.Tick, &id, &typ, &r.X, &r.Y, &reason); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			r.ItemID, r.ItemType, r.Reason = id.String, typ.String, reason.String
			printJSON(out, r)
		}
		return rows.Err()

	case "runs":
		rows, err := db.Query(`SELECT run_id,world_id,level_id,seed,start_tick,started_at FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				RunID     string `json:"run_id"`
				WorldID   string `json:"world_id"`
				LevelID   string `json:"level_id"`
				Seed      int64  `json:"seed"`
				StartTick int64  `json:"start_tick"`
				StartedAt string `json:"started_at"`
			}
			if err := rows.Scan(&r.RunID, &r.WorldID, &r.LevelID, &r.Seed, &r.StartTick, &r.StartedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(out, r)
		}
		return rows.Err()

	default:
		return fmt.Errorf("unknown query: %s", q)
	}
}

func printJSON(out io.Writer, v any) {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
