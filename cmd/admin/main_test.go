package main

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"factorysim.ai/internal/persistence/indexdb"
	persistlog "factorysim.ai/internal/persistence/log"
	"factorysim.ai/internal/persistence/snapshot"
	"factorysim.ai/internal/sim/factory"
	"factorysim.ai/internal/sim/world"
)

func seedIndex(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "world.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := idx.BeginRun(indexdb.RunInfo{WorldID: "w", LevelID: "recycling_line", Seed: 3}); err != nil {
		t.Fatalf("begin run: %v", err)
	}
	_ = idx.WriteTick(world.TickLogEntry{Tick: 5, Credits: 150, Digest: "d5"})
	_ = idx.WriteAudit(world.AuditEntry{Tick: 5, Event: factory.Event{Type: factory.EventSold, ItemID: "I1", ItemType: "metal", Value: 10}})
	_ = idx.WriteAudit(world.AuditEntry{Tick: 6, Event: factory.Event{Type: factory.EventSold, ItemID: "I2", ItemType: "aluminumIngot", Value: 120}})
	_ = idx.WriteAudit(world.AuditEntry{Tick: 7, Event: factory.Event{Type: factory.EventDiscarded, ItemID: "I3", ItemType: "trash", Reason: "WAIT_TIMEOUT"}})
	idx.RecordSnapshot("/snaps/5.snap.zst", snapshot.SnapshotV1{Header: snapshot.Header{Tick: 5}, Width: 8, Height: 3})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func query(t *testing.T, path, q, item string) string {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	var buf bytes.Buffer
	if err := runQuery(db, &buf, q, 10, item); err != nil {
		t.Fatalf("%s: %v", q, err)
	}
	return buf.String()
}

func TestRunQuery(t *testing.T) {
	path := seedIndex(t)

	sales := strings.Split(strings.TrimSpace(query(t, path, "sales", "")), "\n")
	if len(sales) != 2 || !strings.Contains(sales[0], `"aluminumIngot"`) {
		t.Fatalf("sales = %v", sales)
	}
	if out := query(t, path, "discards", "trash"); !strings.Contains(out, "WAIT_TIMEOUT") {
		t.Fatalf("discards = %s", out)
	}
	if out := query(t, path, "discards", "can"); out != "" {
		t.Fatalf("filtered discards = %s", out)
	}
	if out := query(t, path, "ticks", ""); !strings.Contains(out, `"digest":"d5"`) {
		t.Fatalf("ticks = %s", out)
	}
	if out := query(t, path, "snapshots", ""); !strings.Contains(out, `"width":8`) {
		t.Fatalf("snapshots = %s", out)
	}
	if out := query(t, path, "runs", ""); !strings.Contains(out, `"level_id":"recycling_line"`) {
		t.Fatalf("runs = %s", out)
	}

	db, _ := sql.Open("sqlite", path)
	defer db.Close()
	if err := runQuery(db, &bytes.Buffer{}, "agents", 10, ""); err == nil || !strings.HasPrefix(err.Error(), "unknown query") {
		t.Fatalf("err = %v", err)
	}
}

func TestScanAudit_Filters(t *testing.T) {
	worldDir := t.TempDir()
	al := persistlog.NewAuditLogger(worldDir)
	for i := uint64(0); i < 10; i++ {
		typ := factory.EventMoved
		if i%3 == 0 {
			typ = factory.EventSold
		}
		_ = al.WriteAudit(world.AuditEntry{Tick: i, Event: factory.Event{Type: typ, ItemID: "I1"}})
	}
	if err := al.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	dir := filepath.Join(worldDir, persistlog.AuditPrefix)
	var ticks []uint64
	n, err := scanAudit(dir, auditFilter{Type: factory.EventSold, Since: 1, To: 8}, func(e world.AuditEntry) {
		ticks = append(ticks, e.Tick)
	})
	if err != nil || n != 2 || ticks[0] != 3 || ticks[1] != 6 {
		t.Fatalf("n=%d ticks=%v err=%v", n, ticks, err)
	}
	if n, _ := scanAudit(dir, auditFilter{ItemID: "other"}, func(world.AuditEntry) {}); n != 0 {
		t.Fatalf("item filter n=%d", n)
	}
}

func TestInspect(t *testing.T) {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, WorldID: "w", Tick: 9},
		Width:  2, Height: 1, Credits: 40,
		Cells: []snapshot.CellV1{{
			X: 1, Y: 0, Machine: "smelter", Direction: "RIGHT", MachineState: "PROCESSING",
			SelectedRecipe: "smelt_aluminum",
			Items:          []snapshot.ItemV1{{ID: "I1", Type: "shreddedAluminum", State: "PROCESSING"}},
		}},
	}
	var buf bytes.Buffer
	inspect(&buf, snap)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
	if !strings.Contains(lines[1], `"shreddedAluminum:PROCESSING"`) || !strings.Contains(lines[1], `"recipe":"smelt_aluminum"`) {
		t.Fatalf("cell line = %s", lines[1])
	}
}

func TestAdminURL(t *testing.T) {
	if got := adminURL(" http://h:1/ ", "state"); got != "http://h:1/admin/v1/state" {
		t.Fatalf("url = %s", got)
	}
}
