package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"factorysim.ai/internal/persistence/snapshot"
	"factorysim.ai/internal/sim/catalogs"
	"factorysim.ai/internal/sim/factory"
	"factorysim.ai/internal/sim/tuning"
	"factorysim.ai/internal/sim/world"
)

// SQLiteIndex is a queryable secondary index over the tick/audit logs and snapshots.
// Writes are queued and applied by a single writer goroutine; the JSONL logs remain the
// source of truth, so a full queue drops rows instead of stalling the sim.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropAudit    atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqSnapshot
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	audit    world.AuditEntry
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick       uint64
	Path       string
	Seed       int64
	Width      int
	Height     int
	Credits    int
	Machines   int
	Items      int
	WasteQueue int
}

// Stats reports queue health for metrics.
type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropTickTotal     uint64
	DropAuditTotal    uint64
	DropSnapshotTotal uint64
}

// RunInfo identifies one server process lifetime against a world.
type RunInfo struct {
	WorldID   string
	LevelID   string
	Seed      int64
	StartTick uint64
}

// SaleSummary aggregates ITEM_SOLD audits per item type.
type SaleSummary struct {
	ItemType string `json:"item_type"`
	Count    int    `json:"count"`
	Credits  int    `json:"credits"`
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
		// Spawner bursts and busy sellers produce several audits per tick.
		ch: make(chan req, 65536),
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
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			world_id TEXT NOT NULL,
			level_id TEXT NOT NULL,
			seed INTEGER NOT NULL,
			start_tick INTEGER NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			credits INTEGER NOT NULL,
			items INTEGER NOT NULL,
			events INTEGER NOT NULL,
			reconfigs INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS reconfigs (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			item_id TEXT,
			item_type TEXT,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			reason TEXT,
			value INTEGER NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_type_tick ON audits(type, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_item ON audits(item_id);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			credits INTEGER NOT NULL,
			machines INTEGER NOT NULL,
			items INTEGER NOT NULL,
			waste_queue INTEGER NOT NULL
		);`,
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

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropAuditTotal:    s.dropAudit.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:       snap.Header.Tick,
		Path:       path,
		Seed:       snap.Seed,
		Width:      snap.Width,
		Height:     snap.Height,
		Credits:    snap.Credits,
		WasteQueue: len(snap.WasteQueue),
	}
	for _, c := range snap.Cells {
		if c.Machine != "" {
			r.Machines++
		}
		r.Items += len(c.Items) + len(c.Waiting)
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// BeginRun records a new run and makes it current. It runs synchronously, before the
// world loop starts.
func (s *SQLiteIndex) BeginRun(info RunInfo) (string, error) {
	if s == nil {
		return "", nil
	}
	runID := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT INTO runs(run_id,world_id,level_id,seed,start_tick,started_at) VALUES(?,?,?,?,?,?)`,
		runID, info.WorldID, info.LevelID, info.Seed, int64(info.StartTick), now); err != nil {
		return "", err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('current_run',?)`, runID); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return runID, nil
}

func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil || cats == nil {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	for _, f := range []struct {
		name, file, digest string
	}{
		{"machines", "machines.json", cats.Machines.Digest},
		{"items", "items.json", cats.Items.Digest},
		{"recipes", "recipes.json", cats.Recipes.Digest},
		{"waste_crates", "waste_crates.json", cats.WasteCrates.Digest},
	} {
		if configDir == "" {
			break
		}
		b, err := os.ReadFile(filepath.Join(configDir, f.file))
		if err != nil {
			continue
		}
		rows = append(rows, kv{name: f.name, digest: f.digest, json: b})
	}

	// Tuning: store the values we actually apply (canonical JSON).
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('catalogs_digest',?)`, cats.Digest()); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Sales returns sold counts and credits per item type, highest earners first.
// Rows still queued in the writer are not visible.
func (s *SQLiteIndex) Sales(ctx context.Context) ([]SaleSummary, error) {
	if s == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT item_type, COUNT(*), COALESCE(SUM(value),0) FROM audits
		WHERE type=? GROUP BY item_type ORDER BY 3 DESC, 1 ASC`, factory.EventSold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SaleSummary
	for rows.Next() {
		var r SaleSummary
		var itemType sql.NullString
		if err := rows.Scan(&itemType, &r.Count, &r.Credits); err != nil {
			return nil, err
		}
		r.ItemType = itemType.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,credits,items,events,reconfigs,raw_json) VALUES(?,?,?,?,?,?,?)`)
	insertReconfig, _ := s.db.Prepare(`INSERT OR REPLACE INTO reconfigs(tick,seq,x,y,raw_json) VALUES(?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(tick,seq,type,item_id,item_type,x,y,reason,value) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,seed,width,height,credits,machines,items,waste_queue) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertReconfig, insertAudit, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
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
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil || tx == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			e := r.tick
			raw, _ := json.Marshal(e)
			if !exec(insertTick, int64(e.Tick), e.Digest, e.Credits, e.Items, e.Events, len(e.Reconfigs), string(raw)) {
				continue
			}
			for i, rc := range e.Reconfigs {
				b, _ := json.Marshal(rc)
				if !exec(insertReconfig, int64(e.Tick), i, rc.X, rc.Y, string(b)) {
					break
				}
			}

		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			if !exec(insertAudit, int64(a.Tick), seq, a.Type, a.ItemID, a.ItemType, a.X, a.Y, a.Reason, a.Value) {
				continue
			}

		case reqSnapshot:
			sn := r.snapshot
			if !exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.Seed, sn.Width, sn.Height, sn.Credits, sn.Machines, sn.Items, sn.WasteQueue) {
				continue
			}
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
