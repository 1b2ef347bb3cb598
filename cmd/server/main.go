package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"factorysim.ai/internal/metrics"
	"factorysim.ai/internal/persistence/archive"
	"factorysim.ai/internal/persistence/indexdb"
	persistlog "factorysim.ai/internal/persistence/log"
	"factorysim.ai/internal/persistence/snapshot"
	"factorysim.ai/internal/sim/catalogs"
	"factorysim.ai/internal/sim/level"
	"factorysim.ai/internal/sim/tuning"
	"factorysim.ai/internal/sim/world"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "factory_1", "world id")
		seed       = flag.Int64("seed", 0, "world seed (fresh worlds only; 0 uses tuning.yaml)")
		configDir  = flag.String("configs", "./configs", "config directory")
		levelPath  = flag.String("level", "", "level yaml (default: <configs>/levels/recycling_line.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable indexing (tick/audit + catalogs + snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}

	// Load tuning (required for fresh world; optional for snapshot resumes).
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" || !os.IsNotExist(tuneErr) {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		// The snapshot carries the effective tuning.
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	cfg := world.ConfigFromTuning(*worldID, tune)
	var w *world.World
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, snap.Header.WorldID)
		}
		w, err = world.NewFromSnapshot(cfg, cats, snap)
		if err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
	} else {
		lp := strings.TrimSpace(*levelPath)
		if lp == "" {
			lp = filepath.Join(*configDir, "levels", "recycling_line.yaml")
		}
		lvl, err := level.Load(lp)
		if err != nil {
			logger.Fatalf("load level: %v", err)
		}
		if *seed != 0 {
			cfg.Seed = *seed
		}
		w, err = world.New(cfg, cats, lvl)
		if err != nil {
			logger.Fatalf("world: %v", err)
		}
		logger.Printf("fresh world level=%s seed=%d", lvl.ID, cfg.Seed)
	}
	w.SetLogger(log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds))

	// Optional: read-model index backend (does not affect sim determinism).
	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	var runID string
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
		runID, err = idx.BeginRun(indexdb.RunInfo{
			WorldID:   w.Config().ID,
			LevelID:   w.LevelID(),
			Seed:      w.Config().Seed,
			StartTick: w.CurrentTick(),
		})
		if err != nil {
			logger.Printf("index backend: begin run: %v", err)
		}
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	logger.Printf("run id=%s", runID)

	tickLog := persistlog.NewTickLogger(worldDir)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer tickLog.Close()
	defer auditLog.Close()
	w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
	w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})

	mc := metrics.New(w.Config().ID)
	if idx != nil {
		mc.WatchIndex(idx.Stats)
	}
	w.SetMetricsSink(mc)

	ctx, cancel := signalContext()
	defer cancel()

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap)
				}
				if _, _, err := archive.ArchiveRunSnapshot(worldDir, runID, path, snap); err != nil {
					logger.Printf("archive snapshot: %v", err)
				}
			}
		}
	}()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", mc.Handler())

	if envBool("FS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		registerAdminRoutes(mux, w, idx, logger)
	} else {
		logger.Printf("admin endpoints disabled (FS_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("FS_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
