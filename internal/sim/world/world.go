package world

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"sync/atomic"
	"time"

	"factorysim.ai/internal/persistence/snapshot"
	"factorysim.ai/internal/sim/catalogs"
	"factorysim.ai/internal/sim/factory"
	"factorysim.ai/internal/sim/level"
)

// World is a single-threaded authoritative factory simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs
	levelID  string

	tick atomic.Uint64

	grid  *factory.Grid
	env   *factory.Env
	clock *factory.ManualClock
	rng   *countingSource

	credits     int
	wasteQueue  []string
	nextItemNum uint64

	reconfigsApplied uint64

	// Events emitted by machines during the current tick.
	tickEvents []factory.Event

	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	admin         chan adminSnapshotReq
	reconfigure   chan reconfigureReq
	stop          chan struct{}

	observers map[string]*observerClient

	// Optional sinks (may be nil). Implemented in internal/persistence/* and internal/metrics.
	tickLogger  TickLogger
	auditLogger AuditLogger
	metricsSink MetricsSink

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	log *log.Logger

	metrics atomic.Value // WorldMetrics
	layout  atomic.Value // Layout
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// MetricsSink receives per-tick runtime signals. It is called from the world loop goroutine.
type MetricsSink interface {
	ObserveTick(m WorldMetrics, events []factory.Event, step time.Duration)
}

// TickLogEntry is the replay record of one tick: the external inputs applied at its start
// and the resulting state digest.
type TickLogEntry struct {
	Tick      uint64       `json:"tick"`
	Reconfigs []CellConfig `json:"reconfigs,omitempty"`
	Credits   int          `json:"credits"`
	Items     int          `json:"items"`
	Events    int          `json:"events"`
	Digest    string       `json:"digest"`
}

// AuditEntry is one machine event stamped with its tick.
type AuditEntry struct {
	Tick uint64 `json:"tick"`
	factory.Event
}

func New(cfg WorldConfig, cats *catalogs.Catalogs, lvl level.Level) (*World, error) {
	if cats == nil {
		return nil, fmt.Errorf("world: nil catalogs")
	}
	cfg.applyDefaults()
	if err := lvl.Validate(cats); err != nil {
		return nil, err
	}
	grid, err := factory.NewGrid(lvl.Width, lvl.Height)
	if err != nil {
		return nil, fmt.Errorf("level %q: %w", lvl.ID, err)
	}

	w := newWorld(cfg, cats)
	w.levelID = lvl.ID
	w.credits = lvl.Credits
	w.wasteQueue = append([]string(nil), lvl.WasteQueue...)

	for _, spec := range lvl.Cells {
		c := grid.At(spec.X, spec.Y)
		def, _ := cats.Machine(spec.Machine)
		m, err := factory.NewMachine(def)
		if err != nil {
			return nil, err
		}
		dir, _ := spec.Dir()
		c.MachineID = def.ID
		c.Machine = m
		c.Direction = dir
		c.SortLeft = spec.SortLeft
		c.SortRight = spec.SortRight
		c.SelectedRecipeID = spec.Recipe
		if def.Kind == catalogs.KindSpawner {
			crateID := spec.WasteCrate
			if crateID == "" {
				crateID = def.DefaultWasteCrate
			}
			if crateID != "" {
				cd, ok := cats.WasteCrate(crateID)
				if !ok {
					return nil, fmt.Errorf("level %q: (%d,%d): unknown waste crate %q", lvl.ID, spec.X, spec.Y, crateID)
				}
				c.Crate = factory.NewWasteCrate(cd)
			}
		}
	}
	w.attachGrid(grid)
	return w, nil
}

func newWorld(cfg WorldConfig, cats *catalogs.Catalogs) *World {
	w := &World{
		cfg:           cfg,
		catalogs:      cats,
		clock:         &factory.ManualClock{},
		rng:           newCountingSource(cfg.Seed),
		observerJoin:  make(chan ObserverJoinRequest, 64),
		observerLeave: make(chan string, 64),
		admin:         make(chan adminSnapshotReq, 16),
		reconfigure:   make(chan reconfigureReq, 256),
		stop:          make(chan struct{}),
		observers:     map[string]*observerClient{},
		log:           log.New(io.Discard, "", 0),
	}
	w.metrics.Store(WorldMetrics{})
	return w
}

// attachGrid (re)binds the engine handle to a grid.
func (w *World) attachGrid(g *factory.Grid) {
	w.grid = g
	w.env = &factory.Env{
		Grid:           g,
		Registry:       w.catalogs,
		Clock:          w.clock,
		Rand:           rand.New(w.rng),
		Log:            w.log,
		MoveSeconds:    w.cfg.ItemMoveSeconds,
		WaitingTimeout: w.cfg.WaitingTimeoutSeconds,
		BlankTimeout:   w.cfg.BlankCellTimeoutSeconds,
		NewItemID:      w.newItemID,
		Credit:         w.credit,
		Emit:           w.recordEvent,
		NextWasteCrate: w.popWasteCrate,
	}
	w.publishLayout()
}

func (w *World) SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	w.log = l
	if w.env != nil {
		w.env.Log = l
	}
}

func (w *World) SetTickLogger(l TickLogger)   { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }
func (w *World) SetMetricsSink(m MetricsSink) { w.metricsSink = m }

func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) Config() WorldConfig { return w.cfg }
func (w *World) LevelID() string     { return w.levelID }
func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// Credits, WasteQueue and Grid expose loop-owned state. Call them only from the loop
// goroutine or while the world is not running (tests, replay).
func (w *World) Credits() int         { return w.credits }
func (w *World) WasteQueue() []string { return append([]string(nil), w.wasteQueue...) }
func (w *World) Grid() *factory.Grid  { return w.grid }

func (w *World) newItemID() string {
	w.nextItemNum++
	return fmt.Sprintf("I%06d", w.nextItemNum)
}

func (w *World) credit(amount int) {
	if amount > 0 {
		w.credits += amount
	}
}

func (w *World) recordEvent(ev factory.Event) {
	w.tickEvents = append(w.tickEvents, ev)
}

func (w *World) popWasteCrate() (string, bool) {
	if len(w.wasteQueue) == 0 {
		return "", false
	}
	id := w.wasteQueue[0]
	w.wasteQueue = w.wasteQueue[1:]
	return id, true
}

func (w *World) now(tick uint64) float64 {
	return float64(tick) * w.cfg.dt()
}
