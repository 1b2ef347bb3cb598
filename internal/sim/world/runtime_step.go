package world

import (
	"time"

	"factorysim.ai/internal/sim/factory"
)

// stepInternal runs one tick: apply boundary requests, interpolate moves (handoffs and
// arrivals), then every cell's UpdateLogic in row-major order.
func (w *World) stepInternal(reconfigs []reconfigureReq) string {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	w.tickEvents = w.tickEvents[:0]

	// Editor changes apply at the tick boundary, before any machine runs.
	applied := make([]CellConfig, 0, len(reconfigs))
	for _, r := range reconfigs {
		err := w.applyCellConfig(r.Config)
		if err == nil {
			applied = append(applied, r.Config)
		} else {
			w.log.Printf("WARN reconfigure (%d,%d): %v", r.Config.X, r.Config.Y, err)
		}
		if r.Resp != nil {
			select {
			case r.Resp <- err:
			default:
				// Caller gave up; don't block the sim loop.
			}
		}
	}
	if len(applied) > 0 {
		w.reconfigsApplied += uint64(len(applied))
		w.publishLayout()
	}

	// The clock reads the end of the interval this tick covers.
	w.clock.T = w.now(nowTick + 1)
	factory.AdvanceMovement(w.env, w.cfg.dt())
	for _, c := range w.grid.Cells() {
		c.Machine.UpdateLogic(w.env, c)
	}

	digest := w.stateDigest(nowTick)
	if w.auditLogger != nil {
		for _, ev := range w.tickEvents {
			_ = w.auditLogger.WriteAudit(AuditEntry{Tick: nowTick, Event: ev})
		}
	}
	itemCount := w.grid.ItemCount()
	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:      nowTick,
			Reconfigs: applied,
			Credits:   w.credits,
			Items:     itemCount,
			Events:    len(w.tickEvents),
			Digest:    digest,
		})
	}

	w.stepObservers(nowTick)

	// Snapshot every N ticks, starting after tick 0.
	if w.snapshotSink != nil && nowTick != 0 && w.cfg.SnapshotEveryTicks > 0 {
		every := uint64(w.cfg.SnapshotEveryTicks)
		if nowTick%every == 0 {
			snap := w.ExportSnapshot(nowTick)
			select {
			case w.snapshotSink <- snap:
			default:
				// Drop snapshot if sink is backed up.
			}
		}
	}

	step := time.Since(stepStart)
	nextTick := w.tick.Add(1)

	m := WorldMetrics{
		Tick:       nextTick,
		SimSeconds: w.clock.T,
		Items:      itemCount,
		Credits:    w.credits,
		WasteQueue: len(w.wasteQueue),
		Observers:  len(w.observers),
		QueueDepths: QueueDepths{
			Reconfigure: len(w.reconfigure),
			Admin:       len(w.admin),
			Observer:    len(w.observerJoin),
		},
		StepMS: float64(step.Microseconds()) / 1000.0,
	}
	w.metrics.Store(m)
	if w.metricsSink != nil {
		w.metricsSink.ObserveTick(m, w.tickEvents, step)
	}
	return digest
}
