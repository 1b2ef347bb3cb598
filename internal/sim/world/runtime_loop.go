package world

import (
	"context"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingReconfig []reconfigureReq
	var pendingAdmin []adminSnapshotReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case req := <-w.reconfigure:
			pendingReconfig = append(pendingReconfig, req)
		case <-ticker.C:
			digest := w.stepInternal(pendingReconfig)
			w.handleAdminSnapshotRequests(pendingAdmin, digest)
			pendingReconfig = pendingReconfig[:0]
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (w *World) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
}

// StepOnce advances the world by a single tick using the same ordering semantics as the server.
// It is primarily intended for deterministic replays/tests.
func (w *World) StepOnce(reconfigs []CellConfig) (tick uint64, digest string) {
	reqs := make([]reconfigureReq, 0, len(reconfigs))
	for _, c := range reconfigs {
		reqs = append(reqs, reconfigureReq{Config: c})
	}
	tick = w.tick.Load()
	digest = w.stepInternal(reqs)
	return tick, digest
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
