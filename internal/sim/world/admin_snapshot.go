package world

import (
	"context"
	"errors"
)

var (
	ErrSnapshotUnavailable  = errors.New("snapshot requests not available")
	ErrNoSnapshotSink       = errors.New("snapshot sink not configured")
	ErrSnapshotBackpressure = errors.New("snapshot sink backpressure")
)

// SnapshotReceipt describes the snapshot handed to the sink for an admin request.
// Digest is the state digest of Tick, so a replay can be checked against it.
type SnapshotReceipt struct {
	Tick       uint64 `json:"tick"`
	Digest     string `json:"digest"`
	Credits    int    `json:"credits"`
	Items      int    `json:"items"`
	WasteQueue int    `json:"waste_queue"`
	// Reconfigs counts cell changes applied since this process started the world.
	Reconfigs uint64 `json:"reconfigs_applied"`
}

type adminSnapshotReq struct {
	Resp chan adminSnapshotResp
}

type adminSnapshotResp struct {
	Receipt SnapshotReceipt
	Err     error
}

// RequestSnapshot asks the world loop to export its state after the next tick and hand it to
// the snapshot sink. Requests queued during one tick share a single snapshot.
// It is safe to call from other goroutines (e.g. HTTP handlers).
func (w *World) RequestSnapshot(ctx context.Context) (SnapshotReceipt, error) {
	if w == nil || w.admin == nil {
		return SnapshotReceipt{}, ErrSnapshotUnavailable
	}
	resp := make(chan adminSnapshotResp, 1)
	select {
	case w.admin <- adminSnapshotReq{Resp: resp}:
	case <-ctx.Done():
		return SnapshotReceipt{}, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.Receipt, r.Err
	case <-ctx.Done():
		return SnapshotReceipt{}, ctx.Err()
	}
}

// handleAdminSnapshotRequests runs right after a step; digest is that step's state digest.
func (w *World) handleAdminSnapshotRequests(reqs []adminSnapshotReq, digest string) {
	if w == nil || len(reqs) == 0 {
		return
	}
	// The step that just ran was tick cur-1; the snapshot captures its end state.
	snapTick := uint64(0)
	if cur := w.tick.Load(); cur > 0 {
		snapTick = cur - 1
	}
	receipt := SnapshotReceipt{
		Tick:       snapTick,
		Digest:     digest,
		Credits:    w.credits,
		Items:      w.grid.ItemCount(),
		WasteQueue: len(w.wasteQueue),
		Reconfigs:  w.reconfigsApplied,
	}

	var err error
	if w.snapshotSink == nil {
		err = ErrNoSnapshotSink
	} else {
		select {
		case w.snapshotSink <- w.ExportSnapshot(receipt.Tick):
		default:
			err = ErrSnapshotBackpressure
		}
	}

	for _, r := range reqs {
		if r.Resp == nil {
			continue
		}
		select {
		case r.Resp <- adminSnapshotResp{Receipt: receipt, Err: err}:
		default:
		}
	}
}
