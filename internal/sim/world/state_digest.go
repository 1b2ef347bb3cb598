package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"

	"factorysim.ai/internal/sim/factory"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

// StateDigest hashes the full simulation state of the last completed tick.
func (w *World) StateDigest() string {
	t := w.tick.Load()
	if t > 0 {
		t--
	}
	return w.stateDigest(t)
}

func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteI64(h, &tmp, int64(w.credits))
	digestWriteU64(h, &tmp, w.nextItemNum)
	digestWriteU64(h, &tmp, w.rng.draws)
	digestWriteU64(h, &tmp, uint64(len(w.wasteQueue)))
	for _, id := range w.wasteQueue {
		digestWriteString(h, &tmp, id)
	}

	for _, c := range w.grid.Cells() {
		if c.MachineID == "" && len(c.Items) == 0 && len(c.WaitingItems) == 0 {
			continue
		}
		w.digestCell(h, &tmp, c)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (w *World) digestCell(h hashWriter, tmp *[8]byte, c *factory.Cell) {
	digestWriteI64(h, tmp, int64(c.X))
	digestWriteI64(h, tmp, int64(c.Y))
	digestWriteString(h, tmp, c.MachineID)
	h.Write([]byte{byte(c.Direction), byte(c.MachineState)})
	digestWriteString(h, tmp, c.SortLeft)
	digestWriteString(h, tmp, c.SortRight)
	digestWriteString(h, tmp, c.SelectedRecipeID)
	digestWriteString(h, tmp, c.ActiveRecipeID)

	if c.Crate != nil {
		digestWriteString(h, tmp, c.Crate.DefID)
		writeItemMap(h, tmp, c.Crate.Remaining)
	} else {
		h.Write([]byte{0})
	}

	switch m := c.Machine.(type) {
	case *factory.Spawner:
		digestWriteF64(h, tmp, m.LastSpawnTime)
	case *factory.Seller:
		digestWriteI64(h, tmp, int64(m.Sold))
		digestWriteI64(h, tmp, int64(m.Earned))
	}

	digestWriteU64(h, tmp, uint64(len(c.Items)))
	for _, it := range c.Items {
		digestItem(h, tmp, it)
	}
	digestWriteU64(h, tmp, uint64(len(c.WaitingItems)))
	for _, it := range c.WaitingItems {
		digestItem(h, tmp, it)
	}
}

func digestItem(h hashWriter, tmp *[8]byte, it *factory.Item) {
	digestWriteString(h, tmp, it.ID)
	digestWriteString(h, tmp, it.ItemType)
	h.Write([]byte{byte(it.State), byte(it.Handoff)})
	for _, v := range []int{it.X, it.Y, it.SourceX, it.SourceY, it.TargetX, it.TargetY, it.StackIndex} {
		digestWriteI64(h, tmp, int64(v))
	}
	for _, v := range []float64{it.MoveProgress, it.MoveStartTime, it.WaitingStartTime, it.ProcessingStartTime, it.ProcessingDuration} {
		digestWriteF64(h, tmp, v)
	}
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func digestWriteString(h hashWriter, tmp *[8]byte, s string) {
	digestWriteU64(h, tmp, uint64(len(s)))
	h.Write([]byte(s))
}

// writeItemMap hashes non-zero counts in key order.
func writeItemMap(h hashWriter, tmp *[8]byte, m map[string]int) {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v != 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	digestWriteU64(h, tmp, uint64(len(keys)))
	for _, k := range keys {
		digestWriteString(h, tmp, k)
		digestWriteI64(h, tmp, int64(m[k]))
	}
}
