package factory

import (
	"sort"

	"factorysim.ai/internal/sim/catalogs"
)

// WasteCrate is a spawner's depleting inventory.
type WasteCrate struct {
	DefID     string
	Remaining map[string]int
}

func NewWasteCrate(def catalogs.WasteCrateDef) *WasteCrate {
	wc := &WasteCrate{DefID: def.ID, Remaining: map[string]int{}}
	for _, c := range def.Contents {
		if c.Item == "" || c.Count <= 0 {
			continue
		}
		wc.Remaining[c.Item] += c.Count
	}
	return wc
}

// Available lists item types with a positive count, sorted for deterministic picks.
func (wc *WasteCrate) Available() []string {
	if wc == nil {
		return nil
	}
	out := make([]string, 0, len(wc.Remaining))
	for item, n := range wc.Remaining {
		if n > 0 {
			out = append(out, item)
		}
	}
	sort.Strings(out)
	return out
}

func (wc *WasteCrate) Total() int {
	if wc == nil {
		return 0
	}
	n := 0
	for _, v := range wc.Remaining {
		if v > 0 {
			n += v
		}
	}
	return n
}

func (wc *WasteCrate) Depleted() bool { return wc.Total() == 0 }

// Take decrements one unit of item; it never goes below zero.
func (wc *WasteCrate) Take(item string) bool {
	if wc == nil || wc.Remaining[item] <= 0 {
		return false
	}
	wc.Remaining[item]--
	return true
}
