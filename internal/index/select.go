// internal/index/select.go
package index

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/solatis/killwatch/internal/filter"
	"github.com/solatis/killwatch/internal/types"
)

/*
 * Candidate selection.
 *
 * Probes the four indexes with the event's corresponding fields. When no
 * probe returns anything, every active profile is scanned (capped).
 * Otherwise the candidate set starts from the union of the non-empty
 * probes and is then narrowed per profile: a profile is pruned only when
 * some index it contributed to did not return it. Indexed constraints
 * derive from one top-level AND, so a probe miss on a contributed index
 * proves the profile cannot match; a miss on an index the profile never
 * touched proves nothing. Intersecting the probe sets wholesale would get
 * that wrong, dropping profiles that contribute to a strict subset of the
 * fired indexes.
 *
 * The unindexed fallback set is always unioned into the result: profiles
 * without index contributions can match any event.
 *
 * Capping truncates by descending recent-match frequency (the recorder's
 * decayed counters) rather than arbitrary order, so the profiles most
 * likely to match are evaluated first when the set must shrink.
 */

// FrequencyFunc reports a profile's decayed recent-match score.
type FrequencyFunc func(types.ProfileID) float64

// Select returns the candidate profiles for the event. limit bounds the
// fallback paths; freq orders truncation and may be nil (no priority).
func (ix *Indexes) Select(e *types.Event, limit int, freq FrequencyFunc) []filter.CompiledProfile {
	probes := []struct {
		hits  *roaring.Bitmap // nil when the probe found nothing
		users *roaring.Bitmap
	}{
		{ix.probeTags(e.ModuleTags), ix.tagUsers},
		{ix.probeSystem(e.SolarSystemID), ix.systemUsers},
		{ix.probeShipType(e.Victim.ShipTypeID), ix.shipTypeUsers},
		{ix.probeValue(e.TotalValue), ix.valueUsers},
	}

	var sets []*roaring.Bitmap
	for _, p := range probes {
		if p.hits != nil {
			sets = append(sets, p.hits)
		}
	}

	var candidates *roaring.Bitmap
	if len(sets) == 0 {
		candidates = ix.capped(ix.all, limit, freq)
	} else {
		candidates = roaring.FastOr(sets...)
		for _, p := range probes {
			// Prune contributors the probe did not return; their indexed
			// constraint is unsatisfied so the profile cannot match.
			missed := p.users.Clone()
			if p.hits != nil {
				missed.AndNot(p.hits)
			}
			candidates.AndNot(missed)
		}
	}

	candidates.Or(ix.unindexed)
	return ix.collect(candidates)
}

// capped truncates a bitmap to at most limit slots by descending frequency.
// The input bitmap is never mutated.
func (ix *Indexes) capped(bm *roaring.Bitmap, limit int, freq FrequencyFunc) *roaring.Bitmap {
	if limit <= 0 || bm.GetCardinality() <= uint64(limit) {
		return bm.Clone()
	}
	if freq == nil {
		out := roaring.New()
		it := bm.Iterator()
		for it.HasNext() && int(out.GetCardinality()) < limit {
			out.Add(it.Next())
		}
		return out
	}

	type scored struct {
		slot  uint32
		score float64
	}
	all := make([]scored, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		slot := it.Next()
		all = append(all, scored{slot: slot, score: freq(ix.profiles[slot].ProfileID)})
	}
	// Stable keeps slot order deterministic among equal scores.
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	out := roaring.New()
	for i := 0; i < limit && i < len(all); i++ {
		out.Add(all[i].slot)
	}
	return out
}

// collect materializes a slot bitmap into compiled profiles.
func (ix *Indexes) collect(bm *roaring.Bitmap) []filter.CompiledProfile {
	out := make([]filter.CompiledProfile, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, ix.profiles[it.Next()])
	}
	return out
}
