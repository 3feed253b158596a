// internal/index/index.go
package index

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/solatis/killwatch/internal/filter"
)

/*
 * Inverted indexes over compiled profiles.
 *
 * Profiles are assigned dense uint32 slots at build time; every index maps
 * a field value to a roaring bitmap of slots. Bitmaps keep candidate set
 * algebra (intersection, union) cheap even with thousands of profiles.
 *
 * Four indexes are populated, all derived exclusively from the direct Rule
 * children of a profile's top-level AND group:
 *   - tag:       contains_any/contains_all on module_tags
 *   - system:    in/eq on system_id
 *   - ship type: in/eq on victim_ship_type_id
 *   - value:     gt/lt/gte/lte thresholds on total_value
 *
 * AND-only indexing can never produce a false negative: every indexed
 * constraint is necessary for the profile to match. Rules nested under an
 * OR contribute nothing; such profiles live in the unindexed fallback set
 * and rely on the full-scan path.
 *
 * An Indexes value is immutable after Build and safe for concurrent reads.
 * Generations are replaced wholesale, never mutated in place.
 */

// Indexes holds one immutable generation of inverted indexes.
type Indexes struct {
	// profiles is the dense slot -> compiled profile table.
	profiles []filter.CompiledProfile

	byTag      map[string]*roaring.Bitmap
	bySystem   map[int64]*roaring.Bitmap
	byShipType map[int64]*roaring.Bitmap
	byValue    []valueEntry

	// Per-index contributor sets: the slots holding at least one top-level
	// AND rule on that index's field. Selection only trusts an index's
	// probe for the profiles that actually contributed to it.
	tagUsers      *roaring.Bitmap
	systemUsers   *roaring.Bitmap
	shipTypeUsers *roaring.Bitmap
	valueUsers    *roaring.Bitmap

	// unindexed holds profiles with no extractable top-level AND rules.
	// Always part of the candidate set.
	unindexed *roaring.Bitmap

	// all holds every active, successfully compiled profile.
	all *roaring.Bitmap

	// failed counts profiles whose definition did not compile. They carry
	// never-matching predicates and are excluded from every bitmap.
	failed int
}

// valueEntry is one (operator, threshold) constraint bucket on total_value.
type valueEntry struct {
	op        filter.Operator
	threshold float64
	profiles  *roaring.Bitmap
}

// Stats summarizes index cardinalities for the admin surface.
type Stats struct {
	Profiles        int    `json:"profiles"`
	Failed          int    `json:"failed"`
	TagKeys         int    `json:"tag_keys"`
	SystemKeys      int    `json:"system_keys"`
	ShipTypeKeys    int    `json:"ship_type_keys"`
	ValueThresholds int    `json:"value_thresholds"`
	Unindexed       uint64 `json:"unindexed"`
}

// Stats returns the generation's cardinalities.
func (ix *Indexes) Stats() Stats {
	return Stats{
		Profiles:        len(ix.profiles),
		Failed:          ix.failed,
		TagKeys:         len(ix.byTag),
		SystemKeys:      len(ix.bySystem),
		ShipTypeKeys:    len(ix.byShipType),
		ValueThresholds: len(ix.byValue),
		Unindexed:       ix.unindexed.GetCardinality(),
	}
}

// Profiles returns the dense slot table. Read-only.
func (ix *Indexes) Profiles() []filter.CompiledProfile {
	return ix.profiles
}

// probeTags unions the tag bitmaps hit by the event's module tags.
// Returns nil when no tag hits anything.
func (ix *Indexes) probeTags(tags []string) *roaring.Bitmap {
	var out *roaring.Bitmap
	for _, tag := range tags {
		bm, ok := ix.byTag[tag]
		if !ok {
			continue
		}
		if out == nil {
			out = roaring.New()
		}
		out.Or(bm)
	}
	if out != nil && out.IsEmpty() {
		return nil
	}
	return out
}

// probeSystem returns the bitmap for the event's solar system, or nil.
func (ix *Indexes) probeSystem(systemID int64) *roaring.Bitmap {
	bm, ok := ix.bySystem[systemID]
	if !ok || bm.IsEmpty() {
		return nil
	}
	return bm
}

// probeShipType returns the bitmap for the victim's hull, or nil.
func (ix *Indexes) probeShipType(shipTypeID int64) *roaring.Bitmap {
	bm, ok := ix.byShipType[shipTypeID]
	if !ok || bm.IsEmpty() {
		return nil
	}
	return bm
}

// probeValue unions every threshold bucket the event's total value
// satisfies. Returns nil when no bucket is satisfied.
func (ix *Indexes) probeValue(totalValue float64) *roaring.Bitmap {
	var out *roaring.Bitmap
	for i := range ix.byValue {
		if !thresholdSatisfied(ix.byValue[i].op, totalValue, ix.byValue[i].threshold) {
			continue
		}
		if out == nil {
			out = roaring.New()
		}
		out.Or(ix.byValue[i].profiles)
	}
	if out != nil && out.IsEmpty() {
		return nil
	}
	return out
}

// thresholdSatisfied checks an ordering constraint against the event value.
func thresholdSatisfied(op filter.Operator, value, threshold float64) bool {
	switch op {
	case filter.OpGt:
		return value > threshold
	case filter.OpGte:
		return value >= threshold
	case filter.OpLt:
		return value < threshold
	case filter.OpLte:
		return value <= threshold
	default:
		return false
	}
}
