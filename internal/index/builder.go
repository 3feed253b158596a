// internal/index/builder.go
package index

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/solatis/killwatch/internal/filter"
)

/*
 * Index construction.
 *
 * Build walks each compiled profile's filter tree and extracts indexable
 * (field, value) pairs into the four inverted indexes. Only the direct Rule
 * children of the outermost AND group are inspected; nested groups (any OR,
 * or an AND under an AND) are deliberately not descended into. Descending
 * into OR branches would index constraints that are not necessary
 * conditions and could suppress true matches.
 *
 * Equality contributes alongside membership for the system and ship-type
 * indexes: a top-level "eq" is a single-element "in", so indexing it keeps
 * the no-false-negative invariant while serving the most common profile
 * shape ("system_id == X").
 */

// Build assigns dense slots to the given compiled profiles and constructs
// one immutable index generation over them.
func Build(profiles []filter.CompiledProfile) *Indexes {
	ix := &Indexes{
		profiles:      profiles,
		byTag:         make(map[string]*roaring.Bitmap),
		bySystem:      make(map[int64]*roaring.Bitmap),
		byShipType:    make(map[int64]*roaring.Bitmap),
		tagUsers:      roaring.New(),
		systemUsers:   roaring.New(),
		shipTypeUsers: roaring.New(),
		valueUsers:    roaring.New(),
		unindexed:     roaring.New(),
		all:           roaring.New(),
	}

	valueBuckets := make(map[valueKey]*roaring.Bitmap)

	for slot := range profiles {
		p := &profiles[slot]
		if p.Tree == nil {
			// Failed compilation: never matches, excluded everywhere.
			ix.failed++
			continue
		}

		ix.all.Add(uint32(slot))
		if !ix.contribute(uint32(slot), p.Tree, valueBuckets) {
			ix.unindexed.Add(uint32(slot))
		}
	}

	ix.byValue = make([]valueEntry, 0, len(valueBuckets))
	for key, bm := range valueBuckets {
		ix.byValue = append(ix.byValue, valueEntry{op: key.op, threshold: key.threshold, profiles: bm})
	}

	return ix
}

// valueKey buckets identical (operator, threshold) constraints together.
type valueKey struct {
	op        filter.Operator
	threshold float64
}

// contribute extracts index contributions from the top-level AND group's
// direct rules. Reports whether the profile contributed anything.
func (ix *Indexes) contribute(slot uint32, tree *filter.Group, valueBuckets map[valueKey]*roaring.Bitmap) bool {
	if tree.Combinator != filter.And {
		return false
	}

	contributed := false
	for _, child := range tree.Children {
		rule, ok := child.(*filter.Rule)
		if !ok {
			continue // nested group, not descended into
		}

		switch rule.Field {
		case filter.FieldModuleTags:
			if rule.Op == filter.OpContainsAny || rule.Op == filter.OpContainsAll {
				for _, v := range rule.List {
					tag, ok := v.(string)
					if !ok {
						continue
					}
					addTo(ix.byTag, tag, slot)
					ix.tagUsers.Add(slot)
					contributed = true
				}
			}

		case filter.FieldSystemID:
			if indexIDRule(ix.bySystem, rule, slot) {
				ix.systemUsers.Add(slot)
				contributed = true
			}

		case filter.FieldVictimShipTypeID:
			if indexIDRule(ix.byShipType, rule, slot) {
				ix.shipTypeUsers.Add(slot)
				contributed = true
			}

		case filter.FieldTotalValue:
			switch rule.Op {
			case filter.OpGt, filter.OpGte, filter.OpLt, filter.OpLte:
				threshold, ok := toFloat64(rule.Value)
				if !ok {
					continue
				}
				key := valueKey{op: rule.Op, threshold: threshold}
				bm, exists := valueBuckets[key]
				if !exists {
					bm = roaring.New()
					valueBuckets[key] = bm
				}
				bm.Add(slot)
				ix.valueUsers.Add(slot)
				contributed = true
			}
		}
	}

	return contributed
}

// indexIDRule indexes an in/eq rule over an integer-keyed index.
func indexIDRule(idx map[int64]*roaring.Bitmap, rule *filter.Rule, slot uint32) bool {
	switch rule.Op {
	case filter.OpIn:
		contributed := false
		for _, v := range rule.List {
			id, ok := toInt64(v)
			if !ok {
				continue
			}
			addTo(idx, id, slot)
			contributed = true
		}
		return contributed
	case filter.OpEq:
		id, ok := toInt64(rule.Value)
		if !ok {
			return false
		}
		addTo(idx, id, slot)
		return true
	default:
		return false
	}
}

// addTo adds a slot to the bitmap at key, creating the bitmap on first use.
func addTo[K comparable](idx map[K]*roaring.Bitmap, key K, slot uint32) {
	bm, ok := idx[key]
	if !ok {
		bm = roaring.New()
		idx[key] = bm
	}
	bm.Add(slot)
}

// toInt64 converts JSON numbers and native integer types to int64.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

// toFloat64 converts JSON numbers and native numeric types to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
