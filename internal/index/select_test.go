// internal/index/select_test.go
package index

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/solatis/killwatch/internal/filter"
	"github.com/solatis/killwatch/internal/types"
)

// ids extracts the profile id set from a candidate list.
func ids(candidates []filter.CompiledProfile) map[types.ProfileID]bool {
	out := make(map[types.ProfileID]bool, len(candidates))
	for _, c := range candidates {
		out[c.ProfileID] = true
	}
	return out
}

func TestSelect_SingleProbe(t *testing.T) {
	jita := compile(t, "jita", `{"rules": [{"field": "system_id", "operator": "eq", "value": 30000142}]}`)
	amarr := compile(t, "amarr", `{"rules": [{"field": "system_id", "operator": "eq", "value": 30002187}]}`)

	ix := Build([]filter.CompiledProfile{jita, amarr})

	e := &types.Event{KillmailID: 1, SolarSystemID: 30000142}
	got := ids(ix.Select(e, 100, nil))

	require.True(t, got[jita.ProfileID])
	require.False(t, got[amarr.ProfileID])
}

func TestSelect_IntersectionOfMultipleProbes(t *testing.T) {
	both := compile(t, "jita-expensive", `{
		"condition": "and",
		"rules": [
			{"field": "system_id", "operator": "eq", "value": 30000142},
			{"field": "total_value", "operator": "gte", "value": 1000000000}
		]
	}`)
	systemOnly := compile(t, "jita-any", `{"rules": [{"field": "system_id", "operator": "eq", "value": 30000142}]}`)
	valueOnly := compile(t, "expensive-any", `{"rules": [{"field": "total_value", "operator": "gte", "value": 1000000000}]}`)

	ix := Build([]filter.CompiledProfile{both, systemOnly, valueOnly})

	// Event satisfies both probes: a profile survives as long as every
	// index it contributed to returned it, regardless of the other probes.
	e := &types.Event{KillmailID: 1, SolarSystemID: 30000142, TotalValue: 2000000000}
	got := ids(ix.Select(e, 100, nil))

	require.True(t, got[both.ProfileID])
	require.True(t, got[systemOnly.ProfileID])
	require.True(t, got[valueOnly.ProfileID])
}

func TestSelect_TagOnlyProfileAmongOtherFiredProbes(t *testing.T) {
	cynoWatch := compile(t, "cyno-watch", `{
		"condition": "and",
		"rules": [{"field": "module_tags", "operator": "contains_any", "value": ["cyno"]}]
	}`)
	covertHaul := compile(t, "covert-haul", `{
		"condition": "and",
		"rules": [
			{"field": "system_id", "operator": "eq", "value": 30000142},
			{"field": "total_value", "operator": "gte", "value": 1000000000},
			{"field": "module_tags", "operator": "contains_any", "value": ["covert"]}
		]
	}`)

	ix := Build([]filter.CompiledProfile{cynoWatch, covertHaul})

	// All three probes fire. The cyno profile only contributes to the tag
	// index; the system and value probes returning other profiles must not
	// push it out of the candidate set.
	e := &types.Event{
		KillmailID:    1,
		SolarSystemID: 30000142,
		TotalValue:    2000000000,
		ModuleTags:    []string{"cyno", "covert"},
	}
	got := ids(ix.Select(e, 100, nil))

	require.True(t, got[cynoWatch.ProfileID])
	require.True(t, got[covertHaul.ProfileID])
}

func TestSelect_IntersectionExcludesPartialHits(t *testing.T) {
	jitaExpensive := compile(t, "jita-expensive", `{
		"condition": "and",
		"rules": [
			{"field": "system_id", "operator": "eq", "value": 30000142},
			{"field": "total_value", "operator": "gte", "value": 1000000000}
		]
	}`)
	amarrExpensive := compile(t, "amarr-expensive", `{
		"condition": "and",
		"rules": [
			{"field": "system_id", "operator": "eq", "value": 30002187},
			{"field": "total_value", "operator": "gte", "value": 1000000000}
		]
	}`)

	ix := Build([]filter.CompiledProfile{jitaExpensive, amarrExpensive})

	// Expensive kill in Jita: the Amarr profile appears in the value probe
	// but not the system probe, so intersection drops it.
	e := &types.Event{KillmailID: 1, SolarSystemID: 30000142, TotalValue: 2000000000}
	got := ids(ix.Select(e, 100, nil))

	require.True(t, got[jitaExpensive.ProfileID])
	require.False(t, got[amarrExpensive.ProfileID])
}

func TestSelect_UnindexedAlwaysIncluded(t *testing.T) {
	orRoot := compile(t, "or-root", `{
		"condition": "or",
		"rules": [
			{"field": "system_id", "operator": "eq", "value": 31000001},
			{"field": "kill_category", "operator": "eq", "value": "solo"}
		]
	}`)
	jita := compile(t, "jita", `{"rules": [{"field": "system_id", "operator": "eq", "value": 30000142}]}`)

	ix := Build([]filter.CompiledProfile{orRoot, jita})

	// Even when an index probe hits, the fallback set rides along.
	e := &types.Event{KillmailID: 1, SolarSystemID: 30000142, AttackerCount: 1}
	got := ids(ix.Select(e, 100, nil))

	require.True(t, got[jita.ProfileID])
	require.True(t, got[orRoot.ProfileID], "unindexed profiles must always be candidates")
}

func TestSelect_NoProbesScansAllCapped(t *testing.T) {
	profiles := make([]filter.CompiledProfile, 0, 20)
	for i := 0; i < 20; i++ {
		profiles = append(profiles, compile(t, fmt.Sprintf("p%d", i),
			fmt.Sprintf(`{"rules": [{"field": "attacker_count", "operator": "gt", "value": %d}]}`, i)))
	}

	ix := Build(profiles)

	// attacker_count is not indexed, so every profile is unindexed and no
	// probe fires; the full set comes back regardless of the cap because
	// the unindexed set is never truncated.
	e := &types.Event{KillmailID: 1}
	got := ix.Select(e, 5, nil)
	require.Len(t, got, 20)
}

func TestSelect_FullScanCapRespectsFrequency(t *testing.T) {
	// Indexed profiles, none of whose keys the event hits, leave the
	// zero-probe path to scan all (capped).
	profiles := make([]filter.CompiledProfile, 0, 10)
	for i := 0; i < 10; i++ {
		profiles = append(profiles, compile(t, fmt.Sprintf("p%d", i),
			fmt.Sprintf(`{"rules": [{"field": "system_id", "operator": "eq", "value": %d}]}`, 30000000+i)))
	}

	ix := Build(profiles)

	// Score profile 7 highest, then 3, then everything else.
	freq := func(id types.ProfileID) float64 {
		switch id {
		case profiles[7].ProfileID:
			return 100
		case profiles[3].ProfileID:
			return 50
		default:
			return 0
		}
	}

	e := &types.Event{KillmailID: 1, SolarSystemID: 31000001}
	got := ix.Select(e, 2, freq)

	require.Len(t, got, 2)
	set := ids(got)
	require.True(t, set[profiles[7].ProfileID])
	require.True(t, set[profiles[3].ProfileID])
}

func TestSelect_NarrowCandidatesAmongManyProfiles(t *testing.T) {
	// 1000 system-specific profiles: an event in one system must produce a
	// candidate set of exactly the profiles watching it, not a linear scan.
	profiles := make([]filter.CompiledProfile, 0, 1000)
	for i := 0; i < 1000; i++ {
		profiles = append(profiles, compile(t, fmt.Sprintf("sys%d", i),
			fmt.Sprintf(`{"rules": [{"field": "system_id", "operator": "eq", "value": %d}]}`, 30000000+i%500)))
	}

	ix := Build(profiles)

	e := &types.Event{KillmailID: 1, SolarSystemID: 30000042}
	got := ix.Select(e, 100, nil)

	// 1000 profiles over 500 systems: exactly two watch this one.
	require.Len(t, got, 2)
	for _, c := range got {
		require.True(t, c.Predicate(e))
	}
}

func TestSelect_PropertyNoFalseNegatives(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("every matching profile appears among candidates", prop.ForAll(
		func(systemSeed int, valueSeed int, eventSystem int, eventValue float64, tagged bool) bool {
			defs := []string{
				fmt.Sprintf(`{"condition": "and", "rules": [{"field": "system_id", "operator": "eq", "value": %d}]}`, 30000000+systemSeed),
				fmt.Sprintf(`{"condition": "and", "rules": [{"field": "total_value", "operator": "gte", "value": %d}]}`, valueSeed*1000000),
				`{"condition": "and", "rules": [{"field": "module_tags", "operator": "contains_any", "value": ["cyno"]}]}`,
				fmt.Sprintf(`{"condition": "or", "rules": [{"field": "system_id", "operator": "eq", "value": %d}, {"field": "total_value", "operator": "gte", "value": %d}]}`, 30000000+systemSeed, valueSeed*1000000),
				fmt.Sprintf(`{"condition": "and", "rules": [{"field": "system_id", "operator": "eq", "value": %d}, {"field": "total_value", "operator": "lte", "value": %d}]}`, 30000000+systemSeed, valueSeed*2000000),
			}

			profiles := make([]filter.CompiledProfile, 0, len(defs))
			for i, def := range defs {
				cp, cerr := filter.CompileProfile(types.Profile{
					ProfileID:  types.NewProfileID(),
					Name:       fmt.Sprintf("prop%d", i),
					Definition: []byte(def),
				})
				if cerr != nil {
					return false
				}
				profiles = append(profiles, cp)
			}

			ix := Build(profiles)

			e := &types.Event{
				KillmailID:    1,
				SolarSystemID: int64(30000000 + eventSystem),
				TotalValue:    eventValue,
			}
			if tagged {
				e.ModuleTags = []string{"cyno"}
			}

			candidates := ids(ix.Select(e, 0, nil))
			for _, p := range profiles {
				if p.Predicate(e) && !candidates[p.ProfileID] {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
		gen.Float64Range(0, 2e7),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
