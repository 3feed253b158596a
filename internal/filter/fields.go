// internal/filter/fields.go
package filter

import (
	"github.com/solatis/killwatch/internal/types"
)

/*
 * Field resolution for killmail events.
 *
 * Resolves a named field against an Event into a typed value. The field
 * namespace is flat: top-level killmail fields, victim_* fields, and
 * system_* fields. Unknown fields resolve to nil; no error is ever raised,
 * so a rule against a missing field simply never matches.
 *
 * Derived fields are computed on demand:
 *   - kill_category: solo/small_gang/fleet/large_fleet by attacker count
 *   - victim_ship_category: coarse classification from ship type id bands
 *
 * The ship classification is a heuristic over hull type id ranges, not an
 * authoritative SDE lookup. Unrecognized hulls classify as "unknown".
 */

// Field names resolvable by Resolve.
const (
	FieldEventID              = "event_id"
	FieldTotalValue           = "total_value"
	FieldShipValue            = "ship_value"
	FieldFittedValue          = "fitted_value"
	FieldAttackerCount        = "attacker_count"
	FieldFinalBlowCharacterID = "final_blow_character_id"
	FieldKillCategory         = "kill_category"
	FieldModuleTags           = "module_tags"

	FieldVictimCharacterID      = "victim_character_id"
	FieldVictimCorporationID    = "victim_corporation_id"
	FieldVictimAllianceID       = "victim_alliance_id"
	FieldVictimShipTypeID       = "victim_ship_type_id"
	FieldVictimCharacterName    = "victim_character_name"
	FieldVictimCorporationName  = "victim_corporation_name"
	FieldVictimAllianceName     = "victim_alliance_name"
	FieldVictimShipName         = "victim_ship_name"
	FieldVictimShipCategory     = "victim_ship_category"

	FieldSystemID   = "system_id"
	FieldSystemName = "system_name"
)

// Kill categories by attacker count.
const (
	KillCategorySolo       = "solo"
	KillCategorySmallGang  = "small_gang"
	KillCategoryFleet      = "fleet"
	KillCategoryLargeFleet = "large_fleet"
)

// Attacker count thresholds for kill categorization.
const (
	smallGangMax = 5
	fleetMax     = 20
)

// Resolve returns the value of the named field on the event, or nil for
// unknown fields. Numeric fields return their native int64/int/float64
// types; operator comparison handles numeric mixing.
func Resolve(e *types.Event, field string) any {
	switch field {
	case FieldEventID:
		return e.KillmailID
	case FieldTotalValue:
		return e.TotalValue
	case FieldShipValue:
		return e.ShipValue
	case FieldFittedValue:
		return e.FittedValue
	case FieldAttackerCount:
		return e.AttackerCount
	case FieldFinalBlowCharacterID:
		return e.FinalBlowCharacterID()
	case FieldKillCategory:
		return KillCategory(e.AttackerCount)
	case FieldModuleTags:
		return e.ModuleTags
	case FieldVictimCharacterID:
		return e.Victim.CharacterID
	case FieldVictimCorporationID:
		return e.Victim.CorporationID
	case FieldVictimAllianceID:
		return e.Victim.AllianceID
	case FieldVictimShipTypeID:
		return e.Victim.ShipTypeID
	case FieldVictimCharacterName:
		return e.Victim.CharacterName
	case FieldVictimCorporationName:
		return e.Victim.CorporationName
	case FieldVictimAllianceName:
		return e.Victim.AllianceName
	case FieldVictimShipName:
		return e.Victim.ShipName
	case FieldVictimShipCategory:
		return ShipCategory(e.Victim.ShipTypeID)
	case FieldSystemID:
		return e.SolarSystemID
	case FieldSystemName:
		return e.SolarSystemName
	default:
		return nil
	}
}

// KillCategory classifies an engagement by attacker count.
// Thresholds: 1 solo, <=5 small gang, <=20 fleet, >20 large fleet.
func KillCategory(attackerCount int) string {
	switch {
	case attackerCount <= 1:
		return KillCategorySolo
	case attackerCount <= smallGangMax:
		return KillCategorySmallGang
	case attackerCount <= fleetMax:
		return KillCategoryFleet
	default:
		return KillCategoryLargeFleet
	}
}

// shipBand maps an inclusive hull type id range to a coarse category.
type shipBand struct {
	lo, hi   int64
	category string
}

// Coarse hull bands, first match wins. Heuristic: covers the common tech-1
// hull id ranges and the well-known capsule/titan ids; everything else is
// "unknown" rather than guessed.
var shipBands = []shipBand{
	{670, 670, "capsule"},
	{33328, 33328, "capsule"},
	{671, 671, "supercapital"}, // Erebus
	{3764, 3764, "supercapital"},
	{11567, 11567, "supercapital"},
	{23773, 23773, "supercapital"},
	{582, 598, "frigate"},
	{16236, 16242, "destroyer"},
	{620, 634, "cruiser"},
	{16227, 16233, "battlecruiser"},
	{638, 645, "battleship"},
	{19720, 19726, "capital"},
	{23757, 23917, "capital"},
	{35832, 35836, "structure"},
	{47512, 47516, "structure"},
}

// ShipCategory coarsely classifies a hull by its type id.
func ShipCategory(shipTypeID int64) string {
	for _, b := range shipBands {
		if shipTypeID >= b.lo && shipTypeID <= b.hi {
			return b.category
		}
	}
	return "unknown"
}
