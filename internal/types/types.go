// Package types provides domain models shared across killwatch components.
//
// Zero-dependency design: types.go and errors.go use only the standard
// library so the matching engine packages can depend on them without pulling
// in storage or transport concerns. ID utilities in ids.go import uuid but
// are isolated for selective inclusion.
package types

import "time"

// Victim describes the losing party of a killmail.
type Victim struct {
	CharacterID     int64  `json:"character_id"`
	CorporationID   int64  `json:"corporation_id"`
	AllianceID      int64  `json:"alliance_id"`
	ShipTypeID      int64  `json:"ship_type_id"`
	CharacterName   string `json:"character_name"`
	CorporationName string `json:"corporation_name"`
	AllianceName    string `json:"alliance_name"`
	ShipName        string `json:"ship_name"`
}

// Attacker describes one attacking party of a killmail.
type Attacker struct {
	CharacterID   int64 `json:"character_id"`
	CorporationID int64 `json:"corporation_id"`
	AllianceID    int64 `json:"alliance_id"`
	ShipTypeID    int64 `json:"ship_type_id"`
	FinalBlow     bool  `json:"final_blow"`
}

// Event is the killmail projection consumed by the matching engine.
// It is immutable once handed to Match; predicates never mutate it.
type Event struct {
	KillmailID      int64      `json:"killmail_id"`
	KillTime        time.Time  `json:"kill_time"`
	SolarSystemID   int64      `json:"solar_system_id"`
	SolarSystemName string     `json:"solar_system_name"`
	Victim          Victim     `json:"victim"`
	Attackers       []Attacker `json:"attackers"`
	TotalValue      float64    `json:"total_value"`
	ShipValue       float64    `json:"ship_value"`
	FittedValue     float64    `json:"fitted_value"`
	AttackerCount   int        `json:"attacker_count"`
	ModuleTags      []string   `json:"module_tags"`
}

// FinalBlowCharacterID returns the character id of the final-blow attacker,
// or 0 when the attacker list carries no final-blow flag.
func (e *Event) FinalBlowCharacterID() int64 {
	for i := range e.Attackers {
		if e.Attackers[i].FinalBlow {
			return e.Attackers[i].CharacterID
		}
	}
	return 0
}

// Profile is a named surveillance filter owned by the external profile
// store. The engine holds only a compiled, read-only projection of it.
type Profile struct {
	ProfileID  ProfileID `db:"profile_id"`
	OwnerID    string    `db:"owner_id"`
	Name       string    `db:"name"`
	Definition []byte    `db:"definition"` // filter-tree JSON, see filter.Parse
	Active     bool      `db:"active"`
	MatchCount int64     `db:"match_count"`
	Frequency  float64   `db:"frequency_score"` // decayed recent-match counter
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// DisplaySummary is the small denormalized projection stored with every
// match so listings render without re-fetching the killmail.
type DisplaySummary struct {
	VictimName string  `json:"victim_name"`
	ShipName   string  `json:"ship_name"`
	SystemName string  `json:"system_name"`
	TotalValue float64 `json:"total_value"`
}

// Match is the outcome of a profile predicate evaluating true against an
// event. Created by the recorder, destroyed only by the persistence
// collaborator's retention policy.
type Match struct {
	ProfileID  ProfileID      `db:"profile_id"`
	KillmailID int64          `db:"killmail_id"`
	KillTime   time.Time      `db:"kill_time"`
	Summary    DisplaySummary `db:"-"`
	TotalValue float64        `db:"total_value"`
	MatchedAt  time.Time      `db:"created_at"`
}

// SummaryOf builds the display summary for an event.
func SummaryOf(e *Event) DisplaySummary {
	return DisplaySummary{
		VictimName: e.Victim.CharacterName,
		ShipName:   e.Victim.ShipName,
		SystemName: e.SolarSystemName,
		TotalValue: e.TotalValue,
	}
}

// Resource limits enforced by the engine to keep per-event evaluation bounded.
const (
	// MaxFilterDepth prevents stack exhaustion on pathological nested groups.
	// 16 levels is far beyond any human-authored filter tree.
	MaxFilterDepth = 16

	// MaxRulesPerProfile bounds compilation and evaluation cost per profile.
	MaxRulesPerProfile = 128

	// MaxListValues limits in/not_in/contains_* value lists to keep
	// membership checks from degrading to quadratic behavior.
	MaxListValues = 256
)
