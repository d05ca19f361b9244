// Package player models basketball players: their immutable base
// attributes, move set, and per-season meta overlay key.
package player

import "fmt"

// Attribute is a single 1-100 rated dimension of a player.
type Attribute string

// The nine rated attributes every player carries (spec.md §3).
const (
	AttrScoring           Attribute = "scoring"
	AttrPassing           Attribute = "passing"
	AttrDefense           Attribute = "defense"
	AttrSpeed             Attribute = "speed"
	AttrStamina           Attribute = "stamina"
	AttrIQ                Attribute = "iq"
	AttrEgo               Attribute = "ego"
	AttrChaoticAlignment  Attribute = "chaotic_alignment"
	AttrFate              Attribute = "fate"
)

// AllAttributes lists every rated attribute, in canonical order.
var AllAttributes = []Attribute{
	AttrScoring, AttrPassing, AttrDefense, AttrSpeed, AttrStamina,
	AttrIQ, AttrEgo, AttrChaoticAlignment, AttrFate,
}

// Attributes is a fixed vector of 1-100 ratings, one per Attribute.
type Attributes map[Attribute]int

// Validate reports whether every attribute in the vector is present
// and within [1, 100].
func (a Attributes) Validate() error {
	for _, attr := range AllAttributes {
		v, ok := a[attr]
		if !ok {
			return fmt.Errorf("attribute %s is required", attr)
		}
		if v < 1 || v > 100 {
			return fmt.Errorf("attribute %s = %d out of range [1,100]", attr, v)
		}
	}
	return nil
}

// Clone returns an independent copy of the attribute vector.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// TriggerKind identifies the kind of condition that fires a Move.
type TriggerKind string

const (
	TriggerOnShot       TriggerKind = "on_shot"
	TriggerOnRebound    TriggerKind = "on_rebound"
	TriggerOnTurnover   TriggerKind = "on_turnover"
	TriggerOnFoul       TriggerKind = "on_foul"
	TriggerOnLowStamina TriggerKind = "on_low_stamina"
)

// Move is a named conditional modifier a player may trigger during a
// possession (spec.md §3 "ordered set of moves").
type Move struct {
	Name      string
	Trigger   TriggerKind
	Condition map[string]any // evaluated against the unified context; see effect package
	Effect    map[string]any // mutation DSL action, same shape the effect registry uses
}

// Player is a roster member. BaseAttributes is immutable once set;
// CurrentAttributes is the in-game mutable copy rebuilt at game start.
type Player struct {
	ID                string
	Name              string
	Archetype         string
	Backstory         string
	BaseAttributes    Attributes
	CurrentAttributes Attributes
	Moves             []Move
	SeasonMetaKey     string // (entity_kind="player", entity_id=ID, season_id)
}

// NewGameCopy returns a copy of p with CurrentAttributes reset from
// BaseAttributes, ready to seed a fresh simulate_game call.
func (p Player) NewGameCopy() Player {
	cp := p
	cp.CurrentAttributes = p.BaseAttributes.Clone()
	return cp
}
