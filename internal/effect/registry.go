package effect

import (
	"context"
	"sort"

	"github.com/hoopsguild/leaguesim/internal/govevent"
	"github.com/hoopsguild/leaguesim/internal/platform/apperrors"
	"github.com/hoopsguild/leaguesim/internal/platform/id"
)

// Kind identifies the category of a registered effect (spec.md §3).
type Kind string

const (
	KindParameterChange Kind = "parameter_change"
	KindHookCallback    Kind = "hook_callback"
	KindMetaMutation    Kind = "meta_mutation"
	KindMoveGrant       Kind = "move_grant"
	KindNarrative       Kind = "narrative"
	KindCustomMechanic  Kind = "custom_mechanic"
)

// Duration controls when a registered effect falls out of the active set.
type Duration string

const (
	DurationPermanent     Duration = "permanent"
	DurationNRounds       Duration = "n_rounds"
	DurationOneGame       Duration = "one_game"
	DurationUntilRepealed Duration = "until_repealed"
)

// Scope selects which entities an effect applies to.
type Scope struct {
	TeamID   string // empty means "all teams"
	PlayerID string // empty means "all players"
}

// Effect is a durable, registered rule mutation or runtime hook
// (spec.md §3 "Effect (Registered)").
type Effect struct {
	ID               string
	SourceProposalID string
	Kind             Kind
	HookPoints       []HookPoint
	Condition        Condition
	Actions          []Mutation
	Scope            Scope
	Duration         Duration
	ActivationRound  int
	ExpirationRound  int // 0 == unset
	Priority         int
}

// IsActiveAt reports whether the effect is active for the given round,
// given it has not been explicitly expired.
func (e Effect) IsActiveAt(round int) bool {
	if round < e.ActivationRound {
		return false
	}
	if e.Duration == DurationNRounds && e.ExpirationRound > 0 && round > e.ExpirationRound {
		return false
	}
	return true
}

// Registry implements C3: registering effects from passed proposals
// and firing hook points during simulation. It is a pure, in-memory
// view rebuilt from the event log at round start (spec.md §4.3
// "load_active replays effect.registered and effect.expired events").
type Registry struct {
	active []Effect
}

// NewRegistry returns an empty registry; call LoadActive or
// RegisterFromProposal to populate it.
func NewRegistry() *Registry {
	return &Registry{}
}

// RegisterFromProposal converts a passed proposal's structured
// interpretation into zero or more registered Effects, appends
// effect.registered events, and adds them to the in-memory active set.
//
// interpretation is expected to carry one of:
//   - {"kind": "parameter_change", ...} — handled upstream by governance
//     (ruleset mutation), not represented as a runtime Effect here.
//   - {"kind": "hook_callback"|"meta_mutation"|"move_grant"|"narrative"|
//     "custom_mechanic", "hook_points": [...], "condition": {...},
//     "actions": [...], "scope": {...}, "duration": "...", "priority": N}
func (r *Registry) RegisterFromProposal(ctx context.Context, log govevent.Log, seasonID, proposalID string, effects []Effect, round int) error {
	for i := range effects {
		if effects[i].ID == "" {
			effects[i].ID = id.New()
		}
		effects[i].SourceProposalID = proposalID
		if effects[i].ActivationRound == 0 {
			effects[i].ActivationRound = round
		}
		payload := govevent.EffectRegisteredPayload{
			EffectID:         effects[i].ID,
			SourceProposalID: proposalID,
			Kind:             string(effects[i].Kind),
			HookPoints:       hookPointStrings(effects[i].HookPoints),
			Duration:         string(effects[i].Duration),
			ActivationRound:  effects[i].ActivationRound,
			ExpirationRound:  effects[i].ExpirationRound,
			Priority:         effects[i].Priority,
		}
		body, err := govevent.EncodePayload(payload)
		if err != nil {
			return err
		}
		if _, err := log.Append(ctx, seasonID, govevent.Event{
			Type:          govevent.TypeEffectRegistered,
			AggregateID:   effects[i].ID,
			AggregateType: govevent.AggregateEffect,
			RoundNumber:   round,
			PayloadJSON:   body,
		}); err != nil {
			return err
		}
		r.active = append(r.active, effects[i])
	}
	r.sortByPriority()
	return nil
}

func hookPointStrings(hps []HookPoint) []string {
	out := make([]string, len(hps))
	for i, h := range hps {
		out[i] = string(h)
	}
	return out
}

// LoadActive replays effect.registered and effect.expired events and
// returns the set of effects active at round (spec.md §4.3).
func LoadActive(ctx context.Context, log govevent.Log, seasonID string, round int) (*Registry, error) {
	registered, err := log.ByType(ctx, seasonID, govevent.TypeEffectRegistered)
	if err != nil {
		return nil, err
	}
	expired, err := log.ByType(ctx, seasonID, govevent.TypeEffectExpired)
	if err != nil {
		return nil, err
	}
	expiredIDs := map[string]bool{}
	for _, e := range expired {
		var p govevent.EffectExpiredPayload
		if err := govevent.DecodePayload(e.PayloadJSON, &p); err != nil {
			return nil, err
		}
		expiredIDs[p.EffectID] = true
	}

	reg := NewRegistry()
	for _, e := range registered {
		var p govevent.EffectRegisteredPayload
		if err := govevent.DecodePayload(e.PayloadJSON, &p); err != nil {
			return nil, err
		}
		if expiredIDs[p.EffectID] {
			continue
		}
		eff := Effect{
			ID:               p.EffectID,
			SourceProposalID: p.SourceProposalID,
			Kind:             Kind(p.Kind),
			Duration:         Duration(p.Duration),
			ActivationRound:  p.ActivationRound,
			ExpirationRound:  p.ExpirationRound,
			Priority:         p.Priority,
		}
		for _, hp := range p.HookPoints {
			eff.HookPoints = append(eff.HookPoints, HookPoint(hp))
		}
		if !eff.IsActiveAt(round) {
			continue
		}
		reg.active = append(reg.active, eff)
	}
	reg.sortByPriority()
	return reg, nil
}

// sortByPriority orders effects by priority descending, then by
// registered effect id, for deterministic iteration (spec.md §4.3
// "Determinism").
func (r *Registry) sortByPriority() {
	sort.SliceStable(r.active, func(i, j int) bool {
		if r.active[i].Priority != r.active[j].Priority {
			return r.active[i].Priority > r.active[j].Priority
		}
		return r.active[i].ID < r.active[j].ID
	})
}

// Add registers an in-memory effect directly without going through the
// event log (used by the simulation engine's test harness and by
// Phase A when effects were already loaded via LoadActive).
func (r *Registry) Add(e Effect) {
	r.active = append(r.active, e)
	r.sortByPriority()
}

// Fire consults the active set for hook, evaluates each effect's
// condition tree against ctx, accumulates mutations in
// effect-priority order, and returns the accumulated Result. It never
// mutates ctx.RNG's consumption order beyond what conditions/expressions
// themselves draw (spec.md §4.3 "Determinism").
func (r *Registry) Fire(hook HookPoint, ctx *Context) (*Result, error) {
	result := NewResult()
	for _, e := range r.active {
		if result.BlockEvent {
			break
		}
		matched := false
		for _, hp := range e.HookPoints {
			if hp.Matches(hook) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		ok, err := e.Condition.Eval(ctx)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeSimulationInvalidEffect, "evaluate effect condition", err)
		}
		if !ok {
			continue
		}
		if result.BlockDefault && e.Priority <= result.BlockDefaultPriority {
			// Rules at or below the blocking effect's own priority are
			// suppressed once it has called block_default.
			continue
		}
		blockedBefore := result.BlockDefault
		for _, m := range e.Actions {
			if err := m.Apply(ctx, result); err != nil {
				return nil, apperrors.Wrap(apperrors.CodeSimulationInvalidEffect, "apply effect mutation", err)
			}
			if result.BlockEvent {
				break
			}
		}
		if result.BlockDefault && !blockedBefore {
			result.BlockDefaultPriority = e.Priority
		}
	}
	return result, nil
}

// Active returns the current active effect set, already sorted by
// priority then id.
func (r *Registry) Active() []Effect {
	return r.active
}
