package simulation

import (
	"sort"

	"github.com/hoopsguild/leaguesim/internal/effect"
	"github.com/hoopsguild/leaguesim/internal/league/player"
	"github.com/hoopsguild/leaguesim/internal/metastore"
)

func clamp01(v float64) float64 { return effect.Clamp(v, 0.01, 0.99) }

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func metaTeamKey(rt *runtimeTeam) metastore.Key {
	return metastore.Key{Kind: metastore.EntityTeam, EntityID: rt.Team.ID, SeasonID: rt.Team.SeasonID}
}

func (g *game) seasonID() string {
	return g.home.Team.SeasonID
}

// applyPossessionMutations folds a hook Result's state writes that
// target the PossessionContext namespace ("possession.*") into pctx;
// everything else (score, emits, narratives) is not meaningful at
// possession.pre and is ignored.
func applyPossessionMutations(pctx *possessionContext, result *effect.Result) {
	if result == nil {
		return
	}
	for _, w := range result.StateWrites {
		switch w.Target {
		case "possession.shot_probability_modifier":
			pctx.ShotProbabilityModifier = applyOp(pctx.ShotProbabilityModifier, w)
		case "possession.shot_value_modifier":
			pctx.ShotValueModifier = applyOp(pctx.ShotValueModifier, w)
		case "possession.extra_stamina_drain":
			pctx.ExtraStaminaDrain = applyOp(pctx.ExtraStaminaDrain, w)
		case "possession.turnover_modifier":
			pctx.TurnoverModifier = applyOp(pctx.TurnoverModifier, w)
		case "possession.random_ejection_probability":
			pctx.RandomEjectionProbability = applyOp(pctx.RandomEjectionProbability, w)
		case "possession.bonus_pass_count":
			pctx.BonusPassCount = int(applyOp(float64(pctx.BonusPassCount), w))
		default:
			if len(w.Target) > len("possession.bias.") && w.Target[:len("possession.bias.")] == "possession.bias." {
				action := w.Target[len("possession.bias."):]
				pctx.ActionBias[action] = applyOp(pctx.ActionBias[action], w)
			}
		}
	}
}

func applyOp(current float64, w effect.StateWrite) float64 {
	switch w.Op {
	case effect.StateOpAdd:
		return current + w.Value
	case effect.StateOpSubtract:
		return current - w.Value
	default:
		return w.Value
	}
}

func applyStateWrite(meta interface {
	Apply(key metastore.Key, field string, op string, delta float64)
}, seasonID string, w effect.StateWrite) {
	// Targets of the form "team:{id}.field" or "player:{id}.field"
	// route to the Meta Store; anything else (possession.* at
	// possession.post) has no durable effect and is dropped.
	kind, id, field, ok := parseMetaTarget(w.Target)
	if !ok {
		return
	}
	meta.Apply(metastore.Key{Kind: kind, EntityID: id, SeasonID: seasonID}, field, string(w.Op), w.Value)
}

func parseMetaTarget(target string) (metastore.EntityKind, string, string, bool) {
	var kind metastore.EntityKind
	rest := ""
	switch {
	case hasPrefixLocal(target, "team:"):
		kind, rest = metastore.EntityTeam, target[len("team:"):]
	case hasPrefixLocal(target, "player:"):
		kind, rest = metastore.EntityPlayer, target[len("player:"):]
	default:
		return "", "", "", false
	}
	for i := 0; i < len(rest); i++ {
		if rest[i] == '.' {
			return kind, rest[:i], rest[i+1:], true
		}
	}
	return "", "", "", false
}

func hasPrefixLocal(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// selectDefenseScheme weighs schemes by the defending team's aggregate
// defense/IQ and a stochastic draw (spec.md §4.4 step 2).
func (g *game) selectDefenseScheme(defenseOn []*runtimePlayer) DefenseScheme {
	avgDefense, avgIQ := averageAttrs(defenseOn, player.AttrDefense, player.AttrIQ)
	weights := map[DefenseScheme]float64{
		SchemeManTight:  1 + avgDefense/100,
		SchemeManSwitch: 1 + avgIQ/100,
		SchemeZone:      1,
		SchemePress:     maxFloat(0.2, avgIQ/150),
	}
	schemes := []DefenseScheme{SchemeManTight, SchemeManSwitch, SchemeZone, SchemePress}
	ws := make([]float64, len(schemes))
	for i, s := range schemes {
		ws[i] = maxFloat(1, weights[s])
	}
	return schemes[effect.WeightedChoice(g.rng, ws)]
}

// assignMatchups minimizes a simple cost matrix over (defender,
// attacker) pairs with a small stochastic perturbation (spec.md §4.4
// step 3). With rosters capped at three, a greedy minimal-cost
// assignment is exact enough and keeps the step deterministic given
// the seed.
func (g *game) assignMatchups(offenseOn, defenseOn []*runtimePlayer) map[string]*runtimePlayer {
	assigned := map[string]*runtimePlayer{}
	usedDefenders := map[string]bool{}
	for _, o := range offenseOn {
		best := -1
		bestCost := 0.0
		for i, d := range defenseOn {
			if usedDefenders[d.ID] {
				continue
			}
			cost := float64(o.CurrentAttributes[player.AttrScoring]-d.CurrentAttributes[player.AttrDefense]) + (g.rng.Float64()*4 - 2)
			if best == -1 || cost < bestCost {
				best, bestCost = i, cost
			}
		}
		if best == -1 {
			// every defender already used (short roster): reuse the
			// first defender rather than leaving the handler unguarded.
			assigned[o.ID] = defenseOn[0]
			continue
		}
		assigned[o.ID] = defenseOn[best]
		usedDefenders[defenseOn[best].ID] = true
	}
	return assigned
}

// selectAction draws an offensive action weighted by handler
// archetype, team strategy bias, and effect-provided bias, each weight
// clamped to >= 1 (spec.md §4.4 step 4).
func (g *game) selectAction(handler *runtimePlayer, isHome bool, pctx *possessionContext) ActionType {
	strategy := g.awayStr
	if isHome {
		strategy = g.homeStr
	}
	actions := []ActionType{ActionAtRim, ActionMidRange, ActionThreePoint, ActionDrive, ActionPostUp}
	weights := make([]float64, len(actions))
	for i, a := range actions {
		w := 1.0
		w += archetypeBias(handler.Archetype, a)
		w += strategy.ActionBias[string(a)]
		w += pctx.ActionBias[string(a)]
		weights[i] = maxFloat(1, w)
	}
	return actions[effect.WeightedChoice(g.rng, weights)]
}

func archetypeBias(archetype string, a ActionType) float64 {
	switch archetype {
	case "sharpshooter":
		if a == ActionThreePoint {
			return 2
		}
	case "slasher":
		if a == ActionAtRim || a == ActionDrive {
			return 1.5
		}
	case "post_presence":
		if a == ActionPostUp {
			return 2
		}
	}
	return 0
}

func defenseModifier(s DefenseScheme) float64 {
	switch s {
	case SchemePress:
		return 0.03
	case SchemeZone:
		return -0.01
	default:
		return 0
	}
}

// shotProbability implements step 6 of spec.md §4.4: a logistic base
// probability multiplied by contest/IQ/stamina modifiers, plus the
// possession-level modifier, clamped to [0.01, 0.99].
func (g *game) shotProbability(handler, defender *runtimePlayer, action ActionType, scheme DefenseScheme, pctx *possessionContext) float64 {
	midpoint := midpointFor(action)
	base := effect.Logistic(float64(handler.CurrentAttributes[player.AttrScoring]), midpoint, g.rules.ShotLogisticSteepness)
	contest := 1 - float64(defender.CurrentAttributes[player.AttrDefense])/250
	if scheme == SchemeManTight {
		contest -= 0.05
	}
	iqModifier := 1 + (float64(handler.CurrentAttributes[player.AttrIQ])-50)/400
	staminaModifier := 0.6 + 0.4*handler.Stamina
	p := base * contest * iqModifier * staminaModifier
	p += pctx.ShotProbabilityModifier
	return clamp01(p)
}

// freeThrowAttempts returns the number of free throws a foul on the
// given possession draws (spec.md §4.4 step 8 "emit free-throw
// sequence"): a made shot plus a foul is an and-one (1 attempt); a
// missed three draws 3, any other missed shot draws 2.
func freeThrowAttempts(a ActionType, shotMade bool) int {
	if shotMade {
		return 1
	}
	if a == ActionThreePoint {
		return 3
	}
	return 2
}

// resolveFreeThrows draws `attempts` independent free throws for the
// shooter, each made with probability derived from scoring attribute,
// and returns how many went in.
func (g *game) resolveFreeThrows(shooter *runtimePlayer, attempts int) int {
	prob := clamp01(0.6 + (float64(shooter.CurrentAttributes[player.AttrScoring])-50)/200)
	made := 0
	for i := 0; i < attempts; i++ {
		if g.rng.Float64() < prob {
			made++
		}
	}
	return made
}

// possessionDuration estimates the game-clock seconds a possession
// consumed (spec.md §4.4 "a quarter's clock runs out"): turnovers end
// possessions quickly, everything else runs closer to a full shot
// clock.
func (g *game) possessionDuration(turnover bool) float64 {
	if turnover {
		return 4 + g.rng.Float64()*6
	}
	ceiling := float64(g.rules.ShotClockSeconds)
	return 8 + g.rng.Float64()*maxFloat(1, ceiling-8)
}

func midpointFor(a ActionType) float64 {
	switch a {
	case ActionAtRim:
		return 40
	case ActionMidRange:
		return 55
	case ActionThreePoint:
		return 65
	case ActionDrive:
		return 45
	case ActionPostUp:
		return 50
	default:
		return 50
	}
}

func shotValue(a ActionType, threeValue int) float64 {
	if a == ActionThreePoint {
		return float64(threeValue)
	}
	return 2
}

func roundPoints(p float64) int {
	n := int(p + 0.5)
	if n < 0 {
		return 0
	}
	return n
}

// attributeEdge returns a signed value in roughly [-1, 1] reflecting
// offense's rebounding edge over defense (spec.md §4.4 step 9).
func attributeEdge(offenseOn, defenseOn []*runtimePlayer) float64 {
	oAvg, _ := averageAttrs(offenseOn, player.AttrSpeed, player.AttrSpeed)
	dAvg, _ := averageAttrs(defenseOn, player.AttrDefense, player.AttrDefense)
	return clampUnit((oAvg - dAvg) / 100)
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func averageAttrs(players []*runtimePlayer, a, b player.Attribute) (float64, float64) {
	if len(players) == 0 {
		return 50, 50
	}
	var sumA, sumB float64
	for _, p := range players {
		sumA += float64(p.CurrentAttributes[a])
		sumB += float64(p.CurrentAttributes[b])
	}
	n := float64(len(players))
	return sumA / n, sumB / n
}

// drainPossessionStamina applies base + scheme + effect drain to every
// on-court player, with the bench recovering separately via
// applyRecovery at breaks (spec.md §4.4 step 11), then fires
// sim.stamina.drain so registered effects can react to the resulting
// stamina state.
func (g *game) drainPossessionStamina(ctx *effect.Context, offense, defense *runtimeTeam, pctx *possessionContext) {
	drain := g.rules.StaminaDrainBase + pctx.ExtraStaminaDrain
	for _, p := range offense.onCourtPlayers() {
		p.drainStamina(drain)
	}
	for _, p := range defense.onCourtPlayers() {
		p.drainStamina(drain + g.defensiveIntensity(defense)*0.01)
	}
	g.fireHook(effect.HookStaminaDrain, ctx, offense, defense)
}

func (g *game) defensiveIntensity(defense *runtimeTeam) float64 {
	strategy := g.awayStr
	if defense == g.home {
		strategy = g.homeStr
	}
	return g.rules.DefensiveIntensityBaseline + strategy.DefensiveIntensity
}

// triggerMoves evaluates the handler's moves against the current
// possession outcome and applies any matching move's effect (spec.md
// §4.4 step 10). Moves share the mutation DSL's condition grammar, so
// a move's Condition/Effect maps decode through the same ParseCondition/
// ParseMutations path a registered effect's interpretation does.
func (g *game) triggerMoves(handler *runtimePlayer, entry PossessionLog, ctx *effect.Context) []effect.Narrative {
	if len(handler.Moves) == 0 {
		return nil
	}
	trig := triggerForEntry(entry)
	moves := append([]player.Move{}, handler.Moves...)
	sort.SliceStable(moves, func(i, j int) bool { return moves[i].Name < moves[j].Name })

	var narratives []effect.Narrative
	for _, m := range moves {
		if m.Trigger != trig {
			continue
		}
		cond, err := effect.ParseCondition(m.Condition)
		if err != nil {
			continue // malformed move data never aborts the game
		}
		ok, err := cond.Eval(ctx)
		if err != nil || !ok {
			continue
		}
		mutations, err := effect.ParseMutations([]map[string]any{m.Effect})
		if err != nil {
			continue
		}
		result := effect.NewResult()
		for _, mut := range mutations {
			_ = mut.Apply(ctx, result)
		}
		for _, w := range result.StateWrites {
			applyStateWrite(g.meta, g.seasonID(), w)
		}
		for _, text := range result.Narratives {
			narratives = append(narratives, effect.Narrative{PlayerID: handler.ID, Move: m.Name, Text: text})
		}
		g.fireHook(effect.HookMoveTriggered, ctx, g.home, g.away)
	}
	return narratives
}

func triggerForEntry(entry PossessionLog) player.TriggerKind {
	switch {
	case entry.TurnoverOccurred:
		return player.TriggerOnTurnover
	case entry.FoulOccurred:
		return player.TriggerOnFoul
	case entry.ShotAttempted:
		return player.TriggerOnShot
	default:
		return player.TriggerOnLowStamina
	}
}
