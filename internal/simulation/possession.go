package simulation

import (
	"fmt"

	"github.com/hoopsguild/leaguesim/internal/effect"
)

// possessionContext carries hook-installed modifiers for the possession
// currently being resolved (spec.md §4.4 step 1).
type possessionContext struct {
	ShotProbabilityModifier float64
	ShotValueModifier       float64
	ExtraStaminaDrain       float64
	ActionBias              map[string]float64
	TurnoverModifier        float64
	RandomEjectionProbability float64
	BonusPassCount          int
}

func newPossessionContext() *possessionContext {
	return &possessionContext{ActionBias: map[string]float64{}}
}

// resolvePossession runs the full twelve-step pipeline for a single
// possession (spec.md §4.4 "Possession resolution").
func (g *game) resolvePossession(offense, defense *runtimeTeam) error {
	offenseOn := offense.onCourtPlayers()
	defenseOn := defense.onCourtPlayers()
	if len(offenseOn) == 0 || len(defenseOn) == 0 {
		return nil // both sides short-handed to zero: nothing to resolve
	}

	ctx := effect.NewContext(g.rng)
	g.populateGameFields(ctx, offense, defense)

	// Step 1: possession.pre hooks install a PossessionContext.
	pctx := newPossessionContext()
	preResult, err := g.effects.Fire(effect.HookPossessionPre, ctx)
	if err != nil {
		return err
	}
	if preResult.BlockEvent {
		// A higher-priority effect cancelled this possession outright:
		// no turnover/shot/foul/rebound resolution, just a placeholder
		// entry so possession_index still advances.
		entry := PossessionLog{
			Quarter:         g.quarter,
			PossessionIndex: g.possessionIndex,
			ElamPhase:       g.elamActive,
			OffenseTeamID:   offense.Team.ID,
		}
		g.logPossession(entry, offense, defense)
		return nil
	}
	applyPossessionMutations(pctx, preResult)

	// Step 2: defense scheme selection.
	scheme := g.selectDefenseScheme(defenseOn)

	// Step 3: matchup assignment (cost-minimizing with perturbation).
	matchups := g.assignMatchups(offenseOn, defenseOn)

	// Step 4: action selection.
	handler := offenseOn[g.rng.Intn(len(offenseOn))]
	action := g.selectAction(handler, offense == g.home, pctx)
	defender := matchups[handler.ID]

	entry := PossessionLog{
		Quarter:          g.quarter,
		PossessionIndex:  g.possessionIndex,
		ElamPhase:        g.elamActive,
		OffenseTeamID:    offense.Team.ID,
		DefenseScheme:    scheme,
		ActionType:       action,
		HandlerPlayerID:  handler.ID,
		DefenderPlayerID: defender.ID,
	}

	handler.Possessions++
	handler.Stat.Possessions++

	// Step 5: turnover/steal check.
	turnoverChance := g.rules.TurnoverBaseRate + defenseModifier(scheme) + pctx.TurnoverModifier
	if g.rng.Float64() < clamp01(turnoverChance) {
		entry.TurnoverOccurred = true
		entry.ElapsedSeconds = g.possessionDuration(true)
		g.quarterElapsedSeconds += entry.ElapsedSeconds
		handler.Stat.Turnovers++
		defender.Stat.Steals++
		g.logPossession(entry, offense, defense)
		g.drainPossessionStamina(ctx, offense, defense, pctx)
		g.fireHook(effect.HookPossessionPost, ctx, offense, defense)
		return nil
	}

	// Step 6: shot resolution.
	shotProb := g.shotProbability(handler, defender, action, scheme, pctx)
	entry.ShotAttempted = true
	made := g.rng.Float64() < shotProb
	entry.ShotMade = made

	if made {
		// Step 7: score crediting.
		points := shotValue(action, g.rules.ThreePointValue) + pctx.ShotValueModifier + float64(pctx.BonusPassCount)*g.rules.ValuePerBonusPass
		intPoints := roundPoints(points)
		offense.Score += intPoints
		entry.PointsScored = intPoints
		handler.Stat.Points += intPoints
		g.updateLead()
		g.consecutiveMakes++
		g.consecutiveMiss = 0
	} else {
		g.consecutiveMiss++
		g.consecutiveMakes = 0
	}

	ctx.EventStrings["event.action_type"] = string(action)
	ctx.EventFields["event.shot_made"] = boolFloat(made)
	g.fireHook(effect.HookShotResolved, ctx, offense, defense)

	// Step 8: foul check; if fouled, resolve a default free-throw
	// sequence gated on shot type and whether the shot itself went in
	// (an "and-one" draws a single attempt).
	foulChance := g.rules.BaseFoulRate + defenseModifier(scheme) + maxFloat(0, g.defensiveIntensity(defense))*0.01
	if g.rng.Float64() < clamp01(foulChance) {
		entry.FoulOccurred = true
		defender.Fouls++
		defender.Stat.Fouls++
		defense.TeamFouls++
		ctx.EventFields["event.defender_fouls"] = float64(defender.Fouls)
		g.fireHook(effect.HookFoulCommitted, ctx, offense, defense)

		attempts := freeThrowAttempts(action, made)
		if attempts > 0 {
			ftMade := g.resolveFreeThrows(handler, attempts)
			entry.FreeThrowsAttempted = attempts
			entry.FreeThrowsMade = ftMade
			handler.Stat.FreeThrowsAttempted += attempts
			if ftMade > 0 {
				offense.Score += ftMade
				entry.PointsScored += ftMade
				handler.Stat.Points += ftMade
				handler.Stat.FreeThrowsMade += ftMade
				g.updateLead()
			}
		}
	}

	// Step 9: rebound (only on a miss).
	if !made {
		offenseReboundProb := 0.25 + 0.1*attributeEdge(offenseOn, defenseOn)
		if g.rng.Float64() < clamp01(offenseReboundProb) {
			entry.ReboundTeamID = offense.Team.ID
		} else {
			entry.ReboundTeamID = defense.Team.ID
		}
		ctx.EventStrings["event.rebound_team_id"] = entry.ReboundTeamID
		g.fireHook(effect.HookReboundContested, ctx, offense, defense)
	}

	// Step 10: move triggers.
	for _, n := range g.triggerMoves(handler, entry, ctx) {
		entry.Narratives = append(entry.Narratives, n.Text)
	}

	// Step 11: stamina drain.
	g.drainPossessionStamina(ctx, offense, defense, pctx)

	// Ejections from excessive fouls or an effect-granted random ejection.
	if pctx.RandomEjectionProbability > 0 && g.rng.Float64() < pctx.RandomEjectionProbability {
		defender.Ejected = true
	}
	offense.checkEjectionsAndSub(g.rules.PersonalFoulLimit)
	defense.checkEjectionsAndSub(g.rules.PersonalFoulLimit)

	entry.ElapsedSeconds = g.possessionDuration(false)
	g.quarterElapsedSeconds += entry.ElapsedSeconds
	g.logPossession(entry, offense, defense)

	// Step 12: possession.post cross-possession state update.
	g.lastAction = action
	if made {
		g.lastResult = "make"
	} else if entry.TurnoverOccurred {
		g.lastResult = "turnover"
	} else {
		g.lastResult = "miss"
	}
	g.fireHook(effect.HookPossessionPost, ctx, offense, defense)
	return nil
}

func (g *game) logPossession(entry PossessionLog, offense, defense *runtimeTeam) {
	entry.OffenseScore = offense.Score
	entry.DefenseScore = defense.Score
	g.log = append(g.log, entry)
}

func (g *game) updateLead() {
	newLeader := g.leader
	switch {
	case g.home.Score > g.away.Score:
		newLeader = "home"
	case g.away.Score > g.home.Score:
		newLeader = "away"
	default:
		newLeader = "tied"
	}
	if newLeader != g.leader && g.leader != "" && newLeader != "tied" && g.leader != "tied" {
		g.leadChanges++
	}
	g.leader = newLeader
}

// populateGameFields fills ctx.GameFields with the quantities effect
// conditions commonly reference (spec.md §4.3 generic resolver).
func (g *game) populateGameFields(ctx *effect.Context, offense, defense *runtimeTeam) {
	ctx.GameFields["game.quarter"] = float64(g.quarter)
	ctx.GameFields["game.possession_index"] = float64(g.possessionIndex)
	ctx.GameFields["game.home_score"] = float64(g.home.Score)
	ctx.GameFields["game.away_score"] = float64(g.away.Score)
	ctx.GameFields["game.elam_active"] = boolFloat(g.elamActive)
	ctx.GameFields["game.consecutive_makes"] = float64(g.consecutiveMakes)
	ctx.GameFields["game.consecutive_misses"] = float64(g.consecutiveMiss)
	for id, p := range offense.Players {
		ctx.PlayerFields[fmt.Sprintf("player:%s.stamina", id)] = p.Stamina
		ctx.PlayerFields[fmt.Sprintf("player:%s.fouls", id)] = float64(p.Fouls)
	}
	for id, p := range defense.Players {
		ctx.PlayerFields[fmt.Sprintf("player:%s.stamina", id)] = p.Stamina
		ctx.PlayerFields[fmt.Sprintf("player:%s.fouls", id)] = float64(p.Fouls)
	}
	g.meta.PopulateContext(ctx, metaTeamKey(offense))
	g.meta.PopulateContext(ctx, metaTeamKey(defense))
}

func (g *game) fireHook(hook effect.HookPoint, ctx *effect.Context, offense, defense *runtimeTeam) {
	result, err := g.effects.Fire(hook, ctx)
	if err != nil || result == nil {
		return
	}
	for _, w := range result.StateWrites {
		applyStateWrite(g.meta, g.seasonID(), w)
	}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
