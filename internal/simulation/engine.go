package simulation

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"

	"github.com/hoopsguild/leaguesim/internal/effect"
	"github.com/hoopsguild/leaguesim/internal/league/team"
	"github.com/hoopsguild/leaguesim/internal/metastore"
	"github.com/hoopsguild/leaguesim/internal/platform/apperrors"
	"github.com/hoopsguild/leaguesim/internal/ruleset"
)

// SimulateGame resolves one complete game, possession by possession,
// from a single seed (spec.md §4.4). It is a pure total function: no
// I/O, no clock reads, no globals. Any constraint violation aborts
// with a fatal *apperrors.Error rather than attempting partial
// recovery (spec.md §4.4 "Failure semantics").
func SimulateGame(in Input) (GameResult, error) {
	if err := in.Rules.Validate(); err != nil {
		return GameResult{}, err
	}
	if err := in.Home.Validate(); err != nil {
		return GameResult{}, apperrors.Wrap(apperrors.CodeSimulationInvariantViolation, "invalid home roster", err)
	}
	if err := in.Away.Validate(); err != nil {
		return GameResult{}, apperrors.Wrap(apperrors.CodeSimulationInvariantViolation, "invalid away roster", err)
	}

	rng := rand.New(rand.NewSource(in.Seed))
	registry := in.Effects
	if registry == nil {
		registry = effect.NewRegistry()
	}
	meta := metastore.FromSnapshot(in.Meta)

	g := &game{
		rules:    in.Rules,
		rng:      rng,
		effects:  registry,
		meta:     meta,
		home:     newRuntimeTeam(in.Home),
		away:     newRuntimeTeam(in.Away),
		homeStr:  normalizeStrategy(in.HomeStrategy),
		awayStr:  normalizeStrategy(in.AwayStrategy),
		leader:   "",
	}

	if err := g.run(); err != nil {
		return GameResult{}, err
	}
	return g.result(), nil
}

func normalizeStrategy(s Strategy) Strategy {
	if s.ActionBias == nil {
		return DefaultStrategy()
	}
	return s
}

// game holds all mutable state for one simulate_game call.
type game struct {
	rules   ruleset.RuleSet
	rng     *rand.Rand
	effects *effect.Registry
	meta    *metastore.Store
	home    *runtimeTeam
	away    *runtimeTeam
	homeStr Strategy
	awayStr Strategy

	quarter          int
	quarterElapsedSeconds float64
	elamActive       bool
	elamTarget       int
	possessionIndex  int
	leadChanges      int
	leader           string // "home" | "away" | ""
	log              []PossessionLog
	lastAction       ActionType
	lastResult       string
	consecutiveMakes int
	consecutiveMiss  int
}

func (g *game) run() error {
	gameCtx := effect.NewContext(g.rng)
	g.populateGameFields(gameCtx, g.home, g.away)
	g.fireHook(effect.HookGamePre, gameCtx, g.home, g.away)

	for g.quarter = 1; g.quarter <= 4; g.quarter++ {
		if g.quarter == g.rules.ElamTriggerQuarter+1 {
			g.activateElam()
		}
		quarterCtx := effect.NewContext(g.rng)
		g.populateGameFields(quarterCtx, g.home, g.away)
		g.fireHook(effect.HookQuarterPre, quarterCtx, g.home, g.away)
		if err := g.playQuarter(); err != nil {
			return err
		}
		g.fireHook(effect.HookQuarterPost, quarterCtx, g.home, g.away)
		if g.elamActive && g.elamReached() {
			break
		}
		if g.quarter == 2 {
			g.applyRecovery(g.rules.HalftimeStaminaRecovery)
			g.home.resetHalfFouls()
			g.away.resetHalfFouls()
		} else if g.quarter < 4 {
			g.applyRecovery(g.rules.QuarterBreakStaminaRecovery)
		}
		if g.quarter < 4 {
			g.home.checkQuarterBreakSubs(g.rules.SubstitutionStaminaThreshold)
			g.away.checkQuarterBreakSubs(g.rules.SubstitutionStaminaThreshold)
		}
		if err := g.checkInvariants(); err != nil {
			return err
		}
	}
	return nil
}

func (g *game) activateElam() {
	g.elamActive = true
	lead := g.home.Score
	if g.away.Score > lead {
		lead = g.away.Score
	}
	g.elamTarget = lead + g.rules.ElamMargin
}

func (g *game) elamReached() bool {
	return g.home.Score >= g.elamTarget || g.away.Score >= g.elamTarget
}

func (g *game) applyRecovery(amount float64) {
	for _, p := range g.home.Players {
		p.recoverStamina(amount)
	}
	for _, p := range g.away.Players {
		p.recoverStamina(amount)
	}
}

// playQuarter runs possessions until the quarter's possession budget
// is exhausted, the quarter clock (quarter_minutes, tracked as summed
// possession times) runs out, or (in Elam phase) the target score is
// reached, bounded overall by SafetyCapPossessions (spec.md §4.4 "Game
// loop").
func (g *game) playQuarter() error {
	g.quarterElapsedSeconds = 0
	quarterSeconds := g.rules.QuarterMinutes * 60
	for i := 0; i < g.rules.QuarterPossessions; i++ {
		if g.possessionIndex >= g.rules.SafetyCapPossessions {
			return nil
		}
		if g.elamActive && g.elamReached() {
			return nil
		}
		if g.quarterElapsedSeconds >= quarterSeconds {
			return nil
		}
		offense, defense := g.home, g.away
		if g.possessionIndex%2 == 1 {
			offense, defense = g.away, g.home
		}
		if err := g.resolvePossession(offense, defense); err != nil {
			return err
		}
		g.possessionIndex++
		if err := g.checkInvariants(); err != nil {
			return err
		}
		if g.elamActive && g.elamReached() {
			return nil
		}
	}
	return nil
}

// checkInvariants enforces the quantified invariants from spec.md §4.4
// that must hold "at every step". A violation is fatal.
func (g *game) checkInvariants() error {
	for _, rt := range []*runtimeTeam{g.home, g.away} {
		if rt.Score < 0 {
			return apperrors.New(apperrors.CodeSimulationInvariantViolation, "team score went negative")
		}
		if len(rt.OnCourt) > team.ActiveRosterSize {
			return apperrors.New(apperrors.CodeSimulationInvariantViolation, "more than three players on court")
		}
		maxFouls := len(rt.Players) * g.rules.PersonalFoulLimit
		totalFouls := 0
		for _, p := range rt.Players {
			if p.Stamina < minStamina-1e-9 || p.Stamina > maxStamina+1e-9 {
				return apperrors.New(apperrors.CodeSimulationInvariantViolation, "player stamina out of bounds")
			}
			totalFouls += p.Fouls
		}
		if totalFouls > maxFouls {
			return apperrors.New(apperrors.CodeSimulationInvariantViolation, "total fouls exceed roster-wide limit")
		}
	}
	return nil
}

// result assembles the GameResult, box score, and a deterministic
// checksum standing in for the final RNG state.
func (g *game) result() GameResult {
	// run's quarter loop leaves g.quarter at 5 when all four quarters
	// are played without an Elam finish.
	quarters := g.quarter
	if quarters > 4 {
		quarters = 4
	}
	box := map[string]PlayerBoxStat{}
	for _, rt := range []*runtimeTeam{g.home, g.away} {
		for id, p := range rt.Players {
			stat := p.Stat
			stat.PlayerID = id
			stat.Fouls = p.Fouls
			stat.Possessions = p.Possessions
			stat.Minutes = float64(p.Possessions) / float64(maxInt(1, g.possessionIndex)) * float64(quarters) * g.rules.QuarterMinutes
			box[id] = stat
		}
	}

	deltas := []MetaDelta{}
	keys := g.meta.DirtyKeys()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Kind != keys[j].Kind {
			return keys[i].Kind < keys[j].Kind
		}
		return keys[i].EntityID < keys[j].EntityID
	})
	for _, k := range keys {
		deltas = append(deltas, MetaDelta{Key: k, Bucket: g.meta.Snapshot(k)})
	}

	draw := g.rng.Uint64()
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%d|%d|%d", g.home.Score, g.away.Score, g.possessionIndex, draw)
	for _, p := range g.log {
		fmt.Fprintf(h, "|%s:%s:%d", p.OffenseTeamID, p.ActionType, p.PointsScored)
	}

	return GameResult{
		HomeScore:        g.home.Score,
		AwayScore:        g.away.Score,
		QuartersPlayed:   quarters,
		ElamActivated:    g.elamActive,
		LeadChanges:      g.leadChanges,
		TotalPossessions: g.possessionIndex,
		Possessions:      g.log,
		BoxScore:         box,
		MetaDeltas:       deltas,
		RuleSetSnapshot:  g.rules,
		FinalChecksum:    h.Sum64(),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
