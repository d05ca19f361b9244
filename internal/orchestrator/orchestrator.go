// Package orchestrator implements C8: the three-phase round executor
// that sequences governance tally, deterministic simulation, AI
// narrative generation, persistence, and season lifecycle transitions
// under a single short-lived writer session per phase (spec.md §4.7).
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/hoopsguild/leaguesim/internal/aigateway"
	"github.com/hoopsguild/leaguesim/internal/effect"
	"github.com/hoopsguild/leaguesim/internal/eventbus"
	"github.com/hoopsguild/leaguesim/internal/govevent"
	"github.com/hoopsguild/leaguesim/internal/governance"
	"github.com/hoopsguild/leaguesim/internal/league/player"
	"github.com/hoopsguild/leaguesim/internal/league/schedule"
	"github.com/hoopsguild/leaguesim/internal/league/season"
	"github.com/hoopsguild/leaguesim/internal/league/team"
	"github.com/hoopsguild/leaguesim/internal/metastore"
	"github.com/hoopsguild/leaguesim/internal/platform/apperrors"
	"github.com/hoopsguild/leaguesim/internal/platform/id"
	"github.com/hoopsguild/leaguesim/internal/repository"
	"github.com/hoopsguild/leaguesim/internal/ruleset"
	"github.com/hoopsguild/leaguesim/internal/simulation"
	"go.opentelemetry.io/otel/trace"
)

// PresentationMode controls whether a round's games are persisted
// visible immediately or held back for the Presenter's replay drip
// (spec.md §4.7 "presented flag unset (replay mode) or set (instant
// mode)").
type PresentationMode int

const (
	ModeReplay PresentationMode = iota
	ModeInstant
)

// Orchestrator wires the components a round touches. It holds no
// per-round state; RunRound is safe to call repeatedly (the scheduler
// serializes calls via its reentrancy guard).
type Orchestrator struct {
	Repo   repository.Repository
	Bus    *eventbus.Bus
	AI     *aigateway.Gateway
	Logger *slog.Logger
	Mode   PresentationMode
	Tracer trace.Tracer
}

// New constructs an Orchestrator with its required collaborators.
func New(repo repository.Repository, bus *eventbus.Bus, ai *aigateway.Gateway, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{Repo: repo, Bus: bus, AI: ai, Logger: logger, Tracer: trace.NewNoopTracerProvider().Tracer("orchestrator")}
}

// WithTracer installs a tracer for per-phase spans (spec.md §4.7;
// SPEC_FULL.md §1.5 "round orchestration ... each open a span").
func (o *Orchestrator) WithTracer(tracer trace.Tracer) *Orchestrator {
	o.Tracer = tracer
	return o
}

// RoundSummary is what RunRound hands back to its caller (the
// scheduler or the `step` CLI) and to the Presenter launcher.
type RoundSummary struct {
	SeasonID string
	Round    int
	Games    []repository.GameResultRecord
	Partial  bool // true if Phase C failed after games were already persisted
}

// phaseAOutput threads what Phase A produced through to Phase B and C
// without re-reading it from storage.
type phaseAOutput struct {
	season       season.Season
	rules        ruleset.RuleSet
	round        int
	games        []repository.GameResultRecord
	matchups     []schedule.Matchup
	teamsByID    map[string]team.Team
	governorIDs  []string
	registry     *effect.Registry
}

// RunRound advances a season by exactly one round (spec.md §4.7).
func (o *Orchestrator) RunRound(ctx context.Context, seasonID string) (RoundSummary, error) {
	ctx, span := o.Tracer.Start(ctx, "orchestrator.round")
	defer span.End()

	out, err := o.phaseA(ctx, seasonID)
	if err != nil {
		return RoundSummary{}, apperrors.Wrap(apperrors.CodeOrchestratorFatal, "phase A failed, round aborted", err)
	}

	reports := o.phaseB(ctx, out)

	if err := o.phaseC(ctx, out, reports); err != nil {
		o.Logger.Error("phase C failed after games were persisted", "season_id", seasonID, "round", out.round, "error", err)
		return RoundSummary{SeasonID: seasonID, Round: out.round, Games: out.games, Partial: true}, nil
	}

	return RoundSummary{SeasonID: seasonID, Round: out.round, Games: out.games}, nil
}

// HasPendingGovernance reports whether a season has any proposal still
// in StatusConfirmed or StatusAmended, i.e. one tallyPendingGovernance
// pass would have work to do. The scheduler uses this to decide whether
// a COMPLETE season still needs governance-only ticks (spec.md §4.10
// "a season reaching COMPLETE with proposals still pending keeps
// ticking tally-only until the backlog drains").
func (o *Orchestrator) HasPendingGovernance(ctx context.Context, seasonID string) (bool, error) {
	submitted, err := o.Repo.ByType(ctx, seasonID, govevent.TypeProposalSubmitted)
	if err != nil {
		return false, err
	}
	seen := make(map[string]bool, len(submitted))
	for _, e := range submitted {
		if seen[e.AggregateID] {
			continue
		}
		seen[e.AggregateID] = true
		p, err := governance.Reconstruct(ctx, o.Repo, seasonID, e.AggregateID)
		if err != nil {
			return false, err
		}
		if p.Status == governance.StatusConfirmed || p.Status == governance.StatusAmended {
			return true, nil
		}
	}
	return false, nil
}

// TallyGovernanceOnly runs the governance tally/resolve pass without
// advancing the round or simulating any games (spec.md §4.10's
// governance-only tick for a season that reached COMPLETE with
// proposals still pending). The season's CurrentRound is left
// untouched; only CurrentRuleSet and governance aggregates change.
func (o *Orchestrator) TallyGovernanceOnly(ctx context.Context, seasonID string) error {
	ctx, span := o.Tracer.Start(ctx, "orchestrator.governanceOnlyTally")
	defer span.End()

	se, err := o.Repo.GetSeason(ctx, seasonID)
	if err != nil {
		return err
	}
	if err := o.tallyPendingGovernance(ctx, &se, se.CurrentRound); err != nil {
		return err
	}
	if err := o.Repo.SaveSeason(ctx, se); err != nil {
		return err
	}
	if o.Bus != nil {
		o.Bus.Publish(eventbus.Event{Type: "governance.tally_completed", Payload: map[string]any{
			"season_id": seasonID, "round": se.CurrentRound,
		}})
	}
	return nil
}

// phaseA is the first short write session: tally pending governance,
// run every scheduled game for the round serially, persist results,
// regenerate tokens on a window boundary.
func (o *Orchestrator) phaseA(ctx context.Context, seasonID string) (phaseAOutput, error) {
	ctx, span := o.Tracer.Start(ctx, "orchestrator.phaseA")
	defer span.End()

	se, err := o.Repo.GetSeason(ctx, seasonID)
	if err != nil {
		return phaseAOutput{}, err
	}
	round := se.CurrentRound + 1

	if err := o.tallyPendingGovernance(ctx, &se, round); err != nil {
		return phaseAOutput{}, err
	}

	sched, err := o.Repo.GetSchedule(ctx, seasonID)
	if err != nil {
		return phaseAOutput{}, err
	}
	matchups := sched.Round(round)

	teams, err := o.Repo.ListTeamsBySeason(ctx, seasonID)
	if err != nil {
		return phaseAOutput{}, err
	}
	teamsByID := make(map[string]team.Team, len(teams))
	for _, t := range teams {
		teamsByID[t.ID] = t
	}

	registry, err := effect.LoadActive(ctx, o.Repo, seasonID, round)
	if err != nil {
		return phaseAOutput{}, err
	}

	meta, err := o.loadMetaStore(ctx, teams)
	if err != nil {
		return phaseAOutput{}, err
	}

	games := make([]repository.GameResultRecord, 0, len(matchups))
	for _, m := range matchups {
		home, homeOK := teamsByID[m.HomeTeamID]
		away, awayOK := teamsByID[m.AwayTeamID]
		if !homeOK || !awayOK {
			return phaseAOutput{}, apperrors.New(apperrors.CodeOrchestratorFatal, "matchup references unknown team")
		}

		result, err := simulation.SimulateGame(simulation.Input{
			Home:         home,
			Away:         away,
			Rules:        se.CurrentRuleSet,
			Seed:         gameSeed(seasonID, round, m.HomeTeamID, m.AwayTeamID),
			Effects:      registry,
			Meta:         meta.Snapshot(),
			HomeStrategy: simulation.DefaultStrategy(),
			AwayStrategy: simulation.DefaultStrategy(),
		})
		if err != nil {
			return phaseAOutput{}, apperrors.Wrap(apperrors.CodeOrchestratorFatal, "simulate game", err)
		}
		applyMetaDeltas(meta, result.MetaDeltas)
		runEvals(o.Logger, seasonID, round, m, result)

		rec := repository.GameResultRecord{
			ID:         id.New(),
			SeasonID:   seasonID,
			Round:      round,
			HomeTeamID: m.HomeTeamID,
			AwayTeamID: m.AwayTeamID,
			Result:     result,
			Presented:  o.Mode == ModeInstant,
			CreatedAt:  time.Now().UTC(),
		}
		if err := o.Repo.SaveGameResult(ctx, rec); err != nil {
			return phaseAOutput{}, err
		}
		games = append(games, rec)
	}

	if err := o.flushMetaStore(ctx, meta); err != nil {
		return phaseAOutput{}, err
	}

	if se.CurrentRuleSet.GovernanceIntervalRounds > 0 && round%se.CurrentRuleSet.GovernanceIntervalRounds == 0 {
		if err := o.regenerateTokens(ctx, &se); err != nil {
			return phaseAOutput{}, err
		}
	}

	enrollments, err := o.Repo.ListEnrollments(ctx, seasonID)
	if err != nil {
		return phaseAOutput{}, err
	}
	governorIDs := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		if e.Active {
			governorIDs = append(governorIDs, e.GovernorID)
		}
	}

	se.CurrentRound = round
	if err := o.Repo.SaveSeason(ctx, se); err != nil {
		return phaseAOutput{}, err
	}

	return phaseAOutput{
		season:      se,
		rules:       se.CurrentRuleSet,
		round:       round,
		games:       games,
		matchups:    matchups,
		teamsByID:   teamsByID,
		governorIDs: governorIDs,
		registry:    registry,
	}, nil
}

// gameSeed derives a deterministic per-game seed from stable inputs so
// RunRound is reproducible given the same season state (spec.md §4.4
// invariant 1, "bit-identical").
func gameSeed(seasonID string, round int, homeTeamID, awayTeamID string) int64 {
	h := fnv64a(fmt.Sprintf("%s|%d|%s|%s", seasonID, round, homeTeamID, awayTeamID))
	return int64(h)
}

func fnv64a(s string) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	hash := uint64(offset64)
	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= prime64
	}
	return hash
}

// tallyPendingGovernance runs DeferOrTally/Resolve for every confirmed
// or amended proposal in the season, releasing governance locks before
// games run (spec.md §4.7 "Pre-tally pending governance").
func (o *Orchestrator) tallyPendingGovernance(ctx context.Context, se *season.Season, round int) error {
	submitted, err := o.Repo.ByType(ctx, se.ID, govevent.TypeProposalSubmitted)
	if err != nil {
		return err
	}

	registry, err := effect.LoadActive(ctx, o.Repo, se.ID, round)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(submitted))
	for _, e := range submitted {
		if seen[e.AggregateID] {
			continue
		}
		seen[e.AggregateID] = true

		p, err := governance.Reconstruct(ctx, o.Repo, se.ID, e.AggregateID)
		if err != nil {
			return err
		}
		if p.Status != governance.StatusConfirmed && p.Status != governance.StatusAmended {
			continue
		}

		outcome, err := governance.DeferOrTally(ctx, o.Repo, se.ID, p, round)
		if err != nil {
			return err
		}
		if outcome == nil {
			continue // first_tally_seen recorded; deferred to next window
		}

		enactment, err := decodeEnactment(p)
		if err != nil {
			o.Logger.Warn("proposal interpretation decode failed, enacting no-op", "proposal_id", p.ID, "error", err)
			enactment = governance.EnactmentInput{}
		}

		newRules, err := governance.Resolve(ctx, o.Repo, se.ID, p, *outcome, registry, se.CurrentRuleSet, enactment, round)
		if err != nil {
			return err
		}
		se.CurrentRuleSet = newRules
	}

	for _, e := range registry.Active() {
		if err := o.Repo.SaveEffect(ctx, se.ID, e); err != nil {
			return err
		}
	}
	return nil
}

// decodeEnactment turns a tallied proposal's structured interpretation
// into governance.EnactmentInput, reusing the effect package's
// condition/mutation decoders (the same path a Move's on-trigger
// effect takes).
func decodeEnactment(p *governance.Proposal) (governance.EnactmentInput, error) {
	in := governance.EnactmentInput{}
	if p.Interpretation == nil {
		return in, nil
	}
	if param, ok := p.Interpretation["parameter"].(string); ok && param != "" {
		in.Parameter = param
		if v, ok := p.Interpretation["value"].(float64); ok {
			in.Value = v
		}
	}
	rawEffects, ok := p.Interpretation["effects"].([]any)
	if !ok {
		return in, nil
	}
	for _, re := range rawEffects {
		spec, ok := re.(map[string]any)
		if !ok {
			continue
		}
		e, err := decodeEffectSpec(p.ID, spec)
		if err != nil {
			return in, err
		}
		in.Effects = append(in.Effects, e)
	}
	return in, nil
}

func decodeEffectSpec(proposalID string, spec map[string]any) (effect.Effect, error) {
	cond := map[string]any{}
	if c, ok := spec["condition"].(map[string]any); ok {
		cond = c
	}
	condition, err := effect.ParseCondition(cond)
	if err != nil {
		return effect.Effect{}, err
	}

	var rawActions []map[string]any
	if actions, ok := spec["actions"].([]any); ok {
		for _, a := range actions {
			if m, ok := a.(map[string]any); ok {
				rawActions = append(rawActions, m)
			}
		}
	}
	mutations, err := effect.ParseMutations(rawActions)
	if err != nil {
		return effect.Effect{}, err
	}

	var hooks []effect.HookPoint
	if hps, ok := spec["hook_points"].([]any); ok {
		for _, h := range hps {
			if s, ok := h.(string); ok {
				hooks = append(hooks, effect.HookPoint(s))
			}
		}
	}

	kind, _ := spec["kind"].(string)
	duration, _ := spec["duration"].(string)
	if duration == "" {
		duration = string(effect.DurationPermanent)
	}

	return effect.Effect{
		ID:               id.New(),
		SourceProposalID: proposalID,
		Kind:             effect.Kind(kind),
		HookPoints:       hooks,
		Condition:        condition,
		Actions:          mutations,
		Duration:         effect.Duration(duration),
	}, nil
}

func (o *Orchestrator) regenerateTokens(ctx context.Context, se *season.Season) error {
	enrollments, err := o.Repo.ListEnrollments(ctx, se.ID)
	if err != nil {
		return err
	}
	tokenTypes := []govevent.TokenType{govevent.TokenPropose, govevent.TokenAmend, govevent.TokenBoost}
	for _, e := range enrollments {
		if !e.Active {
			continue
		}
		for _, tt := range tokenTypes {
			if err := governance.Regenerate(ctx, o.Repo, se.ID, e.GovernorID, tt, se.CurrentRuleSet.TokensPerWindow, se.CurrentRound+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) loadMetaStore(ctx context.Context, teams []team.Team) (*metastore.Store, error) {
	store := metastore.New()
	for _, t := range teams {
		if err := o.loadMetaKey(ctx, store, metastore.Key{Kind: metastore.EntityTeam, EntityID: t.ID, SeasonID: t.SeasonID}); err != nil {
			return nil, err
		}
		for _, p := range append(append([]player.Player{}, t.Active...), t.Bench...) {
			if err := o.loadMetaKey(ctx, store, metastore.Key{Kind: metastore.EntityPlayer, EntityID: p.ID, SeasonID: t.SeasonID}); err != nil {
				return nil, err
			}
		}
	}
	return store, nil
}

func (o *Orchestrator) loadMetaKey(ctx context.Context, store *metastore.Store, key metastore.Key) error {
	bucket, err := o.Repo.LoadMetaBucket(ctx, key)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(bucket)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "encode meta bucket for load", err)
	}
	return store.Load(key, raw)
}

func (o *Orchestrator) flushMetaStore(ctx context.Context, store *metastore.Store) error {
	for _, key := range store.DirtyKeys() {
		bucket := store.Snapshot(key)
		if err := o.Repo.SaveMetaBucket(ctx, key, bucket); err != nil {
			return err
		}
	}
	store.ClearDirty()
	return nil
}

func applyMetaDeltas(store *metastore.Store, deltas []simulation.MetaDelta) {
	for _, d := range deltas {
		for field, value := range d.Bucket {
			store.Set(d.Key, field, value)
		}
	}
}

// fireReportHook fires a report.* hook point ahead of generating that
// report's prompt, using the effect set Phase A already loaded.
// State writes are not applied back: Phase B runs with no write
// session open (spec.md §4.7 "no-session phase"), so a report hook can
// observe game state but not durably mutate it.
func (o *Orchestrator) fireReportHook(hook effect.HookPoint, out phaseAOutput, discriminator string) {
	if out.registry == nil {
		return
	}
	seed := int64(fnv64a(fmt.Sprintf("report|%s|%d|%s", out.season.ID, out.round, discriminator)))
	rctx := effect.NewContext(rand.New(rand.NewSource(seed)))
	rctx.GameFields["game.round"] = float64(out.round)
	if _, err := out.registry.Fire(hook, rctx); err != nil {
		o.Logger.Warn("report hook fire failed", "hook", hook, "error", err)
	}
}

// phaseB generates every narrative the round needs with no storage
// session held (spec.md §4.7 "Phase B ... no session held"). Provider
// failures degrade to the deterministic mock rather than aborting the
// round (spec.md §4.6 "degrade to mock in commentary").
func (o *Orchestrator) phaseB(ctx context.Context, out phaseAOutput) []repository.ReportRecord {
	ctx, span := o.Tracer.Start(ctx, "orchestrator.phaseB")
	defer span.End()

	var reports []repository.ReportRecord

	for i, m := range out.matchups {
		o.fireReportHook(effect.HookReportCommentaryPre, out, "commentary:"+m.HomeTeamID+":"+m.AwayTeamID)
		text := o.generate(ctx, aigateway.Request{
			Purpose:      aigateway.PurposeCommentary,
			SystemPrompt: "Write one paragraph of basketball commentary for this game result.",
			UserPrompt:   fmt.Sprintf("%s vs %s: %d-%d", m.HomeTeamID, m.AwayTeamID, out.games[i].Result.HomeScore, out.games[i].Result.AwayScore),
			MaxTokens:    256,
		})
		reports = append(reports, repository.ReportRecord{
			ID: id.New(), SeasonID: out.season.ID, Round: out.round, GameID: out.games[i].ID,
			Kind: repository.ReportKind(aigateway.PurposeCommentary), Text: text, CreatedAt: time.Now().UTC(),
		})
	}

	o.fireReportHook(effect.HookReportSimPre, out, "sim")
	reports = append(reports,
		o.roundReport(ctx, out, aigateway.PurposeReportSim, "Summarize this round's simulation results."),
		o.roundReport(ctx, out, aigateway.PurposeReportGov, "Summarize this round's governance activity."),
	)

	for _, governorID := range out.governorIDs {
		text := o.generate(ctx, aigateway.Request{
			Purpose:      aigateway.PurposeReportPrivate,
			SystemPrompt: "Write a private briefing for this governor.",
			UserPrompt:   fmt.Sprintf("season %s round %d governor %s", out.season.ID, out.round, governorID),
			MaxTokens:    256,
		})
		reports = append(reports, repository.ReportRecord{
			ID: id.New(), SeasonID: out.season.ID, Round: out.round,
			Kind: repository.ReportPrivate, Text: text, CreatedAt: time.Now().UTC(),
		})
	}

	return reports
}

func (o *Orchestrator) roundReport(ctx context.Context, out phaseAOutput, purpose aigateway.Purpose, prompt string) repository.ReportRecord {
	text := o.generate(ctx, aigateway.Request{
		Purpose:      purpose,
		SystemPrompt: prompt,
		UserPrompt:   fmt.Sprintf("season %s round %d, %d games played", out.season.ID, out.round, len(out.games)),
		MaxTokens:    512,
	})
	return repository.ReportRecord{
		ID: id.New(), SeasonID: out.season.ID, Round: out.round,
		Kind: repository.ReportKind(purpose), Text: text, CreatedAt: time.Now().UTC(),
	}
}

func (o *Orchestrator) generate(ctx context.Context, req aigateway.Request) string {
	resp, err := o.AI.Generate(ctx, req)
	if err == nil {
		return resp.Text
	}
	o.Logger.Warn("ai gateway call failed, degrading to mock", "purpose", req.Purpose, "error", err)
	return aigateway.NewMock().Generate(req)
}

// phaseC is the second short write session: persist reports, run the
// evaluation harness, check season lifecycle transitions, publish
// round.completed (spec.md §4.7 "Phase C").
func (o *Orchestrator) phaseC(ctx context.Context, out phaseAOutput, reports []repository.ReportRecord) error {
	ctx, span := o.Tracer.Start(ctx, "orchestrator.phaseC")
	defer span.End()

	for _, r := range reports {
		if err := o.Repo.SaveReport(ctx, r); err != nil {
			return err
		}
	}

	for i, g := range out.games {
		runEvals(o.Logger, out.season.ID, out.round, out.matchups[i], g.Result)
	}

	se := out.season
	if err := o.checkLifecycleTransitions(ctx, &se, out.round); err != nil {
		return err
	}
	if err := o.Repo.SaveSeason(ctx, se); err != nil {
		return err
	}

	if o.Bus != nil {
		o.Bus.Publish(eventbus.Event{Type: "round.completed", Payload: out})
	}
	return nil
}

// checkLifecycleTransitions advances se.Phase through the fixed
// lifecycle graph once the round count crosses each configured
// boundary (spec.md §4.7 "Check season-lifecycle transitions"). Each
// transition publishes its dedicated event-bus envelope plus a generic
// season.phase_changed, both non-durable (spec.md §4.9's taxonomy).
func (o *Orchestrator) checkLifecycleTransitions(ctx context.Context, se *season.Season, round int) error {
	lc := se.Lifecycle

	switch se.Phase {
	case season.PhaseActive:
		if round >= lc.RegularSeasonRounds {
			if err := o.transition(se, season.PhaseTiebreakerCheck); err != nil {
				return err
			}
			o.publish("season.regular_season_complete", se)
		}
	case season.PhaseTiebreakerCheck:
		standings, err := o.computeStandings(ctx, se.ID, round)
		if err != nil {
			return err
		}
		if standingsTiedAtCutoff(standings) {
			if err := o.transition(se, season.PhaseTiebreakers); err != nil {
				return err
			}
			o.publish("season.tiebreaker_games_generated", se)
		} else {
			if err := o.transition(se, season.PhasePlayoffs); err != nil {
				return err
			}
		}
	case season.PhaseTiebreakers:
		if round >= lc.RegularSeasonRounds+lc.TiebreakerRounds {
			if err := o.transition(se, season.PhasePlayoffs); err != nil {
				return err
			}
		}
	case season.PhasePlayoffs:
		if round >= lc.RegularSeasonRounds+lc.TiebreakerRounds+lc.PlayoffRounds {
			standings, err := o.computeStandings(ctx, se.ID, round)
			if err != nil {
				return err
			}
			if len(standings) > 0 {
				se.Lifecycle.ChampionTeamID = standings[0].TeamID
			}
			if err := o.transition(se, season.PhaseChampionship); err != nil {
				return err
			}
			o.publish("season.championship_started", se)
		} else if round == lc.RegularSeasonRounds+lc.TiebreakerRounds+lc.PlayoffRounds/2 {
			o.publish("season.semifinals_complete", se)
		}
	case season.PhaseChampionship:
		if err := o.transition(se, season.PhaseOffseason); err != nil {
			return err
		}
		o.publish("season.playoffs_complete", se)
		o.publish("season.offseason_started", se)
	case season.PhaseOffseason:
		if round >= lc.RegularSeasonRounds+lc.TiebreakerRounds+lc.PlayoffRounds+lc.OffseasonRounds {
			if err := o.transition(se, season.PhaseComplete); err != nil {
				return err
			}
			o.publish("season.offseason_closed", se)
			if err := o.archiveSeason(ctx, se, round); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) transition(se *season.Season, to season.Phase) error {
	if err := se.Transition(to); err != nil {
		return apperrors.Wrap(apperrors.CodeOrchestratorFatal, "illegal season transition", err)
	}
	o.publish("season.phase_changed", se)
	return nil
}

func (o *Orchestrator) publish(eventType string, se *season.Season) {
	if o.Bus == nil {
		return
	}
	o.Bus.Publish(eventbus.Event{Type: eventType, Payload: map[string]any{"season_id": se.ID, "phase": se.Phase}})
}

func (o *Orchestrator) archiveSeason(ctx context.Context, se *season.Season, round int) error {
	standings, err := o.computeStandings(ctx, se.ID, round)
	if err != nil {
		return err
	}
	standingsJSON, err := json.Marshal(standings)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "encode standings", err)
	}
	summary := fmt.Sprintf("season %s closed after %d rounds, champion %s", se.ID, round, se.Lifecycle.ChampionTeamID)
	return o.Repo.ArchiveSeason(ctx, repository.SeasonArchiveRecord{
		SeasonID: se.ID, ArchivedAt: time.Now().UTC(), StandingsJSON: standingsJSON, SummaryText: summary,
	})
}

// Standing is one team's regular-season record, used for playoff
// seeding and the season archive snapshot.
type Standing struct {
	TeamID         string
	Wins           int
	Losses         int
	PointsFor      int
	PointsAgainst  int
}

// ComputeStandings exposes computeStandings for callers outside a
// round (e.g. the `ask` CLI's read-only statistics snapshot).
func (o *Orchestrator) ComputeStandings(ctx context.Context, seasonID string, throughRound int) ([]Standing, error) {
	return o.computeStandings(ctx, seasonID, throughRound)
}

// computeStandings tallies every persisted game result for the season
// through round into win/loss records, sorted by wins then point
// differential (descending).
func (o *Orchestrator) computeStandings(ctx context.Context, seasonID string, throughRound int) ([]Standing, error) {
	byTeam := map[string]*Standing{}
	for r := 1; r <= throughRound; r++ {
		games, err := o.Repo.ListGameResults(ctx, seasonID, r)
		if err != nil {
			return nil, err
		}
		for _, g := range games {
			home := standingFor(byTeam, g.HomeTeamID)
			away := standingFor(byTeam, g.AwayTeamID)
			home.PointsFor += g.Result.HomeScore
			home.PointsAgainst += g.Result.AwayScore
			away.PointsFor += g.Result.AwayScore
			away.PointsAgainst += g.Result.HomeScore
			if g.Result.HomeScore > g.Result.AwayScore {
				home.Wins++
				away.Losses++
			} else {
				away.Wins++
				home.Losses++
			}
		}
	}

	out := make([]Standing, 0, len(byTeam))
	for _, s := range byTeam {
		out = append(out, *s)
	}
	sortStandings(out)
	return out, nil
}

func standingFor(byTeam map[string]*Standing, teamID string) *Standing {
	s, ok := byTeam[teamID]
	if !ok {
		s = &Standing{TeamID: teamID}
		byTeam[teamID] = s
	}
	return s
}

func sortStandings(standings []Standing) {
	for i := 1; i < len(standings); i++ {
		for j := i; j > 0; j-- {
			a, b := standings[j-1], standings[j]
			if lessStanding(a, b) {
				standings[j-1], standings[j] = standings[j], standings[j-1]
				continue
			}
			break
		}
	}
}

func lessStanding(a, b Standing) bool {
	if a.Wins != b.Wins {
		return a.Wins < b.Wins
	}
	return (a.PointsFor - a.PointsAgainst) < (b.PointsFor - b.PointsAgainst)
}

// standingsTiedAtCutoff reports whether the last guaranteed playoff
// slot is contested by two or more teams with identical records,
// requiring a tiebreaker round before seeding can proceed.
func standingsTiedAtCutoff(standings []Standing) bool {
	const playoffSlots = 4
	if len(standings) <= playoffSlots {
		return false
	}
	cutoff := standings[playoffSlots-1]
	next := standings[playoffSlots]
	return cutoff.Wins == next.Wins &&
		(cutoff.PointsFor-cutoff.PointsAgainst) == (next.PointsFor-next.PointsAgainst)
}
