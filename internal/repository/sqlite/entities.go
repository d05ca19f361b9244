package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hoopsguild/leaguesim/internal/aigateway"
	"github.com/hoopsguild/leaguesim/internal/effect"
	"github.com/hoopsguild/leaguesim/internal/league"
	"github.com/hoopsguild/leaguesim/internal/league/player"
	"github.com/hoopsguild/leaguesim/internal/league/schedule"
	"github.com/hoopsguild/leaguesim/internal/league/season"
	"github.com/hoopsguild/leaguesim/internal/league/team"
	"github.com/hoopsguild/leaguesim/internal/metastore"
	"github.com/hoopsguild/leaguesim/internal/platform/apperrors"
	"github.com/hoopsguild/leaguesim/internal/platform/id"
	"github.com/hoopsguild/leaguesim/internal/repository"
)

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorage, "marshal json", err)
	}
	return string(b), nil
}

func unmarshalJSON(raw string, v any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "unmarshal json", err)
	}
	return nil
}

// -- Leagues --

// SaveLeague upserts a league row.
func (s *Store) SaveLeague(ctx context.Context, l league.League) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leagues (id, name, current_season, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, current_season = excluded.current_season`,
		l.ID, l.Name, l.CurrentSeason, toMillis(l.CreatedAt))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "save league", err)
	}
	return nil
}

// GetLeague loads a league by id.
func (s *Store) GetLeague(ctx context.Context, id string) (league.League, error) {
	var (
		l         league.League
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, name, current_season, created_at FROM leagues WHERE id = ?`, id).
		Scan(&l.ID, &l.Name, &l.CurrentSeason, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return league.League{}, apperrors.New(apperrors.CodeNotFound, "league not found")
	}
	if err != nil {
		return league.League{}, apperrors.Wrap(apperrors.CodeStorage, "get league", err)
	}
	l.CreatedAt = fromMillis(createdAt)
	return l, nil
}

// ListLeagues returns every league.
func (s *Store) ListLeagues(ctx context.Context) ([]league.League, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, current_season, created_at FROM leagues ORDER BY created_at ASC`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "list leagues", err)
	}
	defer rows.Close()

	var out []league.League
	for rows.Next() {
		var (
			l         league.League
			createdAt int64
		)
		if err := rows.Scan(&l.ID, &l.Name, &l.CurrentSeason, &createdAt); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorage, "scan league", err)
		}
		l.CreatedAt = fromMillis(createdAt)
		out = append(out, l)
	}
	return out, rows.Err()
}

// -- Seasons --

// SaveSeason upserts a season row, serializing both the starting and
// current rule sets as JSON (spec.md §3 "immutable starting copy +
// mutable current copy derived from the event log").
func (s *Store) SaveSeason(ctx context.Context, se season.Season) error {
	startJSON, err := marshalJSON(se.StartingRuleSet)
	if err != nil {
		return err
	}
	currentJSON, err := marshalJSON(se.CurrentRuleSet)
	if err != nil {
		return err
	}
	teamIDsJSON, err := marshalJSON(se.TeamIDs)
	if err != nil {
		return err
	}
	lifecycleJSON, err := marshalJSON(se.Lifecycle)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO seasons (id, league_id, idx, phase, starting_ruleset_json, current_ruleset_json, team_ids_json, lifecycle_json, current_round)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			phase = excluded.phase,
			current_ruleset_json = excluded.current_ruleset_json,
			team_ids_json = excluded.team_ids_json,
			lifecycle_json = excluded.lifecycle_json,
			current_round = excluded.current_round`,
		se.ID, se.LeagueID, se.Index, string(se.Phase), startJSON, currentJSON, teamIDsJSON, lifecycleJSON, se.CurrentRound)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "save season", err)
	}
	return nil
}

// GetSeason loads a season by id.
func (s *Store) GetSeason(ctx context.Context, id string) (season.Season, error) {
	var (
		se                                      season.Season
		phase                                   string
		startJSON, currentJSON, teamIDsJSON, lc string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, league_id, idx, phase, starting_ruleset_json, current_ruleset_json, team_ids_json, lifecycle_json, current_round
		FROM seasons WHERE id = ?`, id).
		Scan(&se.ID, &se.LeagueID, &se.Index, &phase, &startJSON, &currentJSON, &teamIDsJSON, &lc, &se.CurrentRound)
	if errors.Is(err, sql.ErrNoRows) {
		return season.Season{}, apperrors.New(apperrors.CodeNotFound, "season not found")
	}
	if err != nil {
		return season.Season{}, apperrors.Wrap(apperrors.CodeStorage, "get season", err)
	}
	se.Phase = season.Phase(phase)
	if err := unmarshalJSON(startJSON, &se.StartingRuleSet); err != nil {
		return season.Season{}, err
	}
	if err := unmarshalJSON(currentJSON, &se.CurrentRuleSet); err != nil {
		return season.Season{}, err
	}
	if err := unmarshalJSON(teamIDsJSON, &se.TeamIDs); err != nil {
		return season.Season{}, err
	}
	if err := unmarshalJSON(lc, &se.Lifecycle); err != nil {
		return season.Season{}, err
	}
	return se, nil
}

// ListSeasonsByLeague returns every season for a league in index order.
func (s *Store) ListSeasonsByLeague(ctx context.Context, leagueID string) ([]season.Season, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM seasons WHERE league_id = ? ORDER BY idx ASC`, leagueID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "list seasons", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, apperrors.Wrap(apperrors.CodeStorage, "scan season id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "iterate seasons", err)
	}

	out := make([]season.Season, 0, len(ids))
	for _, id := range ids {
		se, err := s.GetSeason(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, se)
	}
	return out, nil
}

// -- Teams / players --

// SaveTeam upserts a team row and its full roster, replacing the
// previous player rows wholesale (rosters are season-scoped and small;
// spec.md §3 "3 active + bench").
func (s *Store) SaveTeam(ctx context.Context, t team.Team) error {
	venueJSON, err := marshalJSON(t.Venue)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "begin save team tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO teams (id, season_id, name, venue_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, venue_json = excluded.venue_json`,
		t.ID, t.SeasonID, t.Name, venueJSON); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "save team", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM players WHERE team_id = ?`, t.ID); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "clear roster", err)
	}
	if err := insertRoster(ctx, tx, t.ID, t.SeasonID, "active", t.Active); err != nil {
		return err
	}
	if err := insertRoster(ctx, tx, t.ID, t.SeasonID, "bench", t.Bench); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "commit save team tx", err)
	}
	return nil
}

func insertRoster(ctx context.Context, tx *sql.Tx, teamID, seasonID, slot string, players []player.Player) error {
	for _, p := range players {
		dataJSON, err := marshalJSON(p)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO players (id, team_id, season_id, roster_slot, data_json)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET roster_slot = excluded.roster_slot, data_json = excluded.data_json`,
			p.ID, teamID, seasonID, slot, dataJSON); err != nil {
			return apperrors.Wrap(apperrors.CodeStorage, "insert roster player", err)
		}
	}
	return nil
}

// GetTeam loads a team with its full roster.
func (s *Store) GetTeam(ctx context.Context, id string) (team.Team, error) {
	var (
		t         team.Team
		venueJSON string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, season_id, name, venue_json FROM teams WHERE id = ?`, id).
		Scan(&t.ID, &t.SeasonID, &t.Name, &venueJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return team.Team{}, apperrors.New(apperrors.CodeNotFound, "team not found")
	}
	if err != nil {
		return team.Team{}, apperrors.Wrap(apperrors.CodeStorage, "get team", err)
	}
	if err := unmarshalJSON(venueJSON, &t.Venue); err != nil {
		return team.Team{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT roster_slot, data_json FROM players WHERE team_id = ?`, id)
	if err != nil {
		return team.Team{}, apperrors.Wrap(apperrors.CodeStorage, "list roster", err)
	}
	defer rows.Close()
	for rows.Next() {
		var slot, dataJSON string
		if err := rows.Scan(&slot, &dataJSON); err != nil {
			return team.Team{}, apperrors.Wrap(apperrors.CodeStorage, "scan roster row", err)
		}
		var p player.Player
		if err := unmarshalJSON(dataJSON, &p); err != nil {
			return team.Team{}, err
		}
		if slot == "active" {
			t.Active = append(t.Active, p)
		} else {
			t.Bench = append(t.Bench, p)
		}
	}
	return t, rows.Err()
}

// ListTeamsBySeason returns every team rostered in a season.
func (s *Store) ListTeamsBySeason(ctx context.Context, seasonID string) ([]team.Team, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM teams WHERE season_id = ?`, seasonID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "list teams", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, apperrors.Wrap(apperrors.CodeStorage, "scan team id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "iterate teams", err)
	}

	out := make([]team.Team, 0, len(ids))
	for _, id := range ids {
		t, err := s.GetTeam(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// -- Schedule --

// SaveSchedule replaces a season's full fixture list.
func (s *Store) SaveSchedule(ctx context.Context, sched schedule.Schedule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "begin save schedule tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule WHERE season_id = ?`, sched.SeasonID); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "clear schedule", err)
	}
	for round, matchups := range sched.Rounds {
		for _, m := range matchups {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO schedule (season_id, round, home_team_id, away_team_id)
				VALUES (?, ?, ?, ?)`,
				sched.SeasonID, round+1, m.HomeTeamID, m.AwayTeamID); err != nil {
				return apperrors.Wrap(apperrors.CodeStorage, "insert matchup", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "commit save schedule tx", err)
	}
	return nil
}

// GetSchedule loads a season's full fixture list, grouped by round.
func (s *Store) GetSchedule(ctx context.Context, seasonID string) (schedule.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT round, home_team_id, away_team_id FROM schedule
		WHERE season_id = ? ORDER BY round ASC`, seasonID)
	if err != nil {
		return schedule.Schedule{}, apperrors.Wrap(apperrors.CodeStorage, "get schedule", err)
	}
	defer rows.Close()

	sched := schedule.Schedule{SeasonID: seasonID}
	for rows.Next() {
		var (
			round              int
			homeTeamID, awayID string
		)
		if err := rows.Scan(&round, &homeTeamID, &awayID); err != nil {
			return schedule.Schedule{}, apperrors.Wrap(apperrors.CodeStorage, "scan matchup", err)
		}
		for len(sched.Rounds) < round {
			sched.Rounds = append(sched.Rounds, nil)
		}
		sched.Rounds[round-1] = append(sched.Rounds[round-1], schedule.Matchup{
			SeasonID: seasonID, Round: round, HomeTeamID: homeTeamID, AwayTeamID: awayID,
		})
	}
	return sched, rows.Err()
}

// -- Game results --

// SaveGameResult persists one game's outcome and its box score rows,
// in one transaction (spec.md §4.11 "Game results within a round are
// persisted in schedule order" — callers are responsible for calling
// this once per game in schedule order within Phase A).
func (s *Store) SaveGameResult(ctx context.Context, rec repository.GameResultRecord) error {
	resultJSON, err := marshalJSON(rec.Result)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "begin save game tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO game_results (id, season_id, round, home_team_id, away_team_id, result_json, presented, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET result_json = excluded.result_json, presented = excluded.presented`,
		rec.ID, rec.SeasonID, rec.Round, rec.HomeTeamID, rec.AwayTeamID, resultJSON, boolToInt(rec.Presented), toMillis(rec.CreatedAt)); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "save game result", err)
	}

	for playerID, stat := range rec.Result.BoxScore {
		statJSON, err := marshalJSON(stat)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO box_scores (game_id, player_id, stat_json)
			VALUES (?, ?, ?)
			ON CONFLICT(game_id, player_id) DO UPDATE SET stat_json = excluded.stat_json`,
			rec.ID, playerID, statJSON); err != nil {
			return apperrors.Wrap(apperrors.CodeStorage, "save box score", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "commit save game tx", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanGameResultRow(rows *sql.Rows) (repository.GameResultRecord, error) {
	var (
		rec        repository.GameResultRecord
		resultJSON string
		presented  int
		createdAt  int64
	)
	if err := rows.Scan(&rec.ID, &rec.SeasonID, &rec.Round, &rec.HomeTeamID, &rec.AwayTeamID, &resultJSON, &presented, &createdAt); err != nil {
		return repository.GameResultRecord{}, apperrors.Wrap(apperrors.CodeStorage, "scan game result", err)
	}
	rec.Presented = presented != 0
	rec.CreatedAt = fromMillis(createdAt)
	if err := unmarshalJSON(resultJSON, &rec.Result); err != nil {
		return repository.GameResultRecord{}, err
	}
	return rec, nil
}

const gameResultColumns = `SELECT id, season_id, round, home_team_id, away_team_id, result_json, presented, created_at FROM game_results`

// ListGameResults returns every game persisted for a season/round.
func (s *Store) ListGameResults(ctx context.Context, seasonID string, round int) ([]repository.GameResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, gameResultColumns+` WHERE season_id = ? AND round = ? ORDER BY rowid ASC`, seasonID, round)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "list game results", err)
	}
	defer rows.Close()

	var out []repository.GameResultRecord
	for rows.Next() {
		rec, err := scanGameResultRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListUnpresentedGames returns games awaiting presentation, used by the
// scheduler's startup recovery (spec.md §4.10 "any games in the latest
// round with presented=false are marked presented immediately").
func (s *Store) ListUnpresentedGames(ctx context.Context, seasonID string) ([]repository.GameResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, gameResultColumns+` WHERE season_id = ? AND presented = 0 ORDER BY round ASC, rowid ASC`, seasonID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "list unpresented games", err)
	}
	defer rows.Close()

	var out []repository.GameResultRecord
	for rows.Next() {
		rec, err := scanGameResultRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkGamePresented flips a game's presented flag once the presenter
// has finished (or skipped, on recovery) its replay.
func (s *Store) MarkGamePresented(ctx context.Context, gameID string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE game_results SET presented = 1 WHERE id = ?`, gameID); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "mark game presented", err)
	}
	return nil
}

// -- Reports --

// SaveReport persists one generated narrative.
func (s *Store) SaveReport(ctx context.Context, rec repository.ReportRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, season_id, round, game_id, kind, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SeasonID, rec.Round, rec.GameID, string(rec.Kind), rec.Text, toMillis(rec.CreatedAt))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "save report", err)
	}
	return nil
}

// ListReports returns every report generated for a season/round.
func (s *Store) ListReports(ctx context.Context, seasonID string, round int) ([]repository.ReportRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, season_id, round, game_id, kind, text, created_at FROM reports
		WHERE season_id = ? AND round = ? ORDER BY created_at ASC`, seasonID, round)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "list reports", err)
	}
	defer rows.Close()

	var out []repository.ReportRecord
	for rows.Next() {
		var (
			rec       repository.ReportRecord
			kind      string
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.SeasonID, &rec.Round, &rec.GameID, &kind, &rec.Text, &createdAt); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorage, "scan report", err)
		}
		rec.Kind = repository.ReportKind(kind)
		rec.CreatedAt = fromMillis(createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// -- Effects registry --

// SaveEffect persists a registered effect (spec.md §4.3's durable
// counterpart to the in-memory effect.Registry the simulation engine
// consumes).
func (s *Store) SaveEffect(ctx context.Context, seasonID string, e effect.Effect) error {
	hookJSON, err := marshalJSON(e.HookPoints)
	if err != nil {
		return err
	}
	condJSON, err := marshalJSON(e.Condition)
	if err != nil {
		return err
	}
	actionsJSON, err := marshalJSON(e.Actions)
	if err != nil {
		return err
	}
	scopeJSON, err := marshalJSON(e.Scope)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO effects_registry (
			id, season_id, source_proposal_id, kind, hook_points_json, condition_json,
			actions_json, scope_json, duration, activation_round, expiration_round, priority, expired
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET expired = excluded.expired`,
		e.ID, seasonID, e.SourceProposalID, string(e.Kind), hookJSON, condJSON,
		actionsJSON, scopeJSON, string(e.Duration), e.ActivationRound, e.ExpirationRound, e.Priority)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "save effect", err)
	}
	return nil
}

// ListActiveEffects returns every non-expired effect row stored for a
// season, with its hook points, condition, actions and scope decoded
// from their JSON columns.
func (s *Store) ListActiveEffects(ctx context.Context, seasonID string) ([]effect.Effect, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_proposal_id, kind, hook_points_json, condition_json, actions_json,
			scope_json, duration, activation_round, expiration_round, priority
		FROM effects_registry WHERE season_id = ? AND expired = 0`, seasonID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "list active effects", err)
	}
	defer rows.Close()

	var out []effect.Effect
	for rows.Next() {
		var (
			e                                             effect.Effect
			kind, hookJSON, condJSON, actionsJSON, scopeJSON, duration string
		)
		if err := rows.Scan(&e.ID, &e.SourceProposalID, &kind, &hookJSON, &condJSON, &actionsJSON,
			&scopeJSON, &duration, &e.ActivationRound, &e.ExpirationRound, &e.Priority); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorage, "scan effect", err)
		}
		e.Kind = effect.Kind(kind)
		e.Duration = effect.Duration(duration)
		if err := unmarshalJSON(hookJSON, &e.HookPoints); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(condJSON, &e.Condition); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(actionsJSON, &e.Actions); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(scopeJSON, &e.Scope); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ExpireEffect marks an effect expired so it drops out of
// ListActiveEffects on the next round load.
func (s *Store) ExpireEffect(ctx context.Context, seasonID, effectID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE effects_registry SET expired = 1 WHERE season_id = ? AND id = ?`, seasonID, effectID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "expire effect", err)
	}
	return nil
}

// -- Meta store --

func metaTableAndColumn(kind metastore.EntityKind) (table, idColumn string, ok bool) {
	switch kind {
	case metastore.EntityTeam:
		return "teams", "id", true
	case metastore.EntityPlayer:
		return "players", "id", true
	default:
		return "", "", false
	}
}

// LoadMetaBucket reads the durable meta bucket for one team or player,
// stored as JSON in that row's meta_json column.
func (s *Store) LoadMetaBucket(ctx context.Context, key metastore.Key) (metastore.Bucket, error) {
	table, idColumn, ok := metaTableAndColumn(key.Kind)
	if !ok {
		return nil, apperrors.New(apperrors.CodeStorage, "unsupported meta entity kind")
	}

	var raw string
	query := fmt.Sprintf("SELECT meta_json FROM %s WHERE %s = ?", table, idColumn)
	err := s.db.QueryRowContext(ctx, query, key.EntityID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return metastore.Bucket{}, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "load meta bucket", err)
	}

	bucket := metastore.Bucket{}
	if err := unmarshalJSON(raw, &bucket); err != nil {
		return nil, err
	}
	return bucket, nil
}

// SaveMetaBucket flushes a dirty meta bucket back into its owning row.
func (s *Store) SaveMetaBucket(ctx context.Context, key metastore.Key, bucket metastore.Bucket) error {
	table, idColumn, ok := metaTableAndColumn(key.Kind)
	if !ok {
		return apperrors.New(apperrors.CodeStorage, "unsupported meta entity kind")
	}
	bucketJSON, err := marshalJSON(bucket)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("UPDATE %s SET meta_json = ? WHERE %s = ?", table, idColumn)
	if _, err := s.db.ExecContext(ctx, query, bucketJSON, key.EntityID); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "save meta bucket", err)
	}
	return nil
}

// -- AI usage log --

// Record implements aigateway.UsageSink, persisting one generation
// call's accounting row.
func (s *Store) Record(ctx context.Context, rec aigateway.UsageRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_usage_log (id, purpose, model_id, input_tokens, output_tokens, cache_tokens, latency_ms, used_mock, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.New(), string(rec.Purpose), rec.ModelID, rec.InputTokens, rec.OutputTokens,
		rec.CacheTokens, rec.LatencyMS, boolToInt(rec.UsedMock), toMillis(rec.GeneratedAt))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "record ai usage", err)
	}
	return nil
}

// -- Enrollment --

// EnrollPlayer upserts a governor's membership on a team for a season.
func (s *Store) EnrollPlayer(ctx context.Context, rec repository.EnrollmentRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO players_enrollment (season_id, governor_id, team_id, active, joined_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(season_id, governor_id) DO UPDATE SET team_id = excluded.team_id, active = excluded.active`,
		rec.SeasonID, rec.GovernorID, rec.TeamID, boolToInt(rec.Active), toMillis(rec.JoinedAt))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "enroll player", err)
	}
	return nil
}

// ListEnrollments returns every governor enrollment for a season.
func (s *Store) ListEnrollments(ctx context.Context, seasonID string) ([]repository.EnrollmentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT season_id, governor_id, team_id, active, joined_at FROM players_enrollment WHERE season_id = ?`, seasonID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "list enrollments", err)
	}
	defer rows.Close()

	var out []repository.EnrollmentRecord
	for rows.Next() {
		var (
			rec      repository.EnrollmentRecord
			active   int
			joinedAt int64
		)
		if err := rows.Scan(&rec.SeasonID, &rec.GovernorID, &rec.TeamID, &active, &joinedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorage, "scan enrollment", err)
		}
		rec.Active = active != 0
		rec.JoinedAt = fromMillis(joinedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// -- Season archives --

// ArchiveSeason records a point-in-time standings snapshot, taken when
// a season completes.
func (s *Store) ArchiveSeason(ctx context.Context, rec repository.SeasonArchiveRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO season_archives (season_id, archived_at, standings_json, summary_text)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(season_id, archived_at) DO NOTHING`,
		rec.SeasonID, toMillis(rec.ArchivedAt), string(rec.StandingsJSON), rec.SummaryText)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "archive season", err)
	}
	return nil
}

// ListSeasonArchives returns every archived snapshot for a season,
// newest first.
func (s *Store) ListSeasonArchives(ctx context.Context, seasonID string) ([]repository.SeasonArchiveRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT season_id, archived_at, standings_json, summary_text FROM season_archives
		WHERE season_id = ? ORDER BY archived_at DESC`, seasonID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "list season archives", err)
	}
	defer rows.Close()

	var out []repository.SeasonArchiveRecord
	for rows.Next() {
		var (
			rec        repository.SeasonArchiveRecord
			archivedAt int64
			standings  string
		)
		if err := rows.Scan(&rec.SeasonID, &archivedAt, &standings, &rec.SummaryText); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorage, "scan season archive", err)
		}
		rec.ArchivedAt = fromMillis(archivedAt)
		rec.StandingsJSON = []byte(standings)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// -- bot_state / scheduler lease --

// AcquireLease claims the named lease for holder until ttl elapses,
// implementing the scheduler's distributed-single-instance guard
// (spec.md §4.10 "a key in a durable bot_state table, acquired with a
// lease, prevents duplicate ticks from racing startups"). It succeeds
// if the lease is unheld, already expired, or already held by holder.
func (s *Store) AcquireLease(ctx context.Context, key, holder string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeStorage, "begin acquire lease tx", err)
	}
	defer tx.Rollback()

	var (
		currentHolder string
		leaseExpires  int64
	)
	err = tx.QueryRowContext(ctx, `SELECT lease_holder, lease_expires_at FROM bot_state WHERE key = ?`, key).
		Scan(&currentHolder, &leaseExpires)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bot_state (key, value, lease_holder, lease_expires_at) VALUES (?, '', ?, ?)`,
			key, holder, toMillis(expiresAt)); err != nil {
			return false, apperrors.Wrap(apperrors.CodeStorage, "insert lease", err)
		}
		return true, tx.Commit()
	case err != nil:
		return false, apperrors.Wrap(apperrors.CodeStorage, "read lease", err)
	}

	held := currentHolder == holder || fromMillis(leaseExpires).Before(now)
	if !held {
		return false, tx.Commit()
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE bot_state SET lease_holder = ?, lease_expires_at = ? WHERE key = ?`,
		holder, toMillis(expiresAt), key); err != nil {
		return false, apperrors.Wrap(apperrors.CodeStorage, "renew lease", err)
	}
	return true, tx.Commit()
}

// ReleaseLease gives up a held lease immediately, letting another
// instance acquire it without waiting for ttl to elapse.
func (s *Store) ReleaseLease(ctx context.Context, key, holder string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE bot_state SET lease_holder = '', lease_expires_at = 0 WHERE key = ? AND lease_holder = ?`,
		key, holder)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "release lease", err)
	}
	return nil
}

// GetBotState reads a plain durable key/value pair, separate from the
// lease columns on the same row.
func (s *Store) GetBotState(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM bot_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.Wrap(apperrors.CodeStorage, "get bot state", err)
	}
	return value, true, nil
}

// SetBotState upserts a plain durable key/value pair.
func (s *Store) SetBotState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_state (key, value, lease_holder, lease_expires_at) VALUES (?, ?, '', 0)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "set bot state", err)
	}
	return nil
}
