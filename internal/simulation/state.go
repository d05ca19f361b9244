package simulation

import (
	"sort"

	"github.com/hoopsguild/leaguesim/internal/league/player"
	"github.com/hoopsguild/leaguesim/internal/league/team"
)

// minStamina and maxStamina bound current_stamina at all times
// (spec.md §4.4 invariant: "current_stamina ∈ [0.15, 1.0]").
const (
	minStamina = 0.15
	maxStamina = 1.0
)

// runtimePlayer is one player's mutable in-game state, separate from
// the immutable roster record it wraps.
type runtimePlayer struct {
	player.Player
	Stamina     float64
	Fouls       int
	Ejected     bool
	Possessions int
	Stat        PlayerBoxStat
}

func newRuntimePlayer(p player.Player) *runtimePlayer {
	return &runtimePlayer{
		Player:  p.NewGameCopy(),
		Stamina: maxStamina,
		Stat:    PlayerBoxStat{PlayerID: p.ID},
	}
}

func (rp *runtimePlayer) drainStamina(amount float64) {
	rp.Stamina -= amount
	if rp.Stamina < minStamina {
		rp.Stamina = minStamina
	}
	if rp.Stamina > maxStamina {
		rp.Stamina = maxStamina
	}
}

func (rp *runtimePlayer) recoverStamina(amount float64) {
	rp.drainStamina(-amount)
}

// runtimeTeam is one team's mutable in-game state.
type runtimeTeam struct {
	Team      team.Team
	OnCourt   []string // player IDs, len <= team.ActiveRosterSize
	Bench     []string
	Players   map[string]*runtimePlayer
	Score     int
	TeamFouls int // reset at half
}

func newRuntimeTeam(t team.Team) *runtimeTeam {
	rt := &runtimeTeam{
		Team:    t,
		Players: map[string]*runtimePlayer{},
	}
	for _, p := range t.Active {
		rt.Players[p.ID] = newRuntimePlayer(p)
		rt.OnCourt = append(rt.OnCourt, p.ID)
	}
	for _, p := range t.Bench {
		rt.Players[p.ID] = newRuntimePlayer(p)
		rt.Bench = append(rt.Bench, p.ID)
	}
	return rt
}

// availableBench returns bench player IDs not ejected, sorted by
// stamina descending then by player id for deterministic tie-breaks.
func (rt *runtimeTeam) availableBench() []string {
	ids := make([]string, 0, len(rt.Bench))
	for _, id := range rt.Bench {
		if !rt.Players[id].Ejected {
			ids = append(ids, id)
		}
	}
	sort.SliceStable(ids, func(i, j int) bool {
		pi, pj := rt.Players[ids[i]], rt.Players[ids[j]]
		if pi.Stamina != pj.Stamina {
			return pi.Stamina > pj.Stamina
		}
		return pi.ID < pj.ID
	})
	return ids
}

// substitute swaps outID (on court) for the best available bench
// player, returning false if no bench alternative exists.
func (rt *runtimeTeam) substitute(outID string) bool {
	bench := rt.availableBench()
	if len(bench) == 0 {
		return false
	}
	inID := bench[0]
	for i, id := range rt.OnCourt {
		if id == outID {
			rt.OnCourt[i] = inID
			break
		}
	}
	newBench := make([]string, 0, len(rt.Bench))
	for _, id := range rt.Bench {
		if id == inID {
			continue
		}
		newBench = append(newBench, id)
	}
	newBench = append(newBench, outID)
	rt.Bench = newBench
	return true
}

// checkEjectionsAndSub replaces any ejected on-court player immediately
// (spec.md §4.4 "Substitutions"): "Ejected (foul-limit) players are
// replaced immediately with the highest-stamina bench player." A player
// already ejected by an effect is replaced the same way. With no bench
// player left, the ejected player leaves the court and the team plays
// short-handed.
func (rt *runtimeTeam) checkEjectionsAndSub(foulLimit int) {
	for _, id := range append([]string{}, rt.OnCourt...) {
		p := rt.Players[id]
		if p.Fouls < foulLimit && !p.Ejected {
			continue
		}
		p.Ejected = true
		if rt.substitute(id) {
			continue
		}
		for i, onID := range rt.OnCourt {
			if onID == id {
				rt.OnCourt = append(rt.OnCourt[:i], rt.OnCourt[i+1:]...)
				break
			}
		}
	}
}

// checkQuarterBreakSubs swaps any on-court player below the stamina
// threshold for a higher-stamina bench alternative, if one exists.
func (rt *runtimeTeam) checkQuarterBreakSubs(threshold float64) {
	for _, id := range append([]string{}, rt.OnCourt...) {
		p := rt.Players[id]
		if p.Ejected || p.Stamina >= threshold {
			continue
		}
		bench := rt.availableBench()
		if len(bench) == 0 {
			continue
		}
		if rt.Players[bench[0]].Stamina > p.Stamina {
			rt.substitute(id)
		}
	}
}

func (rt *runtimeTeam) onCourtPlayers() []*runtimePlayer {
	out := make([]*runtimePlayer, 0, len(rt.OnCourt))
	for _, id := range rt.OnCourt {
		out = append(out, rt.Players[id])
	}
	return out
}

func (rt *runtimeTeam) resetHalfFouls() {
	rt.TeamFouls = 0
}
