// Package effect implements C3: the effect registry that bridges
// governance-installed rule mutations into the simulation engine's hook
// points. C4's meta store companion is the separate metastore package.
//
// Mutation actions and condition trees are modeled as tagged unions
// (spec.md §9 "Design Notes" explicitly calls for this over embedded
// callables), evaluated against a unified EventContext through a small,
// fixed-function safe expression evaluator — no arbitrary code runs.
package effect

import "strings"

// HookPoint is a dotted hook name the engine fires (spec.md §4.3).
type HookPoint string

// The fixed hierarchy of hook points the simulation engine fires.
const (
	HookGamePre          HookPoint = "sim.game.pre"
	HookQuarterPre       HookPoint = "sim.quarter.pre"
	HookQuarterPost      HookPoint = "sim.quarter.post"
	HookPossessionPre    HookPoint = "sim.possession.pre"
	HookPossessionPost   HookPoint = "sim.possession.post"
	HookShotResolved     HookPoint = "sim.shot.resolved"
	HookFoulCommitted    HookPoint = "sim.foul.committed"
	HookReboundContested HookPoint = "sim.rebound.contested"
	HookStaminaDrain     HookPoint = "sim.stamina.drain"
	HookMoveTriggered    HookPoint = "sim.move.triggered"
	HookReportSimPre     HookPoint = "report.simulation.pre"
	HookReportCommentaryPre HookPoint = "report.commentary.pre"
	HookGovPre           HookPoint = "gov.pre"
	HookGovPost          HookPoint = "gov.post"
)

// Matches reports whether a subscription pattern (which may use "*" as
// a trailing wildcard segment, e.g. "sim.*" or "sim.possession.*")
// matches a concrete hook point fired by the engine.
func (pattern HookPoint) Matches(fired HookPoint) bool {
	p := string(pattern)
	f := string(fired)
	if p == f {
		return true
	}
	if strings.HasSuffix(p, ".*") {
		prefix := strings.TrimSuffix(p, "*")
		return strings.HasPrefix(f, prefix)
	}
	if p == "*" {
		return true
	}
	return false
}
