package effect

import "math/rand"

// Context is the unified evaluation context conditions and mutation
// expressions resolve field paths against (spec.md §4.3). It is a
// generic resolver: adding a new game-state field to EventFields/
// GameFields/PlayerFields/TeamFields/MetaFields automatically makes it
// queryable, with no evaluator changes required.
type Context struct {
	// EventFields holds event.* paths (the event currently being processed).
	EventFields map[string]float64
	// EventStrings holds string-valued event.* paths.
	EventStrings map[string]string
	// GameFields holds game.* paths (quarter, possession, scores, ...).
	GameFields map[string]float64
	// PlayerFields holds player.* (the acting player) and
	// player:{id}.* (a specific player) paths.
	PlayerFields map[string]float64
	// TeamFields holds team:{id}.* paths.
	TeamFields map[string]float64
	// MetaFields holds meta.{kind}.{key} paths, flattened to float64
	// where numeric, with raw values kept in MetaRaw for string/bool use.
	MetaFields map[string]float64
	MetaRaw    map[string]any

	RNG *rand.Rand
}

// NewContext builds an empty Context ready to be populated per
// possession/event.
func NewContext(rng *rand.Rand) *Context {
	return &Context{
		EventFields:  map[string]float64{},
		EventStrings: map[string]string{},
		GameFields:   map[string]float64{},
		PlayerFields: map[string]float64{},
		TeamFields:   map[string]float64{},
		MetaFields:   map[string]float64{},
		MetaRaw:      map[string]any{},
		RNG:          rng,
	}
}

// Resolve looks up a namespaced field path (event.*, game.*, player.*,
// player:{id}.*, team:{id}.*, meta.{kind}.{key}) and returns its
// numeric value. Unknown paths resolve to 0, false so condition
// evaluation degrades gracefully instead of panicking on a field an
// older effect references after a schema change.
func (c *Context) Resolve(path string) (float64, bool) {
	switch {
	case hasPrefix(path, "event."):
		v, ok := c.EventFields[path]
		return v, ok
	case hasPrefix(path, "game."):
		v, ok := c.GameFields[path]
		return v, ok
	case hasPrefix(path, "player:") || hasPrefix(path, "player."):
		v, ok := c.PlayerFields[path]
		return v, ok
	case hasPrefix(path, "team:"):
		v, ok := c.TeamFields[path]
		return v, ok
	case hasPrefix(path, "meta."):
		v, ok := c.MetaFields[path]
		return v, ok
	default:
		return 0, false
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
