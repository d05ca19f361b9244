// Package league models the top-level League aggregate: an ordered
// sequence of seasons sharing a name and a team pool (spec.md §3
// "League / Season. A league contains an ordered sequence of
// seasons.").
package league

import "time"

// League is the root aggregate a repository persists seasons under.
type League struct {
	ID            string
	Name          string
	CurrentSeason int // ordinal index of the active season, matches season.Season.Index
	CreatedAt     time.Time
}
