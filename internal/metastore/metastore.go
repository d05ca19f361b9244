// Package metastore implements C4: a scoped key/value overlay attached
// to teams and players, mutable by effects during a round and flushed
// back to durable storage once at round end (spec.md §4.3 "Meta Store").
package metastore

import (
	"encoding/json"
	"fmt"

	"github.com/hoopsguild/leaguesim/internal/effect"
	"github.com/hoopsguild/leaguesim/internal/platform/apperrors"
)

// EntityKind distinguishes which aggregate a bucket belongs to.
type EntityKind string

const (
	EntityTeam   EntityKind = "team"
	EntityPlayer EntityKind = "player"
)

// Key identifies one meta bucket: (entity_kind, entity_id, season_id)
// per spec.md §4.1 "Ownership summary".
type Key struct {
	Kind     EntityKind
	EntityID string
	SeasonID string
}

// Bucket is the in-memory set of values visible to effects for one
// entity during a round.
type Bucket map[string]any

// Clone returns a deep-enough copy for safe mutation without aliasing
// the stored snapshot.
func (b Bucket) Clone() Bucket {
	out := make(Bucket, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Store is a per-round in-memory snapshot of every team and player
// meta bucket touched so far this round. It is loaded in Phase A and
// flushed in Phase C; there is no cross-round sharing (spec.md §7
// "The Meta Store is a per-round in-memory snapshot").
type Store struct {
	buckets map[Key]Bucket
	dirty   map[Key]bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		buckets: map[Key]Bucket{},
		dirty:   map[Key]bool{},
	}
}

// FromSnapshot builds a Store pre-loaded from an existing snapshot,
// cloning every bucket so the caller's map is never aliased. Used by
// the simulation engine to consume a read-only Meta Store snapshot
// without simulate_game itself touching durable storage (spec.md §4.4
// "no I/O"): the orchestrator loads buckets in Phase A, passes a
// snapshot into the game, and applies the returned deltas in Phase C.
func FromSnapshot(snapshot map[Key]Bucket) *Store {
	s := New()
	for k, b := range snapshot {
		s.buckets[k] = b.Clone()
	}
	return s
}

// Load installs a bucket read from durable JSON storage (a team or
// player row's meta column) into the snapshot. Called once per entity
// at round start; a nil or empty raw value installs an empty bucket.
func (s *Store) Load(key Key, raw []byte) error {
	b := Bucket{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &b); err != nil {
			return apperrors.Wrap(apperrors.CodeStorage, "decode meta bucket", err)
		}
	}
	s.buckets[key] = b
	return nil
}

// Get reads a single value from a bucket. ok is false if the bucket or
// key does not exist.
func (s *Store) Get(key Key, field string) (any, bool) {
	b, ok := s.buckets[key]
	if !ok {
		return nil, false
	}
	v, ok := b[field]
	return v, ok
}

// GetFloat reads a single numeric value, defaulting to 0 when absent
// or non-numeric. This is the lookup the unified effect Context uses
// for "meta.<field>" resolution.
func (s *Store) GetFloat(key Key, field string) float64 {
	v, ok := s.Get(key, field)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

// Snapshot returns every (field, value) pair visible for key, for
// building an effect evaluation Context. Returns nil if the bucket has
// not been loaded.
func (s *Store) Snapshot(key Key) Bucket {
	b, ok := s.buckets[key]
	if !ok {
		return nil
	}
	return b.Clone()
}

// Set writes a value into the bucket and marks it dirty for flush. The
// bucket is created empty if it has not been loaded (a lazily-created
// entity meta bucket is valid — spec.md never requires pre-existence).
func (s *Store) Set(key Key, field string, value any) {
	b, ok := s.buckets[key]
	if !ok {
		b = Bucket{}
	}
	b[field] = value
	s.buckets[key] = b
	s.dirty[key] = true
}

// Apply performs a numeric add/subtract/set against an existing
// (or zero-valued) field, mirroring the mutate_state StateOp
// semantics used by the effect package.
func (s *Store) Apply(key Key, field string, op string, delta float64) {
	current := s.GetFloat(key, field)
	var next float64
	switch op {
	case "add":
		next = current + delta
	case "subtract":
		next = current - delta
	default: // "set"
		next = delta
	}
	s.Set(key, field, next)
}

// DirtyKeys returns the set of buckets mutated since Load, for the
// orchestrator's Phase C flush.
func (s *Store) DirtyKeys() []Key {
	keys := make([]Key, 0, len(s.dirty))
	for k := range s.dirty {
		keys = append(keys, k)
	}
	return keys
}

// Encode marshals the bucket at key back into JSON for persistence.
// Returns nil, nil if the bucket was never loaded or created.
func (s *Store) Encode(key Key) ([]byte, error) {
	b, ok := s.buckets[key]
	if !ok {
		return nil, nil
	}
	out, err := json.Marshal(b)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "encode meta bucket", err)
	}
	return out, nil
}

// ClearDirty resets the dirty set after a successful flush.
func (s *Store) ClearDirty() {
	s.dirty = map[Key]bool{}
}

// PopulateContext flattens the bucket at key into ctx.MetaFields/
// MetaRaw under "meta.{kind}.{key}" paths, so effect conditions and
// mutation expressions can reference e.g. "meta.player.momentum"
// (spec.md §4.3 "meta.{kind}.{key}").
func (s *Store) PopulateContext(ctx *effect.Context, key Key) {
	b, ok := s.buckets[key]
	if !ok {
		return
	}
	for field, v := range b {
		path := fmt.Sprintf("meta.%s.%s", key.Kind, field)
		ctx.MetaRaw[path] = v
		switch n := v.(type) {
		case float64:
			ctx.MetaFields[path] = n
		case int:
			ctx.MetaFields[path] = float64(n)
		}
	}
}
