package metastore

import (
	"testing"

	"github.com/hoopsguild/leaguesim/internal/effect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadAndGet(t *testing.T) {
	s := New()
	key := Key{Kind: EntityPlayer, EntityID: "p1", SeasonID: "s1"}
	require.NoError(t, s.Load(key, []byte(`{"momentum": 3, "nickname": "Ice"}`)))

	v, ok := s.Get(key, "momentum")
	require.True(t, ok)
	assert.Equal(t, float64(3), v)
	assert.Equal(t, float64(3), s.GetFloat(key, "momentum"))
	assert.Equal(t, float64(0), s.GetFloat(key, "missing"))
}

func TestStoreLoadEmptyRaw(t *testing.T) {
	s := New()
	key := Key{Kind: EntityTeam, EntityID: "t1", SeasonID: "s1"}
	require.NoError(t, s.Load(key, nil))
	_, ok := s.Get(key, "anything")
	assert.False(t, ok)
}

func TestStoreSetMarksDirtyAndEncodes(t *testing.T) {
	s := New()
	key := Key{Kind: EntityTeam, EntityID: "t1", SeasonID: "s1"}
	require.NoError(t, s.Load(key, nil))

	s.Set(key, "hot_streak", float64(2))
	assert.ElementsMatch(t, []Key{key}, s.DirtyKeys())

	raw, err := s.Encode(key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"hot_streak": 2}`, string(raw))

	s.ClearDirty()
	assert.Empty(t, s.DirtyKeys())
}

func TestStoreApplyAddSubtractSet(t *testing.T) {
	s := New()
	key := Key{Kind: EntityPlayer, EntityID: "p1", SeasonID: "s1"}
	require.NoError(t, s.Load(key, []byte(`{"momentum": 5}`)))

	s.Apply(key, "momentum", "add", 2)
	assert.Equal(t, float64(7), s.GetFloat(key, "momentum"))

	s.Apply(key, "momentum", "subtract", 3)
	assert.Equal(t, float64(4), s.GetFloat(key, "momentum"))

	s.Apply(key, "momentum", "set", 9)
	assert.Equal(t, float64(9), s.GetFloat(key, "momentum"))
}

func TestStoreSnapshotIsDetached(t *testing.T) {
	s := New()
	key := Key{Kind: EntityPlayer, EntityID: "p1", SeasonID: "s1"}
	require.NoError(t, s.Load(key, []byte(`{"momentum": 5}`)))

	snap := s.Snapshot(key)
	snap["momentum"] = float64(999)
	assert.Equal(t, float64(5), s.GetFloat(key, "momentum"))
}

func TestPopulateContext(t *testing.T) {
	s := New()
	key := Key{Kind: EntityPlayer, EntityID: "p1", SeasonID: "s1"}
	require.NoError(t, s.Load(key, []byte(`{"momentum": 5, "label": "hot"}`)))

	ctx := effect.NewContext(nil)
	s.PopulateContext(ctx, key)

	assert.Equal(t, float64(5), ctx.MetaFields["meta.player.momentum"])
	assert.Equal(t, "hot", ctx.MetaRaw["meta.player.label"])
}
