package cacheengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_DeterministicFixedWidth(t *testing.T) {
	a := Hash("poster:123")
	b := Hash("poster:123")
	c := Hash("poster:124")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestStableSerialize_OrderIndependent(t *testing.T) {
	first, err := StableSerialize(map[string]any{
		"page":  1,
		"genre": "drama",
		"sort":  "popularity",
	})
	require.NoError(t, err)

	second, err := StableSerialize(map[string]any{
		"sort":  "popularity",
		"page":  1,
		"genre": "drama",
	})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, `{"genre":"drama","page":1,"sort":"popularity"}`, first)
}

func TestStableSerialize_NilValuesDropped(t *testing.T) {
	withNil, err := StableSerialize(map[string]any{"page": 1, "year": nil})
	require.NoError(t, err)

	without, err := StableSerialize(map[string]any{"page": 1})
	require.NoError(t, err)

	assert.Equal(t, without, withNil)
}

func TestStableSerialize_ArrayOrderPreserved(t *testing.T) {
	first, err := StableSerialize(map[string]any{"ids": []any{3, 1, 2}})
	require.NoError(t, err)

	second, err := StableSerialize(map[string]any{"ids": []any{1, 2, 3}})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestStableSerialize_NestedMapsSorted(t *testing.T) {
	first, err := StableSerialize(map[string]any{
		"filter": map[string]any{"b": 2, "a": 1},
	})
	require.NoError(t, err)

	second, err := StableSerialize(map[string]any{
		"filter": map[string]any{"a": 1, "b": 2},
	})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestKeys_GenerationScoped(t *testing.T) {
	g1 := BlobMetaKey(1, "poster:123")
	g2 := BlobMetaKey(2, "poster:123")
	assert.NotEqual(t, g1, g2)

	j1 := JSONEntryKey(1, "seed")
	j2 := JSONEntryKey(2, "seed")
	assert.NotEqual(t, j1, j2)

	// Same logical inputs, same keys.
	assert.Equal(t, g1, BlobMetaKey(1, "poster:123"))
	assert.Equal(t, j1, JSONEntryKey(1, "seed"))
}

func TestKeys_NamespacesDisjoint(t *testing.T) {
	blob := BlobMetaKey(1, "x")
	entry := JSONEntryKey(1, "x")
	lock := LockKey(lockScopeImage, "x")

	assert.NotEqual(t, blob, entry)
	assert.NotEqual(t, blob, lock)
	assert.NotEqual(t, entry, lock)
}

func TestLockKey_ScopeSeparation(t *testing.T) {
	assert.NotEqual(t, LockKey(lockScopeImage, "x"), LockKey(lockScopeAPI, "x"))
}
