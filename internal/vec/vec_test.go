package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertEffects(t *testing.T) {
	base := []string{"a", "d"}
	m := InsertAt(1, "b", "c")

	effects := m.Effects(base)
	require.Len(t, effects, 1)
	assert.Equal(t, EffectInsert, effects[0].Kind)
	assert.Equal(t, 1, effects[0].Index)
	assert.Equal(t, []string{"b", "c"}, effects[0].Items)

	assert.Equal(t, []string{"a", "b", "c", "d"}, m.Apply(base))
}

func TestRemoveEffectsReportRemovedItems(t *testing.T) {
	base := []string{"a", "b", "c", "d"}
	m := RemoveRange[string](1, 3)

	effects := m.Effects(base)
	require.Len(t, effects, 1)
	assert.Equal(t, EffectRemove, effects[0].Kind)
	assert.Equal(t, []string{"b", "c"}, effects[0].Items)
	assert.Equal(t, 1, effects[0].Index)
	assert.Equal(t, 3, effects[0].End)

	assert.Equal(t, []string{"a", "d"}, m.Apply(base))
	assert.Equal(t, []string{"b", "c"}, effects[0].Items, "effects must not alias the base")
}

func TestUpdateEffects(t *testing.T) {
	base := []int{1, 2, 3}
	m := UpdateAt(1, 20)

	effects := m.Effects(base)
	require.Len(t, effects, 1)
	assert.Equal(t, Effect[int]{Kind: EffectUpdate, Index: 1, From: 2, To: 20}, effects[0])
	assert.Equal(t, []int{1, 20, 3}, m.Apply(base))

	assert.Empty(t, UpdateAt(5, 0).Effects(base))
	assert.Equal(t, []int{1, 20, 3}, UpdateAt(5, 0).Apply(base))
}

func TestPushSetClear(t *testing.T) {
	base := []int{1}

	effects := PushItems(2, 3).Effects(base)
	require.Len(t, effects, 1)
	assert.Equal(t, 1, effects[0].Index)
	base = PushItems(2, 3).Apply(base)
	assert.Equal(t, []int{1, 2, 3}, base)

	effects = SetItems([]int{9}).Effects(base)
	require.Len(t, effects, 2)
	assert.Equal(t, EffectRemove, effects[0].Kind)
	assert.Equal(t, []int{1, 2, 3}, effects[0].Items)
	assert.Equal(t, EffectInsert, effects[1].Kind)
	base = SetItems([]int{9}).Apply(base)
	assert.Equal(t, []int{9}, base)

	effects = ClearAll[int]().Effects(base)
	require.Len(t, effects, 1)
	assert.Equal(t, []int{9}, effects[0].Items)
	assert.Empty(t, ClearAll[int]().Apply(base))
	assert.Empty(t, ClearAll[int]().Effects(nil))
}

func TestClampedIndices(t *testing.T) {
	base := []int{1, 2}

	effects := InsertAt(10, 3).Effects(base)
	require.Len(t, effects, 1)
	assert.Equal(t, 2, effects[0].Index)
	assert.Equal(t, []int{1, 2, 3}, InsertAt(10, 3).Apply([]int{1, 2}))

	assert.Empty(t, RemoveRange[int](5, 9).Effects(base))
	assert.Equal(t, []int{1, 2}, RemoveRange[int](5, 9).Apply([]int{1, 2}))
	assert.Equal(t, []int{1}, RemoveRange[int](1, 9).Apply([]int{1, 2}))
	assert.Equal(t, []int{2}, RemoveAt[int](0).Apply([]int{1, 2}))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "insert", Insert.String())
	assert.Equal(t, "clear", Clear.String())
	assert.Equal(t, "invalid", Kind(0).String())
}
