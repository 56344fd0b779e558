package slotmap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertGetRemove(t *testing.T) {
	m := New[string]()

	a := m.Insert("alice")
	b := m.Insert("bob")
	require.Equal(t, 2, m.Len())
	assert.False(t, a.IsZero())
	assert.NotEqual(t, a, b)

	v, ok := m.Get(a)
	require.True(t, ok)
	assert.Equal(t, "alice", v)

	removed, ok := m.Remove(a)
	require.True(t, ok)
	assert.Equal(t, "alice", removed)
	assert.Equal(t, 1, m.Len())

	_, ok = m.Get(a)
	assert.False(t, ok)
	_, ok = m.Remove(a)
	assert.False(t, ok, "double remove must fail")
}

func TestStaleKeyDoesNotAliasReusedSlot(t *testing.T) {
	m := New[string]()

	old := m.Insert("first")
	m.Remove(old)
	fresh := m.Insert("second")

	assert.Equal(t, old.index, fresh.index, "slot should be reused")
	assert.NotEqual(t, old, fresh)

	_, ok := m.Get(old)
	assert.False(t, ok)
	assert.False(t, m.Contains(old))

	v, ok := m.Get(fresh)
	require.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestInsertWithKeySeesOwnKey(t *testing.T) {
	m := New[Key]()
	k := m.InsertWithKey(func(k Key) Key { return k })

	v, ok := m.Get(k)
	require.True(t, ok)
	assert.Equal(t, k, v)
}

func TestZeroKeyNeverResolves(t *testing.T) {
	m := New[int]()
	m.Insert(1)

	var zero Key
	assert.True(t, zero.IsZero())
	_, ok := m.Get(zero)
	assert.False(t, ok)
}

func TestRangeVisitsLiveValues(t *testing.T) {
	m := New[int]()
	keys := make([]Key, 0, 5)
	for i := range 5 {
		keys = append(keys, m.Insert(i))
	}
	m.Remove(keys[1])
	m.Remove(keys[3])

	var seen []int
	m.Range(func(_ Key, v int) bool {
		seen = append(seen, v)
		return true
	})
	assert.Equal(t, []int{0, 2, 4}, seen)

	count := 0
	m.Range(func(Key, int) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}

func TestFreeListReusesMostRecentlyFreed(t *testing.T) {
	m := New[int]()
	a := m.Insert(1)
	b := m.Insert(2)
	m.Remove(a)
	m.Remove(b)

	c := m.Insert(3)
	d := m.Insert(4)
	assert.Equal(t, b.index, c.index)
	assert.Equal(t, a.index, d.index)
	assert.Equal(t, 2, m.Len())
}

func TestExhaustedSlotIsRetired(t *testing.T) {
	m := New[string]()

	k := m.Insert("old")
	m.Remove(k)
	m.slots[k.index].generation = math.MaxUint32 - 1

	last := m.Insert("last")
	require.Equal(t, k.index, last.index)
	require.Equal(t, uint32(math.MaxUint32), last.generation)
	_, ok := m.Remove(last)
	require.True(t, ok)

	next := m.Insert("next")
	assert.NotEqual(t, k.index, next.index, "retired slot must not be reused")
	assert.Equal(t, 1, m.Len())
	_, ok = m.Get(last)
	assert.False(t, ok)
	_, ok = m.Get(Key{index: k.index, generation: 1})
	assert.False(t, ok)
}
