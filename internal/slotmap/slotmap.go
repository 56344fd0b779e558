// Package slotmap implements a generational arena.
//
// Keys pair a slot index with the generation the slot had when the value was
// inserted. Removing a value bumps the slot generation, so a key held after
// removal never resolves to whatever later reuses the slot. A slot whose
// generation counter runs out is retired instead of reused.
package slotmap

import "fmt"

// Key identifies a value in a Map. The zero Key is never issued.
type Key struct {
	index      uint32
	generation uint32
}

// IsZero reports whether k is the zero key.
func (k Key) IsZero() bool {
	return k.generation == 0
}

func (k Key) String() string {
	return fmt.Sprintf("%dv%d", k.index, k.generation)
}

type slot[V any] struct {
	value      V
	generation uint32 // odd while occupied
	nextFree   uint32
}

// Map stores values under generational keys. It is not safe for concurrent use.
type Map[V any] struct {
	slots    []slot[V]
	freeHead uint32 // index+1 of the first free slot, 0 when none
	count    int
}

// New returns an empty map.
func New[V any]() *Map[V] {
	return &Map[V]{}
}

// Len returns the number of live values.
func (m *Map[V]) Len() int {
	return m.count
}

// Insert stores v and returns its key.
func (m *Map[V]) Insert(v V) Key {
	return m.InsertWithKey(func(Key) V { return v })
}

// InsertWithKey stores the value produced by fn, which receives the key the
// value will live under.
func (m *Map[V]) InsertWithKey(fn func(Key) V) Key {
	var idx uint32
	if m.freeHead != 0 {
		idx = m.freeHead - 1
		m.freeHead = m.slots[idx].nextFree
	} else {
		idx = uint32(len(m.slots))
		m.slots = append(m.slots, slot[V]{})
	}

	s := &m.slots[idx]
	s.generation++
	s.nextFree = 0
	key := Key{index: idx, generation: s.generation}
	s.value = fn(key)
	m.count++
	return key
}

func (m *Map[V]) lookup(k Key) *slot[V] {
	if k.IsZero() || int(k.index) >= len(m.slots) {
		return nil
	}
	s := &m.slots[k.index]
	if s.generation != k.generation {
		return nil
	}
	return s
}

// Get returns the value stored under k.
func (m *Map[V]) Get(k Key) (V, bool) {
	if s := m.lookup(k); s != nil {
		return s.value, true
	}
	var zero V
	return zero, false
}

// Contains reports whether k refers to a live value.
func (m *Map[V]) Contains(k Key) bool {
	return m.lookup(k) != nil
}

// Remove deletes the value stored under k and returns it.
func (m *Map[V]) Remove(k Key) (V, bool) {
	var zero V
	s := m.lookup(k)
	if s == nil {
		return zero, false
	}
	v := s.value
	s.value = zero
	s.generation++
	m.count--
	if s.generation == 0 {
		// Generations are exhausted; reusing the slot would reissue old keys.
		return v, true
	}
	s.nextFree = m.freeHead
	m.freeHead = k.index + 1
	return v, true
}

// Range calls fn for every live value until fn returns false.
func (m *Map[V]) Range(fn func(Key, V) bool) {
	for i := range m.slots {
		s := &m.slots[i]
		if s.generation%2 == 0 {
			continue
		}
		if !fn(Key{index: uint32(i), generation: s.generation}, s.value) {
			return
		}
	}
}
