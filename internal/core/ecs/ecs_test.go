package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityPool_Generations(t *testing.T) {
	p := NewEntityPool()
	a := p.Create()
	assert.False(t, a.IsZero())
	assert.True(t, p.Alive(a))

	require.True(t, p.Destroy(a))
	assert.False(t, p.Alive(a))
	assert.False(t, p.Destroy(a), "stale id")

	b := p.Create()
	assert.Equal(t, a.Index(), b.Index(), "slot reused")
	assert.NotEqual(t, a.Generation(), b.Generation())
	assert.Equal(t, 1, p.Live())
}

func TestStore_RemoveKeepsOthers(t *testing.T) {
	s := NewStore[int]()
	vals := []int{10, 20, 30}
	for i := range vals {
		s.Set(EntityID(i+1), &vals[i])
	}
	s.Remove(1)

	got := map[EntityID]int{}
	s.Each(func(id EntityID, v *int) { got[id] = *v })
	assert.Equal(t, map[EntityID]int{2: 20, 3: 30}, got)

	v, ok := s.Get(3)
	require.True(t, ok)
	assert.Equal(t, 30, *v)
	s.Remove(99)
	assert.Equal(t, 2, s.Len())
}

func TestEach2(t *testing.T) {
	names := NewStore[string]()
	ages := NewStore[int]()
	n1, n2 := "a", "b"
	age := 7
	names.Set(1, &n1)
	names.Set(2, &n2)
	ages.Set(2, &age)

	var seen []EntityID
	Each2(names, ages, func(id EntityID, n *string, a *int) {
		seen = append(seen, id)
		assert.Equal(t, "b", *n)
	})
	assert.Equal(t, []EntityID{2}, seen)
}

func TestWorld_FlushDestroyQueue(t *testing.T) {
	w := NewWorld()
	s := NewStore[string]()
	w.Register(s)
	var hooked []EntityID
	w.OnDestroy(func(id EntityID) {
		assert.True(t, s.Has(id), "hook runs before components are removed")
		hooked = append(hooked, id)
	})

	id := w.CreateEntity()
	v := "x"
	s.Set(id, &v)
	w.MarkForDestruction(id)
	w.MarkForDestruction(id)
	assert.Equal(t, 2, w.Pending())

	assert.Equal(t, 1, w.FlushDestroyQueue())
	assert.False(t, w.Alive(id))
	assert.False(t, s.Has(id))
	assert.Equal(t, []EntityID{id}, hooked)
	assert.Zero(t, w.Pending())
}
