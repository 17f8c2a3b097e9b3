package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore_GetSetDelete(t *testing.T) {
	s := New[int]()

	_, ok := s.Get("missing")
	assert.False(t, ok)

	s.Set("a", 1)
	v, ok := s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	s.Set("a", 2)
	v, _ = s.Get("a")
	assert.Equal(t, 2, v)

	assert.True(t, s.Delete("a"))
	assert.False(t, s.Delete("a"))
	assert.Equal(t, 0, s.Len())
}

func TestStore_SetIfAbsent(t *testing.T) {
	s := New[string]()

	assert.True(t, s.SetIfAbsent("k", "first"))
	assert.False(t, s.SetIfAbsent("k", "second"))

	v, _ := s.Get("k")
	assert.Equal(t, "first", v)
}

func TestStore_Range(t *testing.T) {
	s := New[int]()
	for i := 0; i < 5; i++ {
		s.Set(fmt.Sprintf("k%d", i), i)
	}

	seen := 0
	s.Range(func(key string, value int) bool {
		seen++
		return true
	})
	assert.Equal(t, 5, seen)

	// Early termination.
	seen = 0
	s.Range(func(key string, value int) bool {
		seen++
		return false
	})
	assert.Equal(t, 1, seen)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New[int]()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%10)
			s.Set(key, i)
			s.Get(key)
			s.SetIfAbsent(key, i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, s.Len())
}
