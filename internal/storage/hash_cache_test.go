package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHashCache_PutGet(t *testing.T) {
	c := NewHashCache(10, time.Minute)

	c.Put("url1", "fp1")
	got, ok := c.Get("url1")
	assert.True(t, ok)
	assert.Equal(t, "fp1", got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestHashCache_LRUEviction(t *testing.T) {
	c := NewHashCache(3, time.Minute)

	c.Put("a", "1")
	c.Put("b", "2")
	c.Put("c", "3")

	// Обращение к "a" делает его свежим; вытеснится "b"
	c.Get("a")
	c.Put("d", "4")

	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 3, c.Len())
}

func TestHashCache_Expiry(t *testing.T) {
	c := NewHashCache(10, 10*time.Millisecond)

	c.Put("a", "1")
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok, "expired entry must not be returned")
}

func TestHashCache_Sweep(t *testing.T) {
	c := NewHashCache(10, 10*time.Millisecond)

	for i := 0; i < 5; i++ {
		c.Put(fmt.Sprintf("k%d", i), "v")
	}
	time.Sleep(20 * time.Millisecond)
	c.Put("fresh", "v")

	removed := c.Sweep()
	assert.Equal(t, 5, removed)
	assert.Equal(t, 1, c.Len())
}

func TestHashCache_UpdateExisting(t *testing.T) {
	c := NewHashCache(2, time.Minute)

	c.Put("a", "old")
	c.Put("a", "new")

	got, _ := c.Get("a")
	assert.Equal(t, "new", got)
	assert.Equal(t, 1, c.Len())
}
