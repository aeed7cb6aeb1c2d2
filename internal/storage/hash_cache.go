package storage

import (
	"container/list"
	"sync"
	"time"
)

// HashCache — LRU-кэш отпечатков контента с TTL.
// Ограничивает память при длинной череде уникальных страниц.
type HashCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*list.Element
	order    *list.List // front = самый свежий
}

type hashEntry struct {
	key       string
	value     string
	expiresAt time.Time
}

// NewHashCache создает кэш на capacity записей с временем жизни ttl
func NewHashCache(capacity int, ttl time.Duration) *HashCache {
	if capacity <= 0 {
		capacity = 1024
	}
	return &HashCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get возвращает значение и продлевает позицию в LRU.
// Просроченные записи удаляются лениво.
func (c *HashCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return "", false
	}
	entry := el.Value.(*hashEntry)
	if c.ttl > 0 && time.Now().After(entry.expiresAt) {
		c.removeLocked(el)
		return "", false
	}
	c.order.MoveToFront(el)
	return entry.value, true
}

// Put записывает значение, вытесняя самую старую запись при переполнении
func (c *HashCache) Put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*hashEntry)
		entry.value = value
		entry.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&hashEntry{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	})
	c.entries[key] = el

	if c.order.Len() > c.capacity {
		c.removeLocked(c.order.Back())
	}
}

// Len возвращает текущее число записей
func (c *HashCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Sweep удаляет все просроченные записи, возвращает число удаленных
func (c *HashCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ttl <= 0 {
		return 0
	}
	now := time.Now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*hashEntry).expiresAt) {
			c.removeLocked(el)
			removed++
		}
		el = prev
	}
	return removed
}

func (c *HashCache) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	delete(c.entries, el.Value.(*hashEntry).key)
	c.order.Remove(el)
}
