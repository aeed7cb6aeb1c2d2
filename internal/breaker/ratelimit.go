package breaker

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited возвращается, когда вызывающий исчерпал окно запросов
var ErrRateLimited = errors.New("rate limit exceeded")

// SlidingWindowLimiter — лимитер скользящего окна по ключу вызывающего.
// Защищает LLM-порт от шквала запросов одного клиента.
type SlidingWindowLimiter struct {
	mu       sync.Mutex
	windows  map[string][]time.Time
	limit    int
	interval time.Duration
}

// NewSlidingWindowLimiter разрешает limit запросов на ключ за interval
func NewSlidingWindowLimiter(limit int, interval time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		windows:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

// Allow проверяет и регистрирует запрос. ErrRateLimited при превышении.
func (l *SlidingWindowLimiter) Allow(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.interval)

	window := l.windows[key]
	// Сдвигаем окно: отбрасываем устаревшие отметки
	kept := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.windows[key] = kept
		return ErrRateLimited
	}

	l.windows[key] = append(kept, now)
	return nil
}

// Reset сбрасывает окно для ключа
func (l *SlidingWindowLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// Sweep удаляет полностью устаревшие окна, возвращает число удаленных
func (l *SlidingWindowLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.interval)
	removed := 0
	for key, window := range l.windows {
		live := false
		for _, t := range window {
			if t.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}
