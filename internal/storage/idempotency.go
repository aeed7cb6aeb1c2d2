package storage

import (
	"log"
	"sync"
	"time"

	"github.com/BetterCallFirewall/Anchorecon/internal/models"
)

// idempotencyEntry хранит результат и версию для CAS-обновлений
type idempotencyEntry struct {
	result    *models.ExtractionResult
	storedAt  time.Time
	expiresAt time.Time
	version   int64
}

// IdempotencyStore дедуплицирует повторные запросы: одинаковый ключ
// (отпечаток контента + запрос) в пределах TTL возвращает сохраненный
// результат без повторного прогона pipeline. Просрочка ленивая.
type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]*idempotencyEntry
	ttl     time.Duration

	// inflight сериализует конкурентные запросы с одним ключом,
	// чтобы pipeline не гонялся дважды
	inflight map[string]*sync.Mutex
}

// NewIdempotencyStore создает хранилище с заданным TTL записей
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		entries:  make(map[string]*idempotencyEntry),
		ttl:      ttl,
		inflight: make(map[string]*sync.Mutex),
	}
}

// Handle выполняет op под ключом идемпотентности. Если свежий результат
// уже есть — возвращает его с isReplay = true, op не вызывается.
// Ошибочные результаты не кэшируются.
func (s *IdempotencyStore) Handle(
	key string,
	op func() (*models.ExtractionResult, error),
) (result *models.ExtractionResult, isReplay bool, err error) {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if cached, ok := s.lookup(key); ok {
		log.Printf("🔍 Idempotency hit: key %s...", key[:minLen(len(key), 12)])
		return cached, true, nil
	}

	result, err = op()
	if err != nil {
		return nil, false, err
	}

	s.store(key, result)
	return result, false, nil
}

// Lookup возвращает сохраненный результат без исполнения операции
func (s *IdempotencyStore) Lookup(key string) (*models.ExtractionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(key)
}

func (s *IdempotencyStore) lookup(key string) (*models.ExtractionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(key)
}

func (s *IdempotencyStore) lookupLocked(key string) (*models.ExtractionResult, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.entries, key)
		return nil, false
	}
	return entry.result, true
}

func (s *IdempotencyStore) store(key string, result *models.ExtractionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var version int64 = 1
	if prev, ok := s.entries[key]; ok {
		version = prev.version + 1
	}
	now := time.Now()
	s.entries[key] = &idempotencyEntry{
		result:    result,
		storedAt:  now,
		expiresAt: now.Add(s.ttl),
		version:   version,
	}
}

// Invalidate принудительно удаляет запись (страница изменилась)
func (s *IdempotencyStore) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Sweep удаляет просроченные записи и осиротевшие key-локи
func (s *IdempotencyStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len возвращает число живых записей (включая еще не просроченные)
func (s *IdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *IdempotencyStore) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.inflight[key]
	if !ok {
		lock = &sync.Mutex{}
		s.inflight[key] = lock
	}
	return lock
}

func minLen(a, b int) int {
	if a < b {
		return a
	}
	return b
}
