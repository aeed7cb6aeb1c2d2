package storage

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BetterCallFirewall/Anchorecon/internal/models"
)

func sampleResult() *models.ExtractionResult {
	return &models.ExtractionResult{
		Records: []models.Record{{"name": "Dr. Jane Smith"}},
		Metadata: models.ResultMetadata{
			ContractID:         "ct_1",
			ContentFingerprint: "abc",
		},
	}
}

func TestIdempotency_ReplayReturnsStoredResult(t *testing.T) {
	store := NewIdempotencyStore(time.Minute)

	calls := 0
	op := func() (*models.ExtractionResult, error) {
		calls++
		return sampleResult(), nil
	}

	first, replay, err := store.Handle("key1", op)
	require.NoError(t, err)
	assert.False(t, replay)

	second, replay, err := store.Handle("key1", op)
	require.NoError(t, err)
	assert.True(t, replay, "second identical request is a replay")
	assert.Equal(t, 1, calls, "operation must run exactly once")
	assert.Equal(t, first, second)
}

func TestIdempotency_DifferentKeysRunSeparately(t *testing.T) {
	store := NewIdempotencyStore(time.Minute)

	calls := 0
	op := func() (*models.ExtractionResult, error) {
		calls++
		return sampleResult(), nil
	}

	store.Handle("key1", op)
	store.Handle("key2", op)
	assert.Equal(t, 2, calls)
}

func TestIdempotency_ErrorsNotCached(t *testing.T) {
	store := NewIdempotencyStore(time.Minute)

	calls := 0
	failing := func() (*models.ExtractionResult, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient")
		}
		return sampleResult(), nil
	}

	_, _, err := store.Handle("key1", failing)
	require.Error(t, err)

	result, replay, err := store.Handle("key1", failing)
	require.NoError(t, err)
	assert.False(t, replay, "failed attempts must not produce replays")
	assert.NotNil(t, result)
	assert.Equal(t, 2, calls)
}

func TestIdempotency_TTLExpiry(t *testing.T) {
	store := NewIdempotencyStore(10 * time.Millisecond)

	calls := 0
	op := func() (*models.ExtractionResult, error) {
		calls++
		return sampleResult(), nil
	}

	store.Handle("key1", op)
	time.Sleep(20 * time.Millisecond)

	_, replay, _ := store.Handle("key1", op)
	assert.False(t, replay, "expired entry means a fresh run")
	assert.Equal(t, 2, calls)
}

func TestIdempotency_Invalidate(t *testing.T) {
	store := NewIdempotencyStore(time.Minute)

	op := func() (*models.ExtractionResult, error) { return sampleResult(), nil }
	store.Handle("key1", op)
	store.Invalidate("key1")

	_, ok := store.Lookup("key1")
	assert.False(t, ok)
}

func TestIdempotency_ConcurrentSameKey(t *testing.T) {
	store := NewIdempotencyStore(time.Minute)

	var mu sync.Mutex
	calls := 0
	op := func() (*models.ExtractionResult, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		return sampleResult(), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := store.Handle("shared", op)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls, "concurrent identical requests must serialize to one run")
}

func TestIdempotency_Sweep(t *testing.T) {
	store := NewIdempotencyStore(10 * time.Millisecond)

	op := func() (*models.ExtractionResult, error) { return sampleResult(), nil }
	store.Handle("key1", op)
	store.Handle("key2", op)
	time.Sleep(20 * time.Millisecond)

	removed := store.Sweep()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, store.Len())
}
