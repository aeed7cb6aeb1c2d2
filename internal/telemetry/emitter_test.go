package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu      sync.Mutex
	batches [][]Event
}

func (s *captureSink) Publish(events []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, events)
}

func (s *captureSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func TestEmitter_FlushesOnBatchSize(t *testing.T) {
	sink := &captureSink{}
	e := NewEmitter(sink, Options{BatchSize: 3, FlushInterval: time.Hour})
	defer e.Close()

	for i := 0; i < 3; i++ {
		e.Emit(NewEvent(EventDeterministicPass, "req-1", nil))
	}

	sink.mu.Lock()
	require.Len(t, sink.batches, 1)
	assert.Len(t, sink.batches[0], 3)
	sink.mu.Unlock()
}

func TestEmitter_ManualFlush(t *testing.T) {
	sink := &captureSink{}
	e := NewEmitter(sink, Options{BatchSize: 50, FlushInterval: time.Hour})
	defer e.Close()

	e.Emit(NewEvent(EventCache, "req-1", map[string]any{"hit": true}))
	assert.Equal(t, 0, sink.total(), "below batch size nothing is published yet")

	e.Flush()
	assert.Equal(t, 1, sink.total())
}

func TestEmitter_CloseFlushesRemainder(t *testing.T) {
	sink := &captureSink{}
	e := NewEmitter(sink, Options{BatchSize: 50, FlushInterval: time.Hour})

	e.Emit(NewEvent(EventBudget, "req-1", nil))
	e.Emit(NewEvent(EventBudget, "req-1", nil))
	e.Close()

	assert.Equal(t, 2, sink.total())

	// Emit после Close — no-op
	e.Emit(NewEvent(EventBudget, "req-1", nil))
	assert.Equal(t, 2, sink.total())
}

func TestEmitter_SamplingRateZeroDrops(t *testing.T) {
	sink := &captureSink{}
	e := NewEmitter(sink, Options{
		BatchSize:     1,
		FlushInterval: time.Hour,
		SamplingRates: map[string]float64{string(EventCache): 0},
	})
	defer e.Close()

	for i := 0; i < 10; i++ {
		e.Emit(NewEvent(EventCache, "req-1", nil))
	}
	assert.Equal(t, 0, sink.total())

	// Типы без записи в SamplingRates проходят всегда
	e.Emit(NewEvent(EventBudget, "req-1", nil))
	assert.Equal(t, 1, sink.total())
}

func TestEmitter_RedactsWhenEnabled(t *testing.T) {
	sink := &captureSink{}
	e := NewEmitter(sink, Options{BatchSize: 1, FlushInterval: time.Hour, RedactPII: true})
	defer e.Close()

	e.Emit(NewEvent(EventLLMAugmentation, "req-1", map[string]any{
		"preview": "jane@dept.edu",
	}))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.batches, 1)
	assert.Equal(t, "[EMAIL]", sink.batches[0][0].Payload["preview"])
}

func TestEmitter_PeriodicFlush(t *testing.T) {
	sink := &captureSink{}
	e := NewEmitter(sink, Options{BatchSize: 50, FlushInterval: 20 * time.Millisecond})
	defer e.Close()

	e.Emit(NewEvent(EventPromotionDecision, "req-1", nil))

	assert.Eventually(t, func() bool {
		return sink.total() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestNewEvent_Envelope(t *testing.T) {
	event := NewEvent(EventContractGenerated, "req-9", map[string]any{"fields": 4})

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EventContractGenerated, event.Type)
	assert.Equal(t, "1", event.Version)
	assert.Equal(t, "req-9", event.RequestID)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, time.Minute)
}
