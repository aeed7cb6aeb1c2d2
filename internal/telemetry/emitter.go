package telemetry

import (
	"log"
	"math/rand"
	"sync"
	"time"
)

// Sink получает батчи событий. Реализации: websocket-хаб, stdout, тесты.
type Sink interface {
	Publish(events []Event)
}

// SinkFunc адаптирует функцию к интерфейсу Sink
type SinkFunc func(events []Event)

func (f SinkFunc) Publish(events []Event) { f(events) }

// Options настраивает эмиттер
type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	RedactPII     bool
	// SamplingRates — доля пропускаемых событий по типам, 0.0–1.0.
	// Тип без записи сэмплируется на 1.0.
	SamplingRates map[string]float64
}

// Emitter батчует события и периодически сливает их в sink.
// Emit неблокирующий: переполненный буфер роняет событие, а не pipeline.
type Emitter struct {
	mu      sync.Mutex
	sink    Sink
	opts    Options
	buffer  []Event
	stopCh  chan struct{}
	stopped bool
}

// NewEmitter создает эмиттер и запускает фоновый flush-цикл
func NewEmitter(sink Sink, opts Options) *Emitter {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 2 * time.Second
	}
	e := &Emitter{
		sink:   sink,
		opts:   opts,
		buffer: make([]Event, 0, opts.BatchSize),
		stopCh: make(chan struct{}),
	}
	go e.flushLoop()
	return e
}

// Emit добавляет событие в батч с учетом сэмплирования и redaction
func (e *Emitter) Emit(event Event) {
	if !e.sampled(event.Type) {
		return
	}
	if e.opts.RedactPII {
		event = RedactEvent(event)
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.buffer = append(e.buffer, event)
	full := len(e.buffer) >= e.opts.BatchSize
	e.mu.Unlock()

	if full {
		e.Flush()
	}
}

// Flush немедленно сливает накопленный батч в sink
func (e *Emitter) Flush() {
	e.mu.Lock()
	if len(e.buffer) == 0 {
		e.mu.Unlock()
		return
	}
	batch := e.buffer
	e.buffer = make([]Event, 0, e.opts.BatchSize)
	e.mu.Unlock()

	e.sink.Publish(batch)
}

// Close останавливает flush-цикл и сливает остаток
func (e *Emitter) Close() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.mu.Unlock()

	close(e.stopCh)
	e.Flush()
	log.Printf("✅ Telemetry emitter closed")
}

func (e *Emitter) flushLoop() {
	ticker := time.NewTicker(e.opts.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.Flush()
		case <-e.stopCh:
			return
		}
	}
}

func (e *Emitter) sampled(t EventType) bool {
	rate, ok := e.opts.SamplingRates[string(t)]
	if !ok {
		return true
	}
	if rate >= 1.0 {
		return true
	}
	if rate <= 0 {
		return false
	}
	return rand.Float64() < rate
}
