package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// EventType — закрытый перечень типов событий телеметрии
type EventType string

const (
	EventContractGenerated  EventType = "contract_generated"
	EventDeterministicPass  EventType = "deterministic_pass"
	EventLLMAugmentation    EventType = "llm_augmentation"
	EventContractValidation EventType = "contract_validation"
	EventFallbackTaken      EventType = "fallback_taken"
	EventCache              EventType = "cache_event"
	EventPromotionDecision  EventType = "promotion_decision"
	EventStrictModeAction   EventType = "strict_mode_action"
	EventBudget             EventType = "budget_event"
)

// envelopeVersion — версия схемы конверта событий
const envelopeVersion = "1"

// Event — конверт события: id, тип, версия, время, произвольные атрибуты.
// Payload проходит redaction перед отправкой, если включен redact_pii.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Version   string         `json:"version"`
	Timestamp time.Time      `json:"timestamp"`
	RequestID string         `json:"request_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewEvent создает событие с uuid и текущим временем
func NewEvent(eventType EventType, requestID string, payload map[string]any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Version:   envelopeVersion,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
		Payload:   payload,
	}
}
