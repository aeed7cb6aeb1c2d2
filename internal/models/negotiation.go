package models

// NegotiationStatus — итоговый статус переговоров схемы
type NegotiationStatus string

const (
	NegotiationSuccess NegotiationStatus = "success"
	NegotiationError   NegotiationStatus = "error"
)

// AdditionSource различает, откуда пришло добавленное поле
type AdditionSource string

const (
	SourceDiscovery  AdditionSource = "discovery"
	SourceCompletion AdditionSource = "completion"
)

// FieldAddition фиксирует добавление поля в финальную схему
type FieldAddition struct {
	Field   string         `json:"field"`
	Support int            `json:"support"`
	Source  AdditionSource `json:"source"`
}

// FieldDemotion фиксирует понижение expected → optional
type FieldDemotion struct {
	Field    string  `json:"field"`
	Support  int     `json:"support"`
	Baseline int     `json:"baseline"`
	Ratio    float64 `json:"ratio"`
}

// FieldPrune фиксирует удаление поля из схемы
type FieldPrune struct {
	Field  string `json:"field"`
	Reason string `json:"reason"` // например "zero_evidence_found"
}

// NegotiationChanges — бухгалтерия всех решений negotiator'а
type NegotiationChanges struct {
	Pruned     []FieldPrune    `json:"pruned"`
	Added      []FieldAddition `json:"added"`
	Demoted    []FieldDemotion `json:"demoted"`
	Renamed    map[string]string `json:"renamed,omitempty"`
	// Warnings — в том числе отброшенные normalization-коллизии
	Warnings []string `json:"warnings,omitempty"`
}

// EvidenceSummary — сводка доказательной базы финальной схемы
type EvidenceSummary struct {
	TotalSupport     int            `json:"total_support"`
	PerFieldCoverage map[string]int `json:"per_field_coverage"`
	Reliability      float64        `json:"reliability"` // ∈ [0,1]
}

// NegotiationResult — выход decision kernel'а.
// Status = error только если required-поле осталось без support в обоих треках.
type NegotiationResult struct {
	Status       NegotiationStatus  `json:"status"`
	FinalFields  []FieldSpec        `json:"final_fields"`
	Changes      NegotiationChanges `json:"changes"`
	Evidence     EvidenceSummary    `json:"evidence"`
	Reason       string             `json:"reason,omitempty"`
	MissingField string             `json:"missing_field,omitempty"`
	// SelectorsTried заполняется при ошибке required-поля
	SelectorsTried []string `json:"selectors_tried,omitempty"`
}
