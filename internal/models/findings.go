package models

// Hit — подтвержденное извлечение Track A с привязкой к anchor
type Hit struct {
	Field      string  `json:"field"`
	Value      string  `json:"value"`
	AnchorID   string  `json:"anchor_id"`
	Confidence float64 `json:"confidence"`
	Validated  bool    `json:"validated"`
}

// Miss фиксирует, почему поле не было извлечено
type Miss struct {
	Field          string   `json:"field"`
	Reason         string   `json:"reason"`
	SelectorsTried []string `json:"selectors_tried,omitempty"`
}

// Причины miss'ов, используемые Track A
const (
	MissNoCandidates     = "no_candidates"
	MissValidationFailed = "validation_failed"
	MissLowConfidence    = "low_confidence"
	MissEmptyExtraction  = "empty_extraction"
	MissTimeout          = "processing_timeout"
	MissSystemError      = "_system_error"
)

// PatternCandidate — обнаруженный повторяющийся паттерн (кандидат на новое поле)
type PatternCandidate struct {
	Pattern        string   `json:"pattern"`
	Instances      int      `json:"instances"`
	SampleAnchors  []string `json:"sample_anchors"` // минимум 3 anchor ID
	SuggestedField string   `json:"suggested_field"`
	SuggestedType  FieldType `json:"suggested_type"`
	Confidence     float64  `json:"confidence"`
}

// Findings — результат детерминированного прохода (Track A).
// Hits идут в document order; буфер append-only до возврата Track A.
type Findings struct {
	Hits       []Hit              `json:"hits"`
	Misses     []Miss             `json:"misses"`
	Candidates []PatternCandidate `json:"candidates"`
	Support    map[string]int     `json:"support"`
}

// NewFindings создает пустой результат Track A
func NewFindings() *Findings {
	return &Findings{
		Hits:       make([]Hit, 0),
		Misses:     make([]Miss, 0),
		Candidates: make([]PatternCandidate, 0),
		Support:    make(map[string]int),
	}
}

// AddHit добавляет hit и увеличивает support поля
func (f *Findings) AddHit(hit Hit) {
	f.Hits = append(f.Hits, hit)
	f.Support[hit.Field]++
}

// AddMiss добавляет miss
func (f *Findings) AddMiss(miss Miss) {
	f.Misses = append(f.Misses, miss)
}

// FieldSupport возвращает support для поля (0 если поля нет)
func (f *Findings) FieldSupport(field string) int {
	return f.Support[field]
}

// HitsFor возвращает все hits для поля, сохраняя document order
func (f *Findings) HitsFor(field string) []Hit {
	var hits []Hit
	for _, h := range f.Hits {
		if h.Field == field {
			hits = append(hits, h)
		}
	}
	return hits
}

// MissFor возвращает первый miss для поля
func (f *Findings) MissFor(field string) (*Miss, bool) {
	for i := range f.Misses {
		if f.Misses[i].Field == field {
			return &f.Misses[i], true
		}
	}
	return nil, false
}
