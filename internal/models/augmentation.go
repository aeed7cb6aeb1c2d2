package models

// CompletionEvidence — обязательная ссылка на anchor для каждого completion
type CompletionEvidence struct {
	AnchorID string `json:"anchor_id"`
}

// Completion — заполнение пропущенного поля, предложенное LLM (Track B)
type Completion struct {
	Field      string             `json:"field"`
	Value      string             `json:"value"`
	Evidence   CompletionEvidence `json:"evidence"`
	Confidence float64            `json:"confidence"`
}

// NewFieldProposal — предложение нового поля от LLM.
// DOMAnchors должен содержать минимум min_support_threshold различных anchor ID.
type NewFieldProposal struct {
	Name       string    `json:"name"`
	Type       FieldType `json:"type"`
	Support    int       `json:"support"`
	DOMAnchors []string  `json:"dom_anchors"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning,omitempty"`
}

// Normalization — переименование поля, предложенное LLM.
// Не требует anchor-доказательств.
type Normalization struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Reasoning string `json:"reasoning,omitempty"`
}

// AugmentationResult — результат Track B после round-trip валидации.
// Пустой результат — валидный исход (augmenter выключен, timeout, ошибка модели).
type AugmentationResult struct {
	Completions    []Completion       `json:"completions"`
	NewFields      []NewFieldProposal `json:"new_fields"`
	Normalizations []Normalization    `json:"normalizations"`

	// Dropped считает предложения, отброшенные валидацией (для телеметрии)
	Dropped int `json:"dropped,omitempty"`
}

// EmptyAugmentation возвращает пустой (но не nil) результат Track B
func EmptyAugmentation() *AugmentationResult {
	return &AugmentationResult{
		Completions:    make([]Completion, 0),
		NewFields:      make([]NewFieldProposal, 0),
		Normalizations: make([]Normalization, 0),
	}
}

// CompletionFor возвращает completion для поля, если есть
func (ar *AugmentationResult) CompletionFor(field string) (*Completion, bool) {
	for i := range ar.Completions {
		if ar.Completions[i].Field == field {
			return &ar.Completions[i], true
		}
	}
	return nil, false
}
