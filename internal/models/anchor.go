package models

// Anchor — непрозрачный идентификатор DOM-узла, живет в рамках одного запроса.
// Никогда не персистится и не покидает ядро: наружу уходят только значения.
type Anchor struct {
	ID string `json:"id"` // например "n_14852"

	// PrimarySelector — первый (самый стабильный) селектор из Selectors
	PrimarySelector string `json:"primary_selector"`

	// Selectors — список стратегий: id > data-атрибуты > классы > nth-of-type путь
	Selectors []string `json:"selectors"`

	// Stability ∈ [0,1]: насколько устойчив узел к изменениям страницы
	Stability float64 `json:"stability"`

	// TextPreview — обрезанный до 200 символов textContent
	TextPreview string `json:"text_preview"`

	ElementType  string `json:"element_type"` // имя тега
	SiblingIndex int    `json:"sibling_index"`
	Depth        int    `json:"depth"`

	// XPath — позиционный путь, используется только для inverted map
	XPath string `json:"xpath"`

	// TextHash — 32-битный хеш trimmed textContent (ключ text-индекса)
	TextHash uint32 `json:"text_hash"`

	// DocOrder — порядковый номер в document order, задает порядок итерации
	DocOrder int `json:"doc_order"`
}

// AnchorSample — то, что видит LLM вместо селекторов: только preview и тег
type AnchorSample struct {
	TextPreview string `json:"text_preview"` // ≤ 100 символов для промпта
	ElementType string `json:"element_type"`
}
