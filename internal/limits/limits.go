package limits

import (
	"fmt"
)

// ExtractionLimits определяет лимиты обхода DOM и отбора кандидатов
type ExtractionLimits struct {
	MaxTraversalNodes    int `json:"max_traversal_nodes"`
	MaxCandidatesField   int `json:"max_candidates_per_field"`
	MaxDiscoverable      int `json:"max_discoverable_fields"`
	AnchorSampleSize     int `json:"anchor_sample_size"`
	PreviewLength        int `json:"preview_length"`
	PromptPreviewLength  int `json:"prompt_preview_length"`
	MinPatternInstances  int `json:"min_pattern_instances"`
	MaxPatternCandidates int `json:"max_pattern_candidates"`
}

// DefaultExtractionLimits возвращает лимиты по умолчанию
func DefaultExtractionLimits() *ExtractionLimits {
	return &ExtractionLimits{
		MaxTraversalNodes:    5000,
		MaxCandidatesField:   10,
		MaxDiscoverable:      5,
		AnchorSampleSize:     5,
		PreviewLength:        200,
		PromptPreviewLength:  100,
		MinPatternInstances:  3,
		MaxPatternCandidates: 20,
	}
}

// ExtractionLimiter предоставляет функциональность для контроля лимитов извлечения
type ExtractionLimiter struct {
	limits *ExtractionLimits
}

// NewExtractionLimiter создает новый лимитер
func NewExtractionLimiter(limits *ExtractionLimits) *ExtractionLimiter {
	if limits == nil {
		limits = DefaultExtractionLimits()
	}
	return &ExtractionLimiter{
		limits: limits,
	}
}

// GetLimits возвращает текущие лимиты
func (el *ExtractionLimiter) GetLimits() *ExtractionLimits {
	return el.limits
}

// UpdateLimits обновляет лимиты
func (el *ExtractionLimiter) UpdateLimits(limits *ExtractionLimits) error {
	if limits.MaxTraversalNodes <= 0 {
		return fmt.Errorf("MaxTraversalNodes must be positive")
	}
	if limits.MaxCandidatesField <= 0 {
		return fmt.Errorf("MaxCandidatesField must be positive")
	}
	if limits.MaxDiscoverable <= 0 {
		return fmt.Errorf("MaxDiscoverable must be positive")
	}
	if limits.AnchorSampleSize <= 0 {
		return fmt.Errorf("AnchorSampleSize must be positive")
	}
	if limits.PreviewLength <= 0 {
		return fmt.Errorf("PreviewLength must be positive")
	}
	if limits.MinPatternInstances <= 0 {
		return fmt.Errorf("MinPatternInstances must be positive")
	}

	el.limits = limits
	return nil
}

// ValidateLimits проверяет валидность лимитов
func (el *ExtractionLimiter) ValidateLimits() error {
	if el.limits.MaxTraversalNodes > 100000 {
		return fmt.Errorf("MaxTraversalNodes too large (> 100000)")
	}
	if el.limits.MaxCandidatesField > 100 {
		return fmt.Errorf("MaxCandidatesField too large (> 100)")
	}
	if el.limits.MaxDiscoverable > 50 {
		return fmt.Errorf("MaxDiscoverable too large (> 50)")
	}
	if el.limits.AnchorSampleSize > 50 {
		return fmt.Errorf("AnchorSampleSize too large (> 50)")
	}
	if el.limits.PreviewLength > 1000 {
		return fmt.Errorf("PreviewLength too large (> 1000)")
	}
	return nil
}

// GetMemoryUsage возвращает примерное использование памяти индексом в байтах
func (el *ExtractionLimiter) GetMemoryUsage() int64 {
	// Базовый размер структуры
	baseSize := int64(1024) // 1KB для базовых полей

	// Расчет на основе лимитов
	anchorsSize := int64(el.limits.MaxTraversalNodes * 350)         // ~350 bytes per anchor
	candidatesSize := int64(el.limits.MaxCandidatesField * 200)     // ~200 bytes per candidate
	patternsSize := int64(el.limits.MaxPatternCandidates * 400)     // ~400 bytes per pattern
	previewsSize := int64(el.limits.MaxTraversalNodes) * int64(el.limits.PreviewLength)

	return baseSize + anchorsSize + candidatesSize + patternsSize + previewsSize
}
