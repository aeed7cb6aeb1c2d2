package models

import "time"

// Record — одна строка итогового набора. Ключи — строго имена финальных полей,
// никаких селекторов и anchor ID (additionalProperties = false).
type Record map[string]string

// StageTiming — длительность одной стадии pipeline
type StageTiming struct {
	Stage      string        `json:"stage"`
	Duration   time.Duration `json:"duration_ms"`
	Abstained  bool          `json:"abstained,omitempty"`
	FallbackBy string        `json:"fallback_by,omitempty"`
}

// ResultMetadata — метаданные ответа: контракт, отпечаток, бюджеты
type ResultMetadata struct {
	ContractID         string        `json:"contract_id"`
	Mode               ContractMode  `json:"mode"`
	ContentFingerprint string        `json:"content_fingerprint"`
	TokensUsed         int           `json:"tokens_used"`
	StageTimings       []StageTiming `json:"stage_timings"`
	AbstainedStages    []string      `json:"abstained_stages,omitempty"`
	IsReplay           bool          `json:"is_replay,omitempty"`
}

// ExtractionResult — итог обработки одного запроса
type ExtractionResult struct {
	Records     []Record          `json:"records"`
	Negotiation NegotiationResult `json:"negotiation"`
	Metadata    ResultMetadata    `json:"metadata"`
}

// ExtractionRequest — вход pipeline: URL + запрос пользователя + HTML
type ExtractionRequest struct {
	URL   string `json:"url"`
	Query string `json:"query"`
	HTML  string `json:"html"`
}
