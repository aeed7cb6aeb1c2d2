package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BetterCallFirewall/Anchorecon/internal/models"
)

// BuildAugmentPrompt создаёт промпт для Track B.
// Модель видит ТОЛЬКО anchor ID и превью текста — никаких селекторов.
func BuildAugmentPrompt(req *AugmentRequest) string {
	contractJson, _ := json.MarshalIndent(summarizeContract(req.Contract), "", "  ")
	findingsJson, _ := json.MarshalIndent(summarizeFindings(req.Findings), "", "  ")
	sampleJson, _ := json.MarshalIndent(req.AnchorSample, "", "  ")

	return fmt.Sprintf(
		`
Ты — аккуратный ассистент по извлечению структурированных данных из веб-страниц.

### КОНТРАКТ (что извлекаем):
%s

### ЧТО УЖЕ НАШЁЛ ДЕТЕРМИНИРОВАННЫЙ ПРОХОД:
%s

### ВЫБОРКА УЗЛОВ СТРАНИЦЫ (anchor_id → превью):
%s

### ТВОИ ЗАДАЧИ:

1. **ЗАПОЛНИ ПРОПУСКИ (completions):**
   - Для каждого поля из misses попробуй найти значение в выборке узлов
   - ОБЯЗАТЕЛЬНО укажи anchor_id узла, из которого взято значение
   - Значение должно ДОСЛОВНО присутствовать в тексте узла

2. **ПРЕДЛОЖИ НОВЫЕ ПОЛЯ (new_fields):**
   - Только если видишь повторяющийся атрибут в нескольких узлах
   - Укажи ВСЕ anchor_id, где атрибут встречается (dom_anchors)
   - Минимум %d различных узлов на поле

3. **НОРМАЛИЗУЙ ИМЕНА (normalizations):**
   - Если имя поля в контракте отличается от устоявшегося ("e-mail" → "email")
   - Формат: {"from": "старое", "to": "новое", "reasoning": "почему"}

### КРИТИЧЕСКИ ВАЖНО:
- ❌ НЕ выдумывай значения! Только текст, который реально есть в узлах выборки
- ❌ НЕ цитируй anchor_id, которых нет в выборке
- ❌ НЕ добавляй поля без достаточного количества узлов
- ✅ Каждое предложение будет проверено повторным извлечением — выдумка будет отброшена
- ✅ Лучше пустой ответ, чем догадка

ПРИМЕР ПРАВИЛЬНОГО ОТВЕТА:
{
    "completions": [
        {"field": "email", "value": "j.smith@example.edu", "evidence": {"anchor_id": "n_8841"}, "confidence": 0.9}
    ],
    "new_fields": [
        {"name": "research_area", "type": "string", "support": 6, "dom_anchors": ["n_101", "n_102", "n_103", "n_104", "n_105", "n_106"], "confidence": 0.8, "reasoning": "Каждая карточка содержит область исследований"}
    ],
    "normalizations": []
}

ОТВЕТ СТРОГО В JSON согласно схеме. Никаких дополнительных полей.
`,
		string(contractJson),
		string(findingsJson),
		string(sampleJson),
		req.MinSupportThreshold,
	)
}

// contractSummary — то, что модель видит вместо полного контракта
type contractSummary struct {
	EntityName string   `json:"entity_name"`
	Fields     []string `json:"fields"`
	Mode       string   `json:"mode"`
}

func summarizeContract(c *models.Contract) contractSummary {
	fields := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		fields = append(fields, fmt.Sprintf("%s (%s, %s)", f.Name, f.Type, f.Kind))
	}
	return contractSummary{
		EntityName: c.EntityName,
		Fields:     fields,
		Mode:       string(c.Mode),
	}
}

// findingsSummary — сводка Track A без селекторов
type findingsSummary struct {
	Hits   []string       `json:"hits"`
	Misses []string       `json:"misses"`
	Support map[string]int `json:"support"`
}

func summarizeFindings(f *models.Findings) findingsSummary {
	summary := findingsSummary{Support: f.Support}
	for _, h := range f.Hits {
		summary.Hits = append(summary.Hits, fmt.Sprintf("%s = %q (anchor %s)", h.Field, truncate(h.Value, 80), h.AnchorID))
	}
	for _, m := range f.Misses {
		summary.Misses = append(summary.Misses, fmt.Sprintf("%s: %s", m.Field, m.Reason))
	}
	return summary
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// joinFieldNames — вспомогательная функция для промптов
func joinFieldNames(fields []models.FieldSpec) string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return strings.Join(names, ", ")
}
