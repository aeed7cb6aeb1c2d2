package llm

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/BetterCallFirewall/Anchorecon/internal/extract"
	"github.com/BetterCallFirewall/Anchorecon/internal/models"
)

// ContractGenerator превращает запрос пользователя в типизированный контракт.
// При недоступности модели (выключена, ошибка, abstain) деградирует
// к библиотеке шаблонов — extraction никогда не блокируется на LLM.
type ContractGenerator struct {
	call    ContractFn
	enabled bool
}

func NewContractGenerator(call ContractFn, enabled bool) *ContractGenerator {
	return &ContractGenerator{call: call, enabled: enabled}
}

// Generate строит контракт для запроса. Всегда возвращает валидный контракт.
func (g *ContractGenerator) Generate(ctx context.Context, query, contentSample string) *models.Contract {
	if g.enabled && g.call != nil {
		resp, err := g.call(ctx, &ContractRequest{Query: query, ContentSample: contentSample})
		switch {
		case err != nil:
			log.Printf("⚠️ Contract flow failed, falling back to templates: %v", err)
		case resp.Abstain || len(resp.Fields) == 0:
			log.Printf("⚪ Contract flow abstained, falling back to templates")
		default:
			if c, ok := g.fromResponse(resp); ok {
				return c
			}
			log.Printf("⚠️ Contract response invalid, falling back to templates")
		}
	}

	return g.fromTemplate(query)
}

// fromResponse собирает контракт из ответа модели, приводя его к инвариантам:
// ровно непустой entity_name, хотя бы одно required-поле, детектор на каждое поле.
func (g *ContractGenerator) fromResponse(resp *ContractResponse) (*models.Contract, bool) {
	entityName := normalizeEntityName(resp.EntityName)
	if entityName == "" {
		return nil, false
	}

	gov := models.DefaultGovernance()
	seen := make(map[string]bool, len(resp.Fields))
	fields := make([]models.FieldSpec, 0, len(resp.Fields))
	hasRequired := false

	for _, rf := range resp.Fields {
		name := normalizeFieldName(rf.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		kind := parseFieldKind(rf.Kind)
		if kind == models.FieldRequired {
			// Консервативность: не больше одного required-поля от модели
			if hasRequired {
				kind = models.FieldExpected
			} else {
				hasRequired = true
			}
		}

		ftype := parseFieldType(rf.Type)
		fields = append(fields, models.FieldSpec{
			Name:       name,
			Kind:       kind,
			Type:       ftype,
			Detector:   extract.HintForField(name, ftype),
			MinSupport: gov.MinSupportThreshold,
		})
	}

	if len(fields) == 0 {
		return nil, false
	}
	if !hasRequired {
		fields[0].Kind = models.FieldRequired
	}

	return &models.Contract{
		ID:         fmt.Sprintf("ct_%s", uuid.New().String()[:8]),
		EntityName: entityName,
		Fields:     fields,
		Governance: gov,
		Mode:       models.ModeSoft,
	}, true
}

// fromTemplate строит контракт из библиотеки шаблонов,
// с минимальным {title: required} как последним рубежом.
func (g *ContractGenerator) fromTemplate(query string) *models.Contract {
	tpl, ok := MatchTemplate(query)
	if !ok {
		tpl = MinimalTemplate()
		log.Printf("⚪ No template matched query, using minimal contract")
	} else {
		log.Printf("🔍 Template matched: %s", tpl.entityName)
	}

	gov := models.DefaultGovernance()
	fields := make([]models.FieldSpec, len(tpl.fields))
	copy(fields, tpl.fields)
	for i := range fields {
		fields[i].Detector = extract.HintForField(fields[i].Name, fields[i].Type)
		fields[i].MinSupport = gov.MinSupportThreshold
	}

	return &models.Contract{
		ID:         fmt.Sprintf("ct_%s", uuid.New().String()[:8]),
		EntityName: tpl.entityName,
		Fields:     fields,
		Governance: gov,
		Mode:       models.ModeSoft,
	}
}

func normalizeEntityName(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

func normalizeFieldName(s string) string {
	return normalizeEntityName(s)
}
