package negotiate

import (
	"fmt"
	"log"
	"sort"

	"github.com/BetterCallFirewall/Anchorecon/internal/models"
)

// Пороги решений negotiator'а
const (
	// demotionRatio — expected-поле со support ниже этой доли от baseline
	// понижается до optional
	demotionRatio = 0.3

	// supportSaturation — support, при котором поле считается
	// полностью подтвержденным при расчете reliability
	supportSaturation = 10.0
)

// Веса kind'ов для взвешенной reliability
var kindWeights = map[models.FieldKind]float64{
	models.FieldRequired:     3.0,
	models.FieldExpected:     2.0,
	models.FieldOptional:     1.0,
	models.FieldDiscoverable: 0.5,
}

// SelectorResolver отображает anchor ID на его primary-селектор.
// Реализуется индексом якорей; nil-резолвер допустим.
type SelectorResolver interface {
	PrimarySelector(id string) (string, bool)
}

// Negotiator — decision kernel: сводит контракт, результаты Track A
// и валидированную аугментацию Track B в финальную схему.
// Чистая детерминированная функция от входов, LLM не вызывает.
type Negotiator struct{}

func New() *Negotiator {
	return &Negotiator{}
}

// Negotiate выполняет упорядоченный алгоритм переговоров.
// Порядок шагов фиксирован: required-гейт, baseline, prune/demote,
// completions, promotion, normalization, reliability.
func (n *Negotiator) Negotiate(
	contract *models.Contract,
	findings *models.Findings,
	aug *models.AugmentationResult,
	resolver SelectorResolver,
) *models.NegotiationResult {
	if aug == nil {
		aug = models.EmptyAugmentation()
	}

	result := &models.NegotiationResult{
		Status: models.NegotiationSuccess,
		Changes: models.NegotiationChanges{
			Pruned:  make([]models.FieldPrune, 0),
			Added:   make([]models.FieldAddition, 0),
			Demoted: make([]models.FieldDemotion, 0),
		},
	}

	// Шаг 1: required-гейт. Required-поле без единого доказательства
	// в обоих треках — ошибка всей строки переговоров.
	for _, f := range contract.RequiredFields() {
		if findings.FieldSupport(f.Name) > 0 {
			continue
		}
		if _, ok := aug.CompletionFor(f.Name); ok {
			continue
		}

		result.Status = models.NegotiationError
		result.MissingField = f.Name
		result.Reason = fmt.Sprintf("required field %q has zero support in both tracks", f.Name)
		if miss, ok := findings.MissFor(f.Name); ok {
			result.SelectorsTried = miss.SelectorsTried
		}
		log.Printf("⚠️ Negotiation failed: required field %s has no evidence", f.Name)
		return result
	}

	// Шаг 2: baseline — максимальный ненулевой support среди полей контракта
	baseline := 0
	for _, f := range contract.Fields {
		if s := findings.FieldSupport(f.Name); s > baseline {
			baseline = s
		}
	}

	// Шаг 3–4: prune нулевых expected, demote слабых expected
	final := make([]models.FieldSpec, 0, len(contract.Fields))
	completed := make(map[string]bool)
	for _, c := range aug.Completions {
		completed[c.Field] = true
	}

	for _, f := range contract.Fields {
		support := findings.FieldSupport(f.Name)

		if f.Kind == models.FieldExpected && support == 0 {
			// Поле, закрытое completion'ом Track B, не prune'ится —
			// оно понижается до optional, а восстановление фиксируется
			if completed[f.Name] {
				f.Kind = models.FieldOptional
				final = append(final, f)
				result.Changes.Added = append(result.Changes.Added, models.FieldAddition{
					Field:   f.Name,
					Support: 1,
					Source:  models.SourceCompletion,
				})
				continue
			}
			result.Changes.Pruned = append(result.Changes.Pruned, models.FieldPrune{
				Field:  f.Name,
				Reason: "zero_evidence_found",
			})
			log.Printf("⚪ Pruned field %s: zero evidence", f.Name)
			continue
		}

		if f.Kind == models.FieldExpected && baseline > 0 {
			ratio := float64(support) / float64(baseline)
			if ratio < demotionRatio {
				result.Changes.Demoted = append(result.Changes.Demoted, models.FieldDemotion{
					Field:    f.Name,
					Support:  support,
					Baseline: baseline,
					Ratio:    ratio,
				})
				f.Kind = models.FieldOptional
				log.Printf("🔍 Demoted field %s to optional: support %d/%d", f.Name, support, baseline)
			}
		}

		final = append(final, f)
	}

	// Шаг 5: completions для полей вне контракта добавляются как optional
	have := fieldSet(final)
	for _, c := range aug.Completions {
		if have[c.Field] {
			continue
		}
		have[c.Field] = true
		final = append(final, models.FieldSpec{
			Name:       c.Field,
			Kind:       models.FieldOptional,
			Type:       models.TypeString,
			Detector:   models.DetectorGeneric,
			MinSupport: contract.Governance.MinSupportThreshold,
		})
		result.Changes.Added = append(result.Changes.Added, models.FieldAddition{
			Field:  c.Field,
			Support: 1,
			Source: models.SourceCompletion,
		})
	}

	// Шаг 6: promotion открытий — только при allow_new_fields
	if contract.Governance.AllowNewFields {
		final = n.promoteDiscoveries(contract, findings, aug, final, result, resolver)
	}

	// Шаг 7: нормализации. Коллизия имен — отбрасываем с warning'ом.
	final = n.applyNormalizations(aug.Normalizations, final, result)

	result.FinalFields = final
	result.Evidence = n.summarizeEvidence(final, findings, aug, result.Changes.Renamed)
	return result
}

// discovery — унифицированный кандидат на новое поле из обоих треков
type discovery struct {
	name    string
	ftype   models.FieldType
	support int
	anchors []string
}

// promoteDiscoveries добавляет новые поля из pattern-кандидатов Track A
// и валидированных предложений Track B. Сортировка по support (убыв.),
// кап max_discoverable_fields, порог min_support_threshold.
func (n *Negotiator) promoteDiscoveries(
	contract *models.Contract,
	findings *models.Findings,
	aug *models.AugmentationResult,
	final []models.FieldSpec,
	result *models.NegotiationResult,
	resolver SelectorResolver,
) []models.FieldSpec {
	have := fieldSet(final)
	byName := make(map[string]discovery)

	for _, pc := range findings.Candidates {
		if pc.SuggestedField == "" || have[pc.SuggestedField] {
			continue
		}
		d := byName[pc.SuggestedField]
		d.name = pc.SuggestedField
		d.ftype = pc.SuggestedType
		d.support += pc.Instances
		d.anchors = append(d.anchors, pc.SampleAnchors...)
		byName[pc.SuggestedField] = d
	}

	for _, nf := range aug.NewFields {
		if have[nf.Name] {
			continue
		}
		d := byName[nf.Name]
		d.name = nf.Name
		if d.ftype == "" {
			d.ftype = nf.Type
		}
		d.support += nf.Support
		d.anchors = append(d.anchors, nf.DOMAnchors...)
		byName[nf.Name] = d
	}

	candidates := make([]discovery, 0, len(byName))
	for _, d := range byName {
		candidates = append(candidates, d)
	}
	// Детерминированный порядок: support убыв., затем имя
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].support != candidates[j].support {
			return candidates[i].support > candidates[j].support
		}
		return candidates[i].name < candidates[j].name
	})

	minSupport := contract.Governance.MinSupportThreshold
	slots := contract.Governance.MaxDiscoverableField

	for _, d := range candidates {
		if slots <= 0 {
			break
		}
		if d.support < minSupport {
			continue
		}
		ftype := d.ftype
		if ftype == "" {
			ftype = models.TypeString
		}
		seeds := uniqueStrings(d.anchors)
		var seedSelectors []string
		if resolver != nil {
			for _, id := range seeds {
				if sel, ok := resolver.PrimarySelector(id); ok {
					seedSelectors = append(seedSelectors, sel)
				}
			}
		}
		final = append(final, models.FieldSpec{
			Name:          d.name,
			Kind:          models.FieldDiscoverable,
			Type:          ftype,
			Detector:      models.DetectorAnchorSet,
			MinSupport:    minSupport,
			SeedAnchorIDs: seeds,
			SeedSelectors: seedSelectors,
		})
		result.Changes.Added = append(result.Changes.Added, models.FieldAddition{
			Field:   d.name,
			Support: d.support,
			Source:  models.SourceDiscovery,
		})
		have[d.name] = true
		slots--
		log.Printf("✅ Promoted discovered field %s (support=%d)", d.name, d.support)
	}

	return final
}

// applyNormalizations переименовывает поля. Переименование в занятое имя —
// коллизия: отбрасывается и фиксируется в warnings.
func (n *Negotiator) applyNormalizations(
	norms []models.Normalization,
	final []models.FieldSpec,
	result *models.NegotiationResult,
) []models.FieldSpec {
	if len(norms) == 0 {
		return final
	}

	have := fieldSet(final)
	for _, norm := range norms {
		if !have[norm.From] {
			continue
		}
		if have[norm.To] {
			warning := fmt.Sprintf("normalization %q -> %q dropped: name collision", norm.From, norm.To)
			result.Changes.Warnings = append(result.Changes.Warnings, warning)
			log.Printf("⚠️ %s", warning)
			continue
		}
		for i := range final {
			if final[i].Name == norm.From {
				final[i].Name = norm.To
				break
			}
		}
		delete(have, norm.From)
		have[norm.To] = true
		if result.Changes.Renamed == nil {
			result.Changes.Renamed = make(map[string]string)
		}
		result.Changes.Renamed[norm.From] = norm.To
	}

	return final
}

// summarizeEvidence считает сводку доказательной базы финальной схемы.
// Reliability — взвешенное среднее насыщенности support по kind'ам.
// Findings хранят доказательства под именами до нормализации, поэтому
// support переименованного поля ищется по его исходному имени.
func (n *Negotiator) summarizeEvidence(
	final []models.FieldSpec,
	findings *models.Findings,
	aug *models.AugmentationResult,
	renamed map[string]string,
) models.EvidenceSummary {
	summary := models.EvidenceSummary{
		PerFieldCoverage: make(map[string]int, len(final)),
	}

	original := make(map[string]string, len(renamed))
	for from, to := range renamed {
		original[to] = from
	}

	var weightedSum, totalWeight float64
	for _, f := range final {
		evidenceName := f.Name
		if from, ok := original[f.Name]; ok {
			evidenceName = from
		}

		support := findings.FieldSupport(evidenceName)
		if support == 0 {
			if _, ok := aug.CompletionFor(evidenceName); ok {
				support = 1
			}
		}
		summary.PerFieldCoverage[f.Name] = support
		summary.TotalSupport += support

		score := float64(support) / supportSaturation
		if score > 1.0 {
			score = 1.0
		}
		if f.Kind == models.FieldRequired && support > 0 {
			score += 0.2
			if score > 1.0 {
				score = 1.0
			}
		}

		w := kindWeights[f.Kind]
		weightedSum += score * w
		totalWeight += w
	}

	if totalWeight > 0 {
		summary.Reliability = weightedSum / totalWeight
	}
	return summary
}

func fieldSet(fields []models.FieldSpec) map[string]bool {
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f.Name] = true
	}
	return set
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
