package extract

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/BetterCallFirewall/Anchorecon/internal/anchor"
	"github.com/BetterCallFirewall/Anchorecon/internal/limits"
	"github.com/BetterCallFirewall/Anchorecon/internal/models"
	"github.com/PuerkitoBio/goquery"
)

// TrackA — детерминированный экстрактор: обходит DOM детекторами полей
// и наполняет findings без единого обращения к LLM.
type TrackA struct {
	limiter             *limits.ExtractionLimiter
	confidenceThreshold float64
}

// NewTrackA создает детерминированный трек
func NewTrackA(limiter *limits.ExtractionLimiter, confidenceThreshold float64) *TrackA {
	if limiter == nil {
		limiter = limits.NewExtractionLimiter(nil)
	}
	return &TrackA{
		limiter:             limiter,
		confidenceThreshold: confidenceThreshold,
	}
}

// Process выполняет проход по всем не-discoverable полям контракта.
// При достижении 80% бюджета оставшиеся поля записываются как misses
// с причиной processing_timeout, и фаза возвращает то, что успела.
func (t *TrackA) Process(
	ctx context.Context,
	doc *goquery.Document,
	idx *anchor.Index,
	contract *models.Contract,
	budget time.Duration,
) (findings *models.Findings) {
	findings = models.NewFindings()

	// Глобальный сбой фазы не роняет запрос: синтетический miss и возврат
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ Track A panic recovered: %v", r)
			findings.AddMiss(models.Miss{
				Field:  models.MissSystemError,
				Reason: fmt.Sprintf("panic: %v", r),
			})
		}
	}()

	if doc == nil || idx.Len() == 0 {
		for _, spec := range contract.Fields {
			if spec.Kind == models.FieldDiscoverable {
				continue
			}
			findings.AddMiss(models.Miss{Field: spec.Name, Reason: models.MissNoCandidates})
		}
		return findings
	}

	started := time.Now()
	softDeadline := time.Duration(float64(budget) * 0.8)

	for i, spec := range contract.Fields {
		if spec.Kind == models.FieldDiscoverable {
			continue
		}

		// 80% бюджета — стоп: остаток полей уходит в misses
		if budget > 0 && time.Since(started) > softDeadline || ctx.Err() != nil {
			for _, rest := range contract.Fields[i:] {
				if rest.Kind == models.FieldDiscoverable {
					continue
				}
				findings.AddMiss(models.Miss{Field: rest.Name, Reason: models.MissTimeout})
			}
			log.Printf("⚠️ Track A soft deadline hit after %d/%d fields", i, len(contract.Fields))
			return findings
		}

		t.processField(doc, idx, spec, findings)
	}

	// Pattern discovery: только если контракт разрешает новые поля
	if contract.Governance.AllowNewFields {
		findings.Candidates = DiscoverPatterns(doc, idx, t.limiter)
	}

	return findings
}

// processField обрабатывает одно поле: detect → extract → validate → accept.
// Per-field исключения локализуются как miss, не роняя фазу.
func (t *TrackA) processField(
	doc *goquery.Document,
	idx *anchor.Index,
	spec models.FieldSpec,
	findings *models.Findings,
) {
	defer func() {
		if r := recover(); r != nil {
			findings.AddMiss(models.Miss{
				Field:  spec.Name,
				Reason: fmt.Sprintf("field panic: %v", r),
			})
		}
	}()

	detector := NewDetector(spec)
	extractor := NewExtractor(spec.Type)
	chain := ValidatorChain(spec.Type)

	candidates := detector.Detect(doc)
	if len(candidates) == 0 {
		findings.AddMiss(models.Miss{
			Field:          spec.Name,
			Reason:         models.MissNoCandidates,
			SelectorsTried: selectorsOf(candidates),
		})
		return
	}

	maxAccepted := t.limiter.GetLimits().MaxCandidatesField
	accepted := 0
	var lastReason string
	var tried []string

	for _, c := range candidates {
		if accepted >= maxAccepted {
			break
		}
		tried = append(tried, c.Selector)

		value, extractConf := extractor.Extract(c.Element)
		if value == "" {
			lastReason = models.MissEmptyExtraction
			continue
		}

		valid, validatorConf, reason := RunChain(chain, value)
		if !valid {
			lastReason = models.MissValidationFailed + ": " + reason
			continue
		}

		// Combined confidence = 0.4·detector + 0.4·extractor + 0.2·validators
		combined := 0.4*c.Confidence + 0.4*extractConf + 0.2*validatorConf
		if combined < t.confidenceThreshold {
			lastReason = models.MissLowConfidence
			continue
		}

		a, ok := idx.AnchorForElement(c.Element)
		if !ok {
			// Элемент вне индекса (например, пустой структурный узел) — без якоря не берем
			lastReason = "no anchor for element"
			continue
		}

		findings.AddHit(models.Hit{
			Field:      spec.Name,
			Value:      value,
			AnchorID:   a.ID,
			Confidence: combined,
			Validated:  true,
		})
		accepted++
	}

	if accepted == 0 {
		if lastReason == "" {
			lastReason = models.MissNoCandidates
		}
		findings.AddMiss(models.Miss{
			Field:          spec.Name,
			Reason:         lastReason,
			SelectorsTried: dedupeStrings(tried),
		})
	}
}

func selectorsOf(candidates []Candidate) []string {
	var selectors []string
	for _, c := range candidates {
		selectors = append(selectors, c.Selector)
	}
	return dedupeStrings(selectors)
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
