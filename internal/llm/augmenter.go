package llm

import (
	"context"
	"log"

	"github.com/BetterCallFirewall/Anchorecon/internal/anchor"
	"github.com/BetterCallFirewall/Anchorecon/internal/extract"
	"github.com/BetterCallFirewall/Anchorecon/internal/limits"
	"github.com/BetterCallFirewall/Anchorecon/internal/models"
)

// Caps на confidence предложений модели
const (
	completionConfidenceCap = 0.95
	newFieldConfidenceCap   = 0.90
)

// Augmenter — Track B: заполняет пропуски и предлагает новые поля через LLM,
// доказуемо не галлюцинируя: каждое предложение проходит round-trip валидацию
// против индекса якорей.
type Augmenter struct {
	call     AugmentFn
	limiter  *limits.ExtractionLimiter
	enabled  bool
	validate bool // anchor validation on/off из конфига
}

// NewAugmenter создает Track B. При call == nil или enabled == false
// Augment всегда возвращает пустой результат.
func NewAugmenter(call AugmentFn, limiter *limits.ExtractionLimiter, enabled, validate bool) *Augmenter {
	if limiter == nil {
		limiter = limits.NewExtractionLimiter(nil)
	}
	return &Augmenter{
		call:     call,
		limiter:  limiter,
		enabled:  enabled,
		validate: validate,
	}
}

// Augment выполняет Track B. Ошибки модели, нарушение схемы и таймауты
// дают пустой результат — pipeline продолжается на одном Track A.
func (a *Augmenter) Augment(
	ctx context.Context,
	findings *models.Findings,
	contract *models.Contract,
	idx *anchor.Index,
) *models.AugmentationResult {
	if !a.enabled || a.call == nil {
		return models.EmptyAugmentation()
	}

	lims := a.limiter.GetLimits()
	sample := idx.Sample(lims.AnchorSampleSize, lims.PromptPreviewLength)
	if len(sample) == 0 {
		return models.EmptyAugmentation()
	}

	req := &AugmentRequest{
		Contract:            contract,
		Findings:            findings,
		AnchorSample:        sample,
		MinSupportThreshold: contract.Governance.MinSupportThreshold,
	}

	resp, err := a.call(ctx, req)
	if err != nil {
		// Timeout — не ошибка: возвращаем пустую аугментацию
		log.Printf("⚠️ Augmenter failed (non-critical): %v", err)
		return models.EmptyAugmentation()
	}

	return a.validateResponse(resp, contract, idx)
}

// validateResponse применяет anchor discipline к сырому ответу модели:
// каждое предложение без валидного якоря отбрасывается.
func (a *Augmenter) validateResponse(
	resp *AugmentResponse,
	contract *models.Contract,
	idx *anchor.Index,
) *models.AugmentationResult {
	result := models.EmptyAugmentation()

	for _, c := range resp.Completions {
		if c.Field == "" || c.Value == "" {
			result.Dropped++
			continue
		}

		// Якорь обязан существовать в индексе
		if _, ok := idx.Get(c.Evidence.AnchorID); !ok {
			log.Printf("⚪ Dropped completion %s: anchor %s not in index", c.Field, c.Evidence.AnchorID)
			result.Dropped++
			continue
		}

		// Round-trip: значение должно повторно извлекаться из узла
		if a.validate {
			if _, ok := extract.RoundTrip(idx, c.Evidence.AnchorID, c.Value); !ok {
				log.Printf("⚪ Dropped completion %s=%q: round-trip below threshold", c.Field, c.Value)
				result.Dropped++
				continue
			}
		}

		if c.Confidence > completionConfidenceCap {
			c.Confidence = completionConfidenceCap
		}
		result.Completions = append(result.Completions, c)
	}

	minSupport := contract.Governance.MinSupportThreshold

	for _, nf := range resp.NewFields {
		if nf.Name == "" {
			result.Dropped++
			continue
		}

		// Каждый цитируемый якорь обязан существовать и проходить round-trip
		// против собственного текста (защита от выдуманных ID)
		var verified []string
		for _, anchorID := range nf.DOMAnchors {
			anc, ok := idx.Get(anchorID)
			if !ok || anc.TextPreview == "" {
				continue
			}
			if a.validate {
				if _, ok := extract.RoundTrip(idx, anchorID, anc.TextPreview); !ok {
					continue
				}
			}
			verified = append(verified, anchorID)
		}
		verified = dedupe(verified)

		if len(verified) < minSupport {
			log.Printf("⚪ Dropped new field %s: %d verified anchors < %d required", nf.Name, len(verified), minSupport)
			result.Dropped++
			continue
		}

		nf.DOMAnchors = verified
		nf.Support = len(verified)
		if nf.Confidence > newFieldConfidenceCap {
			nf.Confidence = newFieldConfidenceCap
		}
		result.NewFields = append(result.NewFields, nf)
	}

	// Нормализации не требуют anchor-доказательств
	for _, n := range resp.Normalizations {
		if n.From == "" || n.To == "" || n.From == n.To {
			result.Dropped++
			continue
		}
		result.Normalizations = append(result.Normalizations, n)
	}

	return result
}

func dedupe(in []string) []string {
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
