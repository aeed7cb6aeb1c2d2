package extract

import (
	"github.com/BetterCallFirewall/Anchorecon/internal/anchor"
	"github.com/BetterCallFirewall/Anchorecon/internal/models"
	"github.com/BetterCallFirewall/Anchorecon/internal/utils"
)

// RoundTripThreshold — минимальное сходство для принятия предложения Track B
const RoundTripThreshold = 0.8

// RoundTrip повторно извлекает текст якоря теми же стратегиями, что и Track A,
// и сравнивает с предложенным значением. Это гарантия против галлюцинаций:
// значение без подтверждающего узла не проходит.
func RoundTrip(idx *anchor.Index, anchorID, proposedValue string) (similarity float64, ok bool) {
	el, found := idx.Element(anchorID)
	if !found {
		return 0, false
	}

	a, _ := idx.Get(anchorID)

	// Пробуем те же экстракторы, что использует Track A, от точного к общему
	extractors := []Extractor{
		&textExtractor{},
		&emailExtractor{},
		&urlExtractor{attr: "href"},
	}

	best := 0.0
	for _, e := range extractors {
		value, _ := e.Extract(el)
		if value == "" {
			continue
		}
		if sim := utils.Similarity(value, proposedValue); sim > best {
			best = sim
		}
	}

	// Fallback: preview из индекса (актуален для обрезанного текста)
	if a != nil && a.TextPreview != "" {
		if sim := utils.Similarity(a.TextPreview, proposedValue); sim > best {
			best = sim
		}
	}

	return best, best >= RoundTripThreshold
}

// VerifyAnchorHit проверяет anchor round-trip закон для hit'а Track A:
// повторное извлечение по primary selector дает сходство ≥ 0.8.
func VerifyAnchorHit(idx *anchor.Index, hit models.Hit) bool {
	_, ok := RoundTrip(idx, hit.AnchorID, hit.Value)
	return ok
}
