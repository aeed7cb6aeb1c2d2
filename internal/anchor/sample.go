package anchor

import (
	"sort"

	"github.com/BetterCallFirewall/Anchorecon/internal/models"
	"github.com/BetterCallFirewall/Anchorecon/internal/utils"
)

// Sample возвращает выборку якорей размера ≤ n для LLM,
// стратифицированную по "богатству" текста: берем и длинные, и короткие
// узлы, чтобы модель видела и заголовки, и значения.
// Наружу уходят только preview (≤ previewLen) и тип элемента — никаких селекторов.
func (idx *Index) Sample(n, previewLen int) map[string]models.AnchorSample {
	sample := make(map[string]models.AnchorSample)
	if n <= 0 || len(idx.order) == 0 {
		return sample
	}

	// Только якоря с текстом: пустые узлы модели бесполезны
	textual := make([]*models.Anchor, 0, len(idx.order))
	for _, a := range idx.Anchors() {
		if a.TextPreview != "" {
			textual = append(textual, a)
		}
	}
	if len(textual) == 0 {
		return sample
	}

	// Сортируем по длине текста, сохраняя document order внутри равных
	sort.SliceStable(textual, func(i, j int) bool {
		return len(textual[i].TextPreview) > len(textual[j].TextPreview)
	})

	// Страты: верх (богатый текст), середина, низ (короткие значения)
	picked := make([]*models.Anchor, 0, n)
	if len(textual) <= n {
		picked = textual
	} else {
		step := len(textual) / n
		for i := 0; i < n; i++ {
			picked = append(picked, textual[i*step])
		}
	}

	for _, a := range picked {
		sample[a.ID] = models.AnchorSample{
			TextPreview: utils.TruncateString(a.TextPreview, previewLen),
			ElementType: a.ElementType,
		}
	}

	return sample
}
