package extract

import (
	"regexp"
	"strings"

	"github.com/BetterCallFirewall/Anchorecon/internal/anchor"
	"github.com/BetterCallFirewall/Anchorecon/internal/limits"
	"github.com/BetterCallFirewall/Anchorecon/internal/models"
	"github.com/PuerkitoBio/goquery"
)

// Семантические паттерны для sweep-стратегии.
// Компилируются один раз при запуске программы.
var (
	sweepEmailPattern    = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	sweepPhonePattern    = regexp.MustCompile(`\+?\d[\d\s\-()]{6,18}\d`)
	sweepCurrencyPattern = regexp.MustCompile(`[$€£¥]\s?\d[\d,.]*|\d[\d,.]*\s?(USD|EUR|RUB|руб)`)
	sweepPercentPattern  = regexp.MustCompile(`\d{1,3}(\.\d+)?\s?%`)
	sweepDatePattern     = regexp.MustCompile(`\d{4}-\d{2}-\d{2}|\d{1,2}[./]\d{1,2}[./]\d{2,4}`)

	labelNamePattern = regexp.MustCompile(`[^a-z0-9]+`)

	// volatileClassPattern повторяет anchor: классы, сгенерированные CSS-in-JS и бандлерами.
	volatileClassPattern = regexp.MustCompile(`^(css|jss|sc|emotion)-|[_-][0-9a-f]{5,}$|\d{4,}`)
)

// DiscoverPatterns ищет кандидатов на новые поля тремя стратегиями:
// 1) label/value пары (dt/dd, strong/label);
// 2) повторяющиеся классовые паттерны со схожей длиной контента;
// 3) семантический regex-sweep (email/phone/currency/percent/date).
// Каждый кандидат несет минимум 3 sample anchor ID.
func DiscoverPatterns(doc *goquery.Document, idx *anchor.Index, limiter *limits.ExtractionLimiter) []models.PatternCandidate {
	lims := limiter.GetLimits()

	var candidates []models.PatternCandidate
	candidates = append(candidates, labelValuePairs(doc, idx, lims)...)
	candidates = append(candidates, repeatedClassPatterns(doc, idx, lims)...)
	candidates = append(candidates, semanticSweep(doc, idx, lims)...)

	if len(candidates) > lims.MaxPatternCandidates {
		candidates = candidates[:lims.MaxPatternCandidates]
	}
	return candidates
}

// labelValuePairs: dt/dd и strong/label селекторы
func labelValuePairs(doc *goquery.Document, idx *anchor.Index, lims *limits.ExtractionLimits) []models.PatternCandidate {
	// label (нормализованное имя) → anchor ID значений
	groups := make(map[string][]string)

	doc.Find("dt").Each(func(i int, dt *goquery.Selection) {
		dd := dt.Next()
		if goquery.NodeName(dd) != "dd" {
			return
		}
		label := normalizeLabel(dt.Text())
		if label == "" {
			return
		}
		if a, ok := idx.AnchorForElement(dd); ok {
			groups[label] = append(groups[label], a.ID)
		}
	})

	// strong/b/label с двоеточием: "Phone: +1 555..." внутри одного блока
	doc.Find("strong, b, label").Each(func(i int, el *goquery.Selection) {
		text := strings.TrimSpace(el.Text())
		if !strings.HasSuffix(text, ":") {
			return
		}
		label := normalizeLabel(text)
		if label == "" {
			return
		}
		parent := el.Parent()
		if a, ok := idx.AnchorForElement(parent); ok {
			groups[label] = append(groups[label], a.ID)
		}
	})

	var out []models.PatternCandidate
	for label, anchors := range groups {
		if len(anchors) < lims.MinPatternInstances {
			continue
		}
		out = append(out, models.PatternCandidate{
			Pattern:        "label_value:" + label,
			Instances:      len(anchors),
			SampleAnchors:  sampleAnchors(anchors, lims.MinPatternInstances),
			SuggestedField: label,
			SuggestedType:  models.TypeString,
			Confidence:     patternConfidence(0.1, len(anchors), 1.0),
		})
	}
	return out
}

// repeatedClassPatterns: один класс на ≥ minInstances элементах
// со схожестью длины контента выше 0.5
func repeatedClassPatterns(doc *goquery.Document, idx *anchor.Index, lims *limits.ExtractionLimits) []models.PatternCandidate {
	type group struct {
		anchors []string
		lengths []int
	}
	groups := make(map[string]*group)

	visited := 0
	doc.Find("[class]").Each(func(i int, el *goquery.Selection) {
		if visited >= lims.MaxTraversalNodes {
			return
		}
		visited++

		text := strings.TrimSpace(el.Text())
		if text == "" || len(text) > 300 {
			return
		}

		class, _ := el.Attr("class")
		for _, c := range strings.Fields(class) {
			if volatileClassPattern.MatchString(c) {
				continue
			}
			a, ok := idx.AnchorForElement(el)
			if !ok {
				continue
			}
			g := groups[c]
			if g == nil {
				g = &group{}
				groups[c] = g
			}
			g.anchors = append(g.anchors, a.ID)
			g.lengths = append(g.lengths, len(text))
			break // один класс на элемент достаточно для группировки
		}
	})

	var out []models.PatternCandidate
	for class, g := range groups {
		if len(g.anchors) < lims.MinPatternInstances {
			continue
		}
		consistency := lengthConsistency(g.lengths)
		if consistency <= 0.5 {
			continue
		}
		out = append(out, models.PatternCandidate{
			Pattern:        "repeated_class:." + class,
			Instances:      len(g.anchors),
			SampleAnchors:  sampleAnchors(g.anchors, lims.MinPatternInstances),
			SuggestedField: normalizeLabel(class),
			SuggestedType:  models.TypeString,
			Confidence:     patternConfidence(0.05, len(g.anchors), consistency),
		})
	}
	return out
}

// semanticSweep: regex-поиск типизированных значений по текстовым якорям
func semanticSweep(doc *goquery.Document, idx *anchor.Index, lims *limits.ExtractionLimits) []models.PatternCandidate {
	sweeps := []struct {
		name    string
		ftype   models.FieldType
		pattern *regexp.Regexp
		bonus   float64
	}{
		{"email", models.TypeEmail, sweepEmailPattern, 0.2},
		{"phone", models.TypePhone, sweepPhonePattern, 0.15},
		{"price", models.TypeNumber, sweepCurrencyPattern, 0.15},
		{"percent", models.TypeNumber, sweepPercentPattern, 0.1},
		{"date", models.TypeDate, sweepDatePattern, 0.1},
	}

	hits := make(map[string][]string)

	for _, a := range idx.Anchors() {
		if a.TextPreview == "" {
			continue
		}
		for _, sweep := range sweeps {
			if sweep.pattern.MatchString(a.TextPreview) {
				hits[sweep.name] = append(hits[sweep.name], a.ID)
			}
		}
	}

	var out []models.PatternCandidate
	for _, sweep := range sweeps {
		anchors := hits[sweep.name]
		if len(anchors) < lims.MinPatternInstances {
			continue
		}
		out = append(out, models.PatternCandidate{
			Pattern:        "semantic:" + sweep.name,
			Instances:      len(anchors),
			SampleAnchors:  sampleAnchors(anchors, lims.MinPatternInstances),
			SuggestedField: sweep.name,
			SuggestedType:  sweep.ftype,
			Confidence:     patternConfidence(sweep.bonus, len(anchors), 1.0),
		})
	}
	return out
}

// patternConfidence: база 0.5 + типовой бонус + бонус за инстансы +
// бонус за консистентность, clamp до 0.95
func patternConfidence(typeBonus float64, instances int, consistency float64) float64 {
	conf := 0.5 + typeBonus

	instanceBonus := float64(instances) * 0.03
	if instanceBonus > 0.2 {
		instanceBonus = 0.2
	}
	conf += instanceBonus

	conf += (consistency - 0.5) * 0.2

	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

// lengthConsistency — схожесть длин контента в группе, 0.0–1.0
func lengthConsistency(lengths []int) float64 {
	if len(lengths) < 2 {
		return 1.0
	}

	sum := 0
	for _, l := range lengths {
		sum += l
	}
	mean := float64(sum) / float64(len(lengths))
	if mean == 0 {
		return 0
	}

	deviation := 0.0
	for _, l := range lengths {
		d := float64(l) - mean
		if d < 0 {
			d = -d
		}
		deviation += d
	}
	avgDeviation := deviation / float64(len(lengths))

	consistency := 1.0 - avgDeviation/mean
	if consistency < 0 {
		consistency = 0
	}
	return consistency
}

func normalizeLabel(s string) string {
	token := labelNamePattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "_")
	return strings.Trim(token, "_")
}

// sampleAnchors возвращает минимум min (но не более имеющихся) различных anchor ID
func sampleAnchors(anchors []string, min int) []string {
	unique := dedupeStrings(anchors)
	limit := min
	if limit < 3 {
		limit = 3
	}
	if len(unique) < limit {
		return unique
	}
	return unique[:limit]
}
